package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/draftleague/league-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
//
// RunInTx works on a cloned copy of the state and swaps it in only on
// success, so a failed unit of work leaves nothing behind.
type MemoryStore struct {
	mu    sync.RWMutex
	state *memState
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: newMemState()}
}

type memState struct {
	seasons      map[string]model.Season
	coaches      map[string]model.SeasonCoach
	pokemon      map[string]model.Pokemon
	prices       map[string]model.SeasonPrice // seasonID:pokemonID
	roster       map[string]model.RosterEntry
	transactions []model.Transaction // insertion order
}

func newMemState() *memState {
	return &memState{
		seasons: make(map[string]model.Season),
		coaches: make(map[string]model.SeasonCoach),
		pokemon: make(map[string]model.Pokemon),
		prices:  make(map[string]model.SeasonPrice),
		roster:  make(map[string]model.RosterEntry),
	}
}

func (st *memState) clone() *memState {
	c := newMemState()
	for k, v := range st.seasons {
		c.seasons[k] = v
	}
	for k, v := range st.coaches {
		c.coaches[k] = v
	}
	for k, v := range st.pokemon {
		c.pokemon[k] = v
	}
	for k, v := range st.prices {
		c.prices[k] = v
	}
	for k, v := range st.roster {
		c.roster[k] = cloneEntry(v)
	}
	c.transactions = make([]model.Transaction, len(st.transactions))
	for i, t := range st.transactions {
		c.transactions[i] = cloneTransaction(t)
	}
	return c
}

func priceKey(seasonID, pokemonID string) string { return seasonID + ":" + pokemonID }

// --- Seeding (draft-time data entry, outside the engine) ---

// CreateSeason stores a season.
func (s *MemoryStore) CreateSeason(_ context.Context, season *model.Season) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.state.seasons[season.ID]; ok {
		return fmt.Errorf("season %s already exists", season.ID)
	}
	s.state.seasons[season.ID] = *season
	return nil
}

// CreateSeasonCoach stores a team.
func (s *MemoryStore) CreateSeasonCoach(_ context.Context, team *model.SeasonCoach) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.state.seasons[team.SeasonID]; !ok {
		return fmt.Errorf("season %s: %w", team.SeasonID, ErrNotFound)
	}
	if _, ok := s.state.coaches[team.ID]; ok {
		return fmt.Errorf("season coach %s already exists", team.ID)
	}
	s.state.coaches[team.ID] = *team
	return nil
}

// SetSeasonCoachActive flips a team's active flag, recording its successor.
func (s *MemoryStore) SetSeasonCoachActive(_ context.Context, id string, active bool, replacedByID *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	team, ok := s.state.coaches[id]
	if !ok {
		return fmt.Errorf("season coach %s: %w", id, ErrNotFound)
	}
	team.IsActive = active
	team.ReplacedByID = replacedByID
	s.state.coaches[id] = team
	return nil
}

// CreatePokemon stores a reference Pokemon.
func (s *MemoryStore) CreatePokemon(_ context.Context, p *model.Pokemon) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.pokemon[p.ID] = *p
	return nil
}

// SetPrice upserts a price sheet row.
func (s *MemoryStore) SetPrice(_ context.Context, p *model.SeasonPrice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.prices[priceKey(p.SeasonID, p.PokemonID)] = *p
	return nil
}

// AddDraftedEntry stores a roster entry built at draft time. The team's
// budget is not touched; draft construction sets it separately.
func (s *MemoryStore) AddDraftedEntry(_ context.Context, entry *model.RosterEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.state.coaches[entry.SeasonCoachID]; !ok {
		return fmt.Errorf("season coach %s: %w", entry.SeasonCoachID, ErrNotFound)
	}
	s.state.roster[entry.ID] = cloneEntry(*entry)
	return nil
}

// --- Store ---

// RunInTx executes fn within a transactional copy of the store state.
func (s *MemoryStore) RunInTx(_ context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{st: s.state.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	s.state = tx.st
	return nil
}

func (s *MemoryStore) GetSeason(ctx context.Context, id string) (*model.Season, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.getSeason(id)
}

func (s *MemoryStore) GetSeasonCoach(ctx context.Context, id string) (*model.SeasonCoach, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.getSeasonCoach(id)
}

func (s *MemoryStore) GetPrice(ctx context.Context, seasonID, pokemonID string) (*model.SeasonPrice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.getPrice(seasonID, pokemonID)
}

func (s *MemoryStore) GetRosterEntry(ctx context.Context, id string) (*model.RosterEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.getRosterEntry(id)
}

func (s *MemoryStore) ListRoster(ctx context.Context, seasonCoachID string) ([]model.RosterEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.listRoster(seasonCoachID), nil
}

func (s *MemoryStore) FindOwner(ctx context.Context, seasonID, pokemonID string) (*model.RosterEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.findOwner(seasonID, pokemonID)
}

func (s *MemoryStore) ListFreeAgents(ctx context.Context, seasonID string) ([]model.Pokemon, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.listFreeAgents(seasonID), nil
}

func (s *MemoryStore) GetTransaction(ctx context.Context, id string) (*model.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.getTransaction(id)
}

func (s *MemoryStore) ListTransactions(ctx context.Context, filter model.TransactionFilter) ([]model.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.listTransactions(filter), nil
}

func (s *MemoryStore) CountLimited(ctx context.Context, seasonCoachID string, category model.LimitCategory) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.countLimited(seasonCoachID, category), nil
}

// --- Transaction ---

// memTx runs against the cloned state; RunInTx already holds the write lock.
type memTx struct {
	st *memState
}

func (tx *memTx) GetSeason(_ context.Context, id string) (*model.Season, error) {
	return tx.st.getSeason(id)
}

func (tx *memTx) GetSeasonCoach(_ context.Context, id string) (*model.SeasonCoach, error) {
	return tx.st.getSeasonCoach(id)
}

func (tx *memTx) GetPrice(_ context.Context, seasonID, pokemonID string) (*model.SeasonPrice, error) {
	return tx.st.getPrice(seasonID, pokemonID)
}

func (tx *memTx) GetRosterEntry(_ context.Context, id string) (*model.RosterEntry, error) {
	return tx.st.getRosterEntry(id)
}

func (tx *memTx) ListRoster(_ context.Context, seasonCoachID string) ([]model.RosterEntry, error) {
	return tx.st.listRoster(seasonCoachID), nil
}

func (tx *memTx) FindOwner(_ context.Context, seasonID, pokemonID string) (*model.RosterEntry, error) {
	return tx.st.findOwner(seasonID, pokemonID)
}

func (tx *memTx) ListFreeAgents(_ context.Context, seasonID string) ([]model.Pokemon, error) {
	return tx.st.listFreeAgents(seasonID), nil
}

func (tx *memTx) GetTransaction(_ context.Context, id string) (*model.Transaction, error) {
	return tx.st.getTransaction(id)
}

func (tx *memTx) ListTransactions(_ context.Context, filter model.TransactionFilter) ([]model.Transaction, error) {
	return tx.st.listTransactions(filter), nil
}

func (tx *memTx) CountLimited(_ context.Context, seasonCoachID string, category model.LimitCategory) (int, error) {
	return tx.st.countLimited(seasonCoachID, category), nil
}

// LockSeasonCoaches is a no-op: the store-wide write lock already serialises.
func (tx *memTx) LockSeasonCoaches(_ context.Context, ids ...string) error {
	for _, id := range ids {
		if _, ok := tx.st.coaches[id]; !ok {
			return fmt.Errorf("season coach %s: %w", id, ErrNotFound)
		}
	}
	return nil
}

func (tx *memTx) LockPokemon(_ context.Context, _, _ string) error { return nil }

func (tx *memTx) AdjustBudget(_ context.Context, seasonCoachID string, delta int) error {
	team, ok := tx.st.coaches[seasonCoachID]
	if !ok {
		return fmt.Errorf("season coach %s: %w", seasonCoachID, ErrNotFound)
	}
	team.RemainingBudget += delta
	tx.st.coaches[seasonCoachID] = team
	return nil
}

func (tx *memTx) InsertRosterEntry(_ context.Context, entry *model.RosterEntry) error {
	if _, ok := tx.st.roster[entry.ID]; ok {
		return fmt.Errorf("roster entry %s already exists", entry.ID)
	}
	tx.st.roster[entry.ID] = cloneEntry(*entry)
	return nil
}

func (tx *memTx) UpdateRosterEntry(_ context.Context, entry *model.RosterEntry) error {
	if _, ok := tx.st.roster[entry.ID]; !ok {
		return fmt.Errorf("roster entry %s: %w", entry.ID, ErrNotFound)
	}
	tx.st.roster[entry.ID] = cloneEntry(*entry)
	return nil
}

func (tx *memTx) DeleteRosterEntry(_ context.Context, id string) error {
	if _, ok := tx.st.roster[id]; !ok {
		return fmt.Errorf("roster entry %s: %w", id, ErrNotFound)
	}
	delete(tx.st.roster, id)
	return nil
}

func (tx *memTx) InsertTransaction(_ context.Context, t *model.Transaction) error {
	tx.st.transactions = append(tx.st.transactions, cloneTransaction(*t))
	return nil
}

func (tx *memTx) DeleteTransaction(_ context.Context, id string) error {
	for i, t := range tx.st.transactions {
		if t.ID == id {
			tx.st.transactions = append(tx.st.transactions[:i], tx.st.transactions[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("transaction %s: %w", id, ErrNotFound)
}

// --- State queries (callers hold the lock) ---

func (st *memState) getSeason(id string) (*model.Season, error) {
	season, ok := st.seasons[id]
	if !ok {
		return nil, fmt.Errorf("season %s: %w", id, ErrNotFound)
	}
	return &season, nil
}

func (st *memState) getSeasonCoach(id string) (*model.SeasonCoach, error) {
	team, ok := st.coaches[id]
	if !ok {
		return nil, fmt.Errorf("season coach %s: %w", id, ErrNotFound)
	}
	return &team, nil
}

func (st *memState) getPrice(seasonID, pokemonID string) (*model.SeasonPrice, error) {
	p, ok := st.prices[priceKey(seasonID, pokemonID)]
	if !ok {
		return nil, fmt.Errorf("price for %s in season %s: %w", pokemonID, seasonID, ErrNotFound)
	}
	return &p, nil
}

func (st *memState) getRosterEntry(id string) (*model.RosterEntry, error) {
	e, ok := st.roster[id]
	if !ok {
		return nil, fmt.Errorf("roster entry %s: %w", id, ErrNotFound)
	}
	e = cloneEntry(e)
	return &e, nil
}

func (st *memState) listRoster(seasonCoachID string) []model.RosterEntry {
	var out []model.RosterEntry
	for _, e := range st.roster {
		if e.SeasonCoachID == seasonCoachID {
			out = append(out, cloneEntry(e))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (st *memState) findOwner(seasonID, pokemonID string) (*model.RosterEntry, error) {
	for _, e := range st.roster {
		if e.PokemonID != pokemonID {
			continue
		}
		team, ok := st.coaches[e.SeasonCoachID]
		if ok && team.IsActive && team.SeasonID == seasonID {
			e = cloneEntry(e)
			return &e, nil
		}
	}
	return nil, fmt.Errorf("owner of %s in season %s: %w", pokemonID, seasonID, ErrNotFound)
}

func (st *memState) listFreeAgents(seasonID string) []model.Pokemon {
	owned := make(map[string]bool)
	for _, e := range st.roster {
		team, ok := st.coaches[e.SeasonCoachID]
		if ok && team.IsActive && team.SeasonID == seasonID {
			owned[e.PokemonID] = true
		}
	}

	out := []model.Pokemon{}
	for _, p := range st.prices {
		if p.SeasonID != seasonID || owned[p.PokemonID] {
			continue
		}
		mon, ok := st.pokemon[p.PokemonID]
		if !ok {
			mon = model.Pokemon{ID: p.PokemonID, Name: p.PokemonID}
		}
		out = append(out, mon)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (st *memState) getTransaction(id string) (*model.Transaction, error) {
	for _, t := range st.transactions {
		if t.ID == id {
			t = cloneTransaction(t)
			return &t, nil
		}
	}
	return nil, fmt.Errorf("transaction %s: %w", id, ErrNotFound)
}

func (st *memState) listTransactions(filter model.TransactionFilter) []model.Transaction {
	out := []model.Transaction{}
	for i := len(st.transactions) - 1; i >= 0; i-- {
		if t := st.transactions[i]; filter.Matches(t) {
			out = append(out, cloneTransaction(t))
		}
	}
	return out
}

func (st *memState) countLimited(seasonCoachID string, category model.LimitCategory) int {
	n := 0
	for _, t := range st.transactions {
		if t.CountsAgainstLimit && t.Type.Category() == category && t.Involves(seasonCoachID) {
			n++
		}
	}
	return n
}

func cloneEntry(e model.RosterEntry) model.RosterEntry {
	if e.AcquiredWeek != nil {
		w := *e.AcquiredWeek
		e.AcquiredWeek = &w
	}
	return e
}

func cloneTransaction(t model.Transaction) model.Transaction {
	t.PokemonIn = append([]string{}, t.PokemonIn...)
	t.PokemonOut = append([]string{}, t.PokemonOut...)
	t.RosterAfter = append([]string(nil), t.RosterAfter...)
	if t.RosterBefore != nil {
		before := make([]model.RosterEntry, len(t.RosterBefore))
		for i, e := range t.RosterBefore {
			before[i] = cloneEntry(e)
		}
		t.RosterBefore = before
	}
	return t
}
