package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/draftleague/league-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache for display projections: free-agent lists and limit counts. Those
// reads may be slightly stale. Everything read inside RunInTx bypasses the
// cache, so validation always sees the primary store.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through (write to primary, invalidate cache after commit) ---

func (s *CachedStore) RunInTx(ctx context.Context, fn func(tx Tx) error) error {
	rec := &invalidatingTx{keys: make(map[string]struct{})}
	err := s.primary.RunInTx(ctx, func(tx Tx) error {
		rec.Tx = tx
		return fn(rec)
	})
	if err != nil {
		return err
	}
	if len(rec.keys) == 0 {
		return nil
	}
	keys := make([]string, 0, len(rec.keys))
	for k := range rec.keys {
		keys = append(keys, k)
	}
	if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
		// The primary already committed; stale entries expire with the TTL.
		slog.Warn("cache invalidation failed", "keys", keys, "err", err)
	}
	return nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) ListFreeAgents(ctx context.Context, seasonID string) ([]model.Pokemon, error) {
	data, err := s.rdb.Get(ctx, freeAgentsKey(seasonID)).Bytes()
	if err == nil {
		var agents []model.Pokemon
		if json.Unmarshal(data, &agents) == nil {
			return agents, nil
		}
	}

	agents, err := s.primary.ListFreeAgents(ctx, seasonID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(agents); err == nil {
		s.rdb.Set(ctx, freeAgentsKey(seasonID), data, s.ttl)
	}
	return agents, nil
}

func (s *CachedStore) CountLimited(ctx context.Context, seasonCoachID string, category model.LimitCategory) (int, error) {
	if v, err := s.rdb.Get(ctx, countKey(seasonCoachID, category)).Result(); err == nil {
		if n, err := strconv.Atoi(v); err == nil {
			return n, nil
		}
	}

	n, err := s.primary.CountLimited(ctx, seasonCoachID, category)
	if err != nil {
		return 0, err
	}
	s.rdb.Set(ctx, countKey(seasonCoachID, category), n, s.ttl)
	return n, nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) GetSeason(ctx context.Context, id string) (*model.Season, error) {
	return s.primary.GetSeason(ctx, id)
}

func (s *CachedStore) GetSeasonCoach(ctx context.Context, id string) (*model.SeasonCoach, error) {
	return s.primary.GetSeasonCoach(ctx, id)
}

func (s *CachedStore) GetPrice(ctx context.Context, seasonID, pokemonID string) (*model.SeasonPrice, error) {
	return s.primary.GetPrice(ctx, seasonID, pokemonID)
}

func (s *CachedStore) GetRosterEntry(ctx context.Context, id string) (*model.RosterEntry, error) {
	return s.primary.GetRosterEntry(ctx, id)
}

func (s *CachedStore) ListRoster(ctx context.Context, seasonCoachID string) ([]model.RosterEntry, error) {
	return s.primary.ListRoster(ctx, seasonCoachID)
}

func (s *CachedStore) FindOwner(ctx context.Context, seasonID, pokemonID string) (*model.RosterEntry, error) {
	return s.primary.FindOwner(ctx, seasonID, pokemonID)
}

func (s *CachedStore) GetTransaction(ctx context.Context, id string) (*model.Transaction, error) {
	return s.primary.GetTransaction(ctx, id)
}

func (s *CachedStore) ListTransactions(ctx context.Context, filter model.TransactionFilter) ([]model.Transaction, error) {
	return s.primary.ListTransactions(ctx, filter)
}

// invalidatingTx forwards to the primary Tx and records which cache keys
// its writes make stale.
type invalidatingTx struct {
	Tx
	keys map[string]struct{}
}

func (tx *invalidatingTx) markTeamSeason(ctx context.Context, seasonCoachID string) {
	team, err := tx.Tx.GetSeasonCoach(ctx, seasonCoachID)
	if err != nil {
		return
	}
	tx.keys[freeAgentsKey(team.SeasonID)] = struct{}{}
}

func (tx *invalidatingTx) markCounts(t *model.Transaction) {
	for _, cat := range []model.LimitCategory{model.LimitFA, model.LimitP2P} {
		tx.keys[countKey(t.SeasonCoachID, cat)] = struct{}{}
		if t.TradingPartnerSeasonCoachID != nil {
			tx.keys[countKey(*t.TradingPartnerSeasonCoachID, cat)] = struct{}{}
		}
	}
}

func (tx *invalidatingTx) InsertRosterEntry(ctx context.Context, e *model.RosterEntry) error {
	if err := tx.Tx.InsertRosterEntry(ctx, e); err != nil {
		return err
	}
	tx.markTeamSeason(ctx, e.SeasonCoachID)
	return nil
}

func (tx *invalidatingTx) UpdateRosterEntry(ctx context.Context, e *model.RosterEntry) error {
	if err := tx.Tx.UpdateRosterEntry(ctx, e); err != nil {
		return err
	}
	tx.markTeamSeason(ctx, e.SeasonCoachID)
	return nil
}

func (tx *invalidatingTx) DeleteRosterEntry(ctx context.Context, id string) error {
	if e, err := tx.Tx.GetRosterEntry(ctx, id); err == nil {
		tx.markTeamSeason(ctx, e.SeasonCoachID)
	}
	return tx.Tx.DeleteRosterEntry(ctx, id)
}

func (tx *invalidatingTx) InsertTransaction(ctx context.Context, t *model.Transaction) error {
	if err := tx.Tx.InsertTransaction(ctx, t); err != nil {
		return err
	}
	tx.markCounts(t)
	return nil
}

func (tx *invalidatingTx) DeleteTransaction(ctx context.Context, id string) error {
	if t, err := tx.Tx.GetTransaction(ctx, id); err == nil {
		tx.markCounts(t)
	}
	return tx.Tx.DeleteTransaction(ctx, id)
}

// --- Cache helpers ---

func freeAgentsKey(seasonID string) string { return fmt.Sprintf("freeagents:%s", seasonID) }
func countKey(seasonCoachID string, c model.LimitCategory) string {
	return fmt.Sprintf("txcount:%s:%s", seasonCoachID, c)
}
