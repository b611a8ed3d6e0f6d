package store

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/draftleague/league-engine/internal/model"
)

//go:embed schema.sql
var schemaSQL string

// PostgresStore implements Store using PostgreSQL as the source of truth.
// Each RunInTx call is one pgx transaction; team rows are locked FOR UPDATE
// and free-agent pickups take a transaction-scoped advisory lock.
type PostgresStore struct {
	pgReader
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pgReader: pgReader{q: pool}, pool: pool}
}

// EnsureSchema applies the embedded DDL. Statements are idempotent.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	for _, stmt := range strings.Split(schemaSQL, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

// RunInTx runs fn inside a READ COMMITTED transaction. Row locks taken via
// the Tx are the serialisation points.
func (s *PostgresStore) RunInTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&pgTx{pgReader: pgReader{q: tx}}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type pgReader struct {
	q querier
}

func notFound(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", what, err)
}

func (r pgReader) GetSeason(ctx context.Context, id string) (*model.Season, error) {
	var s model.Season
	err := r.q.QueryRow(ctx,
		`SELECT id, name, draft_budget, is_current, is_public FROM seasons WHERE id = $1`, id).
		Scan(&s.ID, &s.Name, &s.DraftBudget, &s.IsCurrent, &s.IsPublic)
	if err != nil {
		return nil, notFound(err, "season "+id)
	}
	return &s, nil
}

const seasonCoachColumns = `id, season_id, division_id, coach_id, team_name, team_abbreviation,
	remaining_budget, is_active, replaced_by_id`

func (r pgReader) GetSeasonCoach(ctx context.Context, id string) (*model.SeasonCoach, error) {
	var c model.SeasonCoach
	err := r.q.QueryRow(ctx,
		`SELECT `+seasonCoachColumns+` FROM season_coaches WHERE id = $1`, id).
		Scan(&c.ID, &c.SeasonID, &c.DivisionID, &c.CoachID, &c.TeamName, &c.TeamAbbreviation,
			&c.RemainingBudget, &c.IsActive, &c.ReplacedByID)
	if err != nil {
		return nil, notFound(err, "season coach "+id)
	}
	return &c, nil
}

func (r pgReader) GetPrice(ctx context.Context, seasonID, pokemonID string) (*model.SeasonPrice, error) {
	var p model.SeasonPrice
	err := r.q.QueryRow(ctx,
		`SELECT season_id, pokemon_id, base_price, tera_captain_cost, tera_banned
		 FROM season_prices WHERE season_id = $1 AND pokemon_id = $2`, seasonID, pokemonID).
		Scan(&p.SeasonID, &p.PokemonID, &p.BasePrice, &p.TeraCaptainCost, &p.TeraBanned)
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("price for %s in season %s", pokemonID, seasonID))
	}
	return &p, nil
}

const rosterColumns = `re.id, re.season_coach_id, re.pokemon_id, re.base_price, re.tera_surcharge,
	re.is_tera_captain, re.acquired_week, re.acquired_via, re.acquired_transaction_id,
	re.last_transaction_id`

func scanRosterEntry(row pgx.Row) (*model.RosterEntry, error) {
	var e model.RosterEntry
	var via, acquiredTx, lastTx *string
	if err := row.Scan(&e.ID, &e.SeasonCoachID, &e.PokemonID, &e.BasePrice, &e.TeraSurcharge,
		&e.IsTeraCaptain, &e.AcquiredWeek, &via, &acquiredTx, &lastTx); err != nil {
		return nil, err
	}
	if via != nil {
		e.AcquiredVia = model.AcquiredVia(*via)
	}
	if acquiredTx != nil {
		e.AcquiredTransactionID = *acquiredTx
	}
	if lastTx != nil {
		e.LastTransactionID = *lastTx
	}
	return &e, nil
}

func (r pgReader) GetRosterEntry(ctx context.Context, id string) (*model.RosterEntry, error) {
	e, err := scanRosterEntry(r.q.QueryRow(ctx,
		`SELECT `+rosterColumns+` FROM roster_entries re WHERE re.id = $1`, id))
	if err != nil {
		return nil, notFound(err, "roster entry "+id)
	}
	return e, nil
}

func (r pgReader) ListRoster(ctx context.Context, seasonCoachID string) ([]model.RosterEntry, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+rosterColumns+` FROM roster_entries re
		 WHERE re.season_coach_id = $1 ORDER BY re.id`, seasonCoachID)
	if err != nil {
		return nil, fmt.Errorf("list roster %s: %w", seasonCoachID, err)
	}
	defer rows.Close()

	var entries []model.RosterEntry
	for rows.Next() {
		e, err := scanRosterEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

func (r pgReader) FindOwner(ctx context.Context, seasonID, pokemonID string) (*model.RosterEntry, error) {
	e, err := scanRosterEntry(r.q.QueryRow(ctx,
		`SELECT `+rosterColumns+` FROM roster_entries re
		 JOIN season_coaches sc ON sc.id = re.season_coach_id
		 WHERE re.pokemon_id = $2 AND sc.season_id = $1 AND sc.is_active
		 LIMIT 1`, seasonID, pokemonID))
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("owner of %s in season %s", pokemonID, seasonID))
	}
	return e, nil
}

func (r pgReader) ListFreeAgents(ctx context.Context, seasonID string) ([]model.Pokemon, error) {
	rows, err := r.q.Query(ctx,
		`SELECT p.id, p.name, p.display_name, p.types
		 FROM season_prices sp
		 JOIN pokemon p ON p.id = sp.pokemon_id
		 WHERE sp.season_id = $1
		   AND NOT EXISTS (
		       SELECT 1 FROM roster_entries re
		       JOIN season_coaches sc ON sc.id = re.season_coach_id
		       WHERE re.pokemon_id = sp.pokemon_id AND sc.season_id = $1 AND sc.is_active)
		 ORDER BY p.name`, seasonID)
	if err != nil {
		return nil, fmt.Errorf("list free agents %s: %w", seasonID, err)
	}
	defer rows.Close()

	agents := []model.Pokemon{}
	for rows.Next() {
		var p model.Pokemon
		if err := rows.Scan(&p.ID, &p.Name, &p.DisplayName, &p.Types); err != nil {
			return nil, err
		}
		agents = append(agents, p)
	}
	return agents, rows.Err()
}

const transactionColumns = `id, season_id, type, week, season_coach_id, trading_partner_season_coach_id,
	pokemon_in, pokemon_out, new_tera_captain_id, old_tera_captain_id, budget_change,
	counts_against_limit, notes, created_at, roster_before, roster_after`

func scanTransaction(row pgx.Row) (*model.Transaction, error) {
	var t model.Transaction
	var typ string
	var before []byte
	if err := row.Scan(&t.ID, &t.SeasonID, &typ, &t.Week, &t.SeasonCoachID, &t.TradingPartnerSeasonCoachID,
		&t.PokemonIn, &t.PokemonOut, &t.NewTeraCaptainID, &t.OldTeraCaptainID, &t.BudgetChange,
		&t.CountsAgainstLimit, &t.Notes, &t.CreatedAt, &before, &t.RosterAfter); err != nil {
		return nil, err
	}
	t.Type = model.TransactionType(typ)
	if len(before) > 0 {
		if err := json.Unmarshal(before, &t.RosterBefore); err != nil {
			return nil, fmt.Errorf("decode roster_before of %s: %w", t.ID, err)
		}
	}
	return &t, nil
}

func (r pgReader) GetTransaction(ctx context.Context, id string) (*model.Transaction, error) {
	t, err := scanTransaction(r.q.QueryRow(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "transaction "+id)
	}
	return t, nil
}

func (r pgReader) ListTransactions(ctx context.Context, filter model.TransactionFilter) ([]model.Transaction, error) {
	var where []string
	var args []any
	if filter.SeasonID != "" {
		args = append(args, filter.SeasonID)
		where = append(where, fmt.Sprintf("season_id = $%d", len(args)))
	}
	if filter.SeasonCoachID != "" {
		args = append(args, filter.SeasonCoachID)
		where = append(where, fmt.Sprintf("(season_coach_id = $%d OR trading_partner_season_coach_id = $%d)", len(args), len(args)))
	}
	if filter.Type != "" {
		args = append(args, string(filter.Type))
		where = append(where, fmt.Sprintf("type = $%d", len(args)))
	}

	sql := `SELECT ` + transactionColumns + ` FROM transactions`
	if len(where) > 0 {
		sql += ` WHERE ` + strings.Join(where, " AND ")
	}
	sql += ` ORDER BY created_at DESC, id DESC`

	rows, err := r.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	txs := []model.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, *t)
	}
	return txs, rows.Err()
}

func (r pgReader) CountLimited(ctx context.Context, seasonCoachID string, category model.LimitCategory) (int, error) {
	types := make([]string, 0, 3)
	for _, t := range category.Types() {
		types = append(types, string(t))
	}

	var n int
	err := r.q.QueryRow(ctx,
		`SELECT COUNT(*) FROM transactions
		 WHERE counts_against_limit
		   AND type = ANY($2)
		   AND (season_coach_id = $1 OR trading_partner_season_coach_id = $1)`,
		seasonCoachID, types).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count transactions for %s: %w", seasonCoachID, err)
	}
	return n, nil
}

// pgTx is the write side of one RunInTx call.
type pgTx struct {
	pgReader
}

func (tx *pgTx) LockSeasonCoaches(ctx context.Context, ids ...string) error {
	unique := make(map[string]bool, len(ids))
	for _, id := range ids {
		unique[id] = true
	}
	sorted := make([]string, 0, len(unique))
	for id := range unique {
		sorted = append(sorted, id)
	}
	// Consistent lock order across requests avoids deadlocks on trades.
	sort.Strings(sorted)

	rows, err := tx.q.Query(ctx,
		`SELECT id FROM season_coaches WHERE id = ANY($1) ORDER BY id FOR UPDATE`, sorted)
	if err != nil {
		return fmt.Errorf("lock season coaches: %w", err)
	}
	defer rows.Close()

	locked := 0
	for rows.Next() {
		locked++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("lock season coaches: %w", err)
	}
	if locked != len(sorted) {
		return fmt.Errorf("season coaches %v: %w", sorted, ErrNotFound)
	}
	return nil
}

func (tx *pgTx) LockPokemon(ctx context.Context, seasonID, pokemonID string) error {
	_, err := tx.q.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, priceKey(seasonID, pokemonID))
	if err != nil {
		return fmt.Errorf("lock pokemon %s: %w", pokemonID, err)
	}
	return nil
}

func (tx *pgTx) AdjustBudget(ctx context.Context, seasonCoachID string, delta int) error {
	tag, err := tx.q.Exec(ctx,
		`UPDATE season_coaches SET remaining_budget = remaining_budget + $2 WHERE id = $1`,
		seasonCoachID, delta)
	if err != nil {
		return fmt.Errorf("adjust budget %s: %w", seasonCoachID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("season coach %s: %w", seasonCoachID, ErrNotFound)
	}
	return nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// orEmpty keeps NOT NULL array columns from receiving NULL.
func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func (tx *pgTx) InsertRosterEntry(ctx context.Context, e *model.RosterEntry) error {
	_, err := tx.q.Exec(ctx,
		`INSERT INTO roster_entries (id, season_coach_id, pokemon_id, base_price, tera_surcharge,
		     is_tera_captain, acquired_week, acquired_via, acquired_transaction_id, last_transaction_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		e.ID, e.SeasonCoachID, e.PokemonID, e.BasePrice, e.TeraSurcharge,
		e.IsTeraCaptain, e.AcquiredWeek, nullable(string(e.AcquiredVia)),
		nullable(e.AcquiredTransactionID), nullable(e.LastTransactionID),
	)
	if err != nil {
		return fmt.Errorf("insert roster entry %s: %w", e.ID, err)
	}
	return nil
}

func (tx *pgTx) UpdateRosterEntry(ctx context.Context, e *model.RosterEntry) error {
	tag, err := tx.q.Exec(ctx,
		`UPDATE roster_entries
		 SET season_coach_id = $2, pokemon_id = $3, base_price = $4, tera_surcharge = $5,
		     is_tera_captain = $6, acquired_week = $7, acquired_via = $8,
		     acquired_transaction_id = $9, last_transaction_id = $10
		 WHERE id = $1`,
		e.ID, e.SeasonCoachID, e.PokemonID, e.BasePrice, e.TeraSurcharge,
		e.IsTeraCaptain, e.AcquiredWeek, nullable(string(e.AcquiredVia)),
		nullable(e.AcquiredTransactionID), nullable(e.LastTransactionID),
	)
	if err != nil {
		return fmt.Errorf("update roster entry %s: %w", e.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("roster entry %s: %w", e.ID, ErrNotFound)
	}
	return nil
}

func (tx *pgTx) DeleteRosterEntry(ctx context.Context, id string) error {
	tag, err := tx.q.Exec(ctx, `DELETE FROM roster_entries WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete roster entry %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("roster entry %s: %w", id, ErrNotFound)
	}
	return nil
}

func (tx *pgTx) InsertTransaction(ctx context.Context, t *model.Transaction) error {
	before, err := json.Marshal(t.RosterBefore)
	if err != nil {
		return fmt.Errorf("encode roster_before of %s: %w", t.ID, err)
	}
	if t.RosterBefore == nil {
		before = []byte("[]")
	}
	in, out, after := orEmpty(t.PokemonIn), orEmpty(t.PokemonOut), orEmpty(t.RosterAfter)

	_, err = tx.q.Exec(ctx,
		`INSERT INTO transactions (`+transactionColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15::JSONB, $16)`,
		t.ID, t.SeasonID, string(t.Type), t.Week, t.SeasonCoachID, t.TradingPartnerSeasonCoachID,
		in, out, t.NewTeraCaptainID, t.OldTeraCaptainID, t.BudgetChange,
		t.CountsAgainstLimit, t.Notes, t.CreatedAt, string(before), after,
	)
	if err != nil {
		return fmt.Errorf("insert transaction %s: %w", t.ID, err)
	}
	return nil
}

func (tx *pgTx) DeleteTransaction(ctx context.Context, id string) error {
	tag, err := tx.q.Exec(ctx, `DELETE FROM transactions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete transaction %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transaction %s: %w", id, ErrNotFound)
	}
	return nil
}
