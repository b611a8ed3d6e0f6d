package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/draftleague/league-engine/internal/model"
	"github.com/draftleague/league-engine/internal/store"
)

// seedStore builds a season with two active teams, three priced Pokemon and
// one drafted entry per team.
func seedStore(t *testing.T) *store.MemoryStore {
	t.Helper()
	ctx := context.Background()
	ms := store.NewMemoryStore()
	if err := ms.CreateSeason(ctx, &model.Season{ID: "s1", DraftBudget: 100}); err != nil {
		t.Fatalf("seed season: %v", err)
	}
	for _, id := range []string{"A", "B"} {
		if err := ms.CreateSeasonCoach(ctx, &model.SeasonCoach{ID: id, SeasonID: "s1", RemainingBudget: 80, IsActive: true}); err != nil {
			t.Fatalf("seed team: %v", err)
		}
	}
	for _, name := range []string{"kingambit", "gholdengo", "dragonite"} {
		ms.CreatePokemon(ctx, &model.Pokemon{ID: name, Name: name})
		ms.SetPrice(ctx, &model.SeasonPrice{SeasonID: "s1", PokemonID: name, BasePrice: 20})
	}
	ms.AddDraftedEntry(ctx, &model.RosterEntry{ID: "a1", SeasonCoachID: "A", PokemonID: "kingambit", BasePrice: 20})
	ms.AddDraftedEntry(ctx, &model.RosterEntry{ID: "b1", SeasonCoachID: "B", PokemonID: "gholdengo", BasePrice: 20})
	return ms
}

func TestMemoryStore_SeedValidation(t *testing.T) {
	ctx := context.Background()
	ms := seedStore(t)

	if err := ms.CreateSeason(ctx, &model.Season{ID: "s1"}); err == nil {
		t.Error("expected duplicate season error")
	}
	err := ms.CreateSeasonCoach(ctx, &model.SeasonCoach{ID: "C", SeasonID: "nope"})
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown season, got %v", err)
	}
	err = ms.AddDraftedEntry(ctx, &model.RosterEntry{ID: "x", SeasonCoachID: "nope", PokemonID: "dragonite"})
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown team, got %v", err)
	}
}

func TestMemoryStore_RunInTxRollsBack(t *testing.T) {
	ctx := context.Background()
	ms := seedStore(t)
	boom := errors.New("boom")

	err := ms.RunInTx(ctx, func(tx store.Tx) error {
		if err := tx.AdjustBudget(ctx, "A", -20); err != nil {
			return err
		}
		if err := tx.DeleteRosterEntry(ctx, "a1"); err != nil {
			return err
		}
		if err := tx.InsertTransaction(ctx, &model.Transaction{ID: "t1", SeasonCoachID: "A", Type: model.TxFADrop, CountsAgainstLimit: true}); err != nil {
			return err
		}
		// Writes are visible inside the unit of work.
		if _, err := tx.GetRosterEntry(ctx, "a1"); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("deleted entry still visible inside tx: %v", err)
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	team, _ := ms.GetSeasonCoach(ctx, "A")
	if team.RemainingBudget != 80 {
		t.Errorf("budget = %d after rollback, want 80", team.RemainingBudget)
	}
	if _, err := ms.GetRosterEntry(ctx, "a1"); err != nil {
		t.Errorf("entry lost after rollback: %v", err)
	}
	if _, err := ms.GetTransaction(ctx, "t1"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("transaction survived rollback: %v", err)
	}
}

func TestMemoryStore_RunInTxCommits(t *testing.T) {
	ctx := context.Background()
	ms := seedStore(t)

	err := ms.RunInTx(ctx, func(tx store.Tx) error {
		if err := tx.LockSeasonCoaches(ctx, "A", "B"); err != nil {
			return err
		}
		entry, err := tx.GetRosterEntry(ctx, "a1")
		if err != nil {
			return err
		}
		entry.SeasonCoachID = "B"
		return tx.UpdateRosterEntry(ctx, entry)
	})
	if err != nil {
		t.Fatalf("run in tx: %v", err)
	}

	entry, _ := ms.GetRosterEntry(ctx, "a1")
	if entry.SeasonCoachID != "B" {
		t.Errorf("update not committed: %+v", entry)
	}
	if r, _ := ms.ListRoster(ctx, "B"); len(r) != 2 {
		t.Errorf("team B roster size = %d, want 2", len(r))
	}
}

func TestMemoryStore_LockUnknownTeam(t *testing.T) {
	ctx := context.Background()
	ms := seedStore(t)

	err := ms.RunInTx(ctx, func(tx store.Tx) error {
		return tx.LockSeasonCoaches(ctx, "A", "Z")
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_FreeAgentsIgnoreInactiveTeams(t *testing.T) {
	ctx := context.Background()
	ms := seedStore(t)

	agents, _ := ms.ListFreeAgents(ctx, "s1")
	if len(agents) != 1 || agents[0].ID != "dragonite" {
		t.Fatalf("free agents = %+v", agents)
	}

	if err := ms.SetSeasonCoachActive(ctx, "B", false, nil); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	agents, _ = ms.ListFreeAgents(ctx, "s1")
	if len(agents) != 2 {
		t.Errorf("expected gholdengo freed by inactive team, got %+v", agents)
	}
	if _, err := ms.FindOwner(ctx, "s1", "gholdengo"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("inactive team should not own: %v", err)
	}
	owner, err := ms.FindOwner(ctx, "s1", "kingambit")
	if err != nil || owner.SeasonCoachID != "A" {
		t.Errorf("owner of kingambit = %+v, %v", owner, err)
	}

	// Other seasons see no free agents from this price sheet.
	if agents, _ := ms.ListFreeAgents(ctx, "s2"); len(agents) != 0 {
		t.Errorf("unexpected free agents in s2: %+v", agents)
	}
}

func TestMemoryStore_TransactionsAndCounts(t *testing.T) {
	ctx := context.Background()
	ms := seedStore(t)
	partner := "B"

	err := ms.RunInTx(ctx, func(tx store.Tx) error {
		for _, row := range []*model.Transaction{
			{ID: "t1", SeasonID: "s1", Type: model.TxFAPickup, SeasonCoachID: "A", CountsAgainstLimit: true},
			{ID: "t2", SeasonID: "s1", Type: model.TxFADrop, SeasonCoachID: "A", CountsAgainstLimit: false},
			{ID: "t3", SeasonID: "s1", Type: model.TxP2PTrade, SeasonCoachID: "A", TradingPartnerSeasonCoachID: &partner, CountsAgainstLimit: true},
			{ID: "t4", SeasonID: "s1", Type: model.TxTeraSwap, SeasonCoachID: "B", CountsAgainstLimit: true},
		} {
			if err := tx.InsertTransaction(ctx, row); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	counts := map[string]int{}
	for _, c := range []struct {
		team string
		cat  model.LimitCategory
	}{{"A", model.LimitFA}, {"A", model.LimitP2P}, {"B", model.LimitFA}, {"B", model.LimitP2P}} {
		n, _ := ms.CountLimited(ctx, c.team, c.cat)
		counts[c.team+":"+string(c.cat)] = n
	}
	want := map[string]int{"A:fa": 1, "A:p2p": 1, "B:fa": 0, "B:p2p": 1}
	for k, v := range want {
		if counts[k] != v {
			t.Errorf("count %s = %d, want %d", k, counts[k], v)
		}
	}

	txs, _ := ms.ListTransactions(ctx, model.TransactionFilter{SeasonCoachID: "B"})
	if len(txs) != 2 || txs[0].ID != "t4" || txs[1].ID != "t3" {
		t.Errorf("team B history = %+v", txs)
	}
	if txs[1].PokemonIn == nil {
		t.Error("pokemon_in should never be nil")
	}

	err = ms.RunInTx(ctx, func(tx store.Tx) error { return tx.DeleteTransaction(ctx, "t3") })
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if n, _ := ms.CountLimited(ctx, "B", model.LimitP2P); n != 0 {
		t.Errorf("deleted trade still counted: %d", n)
	}
}
