package engine

import (
	"context"
	"errors"

	"github.com/draftleague/league-engine/internal/model"
	"github.com/draftleague/league-engine/internal/store"
)

// undo reverses a ledger row from its recorded snapshots. It refuses when
// any entry the transaction produced has since been changed or removed, or
// when a Pokemon it would restore has been claimed by someone else.
func (e *Engine) undo(ctx context.Context, a Undo) (*model.Transaction, error) {
	var out *model.Transaction
	err := e.store.RunInTx(ctx, func(tx store.Tx) error {
		t, err := tx.GetTransaction(ctx, a.TransactionID)
		if err != nil {
			return notFoundAs(err, ErrTransactionNotFound, a.TransactionID)
		}

		teamIDs := []string{t.SeasonCoachID}
		if t.TradingPartnerSeasonCoachID != nil {
			teamIDs = append(teamIDs, *t.TradingPartnerSeasonCoachID)
		}
		if err := tx.LockSeasonCoaches(ctx, teamIDs...); err != nil {
			return notFoundAs(err, ErrTeamNotFound, t.SeasonCoachID)
		}

		produced := make(map[string]bool, len(t.RosterAfter))
		for _, id := range t.RosterAfter {
			entry, err := tx.GetRosterEntry(ctx, id)
			if errors.Is(err, store.ErrNotFound) {
				return divergedf("roster entry %s no longer exists", id)
			}
			if err != nil {
				return storeError(err)
			}
			if entry.LastTransactionID != t.ID {
				return divergedf("roster entry %s was changed by transaction %s", id, entry.LastTransactionID)
			}
			produced[id] = true
		}

		restoring := make(map[string]bool, len(t.RosterBefore))
		for _, before := range t.RosterBefore {
			restoring[before.ID] = true
		}

		var deletes []string
		for _, id := range t.RosterAfter {
			if !restoring[id] {
				deletes = append(deletes, id)
			}
		}

		for _, before := range t.RosterBefore {
			if !produced[before.ID] {
				if err := e.checkRecreate(ctx, tx, t.SeasonID, before); err != nil {
					return err
				}
			}
			if before.IsTeraCaptain {
				if err := checkCaptainFree(ctx, tx, before, produced); err != nil {
					return err
				}
			}
		}

		for _, id := range deletes {
			if err := tx.DeleteRosterEntry(ctx, id); err != nil {
				return storeError(err)
			}
		}
		// Captains are restored last so a team never holds two at once.
		for _, captains := range []bool{false, true} {
			for i := range t.RosterBefore {
				before := &t.RosterBefore[i]
				if before.IsTeraCaptain != captains {
					continue
				}
				if produced[before.ID] {
					err = tx.UpdateRosterEntry(ctx, before)
				} else {
					err = tx.InsertRosterEntry(ctx, before)
				}
				if err != nil {
					return storeError(err)
				}
			}
		}

		if t.BudgetChange != 0 {
			if err := tx.AdjustBudget(ctx, t.SeasonCoachID, -t.BudgetChange); err != nil {
				return storeError(err)
			}
		}
		if err := tx.DeleteTransaction(ctx, t.ID); err != nil {
			return storeError(err)
		}
		out = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// checkRecreate verifies a removed entry can come back.
func (e *Engine) checkRecreate(ctx context.Context, tx store.Tx, seasonID string, before model.RosterEntry) error {
	if err := tx.LockPokemon(ctx, seasonID, before.PokemonID); err != nil {
		return storeError(err)
	}
	owner, err := tx.FindOwner(ctx, seasonID, before.PokemonID)
	if err == nil {
		return divergedf("%s has since joined team %s", before.PokemonID, owner.SeasonCoachID)
	}
	if !errors.Is(err, store.ErrNotFound) {
		return storeError(err)
	}
	if _, err := tx.GetRosterEntry(ctx, before.ID); err == nil {
		return divergedf("roster entry %s already exists", before.ID)
	} else if !errors.Is(err, store.ErrNotFound) {
		return storeError(err)
	}
	return nil
}

// checkCaptainFree verifies the team the captain returns to has no other
// captain left once the produced entries are rolled back.
func checkCaptainFree(ctx context.Context, tx store.Tx, before model.RosterEntry, produced map[string]bool) error {
	roster, err := tx.ListRoster(ctx, before.SeasonCoachID)
	if err != nil {
		return storeError(err)
	}
	for _, entry := range roster {
		if entry.IsTeraCaptain && entry.ID != before.ID && !produced[entry.ID] {
			return divergedf("team %s has since named %s tera captain", before.SeasonCoachID, entry.PokemonID)
		}
	}
	return nil
}
