package engine

import (
	"context"

	"github.com/draftleague/league-engine/internal/model"
	"github.com/draftleague/league-engine/internal/store"
)

func (e *Engine) faPickup(ctx context.Context, a FAPickup) (*model.Transaction, error) {
	return e.freeAgentMove(ctx, model.TxFAPickup, freeAgentMove{
		seasonID:      a.SeasonID,
		seasonCoachID: a.SeasonCoachID,
		pickupID:      a.PokemonID,
		pickupTera:    a.IsTeraCaptain,
		week:          a.Week,
		counts:        a.CountsAgainstLimit,
		notes:         a.Notes,
	})
}

func (e *Engine) faDrop(ctx context.Context, a FADrop) (*model.Transaction, error) {
	return e.freeAgentMove(ctx, model.TxFADrop, freeAgentMove{
		seasonID:      a.SeasonID,
		seasonCoachID: a.SeasonCoachID,
		dropRosterID:  a.RosterID,
		week:          a.Week,
		counts:        a.CountsAgainstLimit,
		notes:         a.Notes,
	})
}

func (e *Engine) faSwap(ctx context.Context, a FASwap) (*model.Transaction, error) {
	return e.freeAgentMove(ctx, model.TxFASwap, freeAgentMove{
		seasonID:      a.SeasonID,
		seasonCoachID: a.SeasonCoachID,
		pickupID:      a.PickupPokemonID,
		pickupTera:    a.PickupIsTeraCaptain,
		dropRosterID:  a.DropRosterID,
		week:          a.Week,
		counts:        a.CountsAgainstLimit,
		notes:         a.Notes,
	})
}

// freeAgentMove is an optional drop plus an optional pickup. Pickup and
// drop are the one-sided cases of a swap.
type freeAgentMove struct {
	seasonID      string
	seasonCoachID string
	pickupID      string
	pickupTera    bool
	dropRosterID  string
	week          int
	counts        bool
	notes         string
}

func (e *Engine) freeAgentMove(ctx context.Context, typ model.TransactionType, m freeAgentMove) (*model.Transaction, error) {
	var out *model.Transaction
	err := e.store.RunInTx(ctx, func(tx store.Tx) error {
		teams, err := e.lockTeams(ctx, tx, m.seasonID, m.seasonCoachID)
		if err != nil {
			return err
		}
		team := teams[0]

		if err := e.checkLimit(ctx, tx, team.ID, typ, m.counts); err != nil {
			return err
		}

		roster, err := tx.ListRoster(ctx, team.ID)
		if err != nil {
			return storeError(err)
		}

		t := e.newTransaction(typ, m.seasonID, team.ID, m.week, m.counts, m.notes)

		var dropped *model.RosterEntry
		if m.dropRosterID != "" {
			if dropped, err = ownedEntry(ctx, tx, m.dropRosterID, team.ID); err != nil {
				return err
			}
			t.PokemonOut = append(t.PokemonOut, dropped.PokemonID)
			t.RosterBefore = append(t.RosterBefore, *dropped)
			t.BudgetChange += dropped.Price()
			if dropped.IsTeraCaptain {
				t.OldTeraCaptainID = strPtr(dropped.PokemonID)
			}
		}

		var picked *model.RosterEntry
		if m.pickupID != "" {
			price, err := e.checkPickup(ctx, tx, team, roster, m.pickupID, m.pickupTera, m.dropRosterID)
			if err != nil {
				return err
			}
			picked = e.acquire(t, price, m.pickupTera)
			t.PokemonIn = append(t.PokemonIn, picked.PokemonID)
			t.RosterAfter = append(t.RosterAfter, picked.ID)
			t.BudgetChange -= picked.Price()
			if m.pickupTera {
				t.NewTeraCaptainID = strPtr(picked.PokemonID)
			}
		}

		if err := e.checkBudget(team, t.BudgetChange); err != nil {
			return err
		}

		// The drop goes first so a captain handover never holds two captains.
		if dropped != nil {
			if err := tx.DeleteRosterEntry(ctx, dropped.ID); err != nil {
				return storeError(err)
			}
		}
		if picked != nil {
			if err := tx.InsertRosterEntry(ctx, picked); err != nil {
				return storeError(err)
			}
		}
		if err := tx.AdjustBudget(ctx, team.ID, t.BudgetChange); err != nil {
			return storeError(err)
		}
		if err := tx.InsertTransaction(ctx, t); err != nil {
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
