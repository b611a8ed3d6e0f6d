package engine

import (
	"context"

	"github.com/draftleague/league-engine/internal/model"
	"github.com/draftleague/league-engine/internal/store"
)

// teraSwap promotes a roster entry to tera captain, demoting the current
// captain when one is named. The promoted entry keeps its base price and
// takes the season's tera captain cost as surcharge; the demoted entry
// loses its surcharge.
func (e *Engine) teraSwap(ctx context.Context, a TeraSwap) (*model.Transaction, error) {
	var out *model.Transaction
	err := e.store.RunInTx(ctx, func(tx store.Tx) error {
		teams, err := e.lockTeams(ctx, tx, a.SeasonID, a.SeasonCoachID)
		if err != nil {
			return err
		}
		team := teams[0]

		if err := e.checkLimit(ctx, tx, team.ID, model.TxTeraSwap, a.CountsAgainstLimit); err != nil {
			return err
		}

		promoted, err := ownedEntry(ctx, tx, a.NewTeraCaptainRosterID, team.ID)
		if err != nil {
			return err
		}
		if promoted.IsTeraCaptain {
			return preconditionf(ErrAlreadyCaptain, "%s", promoted.ID)
		}
		price, err := tx.GetPrice(ctx, a.SeasonID, promoted.PokemonID)
		if err != nil {
			return notFoundAs(err, ErrNotPriced, promoted.PokemonID)
		}
		if price.TeraBanned {
			return preconditionf(ErrTeraBanned, "%s", promoted.PokemonID)
		}
		if price.TeraCaptainCost == nil {
			return preconditionf(ErrTeraNotAllowed, "%s", promoted.PokemonID)
		}

		var demoted *model.RosterEntry
		if a.OldTeraCaptainRosterID != "" {
			if demoted, err = ownedEntry(ctx, tx, a.OldTeraCaptainRosterID, team.ID); err != nil {
				return err
			}
			if !demoted.IsTeraCaptain {
				return preconditionf(ErrNotCaptain, "%s", demoted.ID)
			}
		} else {
			roster, err := tx.ListRoster(ctx, team.ID)
			if err != nil {
				return storeError(err)
			}
			if c := captainOf(roster, ""); c != nil {
				return preconditionf(ErrAlreadyHasCaptain, "%s is captain; name it as the old captain", c.ID)
			}
		}

		t := e.newTransaction(model.TxTeraSwap, a.SeasonID, team.ID, a.Week, a.CountsAgainstLimit, a.Notes)
		t.NewTeraCaptainID = strPtr(promoted.PokemonID)

		var writes []*model.RosterEntry
		if demoted != nil {
			t.OldTeraCaptainID = strPtr(demoted.PokemonID)
			t.RosterBefore = append(t.RosterBefore, *demoted)
			after := *demoted
			after.IsTeraCaptain = false
			after.TeraSurcharge = 0
			after.LastTransactionID = t.ID
			t.BudgetChange += demoted.Price() - after.Price()
			writes = append(writes, &after)
		}

		t.RosterBefore = append(t.RosterBefore, *promoted)
		after := *promoted
		after.IsTeraCaptain = true
		after.TeraSurcharge = price.TeraCost()
		after.LastTransactionID = t.ID
		t.BudgetChange -= after.Price() - promoted.Price()
		writes = append(writes, &after)

		if err := e.checkBudget(team, t.BudgetChange); err != nil {
			return err
		}

		// Demotion is written before promotion.
		for _, w := range writes {
			if err := tx.UpdateRosterEntry(ctx, w); err != nil {
				return storeError(err)
			}
			t.RosterAfter = append(t.RosterAfter, w.ID)
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
