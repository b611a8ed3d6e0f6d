package engine

import (
	"context"

	"github.com/draftleague/league-engine/internal/model"
	"github.com/draftleague/league-engine/internal/store"
)

// p2pTrade reassigns both sides in place. Prices travel unchanged and no
// budget moves. Entries arrive without the tera captain flag.
func (e *Engine) p2pTrade(ctx context.Context, a P2PTrade) (*model.Transaction, error) {
	var out *model.Transaction
	err := e.store.RunInTx(ctx, func(tx store.Tx) error {
		teams, err := e.lockTeams(ctx, tx, a.SeasonID, a.Team1SeasonCoachID, a.Team2SeasonCoachID)
		if err != nil {
			return err
		}
		team1, team2 := teams[0], teams[1]

		for _, team := range teams {
			if err := e.checkLimit(ctx, tx, team.ID, model.TxP2PTrade, a.CountsAgainstLimit); err != nil {
				return err
			}
		}

		side1, err := e.tradeSide(ctx, tx, team1.ID, a.Team1RosterIDs, a.Week)
		if err != nil {
			return err
		}
		side2, err := e.tradeSide(ctx, tx, team2.ID, a.Team2RosterIDs, a.Week)
		if err != nil {
			return err
		}

		t := e.newTransaction(model.TxP2PTrade, a.SeasonID, team1.ID, a.Week, a.CountsAgainstLimit, a.Notes)
		t.TradingPartnerSeasonCoachID = strPtr(team2.ID)

		moves := make([]model.RosterEntry, 0, len(side1)+len(side2))
		for _, entry := range side1 {
			t.PokemonOut = append(t.PokemonOut, entry.PokemonID)
			moves = append(moves, tradeIn(t, entry, team2.ID))
		}
		for _, entry := range side2 {
			t.PokemonIn = append(t.PokemonIn, entry.PokemonID)
			moves = append(moves, tradeIn(t, entry, team1.ID))
		}
		t.RosterBefore = append(append(t.RosterBefore, side1...), side2...)

		for i := range moves {
			if err := tx.UpdateRosterEntry(ctx, &moves[i]); err != nil {
				return storeError(err)
			}
			t.RosterAfter = append(t.RosterAfter, moves[i].ID)
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

// tradeSide loads one side's entries and checks ownership and trade lock.
func (e *Engine) tradeSide(ctx context.Context, tx store.Tx, seasonCoachID string, rosterIDs []string, week int) ([]model.RosterEntry, error) {
	entries := make([]model.RosterEntry, 0, len(rosterIDs))
	for _, id := range rosterIDs {
		entry, err := ownedEntry(ctx, tx, id, seasonCoachID)
		if err != nil {
			return nil, err
		}
		if err := e.tradeLock.Check(*entry, week); err != nil {
			return nil, precondition(err)
		}
		entries = append(entries, *entry)
	}
	return entries, nil
}

// tradeIn returns the entry as it stands on the receiving team.
func tradeIn(t *model.Transaction, entry model.RosterEntry, receiverID string) model.RosterEntry {
	week := t.Week
	entry.SeasonCoachID = receiverID
	entry.IsTeraCaptain = false
	entry.AcquiredWeek = &week
	entry.AcquiredVia = model.AcquiredP2PTrade
	entry.AcquiredTransactionID = t.ID
	entry.LastTransactionID = t.ID
	return entry
}
