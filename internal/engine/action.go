package engine

// ActionKind is the boundary tag of an action.
type ActionKind string

const (
	ActionFAPickup ActionKind = "faPickup"
	ActionFADrop   ActionKind = "faDrop"
	ActionFASwap   ActionKind = "faSwap"
	ActionP2PTrade ActionKind = "p2pTrade"
	ActionTeraSwap ActionKind = "teraSwap"
	ActionUndo     ActionKind = "undo"
)

// MaxTradeSide is the most roster entries one side of a trade may give up.
const MaxTradeSide = 3

// Action is one request to the engine. The concrete types below are the only
// implementations; Execute switches over them.
type Action interface {
	Kind() ActionKind
	// Validate checks the payload without touching the store.
	Validate() error
}

// FAPickup claims a free agent for a team.
type FAPickup struct {
	SeasonID           string `json:"season_id"`
	SeasonCoachID      string `json:"season_coach_id"`
	PokemonID          string `json:"pokemon_id"`
	IsTeraCaptain      bool   `json:"is_tera_captain"`
	Week               int    `json:"week"`
	CountsAgainstLimit bool   `json:"counts_against_limit"`
	Notes              string `json:"notes"`
}

// FADrop releases a roster entry back to the free-agent pool.
type FADrop struct {
	SeasonID           string `json:"season_id"`
	SeasonCoachID      string `json:"season_coach_id"`
	RosterID           string `json:"roster_id"`
	Week               int    `json:"week"`
	CountsAgainstLimit bool   `json:"counts_against_limit"`
	Notes              string `json:"notes"`
}

// FASwap drops and/or picks up in one ledger entry. At least one half is set.
type FASwap struct {
	SeasonID            string `json:"season_id"`
	SeasonCoachID       string `json:"season_coach_id"`
	PickupPokemonID     string `json:"pickup_pokemon_id"`
	PickupIsTeraCaptain bool   `json:"pickup_is_tera_captain"`
	DropRosterID        string `json:"drop_roster_id"`
	Week                int    `json:"week"`
	CountsAgainstLimit  bool   `json:"counts_against_limit"`
	Notes               string `json:"notes"`
}

// P2PTrade exchanges roster entries between two teams.
type P2PTrade struct {
	SeasonID           string   `json:"season_id"`
	Team1SeasonCoachID string   `json:"team1_season_coach_id"`
	Team1RosterIDs     []string `json:"team1_roster_ids"`
	Team2SeasonCoachID string   `json:"team2_season_coach_id"`
	Team2RosterIDs     []string `json:"team2_roster_ids"`
	Week               int      `json:"week"`
	CountsAgainstLimit bool     `json:"counts_against_limit"`
	Notes              string   `json:"notes"`
}

// TeraSwap moves the tera captain slot to another roster entry.
type TeraSwap struct {
	SeasonID               string `json:"season_id"`
	SeasonCoachID          string `json:"season_coach_id"`
	NewTeraCaptainRosterID string `json:"new_tera_captain_roster_id"`
	OldTeraCaptainRosterID string `json:"old_tera_captain_roster_id"`
	Week                   int    `json:"week"`
	CountsAgainstLimit     bool   `json:"counts_against_limit"`
	Notes                  string `json:"notes"`
}

// Undo reverses a previously executed transaction.
type Undo struct {
	TransactionID string `json:"transaction_id"`
}

func (FAPickup) Kind() ActionKind { return ActionFAPickup }
func (FADrop) Kind() ActionKind   { return ActionFADrop }
func (FASwap) Kind() ActionKind   { return ActionFASwap }
func (P2PTrade) Kind() ActionKind { return ActionP2PTrade }
func (TeraSwap) Kind() ActionKind { return ActionTeraSwap }
func (Undo) Kind() ActionKind     { return ActionUndo }

func requireFields(fields ...[2]string) error {
	for _, f := range fields {
		if f[1] == "" {
			return validationf("%s is required", f[0])
		}
	}
	return nil
}

func validateWeek(week int) error {
	if week < 1 {
		return validationf("week must be 1 or later")
	}
	return nil
}

func (a FAPickup) Validate() error {
	if err := requireFields(
		[2]string{"season_id", a.SeasonID},
		[2]string{"season_coach_id", a.SeasonCoachID},
		[2]string{"pokemon_id", a.PokemonID},
	); err != nil {
		return err
	}
	return validateWeek(a.Week)
}

func (a FADrop) Validate() error {
	if err := requireFields(
		[2]string{"season_id", a.SeasonID},
		[2]string{"season_coach_id", a.SeasonCoachID},
		[2]string{"roster_id", a.RosterID},
	); err != nil {
		return err
	}
	return validateWeek(a.Week)
}

func (a FASwap) Validate() error {
	if err := requireFields(
		[2]string{"season_id", a.SeasonID},
		[2]string{"season_coach_id", a.SeasonCoachID},
	); err != nil {
		return err
	}
	if a.PickupPokemonID == "" && a.DropRosterID == "" {
		return validationf("a swap needs pickup_pokemon_id, drop_roster_id, or both")
	}
	if a.PickupPokemonID == "" && a.PickupIsTeraCaptain {
		return validationf("pickup_is_tera_captain set without pickup_pokemon_id")
	}
	return validateWeek(a.Week)
}

func (a P2PTrade) Validate() error {
	if err := requireFields(
		[2]string{"season_id", a.SeasonID},
		[2]string{"team1_season_coach_id", a.Team1SeasonCoachID},
		[2]string{"team2_season_coach_id", a.Team2SeasonCoachID},
	); err != nil {
		return err
	}
	if err := validateWeek(a.Week); err != nil {
		return err
	}
	if a.Team1SeasonCoachID == a.Team2SeasonCoachID {
		return preconditionf(ErrSameTeam, "%s", a.Team1SeasonCoachID)
	}
	seen := make(map[string]bool)
	for _, side := range [][]string{a.Team1RosterIDs, a.Team2RosterIDs} {
		if len(side) == 0 {
			return precondition(ErrEmptyTradeSide)
		}
		if len(side) > MaxTradeSide {
			return preconditionf(ErrTradeSideTooLarge, "got %d", len(side))
		}
		for _, id := range side {
			if id == "" {
				return validationf("roster ids must be non-empty")
			}
			if seen[id] {
				return validationf("roster entry %s listed more than once", id)
			}
			seen[id] = true
		}
	}
	return nil
}

func (a TeraSwap) Validate() error {
	if err := requireFields(
		[2]string{"season_id", a.SeasonID},
		[2]string{"season_coach_id", a.SeasonCoachID},
		[2]string{"new_tera_captain_roster_id", a.NewTeraCaptainRosterID},
	); err != nil {
		return err
	}
	if a.NewTeraCaptainRosterID == a.OldTeraCaptainRosterID {
		return validationf("new and old tera captain must differ")
	}
	return validateWeek(a.Week)
}

func (a Undo) Validate() error {
	return requireFields([2]string{"transaction_id", a.TransactionID})
}
