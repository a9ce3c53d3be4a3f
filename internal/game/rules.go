// internal/game/rules.go
package game

import "github.com/kabulhq/kabul/internal/models"

// Ruleset is a named scoring configuration ("costume"). The two presets
// differ only in how jokers and red face cards score; everything else about
// the game is fixed.
type Ruleset struct {
	Name string `json:"name"`

	// Values maps rank to its base scoring value.
	Values map[string]int `json:"values"`

	// RedFaceValues overrides Values for the given ranks when the suit is
	// red (hearts or diamonds). Nil means no override.
	RedFaceValues map[string]int `json:"redFaceValues,omitempty"`

	// JokerValue scores the two jokers.
	JokerValue int `json:"jokerValue"`
}

// baseValues is the shared rank table: ace low, faces 11-13.
func baseValues() map[string]int {
	return map[string]int{
		"A": 1, "2": 2, "3": 3, "4": 4, "5": 5, "6": 6, "7": 7, "8": 8,
		"9": 9, "T": 10, "J": 11, "Q": 12, "K": 13,
	}
}

// RulesetStandard scores jokers at zero and red kings at -1.
func RulesetStandard() Ruleset {
	return Ruleset{
		Name:          "standard",
		Values:        baseValues(),
		RedFaceValues: map[string]int{"K": -1},
		JokerValue:    0,
	}
}

// RulesetClassic scores jokers at -1 and gives red face cards no discount.
func RulesetClassic() Ruleset {
	return Ruleset{
		Name:       "classic",
		Values:     baseValues(),
		JokerValue: -1,
	}
}

// RulesetByName resolves a preset by its name.
func RulesetByName(name string) (Ruleset, bool) {
	switch name {
	case "", "standard":
		return RulesetStandard(), true
	case "classic":
		return RulesetClassic(), true
	default:
		return Ruleset{}, false
	}
}

// CardValue computes the scoring value for a rank/suit pair.
func (r Ruleset) CardValue(rank, suit string) int {
	if rank == jokerRank {
		return r.JokerValue
	}
	if suit == "H" || suit == "D" {
		if v, ok := r.RedFaceValues[rank]; ok {
			return v
		}
	}
	return r.Values[rank]
}

// RoomRules carries the per-room timing configuration. Zero values fall back
// to the defaults below.
type RoomRules struct {
	MemorizeSec       int `json:"memorizeSec"`       // preview window before play begins
	TurnTimerSec      int `json:"turnTimerSec"`      // per-turn deadline; 0 disables
	AbilityTimeoutSec int `json:"abilityTimeoutSec"` // pending ability auto-skip deadline
	RevealSec         int `json:"revealSec"`         // peek display duration
	PenaltyDrawCount  int `json:"penaltyDrawCount"`  // cards drawn on a failed slap
}

// DefaultRoomRules returns the stock timings.
func DefaultRoomRules() RoomRules {
	return RoomRules{
		MemorizeSec:       10,
		TurnTimerSec:      15,
		AbilityTimeoutSec: 15,
		RevealSec:         5,
		PenaltyDrawCount:  1,
	}
}

// abilityForRank maps a discarded rank to the power it grants.
func abilityForRank(rank string) models.Ability {
	switch rank {
	case "7", "8":
		return models.AbilityPeekSelf
	case "9", "T":
		return models.AbilityPeekEnemy
	case "J", "Q":
		return models.AbilityBlindSwap
	case "K":
		return models.AbilitySeeAndSwap
	default:
		return models.AbilityNone
	}
}
