package progression

import "github.com/feunard/roadmap/internal/domain"

// ApplyCompletion adds the task's reward to the character and returns the
// updated copy along with the reward that was applied.
func ApplyCompletion(c domain.Character, t domain.Task) (domain.Character, Reward) {
	r := TaskReward(t)
	c.XP += r.XP
	c.Balance += r.Currency
	return c, r
}

// LeveledUp reports whether moving from xpBefore to xpAfter crosses a level.
func LeveledUp(xpBefore, xpAfter int) bool {
	return LevelForXP(xpAfter) > LevelForXP(xpBefore)
}

// Sheet is the display view of a character's progression.
type Sheet struct {
	Level          int   `json:"level"`
	XP             int   `json:"xp"`
	CurrentInLevel int   `json:"current_in_level"`
	RequiredLevel  int   `json:"required_for_level"`
	ToNextLevel    int   `json:"to_next_level"`
	Percent        int   `json:"percent"`
	Balance        int   `json:"balance"`
	Purse          Purse `json:"purse"`
}

// CharacterSheet derives level and purse information from stored totals.
func CharacterSheet(c domain.Character) (Sheet, error) {
	current, required, err := ProgressWithinLevel(c.XP)
	if err != nil {
		return Sheet{}, err
	}
	next, err := Levels.XPToNextLevel(c.XP)
	if err != nil {
		return Sheet{}, err
	}
	percent := current * 100 / required
	if percent > 100 {
		percent = 100
	}
	return Sheet{
		Level:          LevelForXP(c.XP),
		XP:             c.XP,
		CurrentInLevel: current,
		RequiredLevel:  required,
		ToNextLevel:    next,
		Percent:        percent,
		Balance:        c.Balance,
		Purse:          SplitBalance(c.Balance),
	}, nil
}
