// Package progression holds the pure rules that turn task attributes into
// rewards and cumulative XP into levels.
package progression

import (
	"fmt"
	"sort"

	"github.com/feunard/roadmap/internal/apperr"
)

// LevelTable is an immutable sequence of per-level XP requirements. Entry i is
// the XP needed to advance from level i+1 to level i+2.
type LevelTable struct {
	requirements []int
	prefix       []int // prefix[i] = sum(requirements[:i])
}

// Levels is the reference table shared by every character.
var Levels = MustLevelTable(
	1080, 2200, 4800, 8400, 13000, 19000, 27000, 37000, 49000, 63000, 79000,
	97000, 117000, 139000, 163000, 189000, 217000, 247000,
)

// MustLevelTable builds a table from positive requirements and panics on
// invalid static data.
func MustLevelTable(requirements ...int) LevelTable {
	if len(requirements) < 2 {
		panic("progression: level table needs at least two entries")
	}
	reqs := make([]int, len(requirements))
	prefix := make([]int, len(requirements)+1)
	for i, r := range requirements {
		if r <= 0 {
			panic(fmt.Sprintf("progression: level %d requirement must be positive, got %d", i+1, r))
		}
		reqs[i] = r
		prefix[i+1] = prefix[i] + r
	}
	return LevelTable{requirements: reqs, prefix: prefix}
}

// Len is the number of entries in the table.
func (t LevelTable) Len() int { return len(t.requirements) }

// Total is the sum of every requirement.
func (t LevelTable) Total() int { return t.prefix[len(t.requirements)] }

// Requirements returns a copy of the backing sequence.
func (t LevelTable) Requirements() []int {
	out := make([]int, len(t.requirements))
	copy(out, t.requirements)
	return out
}

// LevelForXP returns the 1-based index of the first entry whose running total
// exceeds xp. Negative xp maps to 0. XP at or beyond the grand total maps to
// Len()-1, not Len(); callers rely on that cap.
func (t LevelTable) LevelForXP(xp int) int {
	if xp < 0 {
		return 0
	}
	n := len(t.requirements)
	i := sort.Search(n, func(i int) bool { return t.prefix[i+1] > xp })
	if i == n {
		return n - 1
	}
	return i + 1
}

// RequirementForLevel is the XP needed to clear level.
func (t LevelTable) RequirementForLevel(level int) (int, error) {
	if err := t.checkLevel(level); err != nil {
		return 0, err
	}
	return t.requirements[level-1], nil
}

// CumulativeFloorForLevel is the minimum cumulative XP of a character at level.
func (t LevelTable) CumulativeFloorForLevel(level int) (int, error) {
	if err := t.checkLevel(level); err != nil {
		return 0, err
	}
	return t.prefix[level-1], nil
}

// CumulativeCeilingForLevel is the cumulative XP at which level is cleared.
func (t LevelTable) CumulativeCeilingForLevel(level int) (int, error) {
	if err := t.checkLevel(level); err != nil {
		return 0, err
	}
	return t.prefix[level], nil
}

// ProgressWithinLevel returns the XP earned inside the current level and the
// size of that level.
func (t LevelTable) ProgressWithinLevel(xp int) (current, required int, err error) {
	level := t.LevelForXP(xp)
	floor, err := t.CumulativeFloorForLevel(level)
	if err != nil {
		return 0, 0, err
	}
	required, err = t.RequirementForLevel(level)
	if err != nil {
		return 0, 0, err
	}
	return xp - floor, required, nil
}

// XPToNextLevel is the XP still missing to clear the current level, floored
// at zero once the table is exhausted.
func (t LevelTable) XPToNextLevel(xp int) (int, error) {
	ceiling, err := t.CumulativeCeilingForLevel(t.LevelForXP(xp))
	if err != nil {
		return 0, err
	}
	if remaining := ceiling - xp; remaining > 0 {
		return remaining, nil
	}
	return 0, nil
}

func (t LevelTable) checkLevel(level int) error {
	if level < 1 || level > len(t.requirements) {
		return apperr.WithMetadata(apperr.CodeLevelOutOfRange,
			fmt.Sprintf("level %d outside [1, %d]", level, len(t.requirements)),
			map[string]string{"level": fmt.Sprint(level)})
	}
	return nil
}

func LevelForXP(xp int) int { return Levels.LevelForXP(xp) }

func RequirementForLevel(level int) (int, error) { return Levels.RequirementForLevel(level) }

func CumulativeFloorForLevel(level int) (int, error) { return Levels.CumulativeFloorForLevel(level) }

func ProgressWithinLevel(xp int) (int, int, error) { return Levels.ProgressWithinLevel(xp) }
