package progression

import "github.com/feunard/roadmap/internal/domain"

const (
	xpPerComplexity       = 150
	currencyPerComplexity = 40
)

// Reward is what a character earns for completing one task.
type Reward struct {
	XP       int `json:"xp"`
	Currency int `json:"currency"`
}

func priorityBonusXP(p domain.Priority) int {
	switch p {
	case domain.PriorityHigh:
		return 300
	case domain.PriorityMedium:
		return 180
	default:
		return 80
	}
}

func priorityBonusCurrency(p domain.Priority) int {
	switch p {
	case domain.PriorityHigh:
		return 200
	case domain.PriorityMedium:
		return 100
	default:
		return 0
	}
}

// XPForTask returns complexity*150 plus the priority bonus.
func XPForTask(p domain.Priority, complexity int) int {
	return complexity*xpPerComplexity + priorityBonusXP(p)
}

// CurrencyForTask returns the reward in minor units.
func CurrencyForTask(p domain.Priority, complexity int) int {
	return complexity*currencyPerComplexity + priorityBonusCurrency(p)
}

func RewardFor(p domain.Priority, complexity int) Reward {
	return Reward{XP: XPForTask(p, complexity), Currency: CurrencyForTask(p, complexity)}
}

// TaskReward reads priority and complexity from the task as it is now.
func TaskReward(t domain.Task) Reward {
	return RewardFor(t.Priority, t.Complexity)
}

// Rank is the quest letter grade shown next to a task's complexity.
func Rank(complexity int) string {
	switch complexity {
	case 2:
		return "C"
	case 3:
		return "B"
	case 4:
		return "A"
	case 5:
		return "S"
	default:
		return "F"
	}
}
