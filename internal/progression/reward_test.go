package progression_test

import (
	"testing"

	"github.com/feunard/roadmap/internal/domain"
	"github.com/feunard/roadmap/internal/progression"
)

func TestRewardTable(t *testing.T) {
	cases := []struct {
		priority   domain.Priority
		complexity int
		xp         int
		currency   int
	}{
		{domain.PriorityHigh, 5, 1050, 400},
		{domain.PriorityOptional, 1, 230, 40},
		{domain.PriorityLow, 1, 230, 40},
		{domain.PriorityMedium, 3, 630, 220},
		{domain.PriorityHigh, 1, 450, 240},
		{domain.PriorityLow, 5, 830, 200},
	}
	for _, tc := range cases {
		if got := progression.XPForTask(tc.priority, tc.complexity); got != tc.xp {
			t.Fatalf("XPForTask(%s,%d) = %d, want %d", tc.priority, tc.complexity, got, tc.xp)
		}
		if got := progression.CurrencyForTask(tc.priority, tc.complexity); got != tc.currency {
			t.Fatalf("CurrencyForTask(%s,%d) = %d, want %d", tc.priority, tc.complexity, got, tc.currency)
		}
	}
}

func TestRewardIsDeterministic(t *testing.T) {
	for _, p := range domain.Priorities {
		for c := domain.MinComplexity; c <= domain.MaxComplexity; c++ {
			first := progression.RewardFor(p, c)
			for i := 0; i < 3; i++ {
				if again := progression.RewardFor(p, c); again != first {
					t.Fatalf("reward changed for %s/%d: %+v vs %+v", p, c, first, again)
				}
			}
		}
	}
}

func TestRank(t *testing.T) {
	want := map[int]string{0: "F", 1: "F", 2: "C", 3: "B", 4: "A", 5: "S", 6: "F"}
	for c, rank := range want {
		if got := progression.Rank(c); got != rank {
			t.Fatalf("Rank(%d) = %s, want %s", c, got, rank)
		}
	}
}
