package progression

const minorPerMajor = 100

// Purse is a balance split into gold (major) and silver (minor) units.
type Purse struct {
	Gold   int `json:"gold"`
	Silver int `json:"silver"`
}

// MajorUnits is balance div 100. Balance is assumed non-negative.
func MajorUnits(balance int) int { return balance / minorPerMajor }

// MinorUnits is balance mod 100.
func MinorUnits(balance int) int { return balance % minorPerMajor }

func SplitBalance(balance int) Purse {
	return Purse{Gold: MajorUnits(balance), Silver: MinorUnits(balance)}
}

// Total folds the purse back into a flat balance.
func (p Purse) Total() int { return p.Gold*minorPerMajor + p.Silver }
