package scoring

import (
	"math"

	"horse.fit/newsignal/internal/news"
)

const (
	MinDIS = 1
	MaxDIS = 100
)

// Weights are the DIS formula's tunables.
type Weights struct {
	RecencyMax          float64
	RecencyDecayPerHour float64
	SourceWeight        float64
	Tier1Bonus          float64
	Tier2Bonus          float64
	Tier3Bonus          float64
}

func DefaultWeights() Weights {
	return Weights{
		RecencyMax:          50,
		RecencyDecayPerHour: 5,
		SourceWeight:        8,
		Tier1Bonus:          10,
		Tier2Bonus:          5,
		Tier3Bonus:          0,
	}
}

func (w Weights) TierBonus(tier int) float64 {
	switch tier {
	case 1:
		return w.Tier1Bonus
	case 2:
		return w.Tier2Bonus
	case news.MaxTier:
		return w.Tier3Bonus
	default:
		return 0
	}
}

// Recency decays linearly from RecencyMax and floors at zero.
func (w Weights) Recency(hoursOld float64) float64 {
	if hoursOld < 0 {
		hoursOld = 0
	}
	return math.Max(0, w.RecencyMax-hoursOld*w.RecencyDecayPerHour)
}

// DIS combines recency, corroboration and tier into an integer in [1,100].
func (w Weights) DIS(hoursOld float64, sourceCount, tier int) int {
	raw := w.Recency(hoursOld) + float64(sourceCount)*w.SourceWeight + w.TierBonus(tier)
	dis := int(math.Round(raw))
	if dis < MinDIS {
		return MinDIS
	}
	if dis > MaxDIS {
		return MaxDIS
	}
	return dis
}
