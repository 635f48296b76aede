package planner

import (
	"math"

	"entsoeflow/models"
)

// MinPriceGap is the floor the fallback never relaxes the price gap below.
const MinPriceGap = 0.3

// Grouping is the outcome of GroupWithFallback.
type Grouping struct {
	Blocks      []Block
	Applied     bool
	OriginalGap float64
	AdjustedGap float64
}

// GroupWithFallback groups rows and, when fewer than maxBlocks blocks come
// out, retries with half the price gap and then with a quarter of it
// (never below MinPriceGap). The last attempt is returned even if it is
// still short.
func GroupWithFallback(rows []models.PriceRow, maxBlocks, maxGapMinutes int, maxPriceGap float64, resolutionMinutes int) Grouping {
	g := Grouping{OriginalGap: maxPriceGap, AdjustedGap: maxPriceGap}
	g.Blocks = GroupSlots(rows, maxGapMinutes, maxPriceGap, resolutionMinutes)
	if len(g.Blocks) >= maxBlocks {
		return g
	}

	g.Applied = true
	g.AdjustedGap = maxPriceGap * 0.5
	g.Blocks = GroupSlots(rows, maxGapMinutes, g.AdjustedGap, resolutionMinutes)

	if len(g.Blocks) < maxBlocks && g.AdjustedGap > MinPriceGap {
		g.AdjustedGap = math.Max(MinPriceGap, maxPriceGap*0.25)
		g.Blocks = GroupSlots(rows, maxGapMinutes, g.AdjustedGap, resolutionMinutes)
	}
	return g
}
