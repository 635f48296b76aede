package planner

import (
	"math"
	"sort"

	"entsoeflow/models"
)

// Block is a run of time-adjacent, price-similar slots.
type Block struct {
	Start    string
	End      string
	Slots    []models.PriceRow
	MinPrice float64
	MaxPrice float64
	AvgPrice float64
}

func newBlock(r models.PriceRow) Block {
	return Block{
		Start:    r.HourLocal,
		End:      r.HourLocal,
		Slots:    []models.PriceRow{r},
		MinPrice: r.CtPerKWh,
		MaxPrice: r.CtPerKWh,
	}
}

// Positions lists the slot positions of the block in order.
func (b Block) Positions() []int {
	out := make([]int, len(b.Slots))
	for i, s := range b.Slots {
		out[i] = s.Position
	}
	return out
}

// GroupSlots clusters rows into blocks and returns them cheapest first.
//
// Rows are walked in position order. A row joins the open block when the
// gap to the previous row, (position delta) * resolution, is at most
// maxGapMinutes + resolution and the block's price spread including the
// row stays within maxPriceGap. Otherwise the block is closed and a new one
// starts at the row. Blocks are ordered by mean price; ties keep walk order.
func GroupSlots(rows []models.PriceRow, maxGapMinutes int, maxPriceGap float64, resolutionMinutes int) []Block {
	if len(rows) == 0 {
		return nil
	}
	sorted := make([]models.PriceRow, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Position < sorted[j].Position })

	var blocks []Block
	current := newBlock(sorted[0])
	for i := 1; i < len(sorted); i++ {
		prev, curr := sorted[i-1], sorted[i]

		timeGap := (curr.Position - prev.Position) * resolutionMinutes
		lo := math.Min(current.MinPrice, curr.CtPerKWh)
		hi := math.Max(current.MaxPrice, curr.CtPerKWh)

		if timeGap <= maxGapMinutes+resolutionMinutes && hi-lo <= maxPriceGap {
			current.End = curr.HourLocal
			current.Slots = append(current.Slots, curr)
			current.MinPrice, current.MaxPrice = lo, hi
			continue
		}
		blocks = append(blocks, current)
		current = newBlock(curr)
	}
	blocks = append(blocks, current)

	for i := range blocks {
		blocks[i].AvgPrice = mean(prices(blocks[i].Slots))
	}
	sort.SliceStable(blocks, func(i, j int) bool { return blocks[i].AvgPrice < blocks[j].AvgPrice })
	return blocks
}
