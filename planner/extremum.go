package planner

import (
	"sort"

	"entsoeflow/models"
)

// Window is the most expensive stretch of the remaining day.
type Window struct {
	Slots           []models.PriceRow
	TimeRange       string
	DurationMinutes int
	AvgPrice        float64
	MinPrice        float64
	MaxPrice        float64
}

func windowOf(slots []models.PriceRow, resolutionMinutes, duration int) *Window {
	p := prices(slots)
	lo, hi := minMax(p)
	return &Window{
		Slots:           slots,
		TimeRange:       FormatTimeRange(slots[0].HourLocal, slots[len(slots)-1].HourLocal, resolutionMinutes),
		DurationMinutes: duration,
		AvgPrice:        mean(p),
		MinPrice:        lo,
		MaxPrice:        hi,
	}
}

func highest(rows []models.PriceRow) models.PriceRow {
	best := rows[0]
	for _, r := range rows[1:] {
		if r.CtPerKWh > best.CtPerKWh {
			best = r
		}
	}
	return best
}

// MostExpensiveWindow finds the hour to avoid. On the current date only
// slots that have not fully elapsed are considered. With hourly data it is
// the single most expensive slot; with finer data it is the most expensive
// run of 60/resolution slots with contiguous positions, falling back to the
// single most expensive slot when no such run exists. Nil when nothing is
// left to consider.
func MostExpensiveWindow(all []models.PriceRow, date string, resolutionMinutes int, f Frame) *Window {
	if len(all) == 0 {
		return nil
	}
	if resolutionMinutes <= 0 {
		resolutionMinutes = 60
	}

	candidates := all
	if f.IsToday(date) {
		candidates = make([]models.PriceRow, 0, len(all))
		for _, r := range all {
			if !f.IsPast(r.HourLocal, date, resolutionMinutes) {
				candidates = append(candidates, r)
			}
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	size := 60 / resolutionMinutes
	if size <= 1 {
		return windowOf([]models.PriceRow{highest(candidates)}, resolutionMinutes, 60)
	}

	sorted := make([]models.PriceRow, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Position < sorted[j].Position })

	var best []models.PriceRow
	bestAvg := 0.0
	for i := 0; i+size <= len(sorted); i++ {
		w := sorted[i : i+size]
		if !contiguous(w) {
			continue
		}
		if avg := mean(prices(w)); best == nil || avg > bestAvg {
			best, bestAvg = w, avg
		}
	}
	if best == nil {
		return windowOf([]models.PriceRow{highest(candidates)}, resolutionMinutes, resolutionMinutes)
	}
	return windowOf(append([]models.PriceRow(nil), best...), resolutionMinutes, 60)
}

func contiguous(rows []models.PriceRow) bool {
	for i := 1; i < len(rows); i++ {
		if rows[i].Position-rows[i-1].Position > 1 {
			return false
		}
	}
	return true
}
