package planner

import (
	"math"
	"sort"

	"entsoeflow/models"
)

// MinCheapSlots is the smallest subset SelectCheapSubset accepts before
// switching to the cheaper half of the day.
const MinCheapSlots = 3

func sortByPrice(rows []models.PriceRow) []models.PriceRow {
	out := make([]models.PriceRow, len(rows))
	copy(out, rows)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CtPerKWh < out[j].CtPerKWh })
	return out
}

func sortByPosition(rows []models.PriceRow) []models.PriceRow {
	out := make([]models.PriceRow, len(rows))
	copy(out, rows)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

// SelectCheapSubset keeps the rows priced at or below the pct percentile of
// the day. When that leaves fewer than MinCheapSlots rows, the cheaper half
// of the day is used instead and the threshold becomes its last price.
func SelectCheapSubset(rows []models.PriceRow, pct int) ([]models.PriceRow, float64) {
	if len(rows) == 0 {
		return nil, 0
	}
	sorted := sortByPrice(rows)
	idx := int(float64(len(sorted)) * float64(pct) / 100.0)
	if idx > len(sorted)-1 {
		idx = len(sorted) - 1
	}
	threshold := sorted[idx].CtPerKWh

	var cheap []models.PriceRow
	for _, r := range rows {
		if r.CtPerKWh <= threshold {
			cheap = append(cheap, r)
		}
	}
	if len(cheap) >= MinCheapSlots {
		return cheap, threshold
	}

	cheap = sorted[:len(sorted)/2]
	if len(cheap) == 0 {
		return nil, 0
	}
	return cheap, cheap[len(cheap)-1].CtPerKWh
}

// cheapestRun is the contiguous run of n slots with the lowest mean, or nil.
func cheapestRun(rows []models.PriceRow, n int) []models.PriceRow {
	sorted := sortByPosition(rows)
	var best []models.PriceRow
	bestAvg := math.Inf(1)
	for i := 0; i+n <= len(sorted); i++ {
		w := sorted[i : i+n]
		if !contiguous(w) {
			continue
		}
		if avg := mean(prices(w)); avg < bestAvg {
			best, bestAvg = w, avg
		}
	}
	return best
}

// CheapestHours picks the n cheapest slots of the day, or the cheapest
// contiguous run of n slots when consecutive is set and one exists. On the
// current date early-tomorrow slots are ignored. Output is in time order.
func CheapestHours(all []models.PriceRow, date string, f Frame, n int, consecutive bool) models.CheapestHours {
	res := DetectResolution(all)
	filtered := f.FilterToday(all, date)

	var picked []models.PriceRow
	if consecutive && n > 0 {
		picked = cheapestRun(filtered, n)
	}
	if picked == nil {
		byPrice := sortByPrice(filtered)
		if n < len(byPrice) {
			byPrice = byPrice[:n]
		}
		picked = byPrice
	}
	picked = sortByPosition(picked)

	out := models.CheapestHours{
		ResolutionMinutes: res,
		Hours:             make([]models.CheapHour, 0, len(picked)),
	}
	for _, r := range picked {
		past := f.IsPast(r.HourLocal, date, res)
		if !past {
			out.FutureHoursCount++
		}
		out.Hours = append(out.Hours, models.CheapHour{
			Time:          SlotTime(r.HourLocal),
			TimeRange:     FormatTimeRange(r.HourLocal, r.HourLocal, res),
			PriceCtPerKWh: r3(r.CtPerKWh),
			IsPast:        past,
			IsFuture:      !past,
			Position:      r.Position,
		})
	}

	p := prices(picked)
	avg := mean(p)
	lo, hi := minMax(p)
	dayAvg := Average(all)
	out.Statistics = models.CheapStatistics{
		AvgPriceCtPerKWh:    r3(avg),
		MinPriceCtPerKWh:    r3(lo),
		MaxPriceCtPerKWh:    r3(hi),
		PriceRangeCtPerKWh:  r3(hi - lo),
		DayAverageCtPerKWh:  r3(dayAvg),
		SavingsVsDayAverage: r3(dayAvg - avg),
	}
	return out
}
