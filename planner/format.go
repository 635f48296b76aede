package planner

import (
	"fmt"
	"math"
	"strings"
	"time"

	"entsoeflow/models"
	"entsoeflow/processor"
)

var rankIcons = []string{"🥇", "🥈", "🥉", "4️⃣", "5️⃣", "6️⃣", "7️⃣", "8️⃣", "9️⃣", "🔟"}

// RankIcon returns the medal/keycap for ranks 1-10 and "#N" beyond.
func RankIcon(rank int) string {
	if rank >= 1 && rank <= len(rankIcons) {
		return rankIcons[rank-1]
	}
	return fmt.Sprintf("#%d", rank)
}

// FormatTimeRange renders "HH:MM - HH:MM" where the end is the start of the
// last slot plus one resolution step.
func FormatTimeRange(start, lastStart string, resolutionMinutes int) string {
	s, err := time.Parse(models.HourLayout, start)
	if err != nil {
		return "Unknown"
	}
	e, err := time.Parse(models.HourLayout, lastStart)
	if err != nil {
		return "Unknown"
	}
	end := e.Add(time.Duration(resolutionMinutes) * time.Minute)
	return s.Format("15:04") + " - " + end.Format("15:04")
}

// SlotTime is the HH:MM part of an hour_local value.
func SlotTime(hourLocal string) string {
	if i := strings.IndexByte(hourLocal, ' '); i >= 0 {
		return hourLocal[i+1:]
	}
	return hourLocal
}

// DayLabel names date relative to today: "Today", "Tomorrow" or
// "Monday 2 January".
func DayLabel(date string, f Frame) string {
	switch date {
	case f.Today():
		return "Today"
	case f.Tomorrow():
		return "Tomorrow"
	}
	d, err := time.Parse(models.DateLayout, date)
	if err != nil {
		return date
	}
	return d.Format("Monday 2 January")
}

// DetectResolution infers the slot width in minutes: 15 or 60.
func DetectResolution(rows []models.PriceRow) int {
	if len(rows) < 2 {
		return 60
	}
	res := strings.ToUpper(rows[0].Resolution)
	switch {
	case strings.Contains(res, "PT15M"):
		return 15
	case strings.Contains(res, "PT60M"), strings.Contains(res, "PT1H"):
		return 60
	}
	t1, err1 := time.Parse(models.HourLayout, rows[0].HourLocal)
	t2, err2 := time.Parse(models.HourLayout, rows[1].HourLocal)
	if err1 == nil && err2 == nil {
		if diff := int(t2.Sub(t1).Minutes()); diff == 15 || diff == 60 {
			return diff
		}
	}
	return 60
}

// StdDev is the population standard deviation; 0 for fewer than 2 values.
func StdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	avg := mean(values)
	var sum float64
	for _, v := range values {
		sum += (v - avg) * (v - avg)
	}
	return math.Sqrt(sum / float64(len(values)))
}

// StdDevRelevant gates the std-dev figure: at least 3 slots, at least
// 0.1 ct absolute and at least 5% of the block's price range.
func StdDevRelevant(stdDev, priceRange float64, slotCount int) bool {
	if slotCount < 3 {
		return false
	}
	if stdDev < 0.1 {
		return false
	}
	if priceRange > 0 && stdDev/priceRange < 0.05 {
		return false
	}
	return true
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func prices(rows []models.PriceRow) []float64 {
	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = r.CtPerKWh
	}
	return out
}

func minMax(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}

// Average is the mean ct/kWh of rows, 0 when empty.
func Average(rows []models.PriceRow) float64 {
	return mean(prices(rows))
}

func r3(v float64) float64 { return processor.Round(v, 3) }
