package planner

import (
	"math"
	"sort"

	"entsoeflow/models"
	"entsoeflow/processor"
)

// Fill values for positions a series does not cover.
const (
	MissingPrice = 999.0
	MissingLoad  = 0.0
)

// CheapestPositions returns the positions of the cheapest sharePct percent
// of slots (rounded up, at least one), in ascending order.
func CheapestPositions(rows []models.PriceRow, sharePct float64) []int {
	if len(rows) == 0 {
		return []int{}
	}
	sorted := sortByPrice(rows)
	k := int(math.Ceil(float64(len(sorted)) * sharePct / 100.0))
	if k < 1 {
		k = 1
	}
	if k > len(sorted) {
		k = len(sorted)
	}
	out := make([]int, k)
	for i := 0; i < k; i++ {
		out[i] = sorted[i].Position
	}
	sort.Ints(out)
	return out
}

// Percentile picks sorted[round(pct/100 * (n-1))], rounding half to even.
// NaN for no values.
func Percentile(values []float64, pct float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	x := append([]float64(nil), values...)
	sort.Float64s(x)
	k := int(math.RoundToEven(pct / 100.0 * float64(len(x)-1)))
	if k < 0 {
		k = 0
	}
	if k > len(x)-1 {
		k = len(x) - 1
	}
	return x[k]
}

// MergeWithFallback fills every position 1..max missing from values with def.
func MergeWithFallback(values map[int]float64, def float64) map[int]float64 {
	out := make(map[int]float64, len(values))
	maxPos := 0
	for pos, v := range values {
		out[pos] = v
		if pos > maxPos {
			maxPos = pos
		}
	}
	for pos := 1; pos <= maxPos; pos++ {
		if _, ok := out[pos]; !ok {
			out[pos] = def
		}
	}
	return out
}

func sortedKeys(m map[int]float64) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

func valuesOf(m map[int]float64) []float64 {
	keys := sortedKeys(m)
	out := make([]float64, len(keys))
	for i, k := range keys {
		out[i] = m[k]
	}
	return out
}

func PriceSeries(rows []models.PriceRow) map[int]float64 {
	m := make(map[int]float64, len(rows))
	for _, r := range rows {
		m[r.Position] = r.CtPerKWh
	}
	return m
}

func QuantitySeries(rows []models.QuantityRow) map[int]float64 {
	m := make(map[int]float64, len(rows))
	for _, r := range rows {
		m[r.Position] = r.Value
	}
	return m
}

// GenerationSeries sums the forecast of every production group per position.
func GenerationSeries(rows []models.GenerationRow) map[int]float64 {
	m := make(map[int]float64)
	for _, r := range rows {
		m[r.Position] += r.ForecastMW
	}
	return m
}

func roundedOrNil(v float64, places int32) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	r := processor.Round(v, places)
	return &r
}

// Recommend builds the automation plan. A position is recommended when its
// price is within the day's 30th percentile and either wind/solar is
// forecast or load stays at or below the 80th percentile. The cheapest 30%
// of positions are always included.
func Recommend(date, zone string, prices []models.PriceRow, load []models.QuantityRow, windSolar []models.GenerationRow) models.AutomationPlan {
	cheapest := CheapestPositions(prices, 30)

	priceMap := MergeWithFallback(PriceSeries(prices), MissingPrice)
	loadMap := MergeWithFallback(QuantitySeries(load), MissingLoad)
	green := GenerationSeries(windSolar)

	priceP30 := Percentile(valuesOf(priceMap), 30)
	loadP80 := Percentile(valuesOf(loadMap), 80)

	set := make(map[int]struct{})
	for _, pos := range sortedKeys(priceMap) {
		cheap := priceMap[pos] <= priceP30
		notPeak := loadMap[pos] <= loadP80
		if cheap && (green[pos] > 0 || notPeak) {
			set[pos] = struct{}{}
		}
	}
	for _, pos := range cheapest {
		set[pos] = struct{}{}
	}
	recommended := make([]int, 0, len(set))
	for pos := range set {
		recommended = append(recommended, pos)
	}
	sort.Ints(recommended)

	return models.AutomationPlan{
		Date:                      date,
		Zone:                      zone,
		CheapestHoursPositions:    cheapest,
		RecommendedHoursPositions: recommended,
		Thresholds: models.PlanThresholds{
			PriceP30CtPerKWh: roundedOrNil(priceP30, 4),
			LoadP80MW:        roundedOrNil(loadP80, 1),
		},
	}
}
