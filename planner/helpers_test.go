package planner

import (
	"math"
	"reflect"
	"testing"

	"entsoeflow/models"
)

func TestBelongsToToday(t *testing.T) {
	cases := map[string]bool{
		"2025-01-02 05:45": false,
		"2025-01-02 00:00": false,
		"2025-01-02 06:00": true,
		"2025-01-02 23:15": true,
		"garbage":          true,
	}
	for in, want := range cases {
		if got := BelongsToToday(in); got != want {
			t.Errorf("BelongsToToday(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestIsPastBoundary(t *testing.T) {
	f := at(t, 10, 0)
	cases := []struct {
		hour string
		date string
		res  int
		want bool
	}{
		{"2025-01-02 09:00", testDate, 60, true},
		{"2025-01-02 10:00", testDate, 60, false},
		{"2025-01-02 09:45", testDate, 15, true},
		{"2025-01-02 09:50", testDate, 15, false},
		{"2025-01-01 23:00", "2025-01-01", 60, true},
		{"2025-01-03 00:00", "2025-01-03", 60, false},
		{"bad", testDate, 60, false},
	}
	for _, c := range cases {
		if got := f.IsPast(c.hour, c.date, c.res); got != c.want {
			t.Errorf("IsPast(%q, %q, %d) = %v, want %v", c.hour, c.date, c.res, got, c.want)
		}
	}
}

func TestDayLabel(t *testing.T) {
	f := at(t, 12, 0)
	if got := DayLabel("2025-01-02", f); got != "Today" {
		t.Fatalf("got %q", got)
	}
	if got := DayLabel("2025-01-03", f); got != "Tomorrow" {
		t.Fatalf("got %q", got)
	}
	if got := DayLabel("2025-01-06", f); got != "Monday 6 January" {
		t.Fatalf("got %q", got)
	}
}

func TestFormatTimeRange(t *testing.T) {
	if got := FormatTimeRange("2025-01-02 13:00", "2025-01-02 14:45", 15); got != "13:00 - 15:00" {
		t.Fatalf("got %q", got)
	}
	if got := FormatTimeRange("x", "2025-01-02 14:45", 15); got != "Unknown" {
		t.Fatalf("got %q", got)
	}
}

func TestDetectResolution(t *testing.T) {
	if got := DetectResolution(hourly(1)); got != 60 {
		t.Fatalf("single row: %d", got)
	}
	if got := DetectResolution(slots(15, "PT15M", 1, 2)); got != 15 {
		t.Fatalf("PT15M: %d", got)
	}
	if got := DetectResolution(slots(15, "", 1, 2)); got != 15 {
		t.Fatalf("derived from spacing: %d", got)
	}
	if got := DetectResolution(slots(30, "", 1, 2)); got != 60 {
		t.Fatalf("unknown spacing: %d", got)
	}
	if got := DetectResolution(slots(15, "PT1H", 1, 2)); got != 60 {
		t.Fatalf("PT1H: %d", got)
	}
}

func TestStdDev(t *testing.T) {
	if StdDev([]float64{4}) != 0 {
		t.Fatalf("single value std dev must be 0")
	}
	if got := StdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9}); got != 2 {
		t.Fatalf("StdDev = %v", got)
	}
	if StdDevRelevant(1, 4, 2) || !StdDevRelevant(1, 4, 3) || StdDevRelevant(0.09, 0.5, 5) || StdDevRelevant(0.2, 10, 5) {
		t.Fatalf("unexpected relevance results")
	}
}

func TestSelectCheapSubset(t *testing.T) {
	cheap, threshold := SelectCheapSubset(hourly(4, 3, 2, 1), 10)
	if threshold != 2 || len(cheap) != 2 || cheap[0].CtPerKWh != 1 || cheap[1].CtPerKWh != 2 {
		t.Fatalf("expected cheaper half, got %v (threshold %v)", cheap, threshold)
	}

	cheap, threshold = SelectCheapSubset(hourly(5, 1, 4, 2, 3), 100)
	if threshold != 5 || len(cheap) != 5 {
		t.Fatalf("pct 100 should keep everything: %v", threshold)
	}

	cheap, threshold = SelectCheapSubset(hourly(1), 50)
	if len(cheap) != 0 || threshold != 0 {
		t.Fatalf("single row: %v %v", cheap, threshold)
	}
}

func TestCheapestHours(t *testing.T) {
	rows := hourly(9, 1, 8, 2, 2, 7, 3)
	f := dayBefore(t)

	res := CheapestHours(rows, testDate, f, 3, false)
	var got []int
	for _, h := range res.Hours {
		got = append(got, h.Position)
	}
	if !reflect.DeepEqual(got, []int{2, 4, 5}) {
		t.Fatalf("cheapest positions = %v", got)
	}
	if res.Statistics.AvgPriceCtPerKWh != 1.667 || res.Statistics.DayAverageCtPerKWh != 4.571 {
		t.Fatalf("unexpected statistics: %+v", res.Statistics)
	}
	if res.FutureHoursCount != 3 || res.Hours[0].TimeRange != "01:00 - 02:00" || res.Hours[0].Time != "01:00" {
		t.Fatalf("unexpected hours: %+v", res.Hours)
	}

	res = CheapestHours(rows, testDate, f, 2, true)
	got = got[:0]
	for _, h := range res.Hours {
		got = append(got, h.Position)
	}
	if !reflect.DeepEqual(got, []int{4, 5}) {
		t.Fatalf("consecutive positions = %v", got)
	}
}

func TestCheapestHoursConsecutiveFallsBack(t *testing.T) {
	rows := hourly(5, 1, 4)
	rows[1].Position = 3
	rows[2].Position = 5
	res := CheapestHours(rows, testDate, dayBefore(t), 2, true)
	if len(res.Hours) != 2 || res.Hours[0].Position != 3 || res.Hours[1].Position != 5 {
		t.Fatalf("expected individual cheapest slots, got %+v", res.Hours)
	}
}

func TestPercentile(t *testing.T) {
	if !math.IsNaN(Percentile(nil, 30)) {
		t.Fatalf("expected NaN")
	}
	if got := Percentile([]float64{4, 1, 3, 2}, 50); got != 3 {
		t.Fatalf("half-way index should round to even, got %v", got)
	}
	if got := Percentile([]float64{1, 2, 3}, 100); got != 3 {
		t.Fatalf("got %v", got)
	}
}

func TestMergeWithFallback(t *testing.T) {
	got := MergeWithFallback(map[int]float64{1: 5, 3: 7}, MissingPrice)
	want := map[int]float64{1: 5, 2: MissingPrice, 3: 7}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v", got)
	}
	if len(MergeWithFallback(nil, 0)) != 0 {
		t.Fatalf("expected empty map")
	}
}

func TestCheapestPositions(t *testing.T) {
	if got := CheapestPositions(hourly(3, 1, 2), 30); !reflect.DeepEqual(got, []int{2}) {
		t.Fatalf("got %v", got)
	}
	if got := CheapestPositions(hourly(5, 4, 3, 2, 1, 6, 7, 8, 9, 10), 30); !reflect.DeepEqual(got, []int{3, 4, 5}) {
		t.Fatalf("got %v", got)
	}
	if got := CheapestPositions(nil, 30); len(got) != 0 {
		t.Fatalf("got %v", got)
	}
}

func planInputs() ([]models.PriceRow, []models.QuantityRow) {
	ct := make([]float64, 10)
	load := make([]models.QuantityRow, 10)
	for i := range ct {
		ct[i] = float64(i + 1)
		load[i] = models.QuantityRow{Position: i + 1, Field: models.FieldLoadMW, Value: float64(100 * (i + 1))}
	}
	load[3].Value = 1000
	return hourly(ct...), load
}

func TestRecommendPeakLoadExcluded(t *testing.T) {
	prices, load := planInputs()
	plan := Recommend(testDate, "10YNL----------L", prices, load, nil)

	if !reflect.DeepEqual(plan.CheapestHoursPositions, []int{1, 2, 3}) {
		t.Fatalf("cheapest = %v", plan.CheapestHoursPositions)
	}
	if !reflect.DeepEqual(plan.RecommendedHoursPositions, []int{1, 2, 3}) {
		t.Fatalf("recommended = %v", plan.RecommendedHoursPositions)
	}
	if plan.Thresholds.PriceP30CtPerKWh == nil || *plan.Thresholds.PriceP30CtPerKWh != 4 {
		t.Fatalf("unexpected price threshold")
	}
	if plan.Thresholds.LoadP80MW == nil || *plan.Thresholds.LoadP80MW != 900 {
		t.Fatalf("unexpected load threshold")
	}
}

func TestRecommendGreenOverridesPeak(t *testing.T) {
	prices, load := planInputs()
	gen := []models.GenerationRow{
		{Position: 4, ProductionType: "Wind Onshore", ForecastMW: 0},
		{Position: 4, ProductionType: "Solar", ForecastMW: 120},
	}
	plan := Recommend(testDate, "10YNL----------L", prices, load, gen)
	if !reflect.DeepEqual(plan.RecommendedHoursPositions, []int{1, 2, 3, 4}) {
		t.Fatalf("recommended = %v", plan.RecommendedHoursPositions)
	}
}

func TestRecommendWithoutLoad(t *testing.T) {
	prices, _ := planInputs()
	plan := Recommend(testDate, "10YNL----------L", prices, nil, nil)
	if plan.Thresholds.LoadP80MW != nil {
		t.Fatalf("load threshold should be null without load data")
	}
	if !reflect.DeepEqual(plan.RecommendedHoursPositions, []int{1, 2, 3}) {
		t.Fatalf("recommended = %v", plan.RecommendedHoursPositions)
	}
}
