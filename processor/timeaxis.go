package processor

import (
	"strconv"
	"strings"
	"time"

	"entsoeflow/models"
)

var instantLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	models.DateLayout,
}

// parseInstant parses the ISO-8601 instants ENTSO-E emits. Values without a
// zone are taken as UTC.
func parseInstant(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range instantLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func parseFloat(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

func parsePosition(s string) (int, bool) {
	v := parseFloat(s)
	if v == nil {
		return 0, false
	}
	return int(*v), true
}

// periodStart resolves the UTC anchor of a period, falling back to UTC
// midnight of the requested day.
func periodStart(ti *models.TimeInterval, day time.Time) time.Time {
	if ti != nil {
		if t, ok := parseInstant(ti.Start); ok {
			return t
		}
	}
	return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
}

func pointsToItems(points []models.Point, start time.Time, res string, loc *time.Location, items []models.SeriesItem) []models.SeriesItem {
	step := ResolutionStep(res)
	for _, p := range points {
		pos, ok := parsePosition(p.Position)
		if !ok {
			continue
		}
		stamp := start.Add(time.Duration(pos-1) * step)
		items = append(items, models.SeriesItem{
			Timestamp:  stamp.In(loc),
			Price:      parseFloat(p.PriceAmount),
			Quantity:   parseFloat(p.Quantity),
			Resolution: res,
		})
	}
	return items
}

// SeriesFromTimeSeries reconstructs the time axis of one TimeSeries. Each
// point maps to start + (position-1)*resolution, projected into loc. A series
// without Period elements is treated as a single period described by its own
// timeInterval and resolution.
func SeriesFromTimeSeries(ts models.TimeSeries, day time.Time, loc *time.Location) []models.SeriesItem {
	if loc == nil {
		loc = time.UTC
	}
	var items []models.SeriesItem

	if len(ts.Periods) == 0 {
		res := ts.Resolution
		if res == "" {
			res = DefaultResolution
		}
		return pointsToItems(ts.Points, periodStart(ts.TimeInterval, day), res, loc, items)
	}

	for _, period := range ts.Periods {
		res := period.Resolution
		if res == "" {
			res = ts.Resolution
		}
		if res == "" {
			res = DefaultResolution
		}
		items = pointsToItems(period.Points, periodStart(period.TimeInterval, day), res, loc, items)
	}
	return items
}

// SeriesFromDocument flattens every TimeSeries of doc, tagging items with the
// series' production and PSR types.
func SeriesFromDocument(doc *models.MarketDocument, day time.Time, loc *time.Location) []models.SeriesItem {
	if doc == nil {
		return nil
	}
	var items []models.SeriesItem
	for _, ts := range doc.TimeSeries {
		psr := ts.PsrType()
		for _, it := range SeriesFromTimeSeries(ts, day, loc) {
			it.ProductionType = ts.ProductionType
			it.PsrType = psr
			items = append(items, it)
		}
	}
	return items
}
