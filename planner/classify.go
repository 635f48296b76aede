package planner

import (
	"time"

	"entsoeflow/models"
)

// DayStartHour is the first local hour counted as part of "today". Earlier
// slots are treated as early tomorrow by the today views.
const DayStartHour = 6

// Frame is the wall clock the planner evaluates slots against. The zero
// value is not usable; build one with NewFrame.
type Frame struct {
	Now time.Time
	Loc *time.Location
}

func NewFrame(now time.Time, loc *time.Location) Frame {
	if loc == nil {
		loc = time.UTC
	}
	return Frame{Now: now.In(loc), Loc: loc}
}

// Today is the local calendar date of Now.
func (f Frame) Today() string {
	return f.Now.In(f.Loc).Format(models.DateLayout)
}

// Tomorrow is the local calendar date after Today.
func (f Frame) Tomorrow() string {
	n := f.Now.In(f.Loc)
	return time.Date(n.Year(), n.Month(), n.Day()+1, 0, 0, 0, 0, f.Loc).Format(models.DateLayout)
}

// IsToday reports whether date (YYYY-MM-DD) is the local date of Now.
func (f Frame) IsToday(date string) bool {
	return date == f.Today()
}

func (f Frame) parseHour(hourLocal string) (time.Time, bool) {
	t, err := time.ParseInLocation(models.HourLayout, hourLocal, f.Loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// BelongsToToday is false for slots starting before 06:00 local. Unparsable
// input is kept.
func BelongsToToday(hourLocal string) bool {
	t, err := time.Parse(models.HourLayout, hourLocal)
	if err != nil {
		return true
	}
	return t.Hour() >= DayStartHour
}

// IsPast reports whether a slot has fully elapsed. Slots on earlier dates
// are past, slots on later dates are not; on the current date a slot is past
// once now reaches start + resolution.
func (f Frame) IsPast(hourLocal, slotDate string, resolutionMinutes int) bool {
	today := f.Today()
	switch {
	case slotDate < today:
		return true
	case slotDate > today:
		return false
	}
	start, ok := f.parseHour(hourLocal)
	if !ok {
		return false
	}
	if resolutionMinutes <= 0 {
		resolutionMinutes = 60
	}
	end := start.Add(time.Duration(resolutionMinutes) * time.Minute)
	return !f.Now.Before(end)
}

// FilterToday drops early-tomorrow slots when date is today and returns rows
// unchanged otherwise.
func (f Frame) FilterToday(rows []models.PriceRow, date string) []models.PriceRow {
	if !f.IsToday(date) {
		return rows
	}
	out := make([]models.PriceRow, 0, len(rows))
	for _, r := range rows {
		if BelongsToToday(r.HourLocal) {
			out = append(out, r)
		}
	}
	return out
}
