package models

import (
	"bytes"
	"encoding/json"
	"time"
)

// HourLayout is the wall-clock layout of every hour_local value.
const HourLayout = "2006-01-02 15:04"

// DateLayout is the calendar layout used for request dates and cache keys.
const DateLayout = "2006-01-02"

// Quantity field names carried by QuantityRow.
const (
	FieldForecastMW    = "forecast_mw"
	FieldLoadMW        = "load_mw"
	FieldNetPositionMW = "net_position_mw"
	FieldScheduledMW   = "scheduled_mw"
)

// SeriesItem is one reconstructed point before deduplication.
type SeriesItem struct {
	Timestamp      time.Time
	Price          *float64
	Quantity       *float64
	Resolution     string
	ProductionType string
	PsrType        string
}

// PriceRow is a normalized day-ahead price slot.
type PriceRow struct {
	Position   int     `json:"position"`
	HourLocal  string  `json:"hour_local"`
	EurPerMWh  float64 `json:"eur_per_mwh"`
	CtPerKWh   float64 `json:"ct_per_kwh"`
	Resolution string  `json:"resolution"`
}

// QuantityRow is a normalized quantity slot. Field names the JSON key the
// value is emitted under (load_mw, forecast_mw, ...).
type QuantityRow struct {
	Position   int
	HourLocal  string
	Field      string
	Value      float64
	Resolution string
}

func (r QuantityRow) MarshalJSON() ([]byte, error) {
	field := r.Field
	if field == "" {
		field = "quantity"
	}
	var buf bytes.Buffer
	buf.WriteString(`{"position":`)
	pos, _ := json.Marshal(r.Position)
	buf.Write(pos)
	buf.WriteString(`,"hour_local":`)
	hour, _ := json.Marshal(r.HourLocal)
	buf.Write(hour)
	buf.WriteByte(',')
	key, _ := json.Marshal(field)
	buf.Write(key)
	buf.WriteByte(':')
	val, err := json.Marshal(r.Value)
	if err != nil {
		return nil, err
	}
	buf.Write(val)
	buf.WriteString(`,"resolution":`)
	res, _ := json.Marshal(r.Resolution)
	buf.Write(res)
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// GenerationRow is a normalized generation forecast slot for one
// production type.
type GenerationRow struct {
	Position       int     `json:"position"`
	HourLocal      string  `json:"hour_local"`
	ProductionType string  `json:"production_type"`
	PsrType        *string `json:"psr_type"`
	ForecastMW     float64 `json:"forecast_mw"`
	Resolution     string  `json:"resolution"`
}

// TotalLoad pairs the day-ahead forecast with the measured load.
type TotalLoad struct {
	DayAhead []QuantityRow `json:"day_ahead"`
	Actual   []QuantityRow `json:"actual"`
}
