package models

import "time"

// Document types requested from the transparency platform.
const (
	DocPrices             = "A44"
	DocLoadDayAhead       = "A65"
	DocLoadActual         = "A68"
	DocGenerationForecast = "A69"
	DocNetPosition        = "A75"
	DocScheduledExchanges = "A01"
)

// Dataset identifies one fetchable ENTSO-E series.
type Dataset string

const (
	DatasetPrices             Dataset = "prices"
	DatasetLoadForecast       Dataset = "load_forecast"
	DatasetLoadDayAhead       Dataset = "load_day_ahead"
	DatasetLoadActual         Dataset = "load_actual"
	DatasetGenerationForecast Dataset = "generation_forecast"
	DatasetNetPosition        Dataset = "net_position"
	DatasetScheduledExchanges Dataset = "scheduled_exchanges"
)

// Datasets lists every known dataset in a stable order.
var Datasets = []Dataset{
	DatasetPrices,
	DatasetLoadForecast,
	DatasetLoadDayAhead,
	DatasetLoadActual,
	DatasetGenerationForecast,
	DatasetNetPosition,
	DatasetScheduledExchanges,
}

// DocumentType returns the ENTSO-E documentType for the dataset.
func (d Dataset) DocumentType() string {
	switch d {
	case DatasetPrices:
		return DocPrices
	case DatasetLoadForecast, DatasetLoadDayAhead:
		return DocLoadDayAhead
	case DatasetLoadActual:
		return DocLoadActual
	case DatasetGenerationForecast:
		return DocGenerationForecast
	case DatasetNetPosition:
		return DocNetPosition
	case DatasetScheduledExchanges:
		return DocScheduledExchanges
	}
	return ""
}

// QuantityField returns the JSON field the dataset's quantity rows use.
// Price and generation datasets have dedicated row types and return "".
func (d Dataset) QuantityField() string {
	switch d {
	case DatasetLoadForecast:
		return FieldForecastMW
	case DatasetLoadDayAhead, DatasetLoadActual:
		return FieldLoadMW
	case DatasetNetPosition:
		return FieldNetPositionMW
	case DatasetScheduledExchanges:
		return FieldScheduledMW
	}
	return ""
}

// Valid reports whether d is a known dataset.
func (d Dataset) Valid() bool {
	return d.DocumentType() != ""
}

// RawDocument is an upstream XML payload handed from the poller to the
// normalizer.
type RawDocument struct {
	Dataset   Dataset
	Zone      string
	ToZone    string
	PsrType   string
	Day       time.Time
	Data      []byte
	Timestamp time.Time
}

// RowBatch carries the normalized rows of one document.
type RowBatch struct {
	BatchID     string          `json:"batch_id"`
	Dataset     Dataset         `json:"dataset"`
	Zone        string          `json:"zone"`
	ToZone      string          `json:"to_zone,omitempty"`
	Date        string          `json:"date"`
	Prices      []PriceRow      `json:"prices,omitempty"`
	Quantities  []QuantityRow   `json:"quantities,omitempty"`
	Generation  []GenerationRow `json:"generation,omitempty"`
	RecordCount int             `json:"record_count"`
	Timestamp   time.Time       `json:"timestamp"`
	ProcessedAt time.Time       `json:"processed_at"`
}
