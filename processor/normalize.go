package processor

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"entsoeflow/models"
)

// PricesFromDocument runs the full price pipeline: time axis, dedup, rows.
func PricesFromDocument(doc *models.MarketDocument, day time.Time, loc *time.Location, policy Policy) []models.PriceRow {
	return PriceRows(Coalesce(SeriesFromDocument(doc, day, loc), policy))
}

// QuantitiesFromDocument is PricesFromDocument for quantity series; field
// names the JSON key of the value.
func QuantitiesFromDocument(doc *models.MarketDocument, day time.Time, loc *time.Location, policy Policy, field string) []models.QuantityRow {
	return QuantityRows(Coalesce(SeriesFromDocument(doc, day, loc), policy), field)
}

// GenerationFromDocument keeps one value per instant and production group.
func GenerationFromDocument(doc *models.MarketDocument, day time.Time, loc *time.Location) []models.GenerationRow {
	return GenerationRows(CoalesceGeneration(SeriesFromDocument(doc, day, loc)))
}

// Normalize turns one raw upstream payload into a row batch.
func Normalize(raw models.RawDocument, loc *time.Location, policy Policy) (models.RowBatch, error) {
	batch := models.RowBatch{
		BatchID:     uuid.New().String(),
		Dataset:     raw.Dataset,
		Zone:        raw.Zone,
		ToZone:      raw.ToZone,
		Date:        raw.Day.Format(models.DateLayout),
		Timestamp:   raw.Timestamp,
		ProcessedAt: time.Now(),
	}
	if !raw.Dataset.Valid() {
		return batch, fmt.Errorf("unknown dataset %q", raw.Dataset)
	}

	doc, err := ParseDocument(raw.Data)
	if err != nil {
		return batch, err
	}

	switch raw.Dataset {
	case models.DatasetPrices:
		batch.Prices = PricesFromDocument(doc, raw.Day, loc, policy)
		batch.RecordCount = len(batch.Prices)
	case models.DatasetGenerationForecast:
		batch.Generation = GenerationFromDocument(doc, raw.Day, loc)
		batch.RecordCount = len(batch.Generation)
	default:
		batch.Quantities = QuantitiesFromDocument(doc, raw.Day, loc, policy, raw.Dataset.QuantityField())
		batch.RecordCount = len(batch.Quantities)
	}
	return batch, nil
}
