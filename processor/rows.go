package processor

import (
	"math"
	"strconv"

	"github.com/shopspring/decimal"

	"entsoeflow/models"
)

// Round rounds the exact binary value of v to the given number of
// decimals, ties to even. 2.675 is stored just below the tie and rounds to
// 2.67.
func Round(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return decimal.RequireFromString(strconv.FormatFloat(v, 'f', int(places), 64)).InexactFloat64()
}

// EurMWhToCtKWh converts EUR/MWh into ct/kWh.
func EurMWhToCtKWh(v float64) float64 {
	return v / 10.0
}

func resolutionOf(it models.SeriesItem) string {
	if it.Resolution == "" {
		return DefaultResolution
	}
	return it.Resolution
}

// PriceRows converts deduplicated, sorted items into price rows. Items
// without a price are skipped; positions are dense from 1.
func PriceRows(items []models.SeriesItem) []models.PriceRow {
	rows := make([]models.PriceRow, 0, len(items))
	for _, it := range items {
		if it.Price == nil {
			continue
		}
		rows = append(rows, models.PriceRow{
			Position:   len(rows) + 1,
			HourLocal:  it.Timestamp.Format(models.HourLayout),
			EurPerMWh:  Round(*it.Price, 6),
			CtPerKWh:   Round(EurMWhToCtKWh(*it.Price), 6),
			Resolution: resolutionOf(it),
		})
	}
	return rows
}

// QuantityRows converts deduplicated, sorted items into quantity rows keyed
// under field.
func QuantityRows(items []models.SeriesItem, field string) []models.QuantityRow {
	rows := make([]models.QuantityRow, 0, len(items))
	for _, it := range items {
		if it.Quantity == nil {
			continue
		}
		rows = append(rows, models.QuantityRow{
			Position:   len(rows) + 1,
			HourLocal:  it.Timestamp.Format(models.HourLayout),
			Field:      field,
			Value:      Round(*it.Quantity, 3),
			Resolution: resolutionOf(it),
		})
	}
	return rows
}

// GenerationRows converts items produced by CoalesceGeneration into rows.
// Positions restart at 1 for every production group so they line up with
// the price positions of the same day.
func GenerationRows(items []models.SeriesItem) []models.GenerationRow {
	rows := make([]models.GenerationRow, 0, len(items))
	group, pos := "", 0
	for _, it := range items {
		if it.Quantity == nil {
			continue
		}
		if g := groupTag(it); g != group || pos == 0 {
			group, pos = g, 0
		}
		pos++
		ptype := it.ProductionType
		if ptype == "" {
			ptype = "UNKNOWN"
		}
		var psr *string
		if it.PsrType != "" {
			v := it.PsrType
			psr = &v
		}
		rows = append(rows, models.GenerationRow{
			Position:       pos,
			HourLocal:      it.Timestamp.Format(models.HourLayout),
			ProductionType: ptype,
			PsrType:        psr,
			ForecastMW:     Round(*it.Quantity, 3),
			Resolution:     resolutionOf(it),
		})
	}
	return rows
}
