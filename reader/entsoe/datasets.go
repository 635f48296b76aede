package entsoe

import (
	"context"
	"sort"
	"time"

	"entsoeflow/models"
	"entsoeflow/processor"
)

func (c *Client) document(ctx context.Context, q Query) (*models.MarketDocument, error) {
	data, err := c.Fetch(ctx, q)
	if err != nil {
		return nil, err
	}
	return processor.ParseDocument(data)
}

func (c *Client) quantities(ctx context.Context, q Query, field string) ([]models.QuantityRow, error) {
	doc, err := c.document(ctx, q)
	if err != nil {
		return nil, err
	}
	return processor.QuantitiesFromDocument(doc, q.Day, c.loc, c.policy, field), nil
}

// DayAheadPrices returns the A44 price rows of day for zone.
func (c *Client) DayAheadPrices(ctx context.Context, day time.Time, zone string) ([]models.PriceRow, error) {
	q := Query{Dataset: models.DatasetPrices, Zone: zone, Day: DayIn(day, c.loc)}
	doc, err := c.document(ctx, q)
	if err != nil {
		return nil, err
	}
	return processor.PricesFromDocument(doc, q.Day, c.loc, c.policy), nil
}

// LoadForecast returns the day-ahead total load forecast as forecast_mw rows.
func (c *Client) LoadForecast(ctx context.Context, day time.Time, zone string) ([]models.QuantityRow, error) {
	q := Query{Dataset: models.DatasetLoadForecast, Zone: zone, Day: DayIn(day, c.loc)}
	return c.quantities(ctx, q, models.FieldForecastMW)
}

// TotalLoad returns the day-ahead (A65) and actual (A68) total load.
func (c *Client) TotalLoad(ctx context.Context, day time.Time, zone string) (models.TotalLoad, error) {
	d := DayIn(day, c.loc)
	dayAhead, err := c.quantities(ctx, Query{Dataset: models.DatasetLoadDayAhead, Zone: zone, Day: d}, models.FieldLoadMW)
	if err != nil {
		return models.TotalLoad{}, err
	}
	actual, err := c.quantities(ctx, Query{Dataset: models.DatasetLoadActual, Zone: zone, Day: d}, models.FieldLoadMW)
	if err != nil {
		return models.TotalLoad{}, err
	}
	return models.TotalLoad{DayAhead: dayAhead, Actual: actual}, nil
}

// GenerationForecast returns the A69 forecast. With psr types, one request is
// made per type and the rows are ordered by (psr_type, position).
func (c *Client) GenerationForecast(ctx context.Context, day time.Time, zone string, psrTypes ...string) ([]models.GenerationRow, error) {
	d := DayIn(day, c.loc)
	one := func(psr string) ([]models.GenerationRow, error) {
		doc, err := c.document(ctx, Query{Dataset: models.DatasetGenerationForecast, Zone: zone, PsrType: psr, Day: d})
		if err != nil {
			return nil, err
		}
		return processor.GenerationFromDocument(doc, d, c.loc), nil
	}
	if len(psrTypes) == 0 {
		return one("")
	}

	var rows []models.GenerationRow
	for _, psr := range psrTypes {
		part, err := one(psr)
		if err != nil {
			return nil, err
		}
		rows = append(rows, part...)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		pi, pj := psrOf(rows[i]), psrOf(rows[j])
		if pi != pj {
			return pi < pj
		}
		return rows[i].Position < rows[j].Position
	})
	return rows, nil
}

func psrOf(r models.GenerationRow) string {
	if r.PsrType == nil {
		return ""
	}
	return *r.PsrType
}

// NetPosition returns the A75 net position as net_position_mw rows.
func (c *Client) NetPosition(ctx context.Context, day time.Time, zone string) ([]models.QuantityRow, error) {
	q := Query{Dataset: models.DatasetNetPosition, Zone: zone, Day: DayIn(day, c.loc)}
	return c.quantities(ctx, q, models.FieldNetPositionMW)
}

// ScheduledExchanges returns the A01 commercial schedule from one zone to
// another as scheduled_mw rows.
func (c *Client) ScheduledExchanges(ctx context.Context, day time.Time, from, to string) ([]models.QuantityRow, error) {
	q := Query{Dataset: models.DatasetScheduledExchanges, Zone: from, ToZone: to, Day: DayIn(day, c.loc)}
	return c.quantities(ctx, q, models.FieldScheduledMW)
}
