package entsoe

import (
	"fmt"
	"net/url"
	"time"

	appconfig "entsoeflow/config"
	"entsoeflow/models"
)

const periodLayout = "200601021504"

// Query identifies one upstream document: a dataset for a zone and a local
// calendar day. ToZone is only used by scheduled exchanges, PsrType only by
// the generation forecast.
type Query struct {
	Dataset models.Dataset
	Zone    string
	ToZone  string
	PsrType string
	Day     time.Time
}

// Date is the query day as YYYY-MM-DD.
func (q Query) Date() string {
	return q.Day.Format(models.DateLayout)
}

// DayIn returns local midnight of date in loc.
func DayIn(date time.Time, loc *time.Location) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// ParseDay parses YYYY-MM-DD as local midnight in loc.
func ParseDay(s string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(models.DateLayout, s, loc)
}

// PeriodBounds returns periodStart and periodEnd for the query day: local
// 00:00 and 23:00 in wall-clock form.
func (q Query) PeriodBounds() (string, string) {
	y, m, d := q.Day.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return start.Format(periodLayout), start.Add(23 * time.Hour).Format(periodLayout)
}

// Params builds the request parameters without the security token.
func (q Query) Params(cfg appconfig.EntsoeConfig) (url.Values, error) {
	doc := q.Dataset.DocumentType()
	if doc == "" {
		return nil, fmt.Errorf("unknown dataset %q", q.Dataset)
	}
	start, end := q.PeriodBounds()
	v := url.Values{}
	v.Set("documentType", doc)
	v.Set("periodStart", start)
	v.Set("periodEnd", end)

	switch q.Dataset {
	case models.DatasetPrices, models.DatasetNetPosition:
		v.Set("in_Domain", q.Zone)
		v.Set("out_Domain", q.Zone)
	case models.DatasetLoadForecast, models.DatasetLoadDayAhead:
		v.Set("processType", "A01")
		v.Set("outBiddingZone_Domain", q.Zone)
	case models.DatasetLoadActual:
		v.Set("outBiddingZone_Domain", q.Zone)
		if cfg.A68.RequireInDomain {
			v.Set("in_Domain", q.Zone)
		}
		if cfg.A68.RequireProcessType {
			v.Set("processType", cfg.A68.ProcessType)
		}
	case models.DatasetGenerationForecast:
		v.Set("processType", "A01")
		v.Set("in_Domain", q.Zone)
		v.Set("out_Domain", q.Zone)
		if q.PsrType != "" {
			v.Set("psrType", q.PsrType)
		}
	case models.DatasetScheduledExchanges:
		if q.ToZone == "" {
			return nil, fmt.Errorf("scheduled exchanges need a destination zone")
		}
		v.Set("in_Domain", q.Zone)
		v.Set("out_Domain", q.ToZone)
	}
	return v, nil
}

// CacheKey names the cached response of the query.
func (q Query) CacheKey() string {
	date := q.Date()
	switch q.Dataset {
	case models.DatasetPrices:
		return fmt.Sprintf("A44_%s_%s", q.Zone, date)
	case models.DatasetLoadForecast:
		return fmt.Sprintf("A65_DA_%s_%s", q.Zone, date)
	case models.DatasetLoadDayAhead:
		return fmt.Sprintf("A65_%s_%s", q.Zone, date)
	case models.DatasetLoadActual:
		return fmt.Sprintf("A68_%s_%s", q.Zone, date)
	case models.DatasetGenerationForecast:
		psr := q.PsrType
		if psr == "" {
			psr = "ALL"
		}
		return fmt.Sprintf("A69_%s_%s_%s", q.Zone, date, psr)
	case models.DatasetNetPosition:
		return fmt.Sprintf("A75_%s_%s", q.Zone, date)
	case models.DatasetScheduledExchanges:
		return fmt.Sprintf("A01_%s_%s_%s", q.Zone, q.ToZone, date)
	}
	return ""
}

// TTL is how long a cached response for the query stays fresh.
func (q Query) TTL(ttl appconfig.TTLConfig) time.Duration {
	switch q.Dataset {
	case models.DatasetPrices:
		return ttl.Prices
	case models.DatasetLoadForecast, models.DatasetLoadDayAhead:
		return ttl.LoadDayAhead
	case models.DatasetLoadActual:
		return ttl.LoadActual
	case models.DatasetGenerationForecast:
		return ttl.Generation
	case models.DatasetNetPosition:
		return ttl.NetPosition
	case models.DatasetScheduledExchanges:
		return ttl.Exchanges
	}
	return 0
}

func (q Query) raw(data []byte, fetchedAt time.Time) models.RawDocument {
	return models.RawDocument{
		Dataset:   q.Dataset,
		Zone:      q.Zone,
		ToZone:    q.ToZone,
		PsrType:   q.PsrType,
		Day:       q.Day,
		Data:      data,
		Timestamp: fetchedAt,
	}
}
