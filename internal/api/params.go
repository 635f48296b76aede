package api

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	appconfig "entsoeflow/config"
	"entsoeflow/models"
)

// Accepted request dates relative to today.
const (
	maxDaysBack  = 365
	maxDaysAhead = 7
)

// parseDate validates a YYYY-MM-DD query value against the accepted
// window. An empty value yields today shifted by defaultOffset days.
func parseDate(raw string, today time.Time, defaultOffset int) (time.Time, error) {
	if raw == "" {
		return today.AddDate(0, 0, defaultOffset), nil
	}
	day, err := time.ParseInLocation(models.DateLayout, raw, today.Location())
	if err != nil {
		return time.Time{}, models.NewValidationError(models.CodeInvalidDateFormat,
			"Invalid date format '%s'. Please use YYYY-MM-DD format (e.g., 2023-10-28)", raw)
	}
	minDay := today.AddDate(0, 0, -maxDaysBack)
	maxDay := today.AddDate(0, 0, maxDaysAhead)
	if day.Before(minDay) {
		return time.Time{}, models.NewValidationError("", "Date %s is too far in the past (minimum: %s)",
			raw, minDay.Format(models.DateLayout))
	}
	if day.After(maxDay) {
		return time.Time{}, models.NewValidationError("", "Date %s is too far in the future (maximum: %s)",
			raw, maxDay.Format(models.DateLayout))
	}
	return day, nil
}

func parseZone(raw, fallback string) (string, error) {
	zone := strings.TrimSpace(raw)
	if zone == "" {
		zone = fallback
	}
	if len(zone) != 16 {
		return "", models.NewValidationError("", "Invalid EIC zone code '%s'. Must be 16 characters long", zone)
	}
	if !appconfig.ValidZone(zone) {
		return "", models.NewValidationError("", "Invalid EIC zone code '%s'. Must start with 2 digits", zone)
	}
	return zone, nil
}

func intParam(c *gin.Context, name string, def, lo, hi int) (int, error) {
	raw, ok := c.GetQuery(name)
	if !ok || raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, models.NewValidationError("", "Query parameter '%s' must be an integer, got '%s'", name, raw)
	}
	if v < lo || v > hi {
		return 0, models.NewValidationError("", "Query parameter '%s' must be between %d and %d", name, lo, hi)
	}
	return v, nil
}

func floatParam(c *gin.Context, name string, def, lo, hi float64) (float64, error) {
	raw, ok := c.GetQuery(name)
	if !ok || raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, models.NewValidationError("", "Query parameter '%s' must be a number, got '%s'", name, raw)
	}
	if v < lo || v > hi {
		return 0, models.NewValidationError("", "Query parameter '%s' must be between %s and %s",
			name, formatBound(lo), formatBound(hi))
	}
	return v, nil
}

func boolParam(c *gin.Context, name string, def bool) (bool, error) {
	raw, ok := c.GetQuery(name)
	if !ok || raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, models.NewValidationError("", "Query parameter '%s' must be a boolean, got '%s'", name, raw)
	}
	return v, nil
}

func formatBound(v float64) string {
	return fmt.Sprintf("%.1f", v)
}
