package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"entsoeflow/logger"
	"entsoeflow/models"
	"entsoeflow/planner"
)

const serviceName = "ENTSO‑E Home Automation API"

var features = []string{
	"Supports PT60M (hourly) and PT15M (15-minute) resolution",
	"Local wall-clock time for all calculations",
	"Smart price-aware grouping with automatic fallback",
	"Rank 1 = cheapest block (🥇), rank 2 = 🥈, rank 3 = 🥉, etc.",
	"Statistical standard deviation (σ) when relevant",
	"Auto-adjusts price gap when too few blocks found",
	"Avoid slot: most expensive hour to avoid",
	"Automation plan from prices, load and wind/solar forecasts",
	"Live day reports over websocket",
	"Request metadata in all responses",
}

func (s *Server) handleRoot(c *gin.Context) {
	endpoints := gin.H{
		"prices_basic":    "/energy/prices/cheapest-basic",
		"prices_advanced": "/energy/prices/cheapest-advanced",
		"dayahead":        "/energy/prices/dayahead",
		"plan":            "/energy/plan",
		"health":          "/system/health",
		"metrics":         "/metrics",
	}
	if s.hub != nil {
		endpoints["live"] = "/ws"
	}
	c.JSON(http.StatusOK, gin.H{
		"service":   serviceName,
		"version":   s.config.App.Version,
		"timezone":  s.config.App.TimeZone,
		"features":  features,
		"docs":      "/",
		"endpoints": endpoints,
		"route_recommendations": gin.H{
			"simple_use_cases":   "Use /energy/prices/cheapest-basic for simple home automation",
			"advanced_use_cases": "Use /energy/prices/cheapest-advanced for complex scenarios",
		},
		"log_level": s.logLevel(),
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	key := s.keyLoaded()
	s.log.WithComponent("api").WithFields(logger.Fields{"api_key_loaded": key}).Debug("health check")
	body := gin.H{
		"status":                "ok",
		"entsoe_api_key_loaded": key,
		"time_zone":             s.config.App.TimeZone,
		"current_time_nl":       s.now().In(s.service.Location()).Format(time.RFC3339),
		"log_level":             s.logLevel(),
	}
	if s.hub != nil {
		body["websocket_clients"] = s.hub.Clients()
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) logLevel() string {
	return strings.ToUpper(s.config.Logging.Level)
}

// dateZone reads the shared date and zone parameters.
func (s *Server) dateZone(c *gin.Context, defaultOffset int) (time.Time, string, error) {
	n := s.now().In(s.service.Location())
	today := time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, n.Location())
	day, err := parseDate(c.Query("date"), today, defaultOffset)
	if err != nil {
		return time.Time{}, "", err
	}
	zone, err := parseZone(c.Query("zone"), s.config.App.Zone)
	if err != nil {
		return time.Time{}, "", err
	}
	return day, zone, nil
}

type dayAheadResponse struct {
	Date              string            `json:"date"`
	Zone              string            `json:"zone"`
	Prices            []models.PriceRow `json:"prices"`
	TotalSlots        int               `json:"total_slots"`
	ResolutionMinutes int               `json:"resolution_minutes"`
	Metadata          Metadata          `json:"metadata"`
}

func (s *Server) handleDayAhead(c *gin.Context) {
	start := time.Now()
	day, zone, err := s.dateZone(c, 1)
	if err != nil {
		respondError(c, s.now(), err)
		return
	}
	date := day.Format(models.DateLayout)

	prices, err := s.service.DayAhead(c.Request.Context(), day, zone)
	if err != nil {
		respondError(c, s.now(), err)
		return
	}
	rows := prices.Rows
	if rows == nil {
		rows = []models.PriceRow{}
	}
	c.JSON(http.StatusOK, dayAheadResponse{
		Date:              date,
		Zone:              zone,
		Prices:            rows,
		TotalSlots:        len(rows),
		ResolutionMinutes: prices.ResolutionMinutes,
		Metadata:          s.metadata("energy/prices/dayahead", map[string]interface{}{"date": date, "zone": zone}, start),
	})
}

type basicResponse struct {
	Date                string `json:"date"`
	Label               string `json:"label"`
	Zone                string `json:"zone"`
	HoursRequested      int    `json:"hours_requested"`
	ConsecutiveRequired bool   `json:"consecutive_required"`
	HoursFound          int    `json:"hours_found"`
	models.CheapestHours
	GeneratedAt string   `json:"generated_at"`
	Metadata    Metadata `json:"metadata"`
}

func (s *Server) handleCheapestBasic(c *gin.Context) {
	start := time.Now()
	day, zone, err := s.dateZone(c, 0)
	if err != nil {
		respondError(c, s.now(), err)
		return
	}
	hours, err := intParam(c, "hours", 4, 1, 24)
	if err != nil {
		respondError(c, s.now(), err)
		return
	}
	consecutive, err := boolParam(c, "consecutive", false)
	if err != nil {
		respondError(c, s.now(), err)
		return
	}
	date := day.Format(models.DateLayout)

	res, err := s.service.CheapestBasic(c.Request.Context(), day, zone, hours, consecutive)
	if err != nil {
		respondError(c, s.now(), err)
		return
	}
	frame := s.service.Frame()
	c.JSON(http.StatusOK, basicResponse{
		Date:                date,
		Label:               planner.DayLabel(date, frame),
		Zone:                zone,
		HoursRequested:      hours,
		ConsecutiveRequired: consecutive,
		HoursFound:          len(res.Hours),
		CheapestHours:       res,
		GeneratedAt:         frame.Now.Format(time.RFC3339),
		Metadata: s.metadata("energy/prices/cheapest-basic", map[string]interface{}{
			"date":        date,
			"zone":        zone,
			"hours":       hours,
			"consecutive": consecutive,
		}, start),
	})
}

type advancedConfig struct {
	MaxTimeGapMinutes  int     `json:"max_time_gap_minutes"`
	MaxPriceGapCt      float64 `json:"max_price_gap_ct"`
	PriceThresholdPct  int     `json:"price_threshold_pct"`
	AnalyzedSlotsCount int     `json:"analyzed_slots_count"`
	TotalSlotsInDay    int     `json:"total_slots_in_day"`
}

type advancedResponse struct {
	models.DayReport
	Label                  string         `json:"label"`
	GeneratedAt            string         `json:"generated_at"`
	Zone                   string         `json:"zone"`
	PriceThresholdCtPerKWh float64        `json:"price_threshold_ct_per_kwh"`
	Config                 advancedConfig `json:"config"`
	Metadata               Metadata       `json:"metadata"`
}

func (s *Server) handleCheapestAdvanced(c *gin.Context) {
	start := time.Now()
	day, zone, err := s.dateZone(c, 0)
	if err != nil {
		respondError(c, s.now(), err)
		return
	}

	defaults := s.service.Options()
	opts := planner.Options{}
	if opts.MaxBlocks, err = intParam(c, "max_blocks", defaults.MaxBlocks, 1, 12); err != nil {
		respondError(c, s.now(), err)
		return
	}
	if opts.MaxTimeGapMinutes, err = intParam(c, "max_time_gap", defaults.MaxTimeGapMinutes, 15, 180); err != nil {
		respondError(c, s.now(), err)
		return
	}
	if opts.MaxPriceGap, err = floatParam(c, "max_price_gap", defaults.MaxPriceGap, 0.3, 10.0); err != nil {
		respondError(c, s.now(), err)
		return
	}
	thresholdPct, err := intParam(c, "price_threshold_pct", s.service.ThresholdPct(), 10, 100)
	if err != nil {
		respondError(c, s.now(), err)
		return
	}
	date := day.Format(models.DateLayout)

	adv, err := s.service.CheapestAdvanced(c.Request.Context(), day, zone, opts, thresholdPct)
	if err != nil {
		respondError(c, s.now(), err)
		return
	}
	frame := s.service.Frame()
	c.JSON(http.StatusOK, advancedResponse{
		DayReport:              adv.Report,
		Label:                  planner.DayLabel(date, frame),
		GeneratedAt:            frame.Now.Format(time.RFC3339),
		Zone:                   zone,
		PriceThresholdCtPerKWh: adv.Threshold,
		Config: advancedConfig{
			MaxTimeGapMinutes:  opts.MaxTimeGapMinutes,
			MaxPriceGapCt:      opts.MaxPriceGap,
			PriceThresholdPct:  thresholdPct,
			AnalyzedSlotsCount: adv.AnalyzedSlots,
			TotalSlotsInDay:    adv.TotalSlots,
		},
		Metadata: s.metadata("energy/prices/cheapest", map[string]interface{}{
			"date":                date,
			"zone":                zone,
			"max_blocks":          opts.MaxBlocks,
			"max_time_gap":        opts.MaxTimeGapMinutes,
			"max_price_gap":       opts.MaxPriceGap,
			"price_threshold_pct": thresholdPct,
		}, start),
	})
}

type planResponse struct {
	models.AutomationPlan
	Metadata Metadata `json:"metadata"`
}

func (s *Server) handlePlan(c *gin.Context) {
	start := time.Now()
	day, zone, err := s.dateZone(c, 1)
	if err != nil {
		respondError(c, s.now(), err)
		return
	}
	date := day.Format(models.DateLayout)

	plan, err := s.service.Plan(c.Request.Context(), day, zone)
	if err != nil {
		respondError(c, s.now(), err)
		return
	}
	c.JSON(http.StatusOK, planResponse{
		AutomationPlan: plan,
		Metadata:       s.metadata("energy/plan", map[string]interface{}{"date": date, "zone": zone}, start),
	})
}

func (s *Server) handleLogs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"logs": s.logs.snapshot()})
}

func (s *Server) handleEvents(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"events": s.events.snapshot()})
}

func (s *Server) handleResources(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"resources": s.sampler.snapshot()})
}
