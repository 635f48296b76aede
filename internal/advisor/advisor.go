package advisor

import (
	"context"
	"fmt"
	"time"

	appconfig "entsoeflow/config"
	"entsoeflow/logger"
	"entsoeflow/models"
	"entsoeflow/planner"
)

// GreenPsrTypes are the wind and solar production types the plan counts as
// green generation: solar, wind offshore, wind onshore.
var GreenPsrTypes = []string{"B16", "B18", "B19"}

// Source is the slice of the ENTSO-E client the advisor needs.
type Source interface {
	DayAheadPrices(ctx context.Context, day time.Time, zone string) ([]models.PriceRow, error)
	LoadForecast(ctx context.Context, day time.Time, zone string) ([]models.QuantityRow, error)
	TotalLoad(ctx context.Context, day time.Time, zone string) (models.TotalLoad, error)
	GenerationForecast(ctx context.Context, day time.Time, zone string, psrTypes ...string) ([]models.GenerationRow, error)
}

// Advisor combines upstream data with the planner. It holds no state
// besides configuration and the clock.
type Advisor struct {
	source Source
	config *appconfig.Config
	loc    *time.Location
	now    func() time.Time
	log    *logger.Log
}

func New(cfg *appconfig.Config, source Source) (*Advisor, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	return &Advisor{
		source: source,
		config: cfg,
		loc:    loc,
		now:    time.Now,
		log:    logger.GetLogger(),
	}, nil
}

// WithClock replaces the wall clock, for tests and replays.
func (a *Advisor) WithClock(now func() time.Time) *Advisor {
	a.now = now
	return a
}

func (a *Advisor) Location() *time.Location {
	return a.loc
}

// Frame captures the current time for one request.
func (a *Advisor) Frame() planner.Frame {
	return planner.NewFrame(a.now(), a.loc)
}

// Options are the configured block options.
func (a *Advisor) Options() planner.Options {
	p := a.config.Planner
	return planner.Options{
		MaxBlocks:         p.MaxBlocks,
		MaxTimeGapMinutes: int(p.MaxTimeGapMinutes),
		MaxPriceGap:       p.MaxPriceGapCt,
	}
}

// ThresholdPct is the configured cheap-subset percentile.
func (a *Advisor) ThresholdPct() int {
	return int(a.config.Planner.PriceThresholdPct)
}

// Prices is the day-ahead price list with its detected resolution.
type Prices struct {
	Rows              []models.PriceRow
	ResolutionMinutes int
}

// DayAhead returns every price slot of day. An empty day is not an error
// here.
func (a *Advisor) DayAhead(ctx context.Context, day time.Time, zone string) (Prices, error) {
	rows, err := a.source.DayAheadPrices(ctx, day, zone)
	if err != nil {
		return Prices{}, err
	}
	res := 60
	if len(rows) > 0 {
		res = planner.DetectResolution(rows)
	}
	return Prices{Rows: rows, ResolutionMinutes: res}, nil
}

func (a *Advisor) requirePrices(ctx context.Context, day time.Time, zone string) ([]models.PriceRow, error) {
	rows, err := a.source.DayAheadPrices(ctx, day, zone)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, models.NewNotFound(fmt.Sprintf("No price data available for %s", day.Format(models.DateLayout)), nil)
	}
	return rows, nil
}

// CheapestBasic picks the n cheapest slots of day, or the cheapest
// contiguous run when consecutive is set.
func (a *Advisor) CheapestBasic(ctx context.Context, day time.Time, zone string, n int, consecutive bool) (models.CheapestHours, error) {
	rows, err := a.requirePrices(ctx, day, zone)
	if err != nil {
		return models.CheapestHours{}, err
	}
	res := planner.CheapestHours(rows, day.Format(models.DateLayout), a.Frame(), n, consecutive)
	if consecutive && len(res.Hours) > 0 && !contiguous(res.Hours) {
		a.log.WithComponent("advisor").WithFields(logger.Fields{
			"zone":  zone,
			"hours": n,
		}).Warn("no consecutive block found, using cheapest individual hours")
	}
	return res, nil
}

func contiguous(hours []models.CheapHour) bool {
	for i := 1; i < len(hours); i++ {
		if hours[i].Position != hours[i-1].Position+1 {
			return false
		}
	}
	return true
}

// CheapestAdvanced ranks blocks of the cheap subset of day against the full
// day.
func (a *Advisor) CheapestAdvanced(ctx context.Context, day time.Time, zone string, opts planner.Options, thresholdPct int) (planner.Advanced, error) {
	rows, err := a.requirePrices(ctx, day, zone)
	if err != nil {
		return planner.Advanced{}, err
	}
	adv := planner.ProcessAdvanced(rows, day.Format(models.DateLayout), a.Frame(), opts, thresholdPct)
	a.log.WithComponent("advisor").WithFields(logger.Fields{
		"zone":           zone,
		"date":           day.Format(models.DateLayout),
		"analyzed_slots": adv.AnalyzedSlots,
		"total_slots":    adv.TotalSlots,
		"threshold":      adv.Threshold,
	}).Debug("advanced view computed")
	return adv, nil
}

// Plan builds the automation plan for day. Future days use the standalone
// load forecast when actual load is skipped for them.
func (a *Advisor) Plan(ctx context.Context, day time.Time, zone string) (models.AutomationPlan, error) {
	date := day.Format(models.DateLayout)
	prices, err := a.source.DayAheadPrices(ctx, day, zone)
	if err != nil {
		return models.AutomationPlan{}, err
	}
	if len(prices) == 0 {
		return models.AutomationPlan{}, models.NewServerError("No prices, cannot create a plan.", 0, nil)
	}

	gen, err := a.source.GenerationForecast(ctx, day, zone, GreenPsrTypes...)
	if err != nil {
		return models.AutomationPlan{}, err
	}

	var load []models.QuantityRow
	if a.config.Entsoe.SkipA68ForFuture && date > a.Frame().Today() {
		load, err = a.source.LoadForecast(ctx, day, zone)
		if err != nil {
			return models.AutomationPlan{}, err
		}
	} else {
		total, err := a.source.TotalLoad(ctx, day, zone)
		if err != nil {
			return models.AutomationPlan{}, err
		}
		load = total.DayAhead
	}

	plan := planner.Recommend(date, zone, prices, load, gen)
	a.log.WithComponent("advisor").WithFields(logger.Fields{
		"zone":        zone,
		"date":        date,
		"cheapest":    len(plan.CheapestHoursPositions),
		"recommended": len(plan.RecommendedHoursPositions),
	}).Info("automation plan built")
	return plan, nil
}

// Report computes the live zone report from already normalized prices.
func (a *Advisor) Report(zone string, prices []models.PriceRow, date string) models.ZoneReport {
	return planner.ZoneReport(zone, prices, date, a.Frame(), a.Options(), a.ThresholdPct())
}
