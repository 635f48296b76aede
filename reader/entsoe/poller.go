package entsoe

import (
	"context"
	"fmt"
	"sync"
	"time"

	appconfig "entsoeflow/config"
	"entsoeflow/internal/channel"
	"entsoeflow/internal/metrics"
	"entsoeflow/logger"
	"entsoeflow/models"
)

// Fetcher returns the raw document for a query.
type Fetcher interface {
	Fetch(ctx context.Context, q Query) ([]byte, error)
}

// Poller fetches the configured datasets for today and the following days
// on an aligned interval and hands the documents to the raw channel.
type Poller struct {
	config   *appconfig.Config
	fetcher  Fetcher
	channels *channel.Channels
	loc      *time.Location
	now      func() time.Time

	ctx     context.Context
	wg      *sync.WaitGroup
	mu      sync.RWMutex
	running bool
	log     *logger.Log
}

func NewPoller(cfg *appconfig.Config, fetcher Fetcher, ch *channel.Channels) (*Poller, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	for _, name := range cfg.Poller.Datasets {
		if !models.Dataset(name).Valid() {
			return nil, fmt.Errorf("poller: unknown dataset %q", name)
		}
	}
	return &Poller{
		config:   cfg,
		fetcher:  fetcher,
		channels: ch,
		loc:      loc,
		now:      time.Now,
		wg:       &sync.WaitGroup{},
		log:      logger.GetLogger(),
	}, nil
}

func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("poller already running")
	}
	p.running = true
	p.ctx = ctx
	p.mu.Unlock()

	interval := p.config.Poller.Interval
	if interval <= 0 {
		interval = 15 * time.Minute
	}

	p.log.WithComponent("poller").WithFields(logger.Fields{
		"zones":      p.config.Poller.Zones,
		"datasets":   p.config.Poller.Datasets,
		"days_ahead": p.config.Poller.DaysAhead,
		"interval":   interval.String(),
	}).Info("starting poller")

	p.wg.Add(1)
	go p.run(interval)
	return nil
}

func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.mu.Unlock()

	p.log.WithComponent("poller").Info("stopping poller")
	p.wg.Wait()
	p.log.WithComponent("poller").Info("poller stopped")
}

func (p *Poller) run(interval time.Duration) {
	defer p.wg.Done()

	p.PollOnce(p.ctx)

	next := time.Now().Truncate(interval).Add(interval)
	timer := time.NewTimer(time.Until(next))
	defer timer.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-timer.C:
			p.PollOnce(p.ctx)
			next = next.Add(interval)
			if now := time.Now(); !next.After(now) {
				next = now.Truncate(interval).Add(interval)
			}
			timer.Reset(time.Until(next))
		}
	}
}

// Queries lists what one poll fetches. Scheduled exchanges go from each
// zone to the configured destination; actual load is skipped for future
// days when configured.
func (p *Poller) Queries() []Query {
	today := DayIn(p.now().In(p.loc), p.loc)
	cfg := p.config

	var out []Query
	for offset := 0; offset <= cfg.Poller.DaysAhead; offset++ {
		day := today.AddDate(0, 0, offset)
		for _, zone := range cfg.Poller.Zones {
			for _, name := range cfg.Poller.Datasets {
				q := Query{Dataset: models.Dataset(name), Zone: zone, Day: day}
				switch q.Dataset {
				case models.DatasetLoadActual:
					if offset > 0 && cfg.Entsoe.SkipA68ForFuture {
						continue
					}
				case models.DatasetScheduledExchanges:
					if cfg.Entsoe.ExchangeTo == "" || cfg.Entsoe.ExchangeTo == zone {
						continue
					}
					q.ToZone = cfg.Entsoe.ExchangeTo
				}
				out = append(out, q)
			}
		}
	}
	return out
}

// PollOnce fetches every query once and returns how many documents were
// handed on.
func (p *Poller) PollOnce(ctx context.Context) int {
	sent := 0
	for _, q := range p.Queries() {
		if ctx.Err() != nil {
			return sent
		}
		log := p.log.WithComponent("poller").WithDataset(string(q.Dataset), q.Zone).WithFields(logger.Fields{
			"date": q.Date(),
		})

		data, err := p.fetcher.Fetch(ctx, q)
		if err != nil {
			log.WithError(err).Warn("fetch failed")
			continue
		}

		if !p.channels.SendRaw(ctx, q.raw(data, p.now())) {
			metrics.EmitDropMetric(p.log, metrics.DropMetricRaw, string(q.Dataset), q.Zone, "poller")
			log.Warn("raw channel is full, document dropped")
			continue
		}
		logger.LogDataFlowEntry(log, "entsoe", "raw_channel", string(q.Dataset), q.Zone, 1)
		sent++
	}
	return sent
}
