package writer

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	appconfig "entsoeflow/config"
	"entsoeflow/internal/channel"
	"entsoeflow/internal/metrics"
	"entsoeflow/logger"
	"entsoeflow/models"
)

// BatchSink stores normalized row batches.
type BatchSink interface {
	Name() string
	WriteBatch(ctx context.Context, batch models.RowBatch) error
}

// ReportSink receives refreshed day reports.
type ReportSink interface {
	PublishReport(ctx context.Context, r models.ZoneReport) error
}

// PlanSink receives automation plans.
type PlanSink interface {
	PublishPlan(ctx context.Context, plan models.AutomationPlan) error
}

// Reporter builds a day report from normalized prices.
type Reporter interface {
	Report(zone string, prices []models.PriceRow, date string) models.ZoneReport
}

// Planner builds the automation plan of a day.
type Planner interface {
	Plan(ctx context.Context, day time.Time, zone string) (models.AutomationPlan, error)
}

type namedReportSink struct {
	name string
	sink ReportSink
}

type namedPlanSink struct {
	name string
	sink PlanSink
}

// Dispatcher drains the normalized channel into the batch sinks, turns
// price batches into day reports and fans reports out to the report sinks.
type Dispatcher struct {
	config   *appconfig.Config
	channels *channel.Channels
	loc      *time.Location

	batchSinks  []BatchSink
	reportSinks []namedReportSink
	planSinks   []namedPlanSink
	reporter    Reporter
	planner     Planner

	ctx     context.Context
	wg      *sync.WaitGroup
	mu      sync.RWMutex
	running bool
	log     *logger.Log

	batchesWritten int64
	rowsWritten    int64
	reportsSent    int64
	errorsCount    int64
}

func NewDispatcher(cfg *appconfig.Config, ch *channel.Channels) (*Dispatcher, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	return &Dispatcher{
		config:   cfg,
		channels: ch,
		loc:      loc,
		wg:       &sync.WaitGroup{},
		log:      logger.GetLogger(),
	}, nil
}

func (d *Dispatcher) AddBatchSink(s BatchSink) {
	d.batchSinks = append(d.batchSinks, s)
}

func (d *Dispatcher) AddReportSink(name string, s ReportSink) {
	d.reportSinks = append(d.reportSinks, namedReportSink{name: name, sink: s})
}

func (d *Dispatcher) AddPlanSink(name string, s PlanSink) {
	d.planSinks = append(d.planSinks, namedPlanSink{name: name, sink: s})
}

// WithReporter enables day reports for price batches.
func (d *Dispatcher) WithReporter(r Reporter) *Dispatcher {
	d.reporter = r
	return d
}

// WithPlanner enables plan publishing for price batches.
func (d *Dispatcher) WithPlanner(p Planner) *Dispatcher {
	d.planner = p
	return d
}

func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return fmt.Errorf("dispatcher already running")
	}
	d.running = true
	d.ctx = ctx
	d.mu.Unlock()

	numWorkers := d.config.Writer.MaxWorkers
	if numWorkers < 1 {
		numWorkers = 1
	}

	names := make([]string, 0, len(d.batchSinks)+len(d.reportSinks))
	for _, s := range d.batchSinks {
		names = append(names, s.Name())
	}
	for _, s := range d.reportSinks {
		names = append(names, s.name)
	}
	d.log.WithComponent("dispatcher").WithFields(logger.Fields{
		"workers": numWorkers,
		"sinks":   names,
	}).Info("starting dispatcher")

	for i := 0; i < numWorkers; i++ {
		d.wg.Add(1)
		go d.batchWorker(i)
	}
	d.wg.Add(1)
	go d.reportWorker()

	go d.metricsReporter(ctx)
	return nil
}

func (d *Dispatcher) Stop() {
	d.mu.Lock()
	d.running = false
	d.mu.Unlock()

	d.log.WithComponent("dispatcher").Info("stopping dispatcher")
	d.wg.Wait()
	d.log.WithComponent("dispatcher").Info("dispatcher stopped")
}

func (d *Dispatcher) batchWorker(workerID int) {
	defer d.wg.Done()
	log := d.log.WithComponent("dispatcher").WithFields(logger.Fields{"worker_id": workerID})

	for {
		select {
		case <-d.ctx.Done():
			log.Debug("worker stopped due to context cancellation")
			return
		case batch, ok := <-d.channels.Norm:
			if !ok {
				log.Debug("norm channel closed, worker stopping")
				return
			}
			d.Dispatch(d.ctx, batch)
		}
	}
}

// Dispatch writes batch to every sink and, for prices, queues a day report
// and publishes the plan.
func (d *Dispatcher) Dispatch(ctx context.Context, batch models.RowBatch) {
	log := d.log.WithComponent("dispatcher").WithDataset(string(batch.Dataset), batch.Zone).WithFields(logger.Fields{
		"batch_id": batch.BatchID,
		"date":     batch.Date,
	})

	for _, s := range d.batchSinks {
		start := time.Now()
		err := s.WriteBatch(ctx, batch)
		metrics.ObservePublish(s.Name(), err)
		logger.IncrementPublish(s.Name(), int64(batch.RecordCount), err)
		if err != nil {
			atomic.AddInt64(&d.errorsCount, 1)
			log.WithError(err).WithFields(logger.Fields{"sink": s.Name()}).Warn("failed to write batch")
			continue
		}
		logger.LogPerformanceEntry(log, s.Name(), "write_batch", time.Since(start), logger.Fields{"records": batch.RecordCount})
	}
	metrics.IncrementBatch(string(batch.Dataset))
	atomic.AddInt64(&d.batchesWritten, 1)
	atomic.AddInt64(&d.rowsWritten, int64(batch.RecordCount))

	if batch.Dataset != models.DatasetPrices || len(batch.Prices) == 0 {
		return
	}

	if d.reporter != nil {
		report := d.reporter.Report(batch.Zone, batch.Prices, batch.Date)
		if !d.channels.SendReport(ctx, report) {
			metrics.EmitDropMetric(d.log, metrics.DropMetricReport, string(batch.Dataset), batch.Zone, "dispatcher")
			log.Warn("report channel is full, report dropped")
		}
	}

	if d.planner != nil && len(d.planSinks) > 0 {
		d.publishPlan(ctx, batch, log)
	}
}

func (d *Dispatcher) publishPlan(ctx context.Context, batch models.RowBatch, log *logger.Entry) {
	day, err := time.ParseInLocation(models.DateLayout, batch.Date, d.loc)
	if err != nil {
		log.WithError(err).Warn("batch date is not a calendar date, plan skipped")
		return
	}
	plan, err := d.planner.Plan(ctx, day, batch.Zone)
	if err != nil {
		atomic.AddInt64(&d.errorsCount, 1)
		log.WithError(err).Warn("failed to build automation plan")
		return
	}
	for _, s := range d.planSinks {
		err := s.sink.PublishPlan(ctx, plan)
		metrics.ObservePublish(s.name, err)
		logger.IncrementPublish(s.name, int64(len(plan.RecommendedHoursPositions)), err)
		if err != nil {
			atomic.AddInt64(&d.errorsCount, 1)
			log.WithError(err).WithFields(logger.Fields{"sink": s.name}).Warn("failed to publish plan")
		}
	}
}

func (d *Dispatcher) reportWorker() {
	defer d.wg.Done()
	log := d.log.WithComponent("dispatcher").WithFields(logger.Fields{"worker": "reports"})

	for {
		select {
		case <-d.ctx.Done():
			return
		case r, ok := <-d.channels.Report:
			if !ok {
				log.Debug("report channel closed, worker stopping")
				return
			}
			d.PublishReport(d.ctx, r)
		}
	}
}

// PublishReport hands r to every report sink.
func (d *Dispatcher) PublishReport(ctx context.Context, r models.ZoneReport) {
	for _, s := range d.reportSinks {
		err := s.sink.PublishReport(ctx, r)
		metrics.ObservePublish(s.name, err)
		logger.IncrementPublish(s.name, int64(len(r.Report.TimeBlocks)), err)
		if err != nil {
			atomic.AddInt64(&d.errorsCount, 1)
			d.log.WithComponent("dispatcher").WithError(err).WithFields(logger.Fields{
				"sink": s.name,
				"zone": r.Zone,
				"date": r.Date,
			}).Warn("failed to publish report")
		}
	}
	atomic.AddInt64(&d.reportsSent, 1)
}

func (d *Dispatcher) metricsReporter(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.ReportWriter(d.log, "dispatcher", d.Stats())
			for _, s := range d.batchSinks {
				if sr, ok := s.(interface{ Stats() metrics.WriterStats }); ok {
					metrics.ReportWriter(d.log, s.Name()+"_writer", sr.Stats())
				}
			}
		}
	}
}

func (d *Dispatcher) Stats() metrics.WriterStats {
	return metrics.WriterStats{
		BatchesWritten: atomic.LoadInt64(&d.batchesWritten),
		RowsWritten:    atomic.LoadInt64(&d.rowsWritten),
		ReportsSent:    atomic.LoadInt64(&d.reportsSent),
		ErrorsCount:    atomic.LoadInt64(&d.errorsCount),
		NormChannelLen: len(d.channels.Norm),
		NormChannelCap: cap(d.channels.Norm),
	}
}
