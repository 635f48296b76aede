package processor

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

// Normalizer turns raw upstream documents into row batches with a pool of
// workers.
type Normalizer struct {
	config   *appconfig.Config
	channels *channel.Channels
	loc      *time.Location
	policy   Policy
	ctx      context.Context
	wg       *sync.WaitGroup
	mu       sync.RWMutex
	running  bool
	log      *logger.Log

	documentsProcessed int64
	rowsProcessed      int64
	errorsCount        int64
}

func NewNormalizer(cfg *appconfig.Config, ch *channel.Channels) (*Normalizer, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	policy, err := ParsePolicy(cfg.Planner.DedupPolicy)
	if err != nil {
		return nil, err
	}
	return &Normalizer{
		config:   cfg,
		channels: ch,
		loc:      loc,
		policy:   policy,
		wg:       &sync.WaitGroup{},
		log:      logger.GetLogger(),
	}, nil
}

func (n *Normalizer) Start(ctx context.Context) error {
	n.mu.Lock()
	if n.running {
		n.mu.Unlock()
		return fmt.Errorf("normalizer already running")
	}
	n.running = true
	n.ctx = ctx
	n.mu.Unlock()

	numWorkers := n.config.Processor.MaxWorkers
	if numWorkers < 1 {
		numWorkers = 1
	}

	n.log.WithComponent("normalizer").WithFields(logger.Fields{
		"workers":      numWorkers,
		"dedup_policy": string(n.policy),
		"time_zone":    n.loc.String(),
	}).Info("starting normalizer")

	for i := 0; i < numWorkers; i++ {
		n.wg.Add(1)
		go n.worker(i)
	}

	go n.metricsReporter(ctx)
	return nil
}

func (n *Normalizer) Stop() {
	n.mu.Lock()
	n.running = false
	n.mu.Unlock()

	n.log.WithComponent("normalizer").Info("stopping normalizer")
	n.wg.Wait()
	n.log.WithComponent("normalizer").Info("normalizer stopped")
}

func (n *Normalizer) worker(workerID int) {
	defer n.wg.Done()

	log := n.log.WithComponent("normalizer").WithFields(logger.Fields{"worker_id": workerID})

	for {
		select {
		case <-n.ctx.Done():
			log.Debug("worker stopped due to context cancellation")
			return
		case raw, ok := <-n.channels.Raw:
			if !ok {
				log.Debug("raw channel closed, worker stopping")
				return
			}

			start := time.Now()
			rows := n.process(raw)
			logger.LogPerformanceEntry(log, "normalizer", "process_document", time.Since(start), logger.Fields{
				"worker_id": workerID,
				"dataset":   string(raw.Dataset),
				"zone":      raw.Zone,
				"rows":      rows,
			})
		}
	}
}

func (n *Normalizer) process(raw models.RawDocument) int {
	log := n.log.WithComponent("normalizer").WithDataset(string(raw.Dataset), raw.Zone).WithFields(logger.Fields{
		"date":      raw.Day.Format(models.DateLayout),
		"operation": "process_document",
	})

	batch, err := Normalize(raw, n.loc, n.policy)
	if err != nil {
		atomic.AddInt64(&n.errorsCount, 1)
		log.WithError(err).Warn("failed to normalize document")
		return 0
	}

	atomic.AddInt64(&n.documentsProcessed, 1)
	atomic.AddInt64(&n.rowsProcessed, int64(batch.RecordCount))

	if !n.channels.SendNorm(n.ctx, batch) {
		metrics.EmitDropMetric(n.log, metrics.DropMetricNorm, string(raw.Dataset), raw.Zone, "normalizer")
		log.Warn("normalized channel is full, batch dropped")
		return batch.RecordCount
	}

	logger.LogDataFlowEntry(log.WithFields(logger.Fields{"batch_id": batch.BatchID}), "raw_channel", "norm_channel",
		string(batch.Dataset), batch.Zone, batch.RecordCount)
	return batch.RecordCount
}

func (n *Normalizer) metricsReporter(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.ReportNormalizer(n.log, n.Stats())
		}
	}
}

// Stats snapshots the normalizer counters.
func (n *Normalizer) Stats() metrics.NormalizerStats {
	return metrics.NormalizerStats{
		DocumentsProcessed: atomic.LoadInt64(&n.documentsProcessed),
		RowsProcessed:      atomic.LoadInt64(&n.rowsProcessed),
		ErrorsCount:        atomic.LoadInt64(&n.errorsCount),
		RawChannelLen:      len(n.channels.Raw),
		RawChannelCap:      cap(n.channels.Raw),
		NormChannelLen:     len(n.channels.Norm),
		NormChannelCap:     cap(n.channels.Norm),
	}
}
