package channel

import (
	"context"
	"sync"
	"time"

	"entsoeflow/logger"
	"entsoeflow/models"
)

type ChannelStats struct {
	RawSent       int64
	NormSent      int64
	ReportSent    int64
	RawDropped    int64
	NormDropped   int64
	ReportDropped int64
}

// Channels connects the poller, the normalizer and the writers.
type Channels struct {
	Raw    chan models.RawDocument
	Norm   chan models.RowBatch
	Report chan models.ZoneReport

	stats      ChannelStats
	statsMutex sync.RWMutex
	closeOnce  sync.Once
	log        *logger.Log
}

func NewChannels(rawBufferSize, normBufferSize int) *Channels {
	log := logger.GetLogger()
	c := &Channels{
		Raw:    make(chan models.RawDocument, rawBufferSize),
		Norm:   make(chan models.RowBatch, normBufferSize),
		Report: make(chan models.ZoneReport, normBufferSize),
		log:    log,
	}

	log.WithComponent("channels").WithFields(logger.Fields{
		"raw_buffer_size":  rawBufferSize,
		"norm_buffer_size": normBufferSize,
	}).Info("pipeline channels initialized")

	return c
}

func (c *Channels) Close() {
	c.closeOnce.Do(func() {
		close(c.Raw)
		close(c.Norm)
		close(c.Report)
		c.log.WithComponent("channels").Info("pipeline channels closed")
	})
}

func (c *Channels) count(field *int64) {
	c.statsMutex.Lock()
	*field++
	c.statsMutex.Unlock()
}

// SendRaw never blocks; a full buffer drops the document.
func (c *Channels) SendRaw(ctx context.Context, msg models.RawDocument) bool {
	select {
	case c.Raw <- msg:
		c.count(&c.stats.RawSent)
		logger.RecordChannelMessage("raw", len(msg.Data))
		return true
	case <-ctx.Done():
		return false
	default:
		c.count(&c.stats.RawDropped)
		return false
	}
}

func (c *Channels) SendNorm(ctx context.Context, msg models.RowBatch) bool {
	select {
	case c.Norm <- msg:
		c.count(&c.stats.NormSent)
		logger.RecordChannelMessage("norm", msg.RecordCount)
		return true
	case <-ctx.Done():
		return false
	default:
		c.count(&c.stats.NormDropped)
		return false
	}
}

func (c *Channels) SendReport(ctx context.Context, msg models.ZoneReport) bool {
	select {
	case c.Report <- msg:
		c.count(&c.stats.ReportSent)
		logger.RecordChannelMessage("report", len(msg.Report.TimeBlocks))
		return true
	case <-ctx.Done():
		return false
	default:
		c.count(&c.stats.ReportDropped)
		return false
	}
}

func (c *Channels) GetStats() ChannelStats {
	c.statsMutex.RLock()
	defer c.statsMutex.RUnlock()
	return c.stats
}

// StartMetricsReporting logs channel statistics every 30 seconds until ctx
// is done.
func (c *Channels) StartMetricsReporting(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				stats := c.GetStats()
				c.log.WithComponent("channels").WithFields(logger.Fields{
					"raw_sent":       stats.RawSent,
					"raw_dropped":    stats.RawDropped,
					"norm_sent":      stats.NormSent,
					"norm_dropped":   stats.NormDropped,
					"report_sent":    stats.ReportSent,
					"report_dropped": stats.ReportDropped,
					"raw_len":        len(c.Raw),
					"norm_len":       len(c.Norm),
				}).Info("channel stats")
			}
		}
	}()
}
