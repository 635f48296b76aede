package metrics

import (
	"context"
	"time"

	"entsoeflow/internal/channel"
	"entsoeflow/logger"
)

// StartChannelSizeMetrics emits occupancy gauges for the pipeline buffers
// every interval until ctx is cancelled. A non-positive interval means one
// second.
func StartChannelSizeMetrics(ctx context.Context, channels *channel.Channels, interval time.Duration) {
	if channels == nil {
		return
	}
	if interval <= 0 {
		interval = time.Second
	}

	log := logger.GetLogger()
	ticker := time.NewTicker(interval)
	component := "channel_buffers"

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				EmitMetric(log, component, "raw_buffer_length", len(channels.Raw), "gauge", logger.Fields{
					"buffer":   "raw",
					"capacity": cap(channels.Raw),
				})
				EmitMetric(log, component, "norm_buffer_length", len(channels.Norm), "gauge", logger.Fields{
					"buffer":   "norm",
					"capacity": cap(channels.Norm),
				})
				EmitMetric(log, component, "report_buffer_length", len(channels.Report), "gauge", logger.Fields{
					"buffer":   "report",
					"capacity": cap(channels.Report),
				})
			}
		}
	}()
}
