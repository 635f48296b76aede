package metrics

import "entsoeflow/logger"

// NormalizerStats holds counters of the normalizer worker pool.
type NormalizerStats struct {
	DocumentsProcessed int64
	RowsProcessed      int64
	ErrorsCount        int64
	RawChannelLen      int
	RawChannelCap      int
	NormChannelLen     int
	NormChannelCap     int
}

// ReportNormalizer emits the normalizer counters.
func ReportNormalizer(log *logger.Log, stats NormalizerStats) {
	errorRate := float64(0)
	if stats.DocumentsProcessed+stats.ErrorsCount > 0 {
		errorRate = float64(stats.ErrorsCount) / float64(stats.DocumentsProcessed+stats.ErrorsCount)
	}

	avgRows := float64(0)
	if stats.DocumentsProcessed > 0 {
		avgRows = float64(stats.RowsProcessed) / float64(stats.DocumentsProcessed)
	}

	EmitMetric(log, "normalizer", "documents_processed", stats.DocumentsProcessed, "counter", nil)
	EmitMetric(log, "normalizer", "rows_processed", stats.RowsProcessed, "counter", nil)
	EmitMetric(log, "normalizer", "errors_count", stats.ErrorsCount, "counter", nil)
	EmitMetric(log, "normalizer", "error_rate", errorRate, "gauge", nil)

	log.WithComponent("normalizer").WithFields(logger.Fields{
		"documents_processed":   stats.DocumentsProcessed,
		"rows_processed":        stats.RowsProcessed,
		"errors_count":          stats.ErrorsCount,
		"error_rate":            errorRate,
		"avg_rows_per_document": avgRows,
		"raw_channel_len":       stats.RawChannelLen,
		"raw_channel_cap":       stats.RawChannelCap,
		"norm_channel_len":      stats.NormChannelLen,
		"norm_channel_cap":      stats.NormChannelCap,
	}).Info("normalizer metrics")
}
