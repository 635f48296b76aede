package metrics

import "entsoeflow/logger"

// WriterStats is a snapshot of one output stage. Counters a stage does not
// track stay zero and are not emitted.
type WriterStats struct {
	BatchesWritten int64
	RowsWritten    int64
	FilesWritten   int64
	BytesWritten   int64
	ReportsSent    int64
	ErrorsCount    int64
	NormChannelLen int
	NormChannelCap int
}

func (s WriterStats) errorRate() float64 {
	attempts := s.BatchesWritten + s.ReportsSent + s.ErrorsCount
	if attempts == 0 {
		return 0
	}
	return float64(s.ErrorsCount) / float64(attempts)
}

// ReportWriter emits the stats of component and logs a summary line, at warn
// level once any write has failed.
func ReportWriter(log *logger.Log, component string, stats WriterStats) {
	counters := []struct {
		name  string
		value int64
	}{
		{"batches_written", stats.BatchesWritten},
		{"rows_written", stats.RowsWritten},
		{"files_written", stats.FilesWritten},
		{"bytes_written", stats.BytesWritten},
		{"reports_sent", stats.ReportsSent},
		{"errors_count", stats.ErrorsCount},
	}
	fields := logger.Fields{"error_rate": stats.errorRate()}
	for _, c := range counters {
		if c.value == 0 && c.name != "errors_count" {
			continue
		}
		EmitMetric(log, component, c.name, c.value, "counter", nil)
		fields[c.name] = c.value
	}
	EmitMetric(log, component, "error_rate", stats.errorRate(), "gauge", nil)

	if stats.NormChannelCap > 0 {
		fields["norm_channel_len"] = stats.NormChannelLen
		fields["norm_channel_cap"] = stats.NormChannelCap
	}
	if stats.FilesWritten > 0 {
		fields["avg_bytes_per_file"] = float64(stats.BytesWritten) / float64(stats.FilesWritten)
	}

	entry := log.WithComponent(component).WithFields(fields)
	if stats.ErrorsCount > 0 {
		entry.Warn("output stats")
		return
	}
	entry.Info("output stats")
}
