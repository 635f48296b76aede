package metrics

import "entsoeflow/logger"

// DropMetric identifies the metric name emitted when channel messages are dropped.
type DropMetric string

const (
	// DropMetricRaw records upstream documents dropped before normalisation.
	DropMetricRaw DropMetric = "raw_documents_dropped"
	// DropMetricNorm records row batches dropped before the writers.
	DropMetricNorm DropMetric = "row_batches_dropped"
	// DropMetricReport records day reports dropped before the publishers.
	DropMetricReport DropMetric = "reports_dropped"
)

// EmitDropMetric emits one dropped message. Dataset, zone and stage are
// attached when provided.
func EmitDropMetric(log *logger.Log, metric DropMetric, dataset, zone, stage string) {
	fields := logger.Fields{}
	if dataset != "" {
		fields["dataset"] = dataset
	}
	if zone != "" {
		fields["zone"] = zone
	}
	if stage != "" {
		fields["stage"] = stage
	}

	EmitMetric(log, "channel_drops", string(metric), 1, "counter", fields)
}
