package metrics

import "entsoeflow/logger"

// ReportRateLimited records an upstream 429 for dataset and zone.
func ReportRateLimited(log *logger.Log, dataset, zone string, attempt int) {
	EmitMetric(log, "entsoe_client", "rate_limit_exceeded", int64(1), "counter", logger.Fields{"dataset": dataset, "zone": zone})
	log.WithComponent("entsoe_client").WithDataset(dataset, zone).WithFields(logger.Fields{"attempt": attempt}).Warn("rate limited by ENTSO-E")
}

// ReportRejected records a 401 or 403 from upstream; these are not retried
// and usually mean the security token is wrong or lacks access.
func ReportRejected(log *logger.Log, dataset string, status int) {
	EmitMetric(log, "entsoe_client", "request_rejected", int64(1), "counter", logger.Fields{"dataset": dataset})
	log.WithComponent("entsoe_client").WithDataset(dataset, "").WithFields(logger.Fields{
		"http_status": status,
	}).Error("ENTSO-E rejected the request")
}
