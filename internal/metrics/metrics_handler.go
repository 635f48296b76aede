package metrics

import (
	"sync"
	"time"

	"entsoeflow/logger"
)

// Metric is one pipeline event such as a drop, a rate limit or a periodic
// stats sample. Dataset and Zone are lifted out of the fields when the
// emitter supplied them.
type Metric struct {
	Timestamp time.Time
	Component string
	Name      string
	Value     interface{}
	Type      string
	Dataset   string
	Zone      string
	Fields    logger.Fields
}

// MetricHandler receives every emitted metric. Handlers run synchronously
// on the emitting goroutine and must not block.
type MetricHandler func(Metric)

type MetricHandlerID uint64

type handlerEntry struct {
	id MetricHandlerID
	fn MetricHandler
}

var (
	handlersMu sync.RWMutex
	handlers   []handlerEntry
	lastID     MetricHandlerID
)

// RegisterMetricHandler subscribes handler; a nil handler yields 0.
func RegisterMetricHandler(handler MetricHandler) MetricHandlerID {
	if handler == nil {
		return 0
	}
	handlersMu.Lock()
	defer handlersMu.Unlock()
	lastID++
	handlers = append(handlers, handlerEntry{id: lastID, fn: handler})
	return lastID
}

func UnregisterMetricHandler(id MetricHandlerID) {
	handlersMu.Lock()
	defer handlersMu.Unlock()
	for i, h := range handlers {
		if h.id == id {
			handlers = append(handlers[:i:i], handlers[i+1:]...)
			return
		}
	}
}

// EmitMetric logs the metric and forwards it to the registered handlers.
// Numeric values also update the component gauge, and counters bump the
// per-dataset event counter.
func EmitMetric(log *logger.Log, component string, name string, value interface{}, metricType string, fields logger.Fields) {
	if name == "" {
		return
	}
	if metricType == "" {
		metricType = "counter"
	}
	if log == nil {
		log = logger.GetLogger()
	}

	event := Metric{
		Timestamp: time.Now(),
		Component: component,
		Name:      name,
		Value:     value,
		Type:      metricType,
		Fields:    logger.Fields{},
	}
	for k, v := range fields {
		switch s, _ := v.(string); k {
		case "dataset":
			event.Dataset = s
		case "zone":
			event.Zone = s
		default:
			event.Fields[k] = v
		}
	}

	entry := log.WithComponent(component).WithDataset(event.Dataset, event.Zone).WithFields(event.Fields)
	entry.WithFields(logger.Fields{"metric": name, "metric_type": metricType, "value": value}).Info("metric")

	if v, ok := toFloat64(value); ok {
		observeEvent(event, v)
	}

	handlersMu.RLock()
	subscribed := make([]MetricHandler, len(handlers))
	for i, h := range handlers {
		subscribed[i] = h.fn
	}
	handlersMu.RUnlock()
	for _, fn := range subscribed {
		fn(event)
	}
}

func toFloat64(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	}
	return 0, false
}
