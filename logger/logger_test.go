package logger

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"
	"testing"
)

func TestWithComponent(t *testing.T) {
	log := Logger()
	entry := log.WithComponent("test")
	if v, ok := entry.Entry.Data["component"]; !ok || v != "test" {
		t.Fatalf("component field missing: %v", entry.Entry.Data)
	}
}

func TestConfigureInvalidLevel(t *testing.T) {
	// Ensure environment variables do not override the provided level
	t.Setenv("LOG_LEVEL", "")

	log := Logger()
	if err := log.Configure("invalid", "json", "stdout", 0); err == nil {
		t.Fatalf("expected error for invalid level")
	}
}

func TestWithEnv(t *testing.T) {
	t.Setenv("ENTSOE_ENDPOINT", "https://example.test/api")
	t.Setenv("ENTSOE_API_KEY", "secret")
	t.Setenv("MQTT_PASSWORD", "")
	entry := Logger().WithEnv("ENTSOE_ENDPOINT", "ENTSOE_API_KEY", "MQTT_PASSWORD")
	want := map[string]string{
		"ENTSOE_ENDPOINT": "https://example.test/api",
		"ENTSOE_API_KEY":  "set",
		"MQTT_PASSWORD":   "unset",
	}
	for k, v := range want {
		if entry.Entry.Data[k] != v {
			t.Fatalf("%s = %v, want %s", k, entry.Entry.Data[k], v)
		}
	}
}

func TestWithDataset(t *testing.T) {
	entry := Logger().WithComponent("poller").WithDataset("prices", "10YNL----------L")
	if entry.Entry.Data["dataset"] != "prices" || entry.Entry.Data["zone"] != "10YNL----------L" {
		t.Fatalf("dataset fields missing: %v", entry.Entry.Data)
	}
	if _, ok := Logger().WithDataset("prices", "").Entry.Data["zone"]; ok {
		t.Fatalf("empty zone must be left out")
	}
}

func TestCallerPointsOutsideLogger(t *testing.T) {
	var buf bytes.Buffer
	log := Logger()
	log.SetOutput(&buf)
	LogDataFlowEntry(log.WithComponent("normalizer"), "raw_channel", "norm_channel", "prices", "10YNL----------L", 24)

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	if line["dataset"] != "prices" || line["record_count"] != float64(24) {
		t.Fatalf("unexpected line %v", line)
	}
	if file, _ := line["file"].(string); strings.HasPrefix(file, "logger.go") {
		t.Fatalf("caller should be outside the logger wrappers, got %s", file)
	}
}

func TestCountersFeedReport(t *testing.T) {
	IncrementFetch("prices", 128)
	IncrementCacheHit()
	IncrementCacheMiss()
	IncrementPublish("kafka", 64, nil)

	v, ok := channels.Load("fetch_prices")
	if !ok {
		t.Fatalf("fetch channel stat missing")
	}
	if cs := v.(*channelStat); cs.messages < 1 || cs.bytes < 128 {
		t.Fatalf("unexpected fetch stat: %+v", cs)
	}
	if _, ok := channels.Load("publish_kafka"); !ok {
		t.Fatalf("publish channel stat missing")
	}
}

func TestWarnCountersByComponent(t *testing.T) {
	before := warnsFetch
	log := Logger()
	log.SetOutput(io.Discard)
	log.WithComponent("entsoe_client").Warn("retrying")
	if warnsFetch != before+1 {
		t.Fatalf("warnsFetch = %d, want %d", warnsFetch, before+1)
	}
}

func TestDashboardBody(t *testing.T) {
	body, err := dashboardBody("EntsoeFlow")
	if err != nil {
		t.Fatalf("dashboard body: %v", err)
	}
	var parsed struct {
		Widgets []dashboardWidget `json:"widgets"`
	}
	if err := json.Unmarshal([]byte(body), &parsed); err != nil {
		t.Fatalf("decode dashboard: %v", err)
	}
	if len(parsed.Widgets) != 3 {
		t.Fatalf("expected 3 widgets, got %d", len(parsed.Widgets))
	}
	fetches := parsed.Widgets[1].Properties.Metrics
	if len(fetches) == 0 || fetches[0][0] != "EntsoeFlow" || fetches[0][1] != "EntsoeFlow-Fetches" {
		t.Fatalf("unexpected fetch widget %v", fetches)
	}
}
