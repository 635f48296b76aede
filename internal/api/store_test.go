package api

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/sirupsen/logrus"

	"entsoeflow/internal/metrics"
	"entsoeflow/logger"
)

func TestEventStoreLimit(t *testing.T) {
	store := newEventStore(2)
	for i := 0; i < 5; i++ {
		store.handle(metrics.Metric{Timestamp: time.Unix(int64(i), 0), Component: "dispatcher", Name: "report_dropped", Value: i, Zone: "10YNL----------L"})
	}

	snapshot := store.snapshot()
	if len(snapshot) != 2 {
		t.Fatalf("expected 2 events in snapshot, got %d", len(snapshot))
	}
	if snapshot[0].Value != 3 || snapshot[1].Value != 4 || snapshot[1].Zone != "10YNL----------L" {
		t.Fatalf("unexpected events retained: %#v", snapshot)
	}
}

func TestLogStoreCapturesEntries(t *testing.T) {
	store := newLogStore(3)
	entry := logrus.NewEntry(logrus.New())
	entry.Time = time.Unix(10, 0)
	entry.Level = logrus.WarnLevel
	entry.Message = "upstream slow"
	entry.Data = logrus.Fields{"component": "entsoe_client", "zone": "10YNL----------L", "error": errors.New("timeout")}

	if err := store.Fire(entry); err != nil {
		t.Fatalf("store.Fire returned error: %v", err)
	}

	snapshot := store.snapshot()
	if len(snapshot) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(snapshot))
	}
	rec := snapshot[0]
	if rec.Component != "entsoe_client" || rec.Fields["zone"] != "10YNL----------L" || rec.Fields["error"] != "timeout" {
		t.Fatalf("unexpected snapshot data: %#v", rec)
	}
	if _, ok := rec.Fields["component"]; ok {
		t.Fatalf("component must not be repeated in fields")
	}
}

func TestLogStoreSkipsAccessLog(t *testing.T) {
	store := newLogStore(3)
	access := logrus.NewEntry(logrus.New())
	access.Level = logrus.InfoLevel
	access.Data = logrus.Fields{"component": "api"}
	store.Fire(access)

	failed := logrus.NewEntry(logrus.New())
	failed.Level = logrus.ErrorLevel
	failed.Data = logrus.Fields{"component": "api"}
	store.Fire(failed)

	if snapshot := store.snapshot(); len(snapshot) != 1 || snapshot[0].Level != "error" {
		t.Fatalf("unexpected snapshot %#v", snapshot)
	}
}

func TestLogStoreRespectsLimitAndClose(t *testing.T) {
	store := newLogStore(2)
	for i := 0; i < 4; i++ {
		entry := logrus.NewEntry(logrus.New())
		entry.Message = "msg"
		entry.Level = logrus.InfoLevel
		entry.Data = logrus.Fields{"index": i}
		if err := store.Fire(entry); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	snapshot := store.snapshot()
	if len(snapshot) != 2 || snapshot[1].Fields["index"] != 3 {
		t.Fatalf("expected the 2 newest entries, got %#v", snapshot)
	}

	store.close()
	entry := logrus.NewEntry(logrus.New())
	entry.Message = "ignored"
	if err := store.Fire(entry); err != nil {
		t.Fatalf("unexpected error after close: %v", err)
	}
	if len(store.snapshot()) != 2 {
		t.Fatalf("store accepted entries after close")
	}
}

func TestHostSamplerCollectsSamples(t *testing.T) {
	sampler := newHostSampler(3, 10*time.Millisecond, "/data", logger.GetLogger())

	originalCPU := cpuPercentFn
	originalMem := memoryStatsFn
	originalDisk := diskUsageFn
	t.Cleanup(func() {
		cpuPercentFn = originalCPU
		memoryStatsFn = originalMem
		diskUsageFn = originalDisk
	})

	var cpuCalls atomic.Int32
	var diskPath atomic.Value
	cpuPercentFn = func(ctx context.Context, interval time.Duration) ([]float64, error) {
		cpuCalls.Add(1)
		time.Sleep(time.Millisecond)
		return []float64{42.5}, nil
	}
	memoryStatsFn = func(ctx context.Context) (*mem.VirtualMemoryStat, error) {
		return &mem.VirtualMemoryStat{Used: 1024, Total: 2048, UsedPercent: 50}, nil
	}
	diskUsageFn = func(ctx context.Context, path string) (*disk.UsageStat, error) {
		diskPath.Store(path)
		return &disk.UsageStat{Used: 4096, Total: 8192, UsedPercent: 50}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sampler.start(ctx)

	deadline := time.Now().Add(time.Second)
	for len(sampler.snapshot()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("host sampler did not collect samples in time")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	sampler.stop()

	snapshots := sampler.snapshot()
	if len(snapshots) > 3 {
		t.Fatalf("sampler kept %d samples, limit is 3", len(snapshots))
	}
	latest := snapshots[len(snapshots)-1]
	if latest.CPUPercent != 42.5 || latest.MemoryPct != 50 || latest.DiskPct != 50 {
		t.Fatalf("unexpected snapshot data: %#v", latest)
	}
	if cpuCalls.Load() == 0 || diskPath.Load() != "/data" {
		t.Fatalf("collectors not invoked as expected")
	}
}
