package logger

import (
	"context"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	gnet "github.com/shirou/gopsutil/v3/net"

	"github.com/aws/aws-sdk-go-v2/aws"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

type channelStat struct {
	messages int64
	bytes    int64
}

var (
	errorsFetch   int64
	errorsWriter  int64
	warnsFetch    int64
	warnsWriter   int64
	fetches       int64
	cacheHits     int64
	cacheMisses   int64
	publishes     int64
	publishErrors int64
	channels      sync.Map // map[string]*channelStat
)

func recordWarn(component string) {
	if strings.Contains(component, "entsoe") || strings.Contains(component, "poller") {
		atomic.AddInt64(&warnsFetch, 1)
	} else if strings.Contains(component, "writer") || strings.Contains(component, "publisher") {
		atomic.AddInt64(&warnsWriter, 1)
	}
}

func recordError(component string) {
	if strings.Contains(component, "entsoe") || strings.Contains(component, "poller") {
		atomic.AddInt64(&errorsFetch, 1)
	} else if strings.Contains(component, "writer") || strings.Contains(component, "publisher") {
		atomic.AddInt64(&errorsWriter, 1)
	}
}

// IncrementFetch counts one upstream document of size bytes.
func IncrementFetch(dataset string, size int) {
	atomic.AddInt64(&fetches, 1)
	recordChannel("fetch_"+dataset, size)
}

func IncrementCacheHit() {
	atomic.AddInt64(&cacheHits, 1)
}

func IncrementCacheMiss() {
	atomic.AddInt64(&cacheMisses, 1)
}

// IncrementPublish counts one message handed to sink. Failed publishes only
// bump the error counter.
func IncrementPublish(sink string, size int64, err error) {
	if err != nil {
		atomic.AddInt64(&publishErrors, 1)
		return
	}
	atomic.AddInt64(&publishes, 1)
	recordChannel("publish_"+sink, int(size))
}

func RecordChannelMessage(name string, size int) {
	recordChannel(name, size)
}

func recordChannel(name string, size int) {
	v, _ := channels.LoadOrStore(name, &channelStat{})
	cs := v.(*channelStat)
	atomic.AddInt64(&cs.messages, 1)
	atomic.AddInt64(&cs.bytes, int64(size))
}

func startReport(ctx context.Context, log *Log, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-ctx.Done():
				ticker.Stop()
				return
			case <-ticker.C:
				logReport(ctx, log)
			}
		}
	}()
}

// StartReport logs fetch, cache, publish and host statistics every interval
// and mirrors them to CloudWatch when a client is configured.
func StartReport(ctx context.Context, log *Log, interval time.Duration) {
	startReport(ctx, log, interval)
}

func logReport(ctx context.Context, log *Log) {
	cpuPercent, _ := cpu.Percent(0, false)
	memStats, _ := mem.VirtualMemory()
	diskStats, _ := disk.Usage("/")
	netStats, _ := gnet.IOCounters(false)
	channelData := map[string]map[string]int64{}
	channels.Range(func(k, v any) bool {
		name := k.(string)
		cs := v.(*channelStat)
		channelData[name] = map[string]int64{
			"messages": atomic.LoadInt64(&cs.messages),
			"bytes":    atomic.LoadInt64(&cs.bytes),
		}
		return true
	})

	cpuPct := 0.0
	if len(cpuPercent) > 0 {
		cpuPct = cpuPercent[0]
	}

	// gopsutil returns nil stats on unsupported hosts
	var memUsed, diskUsed int64
	if memStats != nil {
		memUsed = int64(memStats.Used)
	}
	if diskStats != nil {
		diskUsed = int64(diskStats.Used)
	}

	bytesSent := uint64(0)
	bytesRecv := uint64(0)
	if len(netStats) > 0 {
		bytesSent = netStats[0].BytesSent
		bytesRecv = netStats[0].BytesRecv
	}

	fields := Fields{
		"errors_fetch":   atomic.LoadInt64(&errorsFetch),
		"errors_writer":  atomic.LoadInt64(&errorsWriter),
		"warns_fetch":    atomic.LoadInt64(&warnsFetch),
		"warns_writer":   atomic.LoadInt64(&warnsWriter),
		"fetches":        atomic.LoadInt64(&fetches),
		"cache_hits":     atomic.LoadInt64(&cacheHits),
		"cache_misses":   atomic.LoadInt64(&cacheMisses),
		"publishes":      atomic.LoadInt64(&publishes),
		"publish_errors": atomic.LoadInt64(&publishErrors),
		"goroutines":     runtime.NumGoroutine(),
		"cpu_percent":    cpuPct,
		"memory_mb":      memUsed / 1024 / 1024,
		"disk_mb":        diskUsed / 1024 / 1024,
		"channels":       channelData,
		"net_bytes_sent": int64(bytesSent),
		"net_bytes_recv": int64(bytesRecv),
	}

	log.WithComponent("report").WithFields(fields).Info("runtime report")

	count := func(name, key string) cwtypes.MetricDatum {
		return cwtypes.MetricDatum{MetricName: aws.String(name), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields[key].(int64)))}
	}

	var data []cwtypes.MetricDatum
	data = append(data,
		cwtypes.MetricDatum{MetricName: aws.String(metricPrefix + "CPUPercent"), Unit: cwtypes.StandardUnitPercent, Value: aws.Float64(cpuPct)},
		cwtypes.MetricDatum{MetricName: aws.String(metricPrefix + "MemoryMB"), Unit: cwtypes.StandardUnitMegabytes, Value: aws.Float64(float64(memUsed) / 1024 / 1024)},
		cwtypes.MetricDatum{MetricName: aws.String(metricPrefix + "DiskMB"), Unit: cwtypes.StandardUnitMegabytes, Value: aws.Float64(float64(diskUsed) / 1024 / 1024)},
		count(metricPrefix+"ErrorsFetch", "errors_fetch"),
		count(metricPrefix+"ErrorsWriter", "errors_writer"),
		count(metricPrefix+"WarnsFetch", "warns_fetch"),
		count(metricPrefix+"WarnsWriter", "warns_writer"),
		count(metricPrefix+"Fetches", "fetches"),
		count(metricPrefix+"CacheHits", "cache_hits"),
		count(metricPrefix+"CacheMisses", "cache_misses"),
		count(metricPrefix+"Publishes", "publishes"),
		count(metricPrefix+"PublishErrors", "publish_errors"),
		cwtypes.MetricDatum{MetricName: aws.String(metricPrefix + "NetBytesSent"), Unit: cwtypes.StandardUnitBytes, Value: aws.Float64(float64(bytesSent))},
		cwtypes.MetricDatum{MetricName: aws.String(metricPrefix + "NetBytesRecv"), Unit: cwtypes.StandardUnitBytes, Value: aws.Float64(float64(bytesRecv))},
	)

	for name, stats := range channelData {
		data = append(data,
			cwtypes.MetricDatum{
				MetricName: aws.String(metricPrefix + "ChannelMessages"),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{{Name: aws.String("Channel"), Value: aws.String(name)}},
				Value:      aws.Float64(float64(stats["messages"])),
			},
			cwtypes.MetricDatum{
				MetricName: aws.String(metricPrefix + "ChannelBytes"),
				Unit:       cwtypes.StandardUnitBytes,
				Dimensions: []cwtypes.Dimension{{Name: aws.String("Channel"), Value: aws.String(name)}},
				Value:      aws.Float64(float64(stats["bytes"])),
			},
		)
	}

	publishMetrics(ctx, data)
}
