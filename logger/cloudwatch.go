package logger

import (
	"context"
	"encoding/json"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// metricPrefix namespaces the runtime report metrics inside the dashboard.
const metricPrefix = "EntsoeFlow-"

type cloudWatchSink struct {
	client    *cloudwatch.Client
	namespace string
	dashboard string
}

var cw *cloudWatchSink

// InitCloudWatch enables publishing of the runtime report to CloudWatch
// and creates the service dashboard. An empty region falls back to
// AWS_REGION. Failures leave publishing disabled.
func InitCloudWatch(region, namespace, dashboard string) {
	log := GetLogger().WithComponent("cloudwatch")
	if region == "" {
		region = os.Getenv("AWS_REGION")
	}

	ctx := context.Background()
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		log.WithError(err).Warn("failed to load AWS configuration; CloudWatch metrics disabled")
		return
	}

	sink := &cloudWatchSink{client: cloudwatch.NewFromConfig(awsCfg), namespace: "EntsoeFlow", dashboard: "EntsoeFlow"}
	if namespace != "" {
		sink.namespace = namespace
	}
	if dashboard != "" {
		sink.dashboard = dashboard
	}
	cw = sink

	log.WithFields(Fields{"region": region, "namespace": sink.namespace}).Info("initialized CloudWatch client")
	sink.putDashboard(ctx)
}

// publishMetrics sends data when CloudWatch is enabled.
func publishMetrics(ctx context.Context, data []cwtypes.MetricDatum) {
	if cw == nil || len(data) == 0 {
		return
	}
	log := GetLogger().WithComponent("cloudwatch")
	// PutMetricData accepts at most 1000 datums per call.
	for start := 0; start < len(data); start += 1000 {
		end := start + 1000
		if end > len(data) {
			end = len(data)
		}
		if _, err := cw.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
			Namespace:  aws.String(cw.namespace),
			MetricData: data[start:end],
		}); err != nil {
			log.WithError(err).Warn("failed to publish CloudWatch metrics")
			return
		}
	}
	log.WithField("metrics", len(data)).Debug("published metrics to CloudWatch")
}

type dashboardWidget struct {
	Type       string           `json:"type"`
	Width      int              `json:"width"`
	Height     int              `json:"height"`
	Properties widgetProperties `json:"properties"`
}

type widgetProperties struct {
	Metrics [][]string `json:"metrics"`
	Period  int        `json:"period"`
	Stat    string     `json:"stat"`
	Title   string     `json:"title"`
}

// dashboardBody lays out one row for host usage, one for upstream fetches
// and one for the outputs.
func dashboardBody(namespace string) (string, error) {
	row := func(title, stat string, period int, names ...string) dashboardWidget {
		w := dashboardWidget{Type: "metric", Width: 24, Height: 6,
			Properties: widgetProperties{Period: period, Stat: stat, Title: title}}
		for _, n := range names {
			w.Properties.Metrics = append(w.Properties.Metrics, []string{namespace, metricPrefix + n})
		}
		return w
	}
	body, err := json.Marshal(map[string][]dashboardWidget{"widgets": {
		row("EntsoeFlow host", "Average", 60, "CPUPercent", "MemoryMB", "DiskMB"),
		row("ENTSO-E requests", "Sum", 300, "Fetches", "CacheHits", "CacheMisses", "ErrorsFetch", "WarnsFetch"),
		row("Outputs", "Sum", 300, "Publishes", "PublishErrors", "ErrorsWriter"),
	}})
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (s *cloudWatchSink) putDashboard(ctx context.Context) {
	log := GetLogger().WithComponent("cloudwatch")
	body, err := dashboardBody(s.namespace)
	if err != nil {
		log.WithError(err).Warn("failed to build CloudWatch dashboard")
		return
	}
	if _, err := s.client.PutDashboard(ctx, &cloudwatch.PutDashboardInput{
		DashboardName: aws.String(s.dashboard),
		DashboardBody: aws.String(body),
	}); err != nil {
		log.WithError(err).WithFields(Fields{"dashboard": s.dashboard}).Warn("failed to create CloudWatch dashboard")
	}
}
