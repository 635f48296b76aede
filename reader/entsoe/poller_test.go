package entsoe

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	appconfig "entsoeflow/config"
	"entsoeflow/internal/channel"
	"entsoeflow/models"
)

type fakeFetcher struct {
	mu      sync.Mutex
	queries []Query
	fail    models.Dataset
}

func (f *fakeFetcher) Fetch(_ context.Context, q Query) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	if q.Dataset == f.fail {
		return nil, errors.New("upstream down")
	}
	return []byte(priceXML(10)), nil
}

func pollerConfig() *appconfig.Config {
	cfg := appconfig.Default()
	cfg.Poller.Enabled = true
	cfg.Poller.Zones = []string{testZone, "10YBE----------2"}
	cfg.Poller.Datasets = []string{"prices", "load_actual", "scheduled_exchanges"}
	cfg.Poller.DaysAhead = 1
	cfg.Entsoe.ExchangeTo = "10YBE----------2"
	return cfg
}

func newTestPoller(t *testing.T, cfg *appconfig.Config, f Fetcher, ch *channel.Channels) *Poller {
	t.Helper()
	p, err := NewPoller(cfg, f, ch)
	if err != nil {
		t.Fatalf("new poller: %v", err)
	}
	p.now = func() time.Time { return time.Date(2025, 1, 2, 9, 30, 0, 0, time.UTC) }
	return p
}

func TestPollerQueries(t *testing.T) {
	p := newTestPoller(t, pollerConfig(), &fakeFetcher{}, channel.NewChannels(1, 1))
	qs := p.Queries()

	// today: prices+load+exchange for NL, prices+load for BE; tomorrow drops load_actual
	if len(qs) != 8 {
		t.Fatalf("expected 8 queries, got %d: %+v", len(qs), qs)
	}
	for _, q := range qs {
		if q.Dataset == models.DatasetLoadActual && q.Date() != "2025-01-02" {
			t.Fatalf("actual load requested for a future day: %+v", q)
		}
		if q.Dataset == models.DatasetScheduledExchanges && (q.Zone != testZone || q.ToZone != "10YBE----------2") {
			t.Fatalf("unexpected exchange query %+v", q)
		}
	}
	if qs[0].Day.Location().String() != "Europe/Amsterdam" {
		t.Fatalf("query days must be local, got %v", qs[0].Day.Location())
	}
}

func TestPollOnceSendsDocuments(t *testing.T) {
	cfg := pollerConfig()
	cfg.Poller.Zones = []string{testZone}
	cfg.Poller.DaysAhead = 0
	f := &fakeFetcher{fail: models.DatasetLoadActual}
	ch := channel.NewChannels(8, 8)
	p := newTestPoller(t, cfg, f, ch)

	if sent := p.PollOnce(context.Background()); sent != 2 {
		t.Fatalf("expected 2 documents, got %d", sent)
	}
	first := <-ch.Raw
	if first.Dataset != models.DatasetPrices || first.Zone != testZone || len(first.Data) == 0 {
		t.Fatalf("unexpected document %+v", first)
	}
	second := <-ch.Raw
	if second.Dataset != models.DatasetScheduledExchanges || second.ToZone != "10YBE----------2" {
		t.Fatalf("unexpected document %+v", second)
	}
}

func TestPollerStartStop(t *testing.T) {
	cfg := pollerConfig()
	cfg.Poller.Interval = time.Hour
	f := &fakeFetcher{}
	p := newTestPoller(t, cfg, f, channel.NewChannels(16, 16))

	ctx, cancel := context.WithCancel(context.Background())
	if err := p.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := p.Start(ctx); err == nil {
		t.Fatalf("expected error on second start")
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		f.mu.Lock()
		n := len(f.queries)
		f.mu.Unlock()
		if n > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected an initial poll")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	p.Stop()
}

func TestNewPollerRejectsUnknownDataset(t *testing.T) {
	cfg := pollerConfig()
	cfg.Poller.Datasets = []string{"prices", "weather"}
	if _, err := NewPoller(cfg, &fakeFetcher{}, channel.NewChannels(1, 1)); err == nil {
		t.Fatalf("expected error for unknown dataset")
	}
}
