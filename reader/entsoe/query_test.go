package entsoe

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	appconfig "entsoeflow/config"
	"entsoeflow/internal/storage"
	"entsoeflow/models"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

func fixedDay() time.Time {
	loc, _ := time.LoadLocation("Europe/Amsterdam")
	return time.Date(2025, 1, 2, 0, 0, 0, 0, loc)
}

func TestQueryParamsAndKeys(t *testing.T) {
	cfg := appconfig.Default().Entsoe
	d := fixedDay()
	cases := []struct {
		q      Query
		key    string
		params map[string]string
	}{
		{
			Query{Dataset: models.DatasetPrices, Zone: testZone, Day: d},
			"A44_10YNL----------L_2025-01-02",
			map[string]string{"documentType": "A44", "in_Domain": testZone, "out_Domain": testZone},
		},
		{
			Query{Dataset: models.DatasetLoadForecast, Zone: testZone, Day: d},
			"A65_DA_10YNL----------L_2025-01-02",
			map[string]string{"documentType": "A65", "processType": "A01", "outBiddingZone_Domain": testZone},
		},
		{
			Query{Dataset: models.DatasetLoadDayAhead, Zone: testZone, Day: d},
			"A65_10YNL----------L_2025-01-02",
			map[string]string{"documentType": "A65", "processType": "A01", "outBiddingZone_Domain": testZone},
		},
		{
			Query{Dataset: models.DatasetLoadActual, Zone: testZone, Day: d},
			"A68_10YNL----------L_2025-01-02",
			map[string]string{"documentType": "A68", "outBiddingZone_Domain": testZone, "in_Domain": "", "processType": ""},
		},
		{
			Query{Dataset: models.DatasetGenerationForecast, Zone: testZone, Day: d},
			"A69_10YNL----------L_2025-01-02_ALL",
			map[string]string{"documentType": "A69", "processType": "A01", "psrType": ""},
		},
		{
			Query{Dataset: models.DatasetGenerationForecast, Zone: testZone, PsrType: "B16", Day: d},
			"A69_10YNL----------L_2025-01-02_B16",
			map[string]string{"psrType": "B16"},
		},
		{
			Query{Dataset: models.DatasetNetPosition, Zone: testZone, Day: d},
			"A75_10YNL----------L_2025-01-02",
			map[string]string{"documentType": "A75", "in_Domain": testZone, "out_Domain": testZone},
		},
		{
			Query{Dataset: models.DatasetScheduledExchanges, Zone: testZone, ToZone: "10YBE----------2", Day: d},
			"A01_10YNL----------L_10YBE----------2_2025-01-02",
			map[string]string{"documentType": "A01", "in_Domain": testZone, "out_Domain": "10YBE----------2"},
		},
	}
	for _, tc := range cases {
		if got := tc.q.CacheKey(); got != tc.key {
			t.Errorf("cache key = %q, want %q", got, tc.key)
		}
		params, err := tc.q.Params(cfg)
		if err != nil {
			t.Fatalf("%s: params: %v", tc.key, err)
		}
		for k, v := range tc.params {
			if params.Get(k) != v {
				t.Errorf("%s: %s = %q, want %q", tc.key, k, params.Get(k), v)
			}
		}
		if params.Get("periodStart") != "202501020000" || params.Get("periodEnd") != "202501022300" {
			t.Errorf("%s: period %s-%s", tc.key, params.Get("periodStart"), params.Get("periodEnd"))
		}
	}
}

func TestA68OptionalParams(t *testing.T) {
	cfg := appconfig.Default().Entsoe
	cfg.A68 = appconfig.A68Config{RequireInDomain: true, RequireProcessType: true, ProcessType: "A16"}
	params, err := Query{Dataset: models.DatasetLoadActual, Zone: testZone, Day: fixedDay()}.Params(cfg)
	if err != nil {
		t.Fatalf("params: %v", err)
	}
	if params.Get("in_Domain") != testZone || params.Get("processType") != "A16" {
		t.Fatalf("unexpected params %v", params)
	}
}

func TestQueryErrors(t *testing.T) {
	cfg := appconfig.Default().Entsoe
	if _, err := (Query{Dataset: "bogus", Zone: testZone, Day: fixedDay()}).Params(cfg); err == nil {
		t.Fatalf("expected unknown dataset error")
	}
	if _, err := (Query{Dataset: models.DatasetScheduledExchanges, Zone: testZone, Day: fixedDay()}).Params(cfg); err == nil {
		t.Fatalf("expected missing destination error")
	}
}

func TestQueryTTL(t *testing.T) {
	ttl := appconfig.Default().Entsoe.TTL
	if got := (Query{Dataset: models.DatasetLoadActual}).TTL(ttl); got != 15*time.Minute {
		t.Fatalf("load actual ttl = %v", got)
	}
	if got := (Query{Dataset: models.DatasetPrices}).TTL(ttl); got != 24*time.Hour {
		t.Fatalf("prices ttl = %v", got)
	}
}

func TestArchivePath(t *testing.T) {
	cases := []struct {
		params url.Values
		want   string
	}{
		{
			url.Values{"documentType": {"A44"}, "in_Domain": {testZone}, "out_Domain": {testZone}, "periodStart": {"202501020000"}},
			"2025/01/A44_10YNL----------L_to_10YNL----------L_2025-01-02.xml",
		},
		{
			url.Values{"documentType": {"A65"}, "outBiddingZone_Domain": {testZone}, "periodStart": {"202503300000"}},
			"2025/03/A65_10YNL----------L_2025-03-30.xml",
		},
		{
			url.Values{"documentType": {"A65"}, "outBiddingZone_Domain": {"a/b c"}},
			"unknown-date/A65_a_b_c_unknown.xml",
		},
		{
			url.Values{"periodStart": {"2025"}},
			"unknown-date/UNK_unknown.xml",
		},
	}
	for _, tc := range cases {
		if got := ArchivePath(tc.params); got != tc.want {
			t.Errorf("ArchivePath(%v) = %q, want %q", tc.params, got, tc.want)
		}
	}
}

func TestFileCacheTTL(t *testing.T) {
	cache, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatalf("cache: %v", err)
	}
	ctx := context.Background()
	if err := cache.Set(ctx, "A44_x", []byte("doc"), time.Hour); err != nil {
		t.Fatalf("set: %v", err)
	}
	if data, ok := cache.Get(ctx, "A44_x", time.Hour); !ok || string(data) != "doc" {
		t.Fatalf("expected hit")
	}

	cache.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, ok := cache.Get(ctx, "A44_x", time.Hour); ok {
		t.Fatalf("stale entry must miss")
	}
	if _, ok := cache.Get(ctx, "missing", time.Hour); ok {
		t.Fatalf("missing entry must miss")
	}
}

func TestNewCacheBackends(t *testing.T) {
	if c, err := NewCache(appconfig.CacheConfig{Backend: "none"}); err != nil {
		t.Fatalf("none backend: %v", err)
	} else if _, ok := c.Get(context.Background(), "k", time.Hour); ok {
		t.Fatalf("nop cache must always miss")
	}
	if _, err := NewCache(appconfig.CacheConfig{Backend: "memcached"}); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
	if c, err := NewCache(appconfig.CacheConfig{Backend: "redis", Redis: appconfig.RedisConfig{Addr: "127.0.0.1:0"}}); err != nil {
		t.Fatalf("redis backend: %v", err)
	} else if _, ok := c.(*RedisCache); !ok {
		t.Fatalf("expected redis cache, got %T", c)
	}
}

func TestFileArchiveWritesBelowRoot(t *testing.T) {
	root := t.TempDir()
	params := url.Values{"documentType": {"A75"}, "in_Domain": {testZone}, "out_Domain": {testZone}, "periodStart": {"202501020000"}}
	if err := NewFileArchive(root).Save(context.Background(), params, []byte("<doc/>")); err != nil {
		t.Fatalf("save: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(root, "2025", "01", "A75_10YNL----------L_to_10YNL----------L_2025-01-02.xml"))
	if err != nil || string(data) != "<doc/>" {
		t.Fatalf("archived file: %q %v", data, err)
	}
}

type fakePutter struct {
	keys []string
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.keys = append(f.keys, *in.Bucket+"/"+*in.Key)
	return &s3.PutObjectOutput{}, nil
}

func TestS3ArchiveMirrorsLayout(t *testing.T) {
	putter := &fakePutter{}
	archive := NewS3Archive(storage.NewBucket(putter, "energy"), "raw")
	params := url.Values{"documentType": {"A44"}, "in_Domain": {testZone}, "out_Domain": {testZone}, "periodStart": {"202501020000"}}
	if err := archive.Save(context.Background(), params, []byte("x")); err != nil {
		t.Fatalf("save: %v", err)
	}
	want := "energy/raw/2025/01/A44_10YNL----------L_to_10YNL----------L_2025-01-02.xml"
	if len(putter.keys) != 1 || putter.keys[0] != want {
		t.Fatalf("keys = %v, want %s", putter.keys, want)
	}
}
