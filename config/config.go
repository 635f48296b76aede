package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

// Well-known bidding zones.
const (
	ZoneNL = "10YNL----------L"
	ZoneBE = "10YBE----------2"
	ZoneDE = "10Y1001A1001A83F"
)

const (
	defaultConfigPath = "config/config.yml"
	DefaultEndpoint   = "https://web-api.tp.entsoe.eu/api"
)

type Config struct {
	App       AppConfig       `yaml:"app"`
	Entsoe    EntsoeConfig    `yaml:"entsoe"`
	Cache     CacheConfig     `yaml:"cache"`
	Archive   ArchiveConfig   `yaml:"archive"`
	Planner   PlannerConfig   `yaml:"planner"`
	Server    ServerConfig    `yaml:"server"`
	Channels  ChannelsConfig  `yaml:"channels"`
	Poller    PollerConfig    `yaml:"poller"`
	Processor ProcessorConfig `yaml:"processor"`
	Writer    WriterConfig    `yaml:"writer"`
	Storage   StorageConfig   `yaml:"storage"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type AppConfig struct {
	Name     string `yaml:"name"`
	Version  string `yaml:"version"`
	TimeZone string `yaml:"time_zone"`
	Zone     string `yaml:"zone"`
}

type EntsoeConfig struct {
	Endpoint         string               `yaml:"endpoint"`
	APIKey           string               `yaml:"api_key"`
	UserAgent        string               `yaml:"user_agent"`
	Timeout          time.Duration        `yaml:"timeout"`
	Retry            RetryConfig          `yaml:"retry"`
	RateLimit        RateLimitConfig      `yaml:"rate_limit"`
	ConnectionPool   ConnectionPoolConfig `yaml:"connection_pool"`
	TTL              TTLConfig            `yaml:"ttl"`
	A68              A68Config            `yaml:"a68"`
	SkipA68ForFuture bool                 `yaml:"skip_a68_for_future"`
	ExchangeFrom     string               `yaml:"exchange_from"`
	ExchangeTo       string               `yaml:"exchange_to"`
}

type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BackoffBase float64       `yaml:"backoff_base"`
	MaxDelay    time.Duration `yaml:"max_delay"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size"`
}

type ConnectionPoolConfig struct {
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	MaxConnsPerHost int           `yaml:"max_conns_per_host"`
	IdleConnTimeout time.Duration `yaml:"idle_conn_timeout"`
}

// TTLConfig holds the cache lifetime of every dataset.
type TTLConfig struct {
	Prices       time.Duration `yaml:"prices"`
	LoadDayAhead time.Duration `yaml:"load_day_ahead"`
	LoadActual   time.Duration `yaml:"load_actual"`
	Generation   time.Duration `yaml:"generation"`
	NetPosition  time.Duration `yaml:"net_position"`
	Exchanges    time.Duration `yaml:"exchanges"`
}

type A68Config struct {
	RequireInDomain    bool   `yaml:"require_in_domain"`
	RequireProcessType bool   `yaml:"require_process_type"`
	ProcessType        string `yaml:"process_type"`
}

type CacheConfig struct {
	Backend string      `yaml:"backend"` // file, redis or none
	Dir     string      `yaml:"dir"`
	Redis   RedisConfig `yaml:"redis"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

type ArchiveConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Root     string `yaml:"root"`
	S3       bool   `yaml:"s3"`
	S3Prefix string `yaml:"s3_prefix"`
}

type PlannerConfig struct {
	DedupPolicy       string  `yaml:"dedup_policy"`
	MaxBlocks         int     `yaml:"max_blocks"`
	MaxTimeGapMinutes float64 `yaml:"max_time_gap_minutes"`
	MaxPriceGapCt     float64 `yaml:"max_price_gap_ct"`
	PriceThresholdPct float64 `yaml:"price_threshold_pct"`
}

type ServerConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	History         int           `yaml:"history"`
	SampleInterval  time.Duration `yaml:"sample_interval"`
}

type ChannelsConfig struct {
	RawBuffer       int `yaml:"raw_buffer"`
	ProcessedBuffer int `yaml:"processed_buffer"`
}

type PollerConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Interval  time.Duration `yaml:"interval"`
	Zones     []string      `yaml:"zones"`
	Datasets  []string      `yaml:"datasets"`
	DaysAhead int           `yaml:"days_ahead"`
}

type ProcessorConfig struct {
	MaxWorkers int `yaml:"max_workers"`
}

type WriterConfig struct {
	MaxWorkers int           `yaml:"max_workers"`
	Parquet    ParquetConfig `yaml:"parquet"`
	Kafka      KafkaConfig   `yaml:"kafka"`
	MQTT       MQTTConfig    `yaml:"mqtt"`
}

type ParquetConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Prefix      string `yaml:"prefix"`
	Compression string `yaml:"compression"`
	PageSize    int64  `yaml:"page_size"`
	MetadataDir string `yaml:"metadata_dir"`
}

type KafkaConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Brokers      []string      `yaml:"brokers"`
	RowsTopic    string        `yaml:"rows_topic"`
	ReportsTopic string        `yaml:"reports_topic"`
	BatchTimeout time.Duration `yaml:"batch_timeout"`
}

type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         byte   `yaml:"qos"`
	Retained    bool   `yaml:"retained"`
}

type StorageConfig struct {
	S3 S3Config `yaml:"s3"`
}

type S3Config struct {
	Enabled         bool   `yaml:"enabled"`
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	PathStyle       bool   `yaml:"path_style"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

type LoggingConfig struct {
	Level          string           `yaml:"level"`
	Format         string           `yaml:"format"`
	Output         string           `yaml:"output"`
	MaxAge         int              `yaml:"max_age"`
	ReportInterval time.Duration    `yaml:"report_interval"`
	CloudWatch     CloudWatchConfig `yaml:"cloudwatch"`
}

type CloudWatchConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Region    string `yaml:"region"`
	Namespace string `yaml:"namespace"`
	Dashboard string `yaml:"dashboard"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		App: AppConfig{
			Name:     "entsoeflow",
			Version:  "1.0.0",
			TimeZone: "Europe/Amsterdam",
			Zone:     ZoneNL,
		},
		Entsoe: EntsoeConfig{
			Endpoint:  DefaultEndpoint,
			UserAgent: "entsoeflow/1.0",
			Timeout:   45 * time.Second,
			Retry: RetryConfig{
				MaxAttempts: 4,
				BackoffBase: 1.7,
				MaxDelay:    30 * time.Second,
			},
			RateLimit: RateLimitConfig{RequestsPerSecond: 5, BurstSize: 5},
			ConnectionPool: ConnectionPoolConfig{
				MaxIdleConns:    10,
				MaxConnsPerHost: 4,
				IdleConnTimeout: 90 * time.Second,
			},
			TTL: TTLConfig{
				Prices:       24 * time.Hour,
				LoadDayAhead: 24 * time.Hour,
				LoadActual:   15 * time.Minute,
				Generation:   3 * time.Hour,
				NetPosition:  time.Hour,
				Exchanges:    3 * time.Hour,
			},
			A68:              A68Config{ProcessType: "A16"},
			SkipA68ForFuture: true,
			ExchangeTo:       ZoneBE,
		},
		Cache:   CacheConfig{Backend: "file", Dir: "./cache", Redis: RedisConfig{Prefix: "entsoe:"}},
		Archive: ArchiveConfig{Enabled: true, Root: "./data", S3Prefix: "raw"},
		Planner: PlannerConfig{
			DedupPolicy:       "last",
			MaxBlocks:         6,
			MaxTimeGapMinutes: 60,
			MaxPriceGapCt:     1.5,
			PriceThresholdPct: 50,
		},
		Server: ServerConfig{
			Enabled:         true,
			Host:            "0.0.0.0",
			Port:            8000,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			History:         200,
			SampleInterval:  5 * time.Second,
		},
		Channels: ChannelsConfig{RawBuffer: 64, ProcessedBuffer: 64},
		Poller: PollerConfig{
			Interval:  15 * time.Minute,
			Zones:     []string{ZoneNL},
			Datasets:  []string{"prices"},
			DaysAhead: 1,
		},
		Processor: ProcessorConfig{MaxWorkers: 2},
		Writer: WriterConfig{
			MaxWorkers: 2,
			Parquet:    ParquetConfig{Prefix: "entsoe", Compression: "snappy", PageSize: 8 * 1024, MetadataDir: "./data/tables"},
			Kafka:      KafkaConfig{RowsTopic: "entsoe.rows", ReportsTopic: "entsoe.reports", BatchTimeout: time.Second},
			MQTT:       MQTTConfig{ClientID: "entsoeflow", TopicPrefix: "entsoe", QoS: 1, Retained: true},
		},
		Logging: LoggingConfig{
			Level:          "info",
			Format:         "json",
			Output:         "stdout",
			ReportInterval: time.Minute,
			CloudWatch:     CloudWatchConfig{Namespace: "EntsoeFlow", Dashboard: "EntsoeFlow"},
		},
	}
}

// ConfigPath resolves the configuration file for the current APP_ENV. An
// explicit path other than the default always wins.
func ConfigPath(path string) string {
	if path == "" {
		path = defaultConfigPath
	}
	if envPath := CurrentEnvironment().configFile(); envPath != "" && path == defaultConfigPath {
		return envPath
	}
	return path
}

// LoadConfig reads path on top of Default, applies environment overrides
// and validates the result. An empty path skips the file.
func LoadConfig(path string) (*Config, error) {
	config := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(config)
	config.Storage.S3.Bucket = strings.TrimSpace(config.Storage.S3.Bucket)

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return config, nil
}

// Location loads the configured IANA zone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.App.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("load time zone %q: %w", c.App.TimeZone, err)
	}
	return loc, nil
}

func envString(name string, dst *string) {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		*dst = v
	}
}

func envInt(name string, dst *int) {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envFloat(name string, dst *float64) {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

// envBool treats 1, true, yes and on as true and any other set value as false.
func envBool(name string, dst *bool) {
	if v, ok := os.LookupEnv(name); ok {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "on":
			*dst = true
		default:
			*dst = false
		}
	}
}

// envSeconds reads a whole or fractional number of seconds.
func envSeconds(name string, dst *time.Duration) {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			*dst = time.Duration(f * float64(time.Second))
		}
	}
}

func envList(name string, dst *[]string) {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	*dst = out
}

func applyEnvOverrides(c *Config) {
	envString("ENTSOE_API_KEY", &c.Entsoe.APIKey)
	envString("ENTSOE_ENDPOINT", &c.Entsoe.Endpoint)
	envString("ZONE_EIC", &c.App.Zone)
	envString("TIME_ZONE", &c.App.TimeZone)

	envInt("MAX_RETRIES", &c.Entsoe.Retry.MaxAttempts)
	envFloat("BACKOFF_BASE", &c.Entsoe.Retry.BackoffBase)
	envSeconds("BACKOFF_CAP_SECONDS", &c.Entsoe.Retry.MaxDelay)
	envSeconds("HTTP_READ_TIMEOUT", &c.Entsoe.Timeout)

	envString("CACHE_DIR", &c.Cache.Dir)
	envString("CACHE_BACKEND", &c.Cache.Backend)
	if v := strings.TrimSpace(os.Getenv("REDIS_ADDR")); v != "" {
		c.Cache.Redis.Addr = v
		c.Cache.Backend = "redis"
	}
	envString("REDIS_PASSWORD", &c.Cache.Redis.Password)

	envString("DATA_ROOT", &c.Archive.Root)
	if v, ok := os.LookupEnv("SAVE_RAW"); ok {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "0", "false", "no", "":
			c.Archive.Enabled = false
		default:
			c.Archive.Enabled = true
		}
	}

	envSeconds("TTL_PRICES", &c.Entsoe.TTL.Prices)
	envSeconds("TTL_LOAD_DA", &c.Entsoe.TTL.LoadDayAhead)
	envSeconds("TTL_LOAD_ACT", &c.Entsoe.TTL.LoadActual)
	envSeconds("TTL_GEN", &c.Entsoe.TTL.Generation)
	envSeconds("TTL_NETPOS", &c.Entsoe.TTL.NetPosition)
	envSeconds("TTL_EXCH", &c.Entsoe.TTL.Exchanges)

	envBool("SKIP_A68_FOR_FUTURE", &c.Entsoe.SkipA68ForFuture)
	envBool("REQUIRE_IN_DOMAIN_A68", &c.Entsoe.A68.RequireInDomain)
	envBool("A68_REQUIRE_PROCESS_TYPE", &c.Entsoe.A68.RequireProcessType)
	envString("A68_PROCESS_TYPE", &c.Entsoe.A68.ProcessType)

	envString("EXCH_FROM_EIC", &c.Entsoe.ExchangeFrom)
	envString("EXCH_TO_EIC", &c.Entsoe.ExchangeTo)
	if c.Entsoe.ExchangeFrom == "" {
		c.Entsoe.ExchangeFrom = c.App.Zone
	}

	envString("HOST", &c.Server.Host)
	envInt("PORT", &c.Server.Port)
	envString("LOG_LEVEL", &c.Logging.Level)

	envList("KAFKA_BROKERS", &c.Writer.Kafka.Brokers)
	if len(c.Writer.Kafka.Brokers) > 0 && os.Getenv("KAFKA_BROKERS") != "" {
		c.Writer.Kafka.Enabled = true
	}
	if v := strings.TrimSpace(os.Getenv("MQTT_BROKER")); v != "" {
		c.Writer.MQTT.Broker = v
		c.Writer.MQTT.Enabled = true
	}
	envString("MQTT_USERNAME", &c.Writer.MQTT.Username)
	envString("MQTT_PASSWORD", &c.Writer.MQTT.Password)

	if c.Storage.S3.Enabled || c.Archive.S3 || c.Writer.Parquet.Enabled {
		envString("AWS_ACCESS_KEY_ID", &c.Storage.S3.AccessKeyID)
		envString("AWS_SECRET_ACCESS_KEY", &c.Storage.S3.SecretAccessKey)
		envString("AWS_REGION", &c.Storage.S3.Region)
		envString("S3_BUCKET", &c.Storage.S3.Bucket)
	}
}

var zoneRegexp = regexp.MustCompile(`^[0-9]{2}.{14}$`)

// ValidZone reports whether zone looks like an EIC bidding zone code.
func ValidZone(zone string) bool {
	return zoneRegexp.MatchString(zone)
}

func validateConfig(cfg *Config) error {
	if cfg.App.Name == "" {
		return fmt.Errorf("app.name is required")
	}
	if cfg.App.Version == "" {
		return fmt.Errorf("app.version is required")
	}
	if _, err := time.LoadLocation(cfg.App.TimeZone); err != nil {
		return fmt.Errorf("app.time_zone '%s' is invalid", cfg.App.TimeZone)
	}
	if !ValidZone(cfg.App.Zone) {
		return fmt.Errorf("app.zone '%s' is invalid", cfg.App.Zone)
	}

	if cfg.Entsoe.Endpoint == "" {
		return fmt.Errorf("entsoe.endpoint is required")
	}
	if cfg.Entsoe.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("entsoe.retry.max_attempts must be greater than 0")
	}
	if cfg.Entsoe.Timeout <= 0 {
		return fmt.Errorf("entsoe.timeout must be greater than 0")
	}

	switch cfg.Cache.Backend {
	case "file":
		if cfg.Cache.Dir == "" {
			return fmt.Errorf("cache.dir is required for the file backend")
		}
	case "redis":
		if cfg.Cache.Redis.Addr == "" {
			return fmt.Errorf("cache.redis.addr is required for the redis backend")
		}
	case "none", "":
	default:
		return fmt.Errorf("cache.backend '%s' is invalid", cfg.Cache.Backend)
	}

	if cfg.Channels.RawBuffer <= 0 {
		return fmt.Errorf("channels.raw_buffer must be greater than 0")
	}
	if cfg.Processor.MaxWorkers <= 0 {
		return fmt.Errorf("processor.max_workers must be greater than 0")
	}
	if cfg.Poller.Enabled && cfg.Poller.Interval <= 0 {
		return fmt.Errorf("poller.interval must be greater than 0")
	}
	if cfg.Writer.Kafka.Enabled && len(cfg.Writer.Kafka.Brokers) == 0 {
		return fmt.Errorf("writer.kafka.brokers is required when Kafka is enabled")
	}
	if cfg.Writer.MQTT.Enabled && cfg.Writer.MQTT.Broker == "" {
		return fmt.Errorf("writer.mqtt.broker is required when MQTT is enabled")
	}

	if cfg.Storage.S3.Enabled {
		if cfg.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required when S3 is enabled")
		}
		if cfg.Storage.S3.Region == "" {
			return fmt.Errorf("storage.s3.region is required when S3 is enabled")
		}
		if !isValidS3Bucket(cfg.Storage.S3.Bucket) {
			return fmt.Errorf("storage.s3.bucket '%s' is invalid", cfg.Storage.S3.Bucket)
		}
	}
	if (cfg.Writer.Parquet.Enabled || cfg.Archive.S3) && !cfg.Storage.S3.Enabled {
		return fmt.Errorf("storage.s3.enabled is required for parquet export and the S3 archive")
	}

	return CurrentEnvironment().check(cfg)
}

var s3BucketRegexp = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)

func isValidS3Bucket(name string) bool {
	if len(name) < 3 || len(name) > 63 {
		return false
	}
	if strings.Contains(name, "..") || strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") {
		return false
	}
	return s3BucketRegexp.MatchString(name)
}
