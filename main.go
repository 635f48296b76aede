package main

import (
	"context"
	"flag"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"entsoeflow/config"
	"entsoeflow/internal/advisor"
	"entsoeflow/internal/api"
	"entsoeflow/internal/channel"
	"entsoeflow/internal/metrics"
	"entsoeflow/internal/storage"
	"entsoeflow/logger"
	"entsoeflow/processor"
	"entsoeflow/reader/entsoe"
	"entsoeflow/writer"
)

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", "config/config.yml", "Path to configuration file")
	flag.Parse()

	path := config.ConfigPath(*configPath)
	if _, err := os.Stat(path); err != nil {
		log.WithFields(logger.Fields{"path": path}).Warn("configuration file not found, using defaults")
		path = ""
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	log.WithFields(logger.Fields{
		"service":     cfg.App.Name,
		"environment": config.CurrentEnvironment(),
		"version":     cfg.App.Version,
		"time_zone":   cfg.App.TimeZone,
		"zone":        cfg.App.Zone,
	}).Info("starting entsoeflow")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics.Init()
	if cfg.Logging.CloudWatch.Enabled {
		logger.InitCloudWatch(cfg.Logging.CloudWatch.Region, cfg.Logging.CloudWatch.Namespace, cfg.Logging.CloudWatch.Dashboard)
	}
	if strings.ToLower(cfg.Logging.Level) == "report" {
		logger.StartReport(ctx, log, cfg.Logging.ReportInterval)
	}

	var bucket *storage.Bucket
	if cfg.Storage.S3.Enabled {
		s3Client, err := storage.NewS3Client(ctx, cfg.Storage.S3)
		if err != nil {
			log.WithError(err).Error("failed to create s3 client")
			os.Exit(1)
		}
		bucket = storage.NewBucket(s3Client, cfg.Storage.S3.Bucket)
	}

	cache, err := entsoe.NewCache(cfg.Cache)
	if err != nil {
		log.WithError(err).Error("failed to create response cache")
		os.Exit(1)
	}
	if c, ok := cache.(io.Closer); ok {
		defer c.Close()
	}

	var archives []entsoe.Archive
	if cfg.Archive.Enabled {
		archives = append(archives, entsoe.NewFileArchive(cfg.Archive.Root))
	}
	if cfg.Archive.S3 && bucket != nil {
		archives = append(archives, entsoe.NewS3Archive(bucket, cfg.Archive.S3Prefix))
	}

	client, err := entsoe.NewClient(cfg, cache, archives...)
	if err != nil {
		log.WithError(err).Error("failed to create ENTSO-E client")
		os.Exit(1)
	}
	if !client.APIKeyLoaded() {
		log.WithEnv("ENTSOE_API_KEY").Warn("ENTSO-E API key not configured; only cached responses can be served")
	}

	adv, err := advisor.New(cfg, client)
	if err != nil {
		log.WithError(err).Error("failed to create advisor")
		os.Exit(1)
	}

	channels := channel.NewChannels(cfg.Channels.RawBuffer, cfg.Channels.ProcessedBuffer)
	defer channels.Close()
	channels.StartMetricsReporting(ctx)
	metrics.StartChannelSizeMetrics(ctx, channels, 10*time.Second)

	hub := api.NewHub()

	var poller *entsoe.Poller
	var normalizer *processor.Normalizer
	var dispatcher *writer.Dispatcher
	var closers []io.Closer

	if cfg.Poller.Enabled {
		poller, err = entsoe.NewPoller(cfg, client, channels)
		if err != nil {
			log.WithError(err).Error("failed to create poller")
			os.Exit(1)
		}
		normalizer, err = processor.NewNormalizer(cfg, channels)
		if err != nil {
			log.WithError(err).Error("failed to create normalizer")
			os.Exit(1)
		}
		dispatcher, err = writer.NewDispatcher(cfg, channels)
		if err != nil {
			log.WithError(err).Error("failed to create dispatcher")
			os.Exit(1)
		}
		dispatcher.WithReporter(adv).WithPlanner(adv)
		dispatcher.AddReportSink("websocket", hub)

		if cfg.Writer.Parquet.Enabled && bucket != nil {
			pw, err := writer.NewParquetWriter(cfg, bucket)
			if err != nil {
				log.WithError(err).Error("failed to create parquet writer")
				os.Exit(1)
			}
			dispatcher.AddBatchSink(pw)
		}
		if cfg.Writer.Kafka.Enabled {
			kw, err := writer.NewKafkaWriter(cfg)
			if err != nil {
				log.WithError(err).Error("failed to create kafka writer")
				os.Exit(1)
			}
			dispatcher.AddBatchSink(kw)
			dispatcher.AddReportSink(kw.Name(), kw)
			closers = append(closers, kw)
		}
		if cfg.Writer.MQTT.Enabled {
			mp, err := writer.NewMQTTPublisher(cfg.Writer.MQTT)
			if err != nil {
				log.WithError(err).Warn("mqtt publisher unavailable, continuing without it")
			} else {
				dispatcher.AddReportSink(mp.Name(), mp)
				dispatcher.AddPlanSink(mp.Name(), mp)
				closers = append(closers, mp)
			}
		}
	} else {
		log.WithComponent("main").Info("poller disabled; serving on-demand requests only")
	}

	server, err := api.NewServer(cfg, adv, client.APIKeyLoaded, hub)
	if err != nil {
		log.WithError(err).Error("failed to create api server")
		os.Exit(1)
	}

	var wg sync.WaitGroup

	if dispatcher != nil {
		if err := dispatcher.Start(ctx); err != nil {
			log.WithError(err).Error("dispatcher failed to start")
			os.Exit(1)
		}
	}
	if normalizer != nil {
		if err := normalizer.Start(ctx); err != nil {
			log.WithError(err).Error("normalizer failed to start")
			os.Exit(1)
		}
	}
	if poller != nil {
		if err := poller.Start(ctx); err != nil {
			log.WithError(err).Error("poller failed to start")
			os.Exit(1)
		}
	}

	serverErr := make(chan error, 1)
	if server != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := server.Run(ctx); err != nil {
				serverErr <- err
			}
		}()
	}

	log.Info("all components started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.WithFields(logger.Fields{"signal": sig.String()}).Info("shutdown signal received")
	case err := <-serverErr:
		log.WithError(err).Error("api server failed")
	}

	log.Info("starting graceful shutdown")
	cancel()

	if poller != nil {
		log.Info("stopping poller")
		poller.Stop()
	}
	if normalizer != nil {
		log.Info("stopping normalizer")
		normalizer.Stop()
	}
	if dispatcher != nil {
		log.Info("stopping dispatcher")
		dispatcher.Stop()
	}
	for _, c := range closers {
		if err := c.Close(); err != nil {
			log.WithError(err).Warn("failed to close publisher")
		}
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info("graceful shutdown completed")
	case <-time.After(30 * time.Second):
		log.Warn("shutdown timeout exceeded, forcing exit")
	}
}
