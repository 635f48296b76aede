package writer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	kafka "github.com/segmentio/kafka-go"

	appconfig "entsoeflow/config"
	"entsoeflow/logger"
	"entsoeflow/models"
)

// messageWriter is the part of kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaWriter streams row batches and day reports to two topics.
type KafkaWriter struct {
	rows    messageWriter
	reports messageWriter
	log     *logger.Log
}

func NewKafkaWriter(cfg *appconfig.Config) (*KafkaWriter, error) {
	kc := cfg.Writer.Kafka
	if len(kc.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers not configured")
	}
	newWriter := func(topic string) *kafka.Writer {
		return &kafka.Writer{
			Addr:         kafka.TCP(kc.Brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: kc.BatchTimeout,
		}
	}
	kw := &KafkaWriter{
		rows:    newWriter(kc.RowsTopic),
		reports: newWriter(kc.ReportsTopic),
		log:     logger.GetLogger(),
	}
	kw.log.WithComponent("kafka_writer").WithFields(logger.Fields{
		"brokers":       kc.Brokers,
		"rows_topic":    kc.RowsTopic,
		"reports_topic": kc.ReportsTopic,
	}).Info("kafka writer initialized")
	return kw, nil
}

func (kw *KafkaWriter) Name() string {
	return "kafka"
}

// BatchKey partitions row batches by series and day.
func BatchKey(batch models.RowBatch) string {
	return fmt.Sprintf("%s|%s|%s", batch.Dataset, batch.Zone, batch.Date)
}

func (kw *KafkaWriter) WriteBatch(ctx context.Context, batch models.RowBatch) error {
	data, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("marshal batch: %w", err)
	}
	if err := kw.rows.WriteMessages(ctx, kafka.Message{Key: []byte(BatchKey(batch)), Value: data}); err != nil {
		return fmt.Errorf("write batch %s: %w", batch.BatchID, err)
	}
	kw.log.WithComponent("kafka_writer").WithFields(logger.Fields{
		"batch_id": batch.BatchID,
		"records":  batch.RecordCount,
	}).Debug("batch written to kafka")
	return nil
}

// PublishReport writes r keyed by zone, so consumers of a compacted topic
// keep the latest report per zone.
func (kw *KafkaWriter) PublishReport(ctx context.Context, r models.ZoneReport) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := kw.reports.WriteMessages(ctx, kafka.Message{Key: []byte(r.Zone), Value: data}); err != nil {
		return fmt.Errorf("write report %s: %w", r.Zone, err)
	}
	return nil
}

func (kw *KafkaWriter) Close() error {
	kw.log.WithComponent("kafka_writer").Debug("closing kafka writer")
	return errors.Join(kw.rows.Close(), kw.reports.Close())
}
