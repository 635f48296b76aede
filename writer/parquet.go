package writer

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"

	appconfig "entsoeflow/config"
	"entsoeflow/internal/metadata"
	"entsoeflow/internal/metrics"
	"entsoeflow/internal/storage"
	"entsoeflow/logger"
	"entsoeflow/models"
)

// ParquetRecord is one exported slot. Prices carry EUR/MWh in value and
// the ct/kWh figure separately; every other dataset carries MW.
type ParquetRecord struct {
	BatchID        string  `parquet:"name=batch_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Dataset        string  `parquet:"name=dataset, type=BYTE_ARRAY, convertedtype=UTF8"`
	Zone           string  `parquet:"name=zone, type=BYTE_ARRAY, convertedtype=UTF8"`
	ToZone         string  `parquet:"name=to_zone, type=BYTE_ARRAY, convertedtype=UTF8"`
	Date           string  `parquet:"name=date, type=BYTE_ARRAY, convertedtype=UTF8"`
	Position       int32   `parquet:"name=position, type=INT32"`
	HourLocal      string  `parquet:"name=hour_local, type=BYTE_ARRAY, convertedtype=UTF8"`
	Resolution     string  `parquet:"name=resolution, type=BYTE_ARRAY, convertedtype=UTF8"`
	Field          string  `parquet:"name=field, type=BYTE_ARRAY, convertedtype=UTF8"`
	Value          float64 `parquet:"name=value, type=DOUBLE"`
	CtPerKWh       float64 `parquet:"name=ct_per_kwh, type=DOUBLE"`
	ProductionType string  `parquet:"name=production_type, type=BYTE_ARRAY, convertedtype=UTF8"`
	PsrType        string  `parquet:"name=psr_type, type=BYTE_ARRAY, convertedtype=UTF8"`
	FetchedAt      int64   `parquet:"name=fetched_at, type=INT64"`
}

// memoryFile buffers a parquet file in memory before upload.
type memoryFile struct {
	buffer *bytes.Buffer
}

func newMemoryFile() *memoryFile {
	return &memoryFile{buffer: &bytes.Buffer{}}
}

func (m *memoryFile) Create(string) (source.ParquetFile, error) { return m, nil }
func (m *memoryFile) Open(string) (source.ParquetFile, error)   { return m, nil }
func (m *memoryFile) Seek(int64, int) (int64, error)            { return int64(m.buffer.Len()), nil }
func (m *memoryFile) Read(b []byte) (int, error)                { return m.buffer.Read(b) }
func (m *memoryFile) Write(b []byte) (int, error)               { return m.buffer.Write(b) }
func (m *memoryFile) Close() error                              { return nil }
func (m *memoryFile) Bytes() []byte                             { return m.buffer.Bytes() }

// ParquetWriter exports each row batch as one parquet object and keeps a
// table manifest per dataset.
type ParquetWriter struct {
	config *appconfig.Config
	bucket *storage.Bucket
	log    *logger.Log

	mu     sync.Mutex
	tables map[models.Dataset]*metadata.Generator

	batches atomic.Int64
	rows    atomic.Int64
	files   atomic.Int64
	bytes   atomic.Int64
	errors  atomic.Int64
}

func NewParquetWriter(cfg *appconfig.Config, bucket *storage.Bucket) (*ParquetWriter, error) {
	if bucket == nil {
		return nil, fmt.Errorf("parquet writer: bucket is required")
	}
	w := &ParquetWriter{
		config: cfg,
		bucket: bucket,
		log:    logger.GetLogger(),
		tables: make(map[models.Dataset]*metadata.Generator),
	}
	w.log.WithComponent("parquet_writer").WithFields(logger.Fields{
		"bucket":      bucket.Name(),
		"prefix":      cfg.Writer.Parquet.Prefix,
		"compression": cfg.Writer.Parquet.Compression,
	}).Info("parquet writer initialized")
	return w, nil
}

func (w *ParquetWriter) Name() string {
	return "parquet"
}

// Key is the object key of batch:
// {prefix}/dataset={dataset}/zone={zone}/{year}/{month}/{day}/{file}.
func (w *ParquetWriter) Key(batch models.RowBatch) string {
	year, month, day := "unknown", "unknown", "unknown"
	if d, err := time.Parse(models.DateLayout, batch.Date); err == nil {
		year = fmt.Sprintf("%04d", d.Year())
		month = fmt.Sprintf("%02d", d.Month())
		day = fmt.Sprintf("%02d", d.Day())
	}

	name := []string{string(batch.Dataset), batch.Zone}
	if batch.ToZone != "" {
		name = append(name, batch.ToZone)
	}
	name = append(name, batch.Timestamp.UTC().Format("20060102150405"))
	if batch.BatchID != "" {
		id := batch.BatchID
		if len(id) > 8 {
			id = id[:8]
		}
		name = append(name, id)
	}

	return storage.Key(w.config.Writer.Parquet.Prefix,
		"dataset="+string(batch.Dataset),
		"zone="+batch.Zone,
		year, month, day,
		strings.Join(name, "_")+".parquet",
	)
}

// WriteBatch encodes and uploads batch. Empty batches are skipped.
func (w *ParquetWriter) WriteBatch(ctx context.Context, batch models.RowBatch) error {
	records := Records(batch)
	if len(records) == 0 {
		return nil
	}
	log := w.log.WithComponent("parquet_writer").WithDataset(string(batch.Dataset), batch.Zone).WithFields(logger.Fields{
		"batch_id": batch.BatchID,
		"date":     batch.Date,
		"records":  len(records),
	})

	data, err := w.encode(records)
	if err != nil {
		w.errors.Add(1)
		return fmt.Errorf("encode parquet: %w", err)
	}

	key := w.Key(batch)
	start := time.Now()
	if err := w.bucket.Put(ctx, key, data, "application/octet-stream"); err != nil {
		w.errors.Add(1)
		log.WithError(err).WithEnv("S3_BUCKET").Error("failed to upload parquet file")
		return err
	}
	w.batches.Add(1)
	w.rows.Add(int64(len(records)))
	w.files.Add(1)
	w.bytes.Add(int64(len(data)))
	logger.LogPerformanceEntry(log, "parquet_writer", "upload", time.Since(start), logger.Fields{"s3_key": key, "file_size": len(data)})

	df := metadata.DataFile{
		Path:        fmt.Sprintf("s3://%s/%s", w.bucket.Name(), key),
		FileSize:    int64(len(data)),
		RecordCount: int64(len(records)),
		Partition: map[string]any{
			"dataset": string(batch.Dataset),
			"zone":    batch.Zone,
			"date":    batch.Date,
		},
		Timestamp: batch.Timestamp,
	}
	table := w.table(batch.Dataset)
	if err := table.AddFile(ctx, df); err != nil {
		log.WithError(err).WithFields(logger.Fields{"table": table.TableName()}).Warn("failed to update table metadata")
	}
	return nil
}

func (w *ParquetWriter) table(ds models.Dataset) *metadata.Generator {
	w.mu.Lock()
	defer w.mu.Unlock()
	g, ok := w.tables[ds]
	if !ok {
		prefix := strings.Trim(w.config.Writer.Parquet.Prefix, "/")
		location := fmt.Sprintf("s3://%s/%s", w.bucket.Name(), storage.Key(prefix, "dataset="+string(ds)))
		g = metadata.NewGenerator(w.config.Writer.Parquet.MetadataDir, location, prefix, string(ds), w.bucket)
		if err := g.WriteCatalogEntry(filepath.Join(w.config.Writer.Parquet.MetadataDir, "catalog")); err != nil {
			w.log.WithComponent("parquet_writer").WithError(err).WithFields(logger.Fields{"table": string(ds)}).Warn("failed to write catalog entry")
		}
		w.tables[ds] = g
	}
	return g
}

func (w *ParquetWriter) encode(records []ParquetRecord) ([]byte, error) {
	fw := newMemoryFile()
	pw, err := writer.NewParquetWriter(fw, new(ParquetRecord), 1)
	if err != nil {
		return nil, fmt.Errorf("failed to create parquet writer: %w", err)
	}
	if w.config.Writer.Parquet.PageSize > 0 {
		pw.PageSize = w.config.Writer.Parquet.PageSize
	}
	switch w.config.Writer.Parquet.Compression {
	case "snappy":
		pw.CompressionType = parquet.CompressionCodec_SNAPPY
	case "gzip":
		pw.CompressionType = parquet.CompressionCodec_GZIP
	default:
		pw.CompressionType = parquet.CompressionCodec_UNCOMPRESSED
	}

	for _, r := range records {
		if err := pw.Write(r); err != nil {
			pw.WriteStop()
			return nil, fmt.Errorf("failed to write parquet record: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return nil, fmt.Errorf("failed to finalize parquet writing: %w", err)
	}
	return fw.Bytes(), nil
}

// Records flattens a batch into parquet rows.
func Records(batch models.RowBatch) []ParquetRecord {
	base := ParquetRecord{
		BatchID:   batch.BatchID,
		Dataset:   string(batch.Dataset),
		Zone:      batch.Zone,
		ToZone:    batch.ToZone,
		Date:      batch.Date,
		FetchedAt: batch.Timestamp.UnixMilli(),
	}

	out := make([]ParquetRecord, 0, len(batch.Prices)+len(batch.Quantities)+len(batch.Generation))
	for _, p := range batch.Prices {
		r := base
		r.Position = int32(p.Position)
		r.HourLocal = p.HourLocal
		r.Resolution = p.Resolution
		r.Field = "eur_per_mwh"
		r.Value = p.EurPerMWh
		r.CtPerKWh = p.CtPerKWh
		out = append(out, r)
	}
	for _, q := range batch.Quantities {
		r := base
		r.Position = int32(q.Position)
		r.HourLocal = q.HourLocal
		r.Resolution = q.Resolution
		r.Field = q.Field
		r.Value = q.Value
		out = append(out, r)
	}
	for _, g := range batch.Generation {
		r := base
		r.Position = int32(g.Position)
		r.HourLocal = g.HourLocal
		r.Resolution = g.Resolution
		r.Field = models.FieldForecastMW
		r.Value = g.ForecastMW
		r.ProductionType = g.ProductionType
		if g.PsrType != nil {
			r.PsrType = *g.PsrType
		}
		out = append(out, r)
	}
	return out
}

func (w *ParquetWriter) Stats() metrics.WriterStats {
	return metrics.WriterStats{
		BatchesWritten: w.batches.Load(),
		RowsWritten:    w.rows.Load(),
		FilesWritten:   w.files.Load(),
		BytesWritten:   w.bytes.Load(),
		ErrorsCount:    w.errors.Load(),
	}
}
