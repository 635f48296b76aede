package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DataFile describes one exported parquet file.
type DataFile struct {
	Path        string         `json:"path"`
	FileSize    int64          `json:"file_size_in_bytes"`
	RecordCount int64          `json:"record_count"`
	Partition   map[string]any `json:"partition"`
	Timestamp   time.Time      `json:"-"`
}

// ManifestEntry mirrors an Iceberg manifest entry.
type ManifestEntry struct {
	Status   int      `json:"status"`
	DataFile DataFile `json:"data_file"`
}

type Snapshot struct {
	SnapshotID  int64  `json:"snapshot-id"`
	TimestampMs int64  `json:"timestamp-ms"`
	Manifest    string `json:"manifest-list"`
}

// TableMetadata is the table-level metadata file.
type TableMetadata struct {
	FormatVersion     int        `json:"format-version"`
	TableUUID         string     `json:"table-uuid"`
	Location          string     `json:"location"`
	CurrentSnapshotID int64      `json:"current-snapshot-id"`
	Snapshots         []Snapshot `json:"snapshots"`
}

// Uploader mirrors metadata files to object storage.
type Uploader interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
}

// Generator keeps Iceberg-style metadata for one exported table. Files are
// written below localDir and, when an uploader is set, mirrored under
// keyPrefix.
type Generator struct {
	localDir  string
	location  string
	keyPrefix string
	tableName string
	tableUUID string
	uploader  Uploader

	mu        sync.Mutex
	snapshots []Snapshot
	lastID    int64
}

// NewGenerator returns a generator for tableName. location is the table URI
// recorded in the metadata.
func NewGenerator(localDir, location, keyPrefix, tableName string, uploader Uploader) *Generator {
	return &Generator{
		localDir:  localDir,
		location:  location,
		keyPrefix: keyPrefix,
		tableName: tableName,
		tableUUID: uuid.NewString(),
		uploader:  uploader,
	}
}

func (g *Generator) TableName() string {
	return g.tableName
}

// AddFile records df as a new snapshot.
func (g *Generator) AddFile(ctx context.Context, df DataFile) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	snapID := df.Timestamp.UnixNano()
	if len(g.snapshots) > 0 && snapID <= g.lastID {
		snapID = g.lastID + 1
	}
	g.lastID = snapID

	manifestFile := fmt.Sprintf("manifest-%d.json", snapID)
	manifest, err := json.Marshal([]ManifestEntry{{Status: 1, DataFile: df}})
	if err != nil {
		return err
	}
	if err := g.store(ctx, manifestFile, manifest); err != nil {
		return err
	}

	g.snapshots = append(g.snapshots, Snapshot{
		SnapshotID:  snapID,
		TimestampMs: df.Timestamp.UnixMilli(),
		Manifest:    manifestFile,
	})
	tm := TableMetadata{
		FormatVersion:     2,
		TableUUID:         g.tableUUID,
		Location:          g.location,
		CurrentSnapshotID: snapID,
		Snapshots:         g.snapshots,
	}
	b, err := json.MarshalIndent(tm, "", "  ")
	if err != nil {
		return err
	}
	return g.store(ctx, "metadata.json", b)
}

func (g *Generator) store(ctx context.Context, name string, data []byte) error {
	p := filepath.Join(g.localDir, g.tableName, "metadata", name)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return err
	}
	if g.uploader == nil {
		return nil
	}
	return g.uploader.Put(ctx, path.Join(g.keyPrefix, g.tableName, "metadata", name), data, "application/json")
}

// WriteCatalogEntry writes a catalog file pointing at the table metadata.
func (g *Generator) WriteCatalogEntry(catalogDir string) error {
	entry := map[string]string{
		"name":              g.tableName,
		"location":          g.location,
		"metadata_location": filepath.Join(g.localDir, g.tableName, "metadata", "metadata.json"),
	}
	if err := os.MkdirAll(catalogDir, 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(catalogDir, g.tableName+".json"), b, 0o644)
}
