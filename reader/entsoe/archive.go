package entsoe

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"entsoeflow/internal/storage"
)

// Archive keeps a copy of every successful upstream response.
type Archive interface {
	Save(ctx context.Context, params url.Values, data []byte) error
}

func safeName(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' {
			return r
		}
		return '_'
	}, s)
}

func paramDate(params url.Values) (time.Time, bool) {
	ps := params.Get("periodStart")
	if len(ps) < 8 {
		return time.Time{}, false
	}
	d, err := time.Parse("20060102", ps[:8])
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

func firstParam(params url.Values, names ...string) string {
	for _, n := range names {
		if v := params.Get(n); v != "" {
			return v
		}
	}
	return ""
}

// ArchivePath is the slash-separated path of a response relative to the
// archive root, e.g. 2025/01/A44_10YNL----------L_2025-01-02.xml. Requests
// naming both domains use {doc}_{in}_to_{out}; requests without a usable
// periodStart land in unknown-date/.
func ArchivePath(params url.Values) string {
	doc := params.Get("documentType")
	if doc == "" {
		doc = "UNK"
	}
	in := firstParam(params, "in_Domain", "inBiddingZone_Domain")
	out := firstParam(params, "out_Domain", "outBiddingZone_Domain")

	parts := []string{safeName(doc)}
	if in != "" && out != "" {
		parts = append(parts, safeName(in), "to", safeName(out))
	} else if out != "" {
		parts = append(parts, safeName(out))
	} else if in != "" {
		parts = append(parts, safeName(in))
	}

	d, ok := paramDate(params)
	if !ok {
		return path.Join("unknown-date", strings.Join(append(parts, "unknown"), "_")+".xml")
	}
	name := strings.Join(append(parts, d.Format("2006-01-02")), "_") + ".xml"
	return path.Join(d.Format("2006"), d.Format("01"), name)
}

// FileArchive writes responses below a local directory.
type FileArchive struct {
	root string
}

func NewFileArchive(root string) *FileArchive {
	return &FileArchive{root: root}
}

func (a *FileArchive) Save(_ context.Context, params url.Values, data []byte) error {
	p := filepath.Join(a.root, filepath.FromSlash(ArchivePath(params)))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("create archive dir: %w", err)
	}
	return os.WriteFile(p, data, 0o644)
}

// S3Archive mirrors the file layout under a bucket prefix.
type S3Archive struct {
	bucket *storage.Bucket
	prefix string
}

func NewS3Archive(bucket *storage.Bucket, prefix string) *S3Archive {
	return &S3Archive{bucket: bucket, prefix: prefix}
}

func (a *S3Archive) Save(ctx context.Context, params url.Values, data []byte) error {
	return a.bucket.Put(ctx, storage.Key(a.prefix, ArchivePath(params)), data, "application/xml")
}
