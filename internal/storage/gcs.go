// Package storage keeps uploads and result workbooks on the local disk and,
// optionally, in a Google Cloud Storage bucket.
package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

// ResultsPrefix is the object prefix archived results are stored under.
const ResultsPrefix = "results"

// GCS archives files to, and fetches files from, Google Cloud Storage.
// It assumes Application Default Credentials are configured.
type GCS struct {
	client *storage.Client
	bucket string
	now    func() time.Time
}

// NewGCS creates a client for bucket. bucket may be empty when the client
// is only used with explicit bucket names or gs:// URIs.
func NewGCS(ctx context.Context, bucket string) (*GCS, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &GCS{client: client, bucket: bucket, now: time.Now}, nil
}

// Close releases the underlying client.
func (g *GCS) Close() error {
	return g.client.Close()
}

// Archive uploads a result workbook to results/YYYY/MM/DD/<file> and returns
// its gs:// URI.
func (g *GCS) Archive(ctx context.Context, localPath string) (string, error) {
	if g.bucket == "" {
		return "", fmt.Errorf("archive %s: no bucket configured", filepath.Base(localPath))
	}
	object := ArchiveObjectName(filepath.Base(localPath), g.now())
	if err := g.UploadFile(ctx, g.bucket, object, localPath); err != nil {
		return "", err
	}
	return fmt.Sprintf("gs://%s/%s", g.bucket, object), nil
}

// UploadFile uploads a local file to a bucket under the given object name.
func (g *GCS) UploadFile(ctx context.Context, bucketName, objectName, filePath string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("open file %q: %w", filePath, err)
	}
	defer f.Close()

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := g.client.Bucket(bucketName).Object(objectName).NewWriter(ctx)
	w.ContentType = contentType(filePath)

	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()
		return fmt.Errorf("copy file to GCS writer: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize upload: %w", err)
	}
	return nil
}

// Fetch downloads the object behind a gs:// URI.
func (g *GCS) Fetch(ctx context.Context, gcsURI string) ([]byte, error) {
	bucketName, objectPath, err := ParseURI(gcsURI)
	if err != nil {
		return nil, err
	}

	rc, err := g.client.Bucket(bucketName).Object(objectPath).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch: reading object %s/%s: %w", bucketName, objectPath, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("fetch: reading bytes: %w", err)
	}
	return data, nil
}

// ArchiveObjectName returns results/YYYY/MM/DD/<base> for t.
func ArchiveObjectName(base string, t time.Time) string {
	return path.Join(ResultsPrefix, t.Format("2006/01/02"), base)
}

// IsURI reports whether s is a gs:// URI.
func IsURI(s string) bool {
	return strings.HasPrefix(s, "gs://")
}

// ParseURI splits gs://bucket/path/to/object into bucket and object path.
func ParseURI(gcsURI string) (bucket, object string, err error) {
	if !IsURI(gcsURI) {
		return "", "", fmt.Errorf("invalid GCS URI: %s", gcsURI)
	}
	parts := strings.SplitN(strings.TrimPrefix(gcsURI, "gs://"), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", gcsURI)
	}
	return parts[0], parts[1], nil
}

// FilenameFromURI extracts the file name from a GCS URI.
// e.g., "gs://bucket/folder/konto.xlsx" → "konto.xlsx"
func FilenameFromURI(uri string) string {
	trimmed := strings.TrimPrefix(uri, "gs://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) < 2 {
		return trimmed
	}
	return path.Base(parts[1])
}

func contentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx":
		return XLSXContentType
	case ".xls":
		return "application/vnd.ms-excel"
	case ".csv":
		return "text/csv"
	}
	return "application/octet-stream"
}
