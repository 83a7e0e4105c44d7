package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// XLSXContentType is the media type of result workbooks.
const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var (
	// ErrNotFound is returned for result files that do not exist.
	ErrNotFound = errors.New("file not found")

	// ErrInvalidName is returned for file names containing path elements.
	ErrInvalidName = errors.New("invalid file name")
)

// Fetcher downloads remote inputs.
type Fetcher interface {
	Fetch(ctx context.Context, uri string) ([]byte, error)
}

// Uploader stores a local file in a bucket.
type Uploader interface {
	UploadFile(ctx context.Context, bucketName, objectName, filePath string) error
}

// SaveUpload writes r to dir/<uuid>-<base name of originalName> and returns
// the path.
func SaveUpload(dir, originalName string, r io.Reader) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload directory: %w", err)
	}

	base := filepath.Base(strings.ReplaceAll(originalName, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		base = "upload"
	}
	path := filepath.Join(dir, uuid.NewString()+"-"+base)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("write upload file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close upload file: %w", err)
	}
	return path, nil
}

// Materialize returns a local path for input. Local paths are returned
// unchanged; gs:// URIs are downloaded into dir first.
func Materialize(ctx context.Context, fetcher Fetcher, input, dir string) (string, error) {
	if !IsURI(input) {
		return input, nil
	}
	if fetcher == nil {
		return "", fmt.Errorf("cannot fetch %s: no storage client", input)
	}
	data, err := fetcher.Fetch(ctx, input)
	if err != nil {
		return "", err
	}
	return SaveUpload(dir, FilenameFromURI(input), bytes.NewReader(data))
}

// ResolveResult returns the path of result file name inside dir. Names with
// path elements are rejected with ErrInvalidName; absent files yield
// ErrNotFound.
func ResolveResult(dir, name string) (string, error) {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || filepath.Base(name) != name {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	path := filepath.Join(dir, name)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return path, nil
}
