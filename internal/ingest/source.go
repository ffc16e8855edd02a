package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/storage"
)

// ErrSourceNotFound is returned when a CSV source does not exist.
var ErrSourceNotFound = errors.New("CSV source not found")

// ErrLocalSourceNotAllowed is returned for a local path outside the
// configured import directory.
var ErrLocalSourceNotAllowed = errors.New("local source not allowed")

const gcsScheme = "gs://"

// Source opens CSV sources by location. Check must be called before Open so
// that a missing source is reported before any parsing starts.
type Source interface {
	Check(ctx context.Context, location string) error
	Open(ctx context.Context, location string) (io.ReadCloser, error)
}

// IsGCSURI reports whether location names a Cloud Storage object.
func IsGCSURI(location string) bool {
	return strings.HasPrefix(location, gcsScheme)
}

// ParseGCSURI splits gs://bucket/path/to/object into bucket and object.
func ParseGCSURI(uri string) (bucket, object string, err error) {
	if !IsGCSURI(uri) {
		return "", "", fmt.Errorf("invalid GCS URI: %s", uri)
	}
	trimmed := strings.TrimPrefix(uri, gcsScheme)
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", uri)
	}
	return parts[0], parts[1], nil
}

// SourceName returns the file name part of a local path or GCS URI.
func SourceName(location string) string {
	if IsGCSURI(location) {
		return path.Base(strings.TrimPrefix(location, gcsScheme))
	}
	return path.Base(strings.ReplaceAll(location, "\\", "/"))
}

// ResolveLocalSource maps location to a path inside dir. Relative locations
// are taken relative to dir. An empty dir allows no local sources at all.
func ResolveLocalSource(dir, location string) (string, error) {
	if dir == "" {
		return "", fmt.Errorf("%w: no import directory configured", ErrLocalSourceNotAllowed)
	}
	base, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("ResolveLocalSource: %w", err)
	}
	base = resolveSymlinks(base)

	p := location
	if !filepath.IsAbs(p) {
		p = filepath.Join(base, p)
	}
	p = resolveSymlinks(filepath.Clean(p))

	rel, err := filepath.Rel(base, p)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s is outside the import directory", ErrLocalSourceNotAllowed, location)
	}
	return p, nil
}

// resolveSymlinks follows links in p, or in its parent when p does not
// exist yet.
func resolveSymlinks(p string) string {
	if resolved, err := filepath.EvalSymlinks(p); err == nil {
		return resolved
	}
	if dir, err := filepath.EvalSymlinks(filepath.Dir(p)); err == nil {
		return filepath.Join(dir, filepath.Base(p))
	}
	return p
}

// LocalSource reads CSV files from the local filesystem.
type LocalSource struct{}

func (LocalSource) Check(_ context.Context, location string) error {
	info, err := os.Stat(location)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrSourceNotFound, location)
	}
	if err != nil {
		return fmt.Errorf("LocalSource.Check: stat %q: %w", location, err)
	}
	if info.IsDir() {
		return fmt.Errorf("LocalSource.Check: %q is a directory", location)
	}
	return nil
}

func (LocalSource) Open(_ context.Context, location string) (io.ReadCloser, error) {
	f, err := os.Open(location)
	if err != nil {
		return nil, fmt.Errorf("LocalSource.Open: open file %q: %w", location, err)
	}
	return f, nil
}

// GCSSource reads CSV objects from Cloud Storage. The client is created on
// first use with Application Default Credentials.
type GCSSource struct {
	mu     sync.Mutex
	client *storage.Client
}

// NewGCSSource returns a GCSSource that uses client, or creates its own
// client lazily when client is nil.
func NewGCSSource(client *storage.Client) *GCSSource {
	return &GCSSource{client: client}
}

func (s *GCSSource) storageClient(ctx context.Context) (*storage.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		return s.client, nil
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	s.client = client
	return client, nil
}

func (s *GCSSource) object(ctx context.Context, uri string) (*storage.ObjectHandle, error) {
	bucket, object, err := ParseGCSURI(uri)
	if err != nil {
		return nil, err
	}
	client, err := s.storageClient(ctx)
	if err != nil {
		return nil, err
	}
	return client.Bucket(bucket).Object(object), nil
}

func (s *GCSSource) Check(ctx context.Context, uri string) error {
	obj, err := s.object(ctx, uri)
	if err != nil {
		return fmt.Errorf("GCSSource.Check: %w", err)
	}
	if _, err := obj.Attrs(ctx); err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
			return fmt.Errorf("%w: %s", ErrSourceNotFound, uri)
		}
		return fmt.Errorf("GCSSource.Check: reading object attrs: %w", err)
	}
	return nil
}

func (s *GCSSource) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	obj, err := s.object(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("GCSSource.Open: %w", err)
	}
	r, err := obj.NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("GCSSource.Open: open GCS object reader: %w", err)
	}
	return r, nil
}

// Upload streams r into the object at uri as text/csv, replacing any
// existing object.
func (s *GCSSource) Upload(ctx context.Context, r io.Reader, uri string) error {
	obj, err := s.object(ctx, uri)
	if err != nil {
		return fmt.Errorf("GCSSource.Upload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := obj.NewWriter(ctx)
	w.ContentType = "text/csv"
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return fmt.Errorf("GCSSource.Upload: copy to GCS writer: %w", err)
	}
	// Close finalizes the upload
	if err := w.Close(); err != nil {
		return fmt.Errorf("GCSSource.Upload: finalize upload: %w", err)
	}
	return nil
}

// Close releases the storage client, if one was created.
func (s *GCSSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	return err
}

// Router dispatches gs:// locations to GCS and everything else to Local.
type Router struct {
	Local Source
	GCS   Source
}

// NewRouter returns a Router over the local filesystem and a lazily
// connected Cloud Storage source.
func NewRouter() *Router {
	return &Router{Local: LocalSource{}, GCS: NewGCSSource(nil)}
}

func (r *Router) pick(location string) (Source, error) {
	if IsGCSURI(location) {
		if r.GCS == nil {
			return nil, fmt.Errorf("no GCS source configured for %s", location)
		}
		return r.GCS, nil
	}
	if r.Local == nil {
		return nil, fmt.Errorf("no local source configured for %s", location)
	}
	return r.Local, nil
}

func (r *Router) Check(ctx context.Context, location string) error {
	src, err := r.pick(location)
	if err != nil {
		return err
	}
	return src.Check(ctx, location)
}

func (r *Router) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	src, err := r.pick(location)
	if err != nil {
		return nil, err
	}
	return src.Open(ctx, location)
}

// Close closes the GCS source when it holds a client.
func (r *Router) Close() error {
	if c, ok := r.GCS.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
