package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/noah-isme/qa-reports-api/pkg/config"
)

// GCSStorage stores objects in a single Cloud Storage bucket, grouped by folder prefix.
type GCSStorage struct {
	client        *storage.Client
	bucket        string
	publicBaseURL string
}

// NewGCSStorage builds a client for the configured bucket. When an emulator host is set,
// authentication is skipped.
func NewGCSStorage(ctx context.Context, cfg config.RemoteStorageConfig) (*GCSStorage, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("remote storage bucket not configured")
	}

	var opts []option.ClientOption
	if host := strings.TrimRight(strings.TrimSpace(cfg.EmulatorHost), "/"); host != "" {
		_ = os.Setenv("STORAGE_EMULATOR_HOST", host)
		opts = append(opts, option.WithoutAuthentication())
	} else {
		opts = append(opts, option.WithScopes(storage.ScopeReadWrite))
		if cfg.CredentialsFile != "" {
			opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
		}
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}

	base := cfg.PublicBaseURL
	if base == "" {
		base = "https://storage.googleapis.com"
	}
	return &GCSStorage{client: client, bucket: cfg.Bucket, publicBaseURL: base}, nil
}

// Upload streams r into folder/name and returns the object name.
func (g *GCSStorage) Upload(ctx context.Context, folder, name, contentType string, r io.Reader) (string, error) {
	object := name
	if folder = strings.Trim(folder, "/"); folder != "" {
		object = path.Join(folder, name)
	}

	w := g.client.Bucket(g.bucket).Object(object).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("upload object %s: %w", object, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize object %s: %w", object, err)
	}
	return object, nil
}

// Delete removes an object; a missing object is not an error.
func (g *GCSStorage) Delete(ctx context.Context, object string) error {
	err := g.client.Bucket(g.bucket).Object(object).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("delete object %s: %w", object, err)
	}
	return nil
}

// URL returns the public URL of an object.
func (g *GCSStorage) URL(object string) string {
	segments := strings.Split(object, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return fmt.Sprintf("%s/%s/%s", g.publicBaseURL, g.bucket, strings.Join(segments, "/"))
}

// Ping verifies the bucket is reachable.
func (g *GCSStorage) Ping(ctx context.Context) error {
	if _, err := g.client.Bucket(g.bucket).Attrs(ctx); err != nil {
		return fmt.Errorf("bucket attrs: %w", err)
	}
	return nil
}

// Close releases the underlying client.
func (g *GCSStorage) Close() error {
	return g.client.Close()
}
