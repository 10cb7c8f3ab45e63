package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"memoji/internal/config"
)

// Provider stores and retrieves image blobs. Store downloads the
// image at url and persists it under a generated object key, which is
// what gets recorded on the emoji row.
type Provider interface {
	Store(ctx context.Context, url, name string) (fileName string, err error)
	Fetch(ctx context.Context, fileName string) ([]byte, error)
	Remove(ctx context.Context, fileName string) error
	// PublicURL returns a URL the messaging gateway can fetch the
	// blob from, or "" when the provider has no public surface.
	PublicURL(ctx context.Context, fileName string) (string, error)
}

// NewProvider builds the provider selected by STORAGE_PROVIDER.
func NewProvider(cfg *config.Config) (Provider, error) {
	switch cfg.Storage.Provider {
	case "local", "":
		return NewLocalProvider(cfg.Storage.BasePath)
	case "s3":
		return NewS3Provider(
			cfg.Storage.S3.BucketName,
			cfg.Storage.S3.Endpoint,
			cfg.Storage.S3.Region,
			cfg.Storage.S3.AccessKey,
			cfg.Storage.S3.SecretKey,
		)
	default:
		return nil, fmt.Errorf("unknown storage provider %q", cfg.Storage.Provider)
	}
}

var downloadClient = &http.Client{Timeout: 30 * time.Second}

// download fetches the image bytes from the platform's file server
func download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := downloadClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image download returned status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
