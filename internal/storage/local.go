package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"memoji/internal/utils/logger"
)

// LocalProvider keeps blobs as flat files under a base directory.
type LocalProvider struct {
	basePath string
	log      *logger.Logger
}

func NewLocalProvider(basePath string) (*LocalProvider, error) {
	log := logger.New("local_storage")
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, log.Error("Failed to create storage directory %s", err, basePath)
	}
	log.Success("Local storage ready at %s", basePath)
	return &LocalProvider{basePath: basePath, log: log}, nil
}

func (p *LocalProvider) Store(ctx context.Context, url, name string) (string, error) {
	data, err := download(ctx, url)
	if err != nil {
		return "", p.log.Error("Failed to download image for %s", err, name)
	}

	fileName := objectKey(url)
	if err := os.WriteFile(filepath.Join(p.basePath, fileName), data, 0644); err != nil {
		return "", p.log.Error("Failed to write image file %s", err, fileName)
	}
	p.log.Info("Stored %s (%d bytes) as %s", name, len(data), fileName)
	return fileName, nil
}

func (p *LocalProvider) Fetch(ctx context.Context, fileName string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(p.basePath, filepath.Base(fileName)))
	if err != nil {
		return nil, p.log.Error("Failed to read image file %s", err, fileName)
	}
	return data, nil
}

func (p *LocalProvider) Remove(ctx context.Context, fileName string) error {
	err := os.Remove(filepath.Join(p.basePath, filepath.Base(fileName)))
	if err != nil && !os.IsNotExist(err) {
		return p.log.Error("Failed to remove image file %s", err, fileName)
	}
	return nil
}

// PublicURL returns "" — local blobs are sent to the gateway as
// base64 payloads instead.
func (p *LocalProvider) PublicURL(ctx context.Context, fileName string) (string, error) {
	return "", nil
}

// objectKey derives a fresh unique file name, keeping the source
// URL's extension when it has a sane one.
func objectKey(url string) string {
	ext := filepath.Ext(url)
	if i := strings.IndexAny(ext, "?#"); i >= 0 {
		ext = ext[:i]
	}
	if len(ext) > 5 || strings.ContainsAny(ext, "/\\") {
		ext = ""
	}
	return fmt.Sprintf("%s%s", uuid.New().String(), ext)
}
