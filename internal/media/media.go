// Package media is the blob-storage collaborator: store bytes, get back a URL.
package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Object describes one stored blob.
type Object struct {
	ID           string `json:"file_id"`
	URL          string `json:"download_url"`
	FileName     string `json:"file_name"`
	MimeType     string `json:"mime_type"`
	Size         int64  `json:"file_size"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
}

// Storage stores uploaded bytes and returns an addressable URL.
type Storage interface {
	Store(ctx context.Context, fileName, mimeType string, data []byte) (Object, error)
}

// DiskStorage writes blobs under a local directory served at baseURL.
type DiskStorage struct {
	dir     string
	baseURL string
}

func NewDiskStorage(dir, baseURL string) (*DiskStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}
	return &DiskStorage{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (s *DiskStorage) Store(_ context.Context, fileName, mimeType string, data []byte) (Object, error) {
	id := uuid.NewString()
	stored := id
	if ext := filepath.Ext(fileName); ext != "" {
		stored += ext
	}

	if err := os.WriteFile(filepath.Join(s.dir, stored), data, 0o644); err != nil {
		return Object{}, fmt.Errorf("write blob: %w", err)
	}

	obj := Object{
		ID:       id,
		URL:      s.baseURL + "/" + stored,
		FileName: fileName,
		MimeType: mimeType,
		Size:     int64(len(data)),
	}
	if strings.HasPrefix(mimeType, "image/") {
		obj.ThumbnailURL = obj.URL
	}
	return obj, nil
}

// Dir exposes the storage root so the HTTP layer can serve it.
func (s *DiskStorage) Dir() string { return s.dir }
