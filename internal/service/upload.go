package service

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
)

const MaxUploadSize = 5 << 20

type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error)
}

type UploadService struct {
	store ObjectStore
}

// NewUploadService accepts a nil store; uploads then fail with ErrStorageDisabled.
func NewUploadService(store ObjectStore) *UploadService {
	return &UploadService{store: store}
}

// UploadImage stores an image under a fresh key and returns its public URL.
func (s *UploadService) UploadImage(ctx context.Context, filename, contentType string, body io.Reader, size int64) (string, error) {
	if s.store == nil {
		return "", ErrStorageDisabled
	}
	if !strings.HasPrefix(contentType, "image/") {
		return "", ErrNotAnImage
	}

	key := "images/" + uuid.NewString() + strings.ToLower(path.Ext(filename))
	url, err := s.store.Put(ctx, key, contentType, body, size)
	if err != nil {
		return "", fmt.Errorf("store image: %w", err)
	}
	return url, nil
}
