package services

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	apperrors "factory-ops/pkg/errors"

	"github.com/google/uuid"
)

const maxAttachmentBytes = 25 << 20

var allowedAttachmentTypes = map[string]bool{
	"image/png":       true,
	"image/jpeg":      true,
	"image/gif":       true,
	"image/webp":      true,
	"application/pdf": true,
	"text/csv":        true,
	"text/plain":      true,
}

// ObjectStore signs direct uploads. storage.Client implements it.
type ObjectStore interface {
	PresignPut(ctx context.Context, key, contentType string, sizeBytes int64) (string, map[string]string, error)
	FileURL(key string) string
}

type PresignInput struct {
	UploaderID  uuid.UUID
	FileName    string
	ContentType string
	FileSize    int64
}

type PresignResult struct {
	UploadURL string            `json:"uploadUrl"`
	ObjectKey string            `json:"objectKey"`
	FileURL   string            `json:"fileUrl,omitempty"`
	Headers   map[string]string `json:"headers,omitempty"`
	ExpiresAt time.Time         `json:"expiresAt"`
}

// AttachmentService hands out presigned PUT URLs; the client uploads
// straight to the bucket and then sends an IMAGE or FILE message whose
// content is the resulting file URL.
type AttachmentService struct {
	store ObjectStore
	ttl   time.Duration
	now   func() time.Time
}

func NewAttachmentService(store ObjectStore, ttl time.Duration) *AttachmentService {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &AttachmentService{store: store, ttl: ttl, now: time.Now}
}

func (s *AttachmentService) Enabled() bool {
	return s != nil && s.store != nil
}

func (s *AttachmentService) Presign(ctx context.Context, in PresignInput) (PresignResult, error) {
	if !s.Enabled() {
		return PresignResult{}, apperrors.ErrServiceUnavailable
	}
	contentType := strings.ToLower(strings.TrimSpace(in.ContentType))
	if !allowedAttachmentTypes[contentType] {
		return PresignResult{}, fmt.Errorf("%w: content type %q not allowed", apperrors.ErrInvalidInput, in.ContentType)
	}
	if in.FileSize <= 0 || in.FileSize > maxAttachmentBytes {
		return PresignResult{}, fmt.Errorf("%w: file size out of range", apperrors.ErrInvalidInput)
	}

	key := objectKey(in.UploaderID, in.FileName, s.now())
	url, headers, err := s.store.PresignPut(ctx, key, contentType, in.FileSize)
	if err != nil {
		return PresignResult{}, err
	}
	return PresignResult{
		UploadURL: url,
		ObjectKey: key,
		FileURL:   s.store.FileURL(key),
		Headers:   headers,
		ExpiresAt: s.now().Add(s.ttl),
	}, nil
}

func objectKey(uploaderID uuid.UUID, fileName string, at time.Time) string {
	ext := strings.ToLower(path.Ext(path.Base(strings.ReplaceAll(fileName, "\\", "/"))))
	if len(ext) > 10 {
		ext = ""
	}
	return fmt.Sprintf("attachments/%s/%s/%s%s", uploaderID, at.UTC().Format("2006/01/02"), uuid.NewString(), ext)
}
