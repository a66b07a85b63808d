package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	apperrors "factory-ops/pkg/errors"

	"github.com/google/uuid"
)

type stubObjectStore struct {
	keys []string
}

func (s *stubObjectStore) PresignPut(_ context.Context, key, contentType string, _ int64) (string, map[string]string, error) {
	s.keys = append(s.keys, key)
	return "https://bucket.example/" + key + "?sig=1", map[string]string{"Content-Type": contentType}, nil
}

func (s *stubObjectStore) FileURL(key string) string {
	return "https://cdn.example/" + key
}

func TestPresignDisabledWithoutStore(t *testing.T) {
	svc := NewAttachmentService(nil, 0)
	if svc.Enabled() {
		t.Fatal("service without a store should be disabled")
	}
	if _, err := svc.Presign(context.Background(), PresignInput{}); !errors.Is(err, apperrors.ErrServiceUnavailable) {
		t.Fatalf("err = %v, want ErrServiceUnavailable", err)
	}
}

func TestPresignBuildsObjectKey(t *testing.T) {
	store := &stubObjectStore{}
	svc := NewAttachmentService(store, 10*time.Minute)
	svc.now = func() time.Time { return time.Date(2026, 2, 14, 9, 30, 0, 0, time.UTC) }
	uploader := uuid.New()

	res, err := svc.Presign(context.Background(), PresignInput{
		UploaderID:  uploader,
		FileName:    `C:\reports\Shift Report.PDF`,
		ContentType: "Application/PDF",
		FileSize:    2048,
	})
	if err != nil {
		t.Fatalf("Presign: %v", err)
	}
	prefix := "attachments/" + uploader.String() + "/2026/02/14/"
	if !strings.HasPrefix(res.ObjectKey, prefix) || !strings.HasSuffix(res.ObjectKey, ".pdf") {
		t.Fatalf("ObjectKey = %q", res.ObjectKey)
	}
	if res.FileURL != "https://cdn.example/"+res.ObjectKey {
		t.Fatalf("FileURL = %q", res.FileURL)
	}
	if res.Headers["Content-Type"] != "application/pdf" {
		t.Fatalf("headers = %v", res.Headers)
	}
	if !res.ExpiresAt.Equal(svc.now().Add(10 * time.Minute)) {
		t.Fatalf("ExpiresAt = %s", res.ExpiresAt)
	}
}

func TestPresignValidation(t *testing.T) {
	svc := NewAttachmentService(&stubObjectStore{}, 0)
	cases := map[string]PresignInput{
		"type":  {FileName: "a.exe", ContentType: "application/x-msdownload", FileSize: 10},
		"empty": {FileName: "a.png", ContentType: "image/png", FileSize: 0},
		"large": {FileName: "a.png", ContentType: "image/png", FileSize: 26 << 20},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := svc.Presign(context.Background(), in); !errors.Is(err, apperrors.ErrInvalidInput) {
				t.Fatalf("err = %v, want ErrInvalidInput", err)
			}
		})
	}
}
