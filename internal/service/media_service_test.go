package service

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/noteduco342/tourchat-backend/internal/apperr"
	"github.com/noteduco342/tourchat-backend/internal/logger"
	"github.com/noteduco342/tourchat-backend/internal/models"
	"github.com/noteduco342/tourchat-backend/internal/storage"
)

type memoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *memoryStore) PutObject(_ context.Context, key string, body io.Reader, size int64, contentType string) (storage.ObjectStat, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return storage.ObjectStat{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	m.types[key] = contentType
	return storage.ObjectStat{ETag: "etag-" + key, Size: size, ContentType: contentType}, nil
}

func (m *memoryStore) GetObject(_ context.Context, key string) (io.ReadCloser, storage.ObjectStat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, storage.ObjectStat{}, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), storage.ObjectStat{ETag: "etag-" + key, Size: int64(len(data)), ContentType: m.types[key]}, nil
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for x := 0; x < 8; x++ {
		img.Set(x, x, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode() error = %v", err)
	}
	return buf.Bytes()
}

func TestMediaUploadAndOpen(t *testing.T) {
	f := newGroupFixture(t)
	store := newMemoryStore()
	svc := NewMediaService(store, f.db.Groups(), logger.Discard())
	ctx := context.Background()

	att, err := svc.Upload(ctx, f.member.ID, f.group.ID, models.ImageMessage, bytes.NewReader(pngBytes(t)), "/api")
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if att.ContentType != "image/jpeg" {
		t.Errorf("ContentType = %q, want image/jpeg", att.ContentType)
	}
	if !strings.HasSuffix(att.Key, ".jpg") || !strings.HasPrefix(att.URL, "/api/media/groups/") {
		t.Errorf("unexpected key/url: %q %q", att.Key, att.URL)
	}

	rc, st, err := svc.Open(ctx, f.guide.ID, att.Key)
	if err != nil {
		t.Fatalf("Open() by guide error = %v", err)
	}
	defer rc.Close()
	if st.Size != att.Size {
		t.Errorf("Size = %d, want %d", st.Size, att.Size)
	}

	_, _, err = svc.Open(ctx, f.outsider.ID, att.Key)
	assertKind(t, err, apperr.KindForbidden)
}

func TestMediaUploadFile(t *testing.T) {
	f := newGroupFixture(t)
	svc := NewMediaService(newMemoryStore(), f.db.Groups(), logger.Discard())

	att, err := svc.Upload(context.Background(), f.guide.ID, f.group.ID, models.FileMessage, strings.NewReader("%PDF-1.4\nitinerary"), "")
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if att.ContentType != "application/pdf" || !strings.HasSuffix(att.Key, ".pdf") {
		t.Errorf("attachment = %+v, want pdf", att)
	}
}

func TestMediaUploadErrors(t *testing.T) {
	f := newGroupFixture(t)
	svc := NewMediaService(newMemoryStore(), f.db.Groups(), logger.Discard())
	ctx := context.Background()

	tests := []struct {
		name    string
		userID  uint
		groupID uint
		kind    models.MessageType
		body    []byte
		want    apperr.Kind
	}{
		{"Outsider", f.outsider.ID, f.group.ID, models.FileMessage, []byte("hello"), apperr.KindForbidden},
		{"Missing group", f.member.ID, 9999, models.FileMessage, []byte("hello"), apperr.KindNotFound},
		{"Text type rejected", f.member.ID, f.group.ID, models.TextMessage, []byte("hello"), apperr.KindValidation},
		{"Executable", f.member.ID, f.group.ID, models.FileMessage, append([]byte("MZ"), make([]byte, 64)...), apperr.KindValidation},
		{"Empty file", f.member.ID, f.group.ID, models.FileMessage, nil, apperr.KindValidation},
		{"Broken image", f.member.ID, f.group.ID, models.ImageMessage, []byte("not an image at all"), apperr.KindValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Upload(ctx, tt.userID, tt.groupID, tt.kind, bytes.NewReader(tt.body), "")
			assertKind(t, err, tt.want)
		})
	}
}

func TestMediaOpenRejectsBadKeys(t *testing.T) {
	f := newGroupFixture(t)
	svc := NewMediaService(newMemoryStore(), f.db.Groups(), logger.Discard())

	for _, key := range []string{"../etc/passwd", "avatars/1.jpg", "groups/abc/x.jpg", "groups/" + strconv.FormatUint(uint64(f.group.ID), 10) + "/missing.jpg"} {
		t.Run(key, func(t *testing.T) {
			_, _, err := svc.Open(context.Background(), f.member.ID, key)
			assertKind(t, err, apperr.KindNotFound)
		})
	}
}

func TestMediaWithoutStore(t *testing.T) {
	svc := NewMediaService(nil, nil, logger.Discard())
	if _, err := svc.Upload(context.Background(), 1, 1, models.FileMessage, strings.NewReader("x"), ""); err != ErrStorageNotConfigured {
		t.Errorf("Upload() error = %v, want ErrStorageNotConfigured", err)
	}
	if _, _, err := svc.Open(context.Background(), 1, "groups/1/a.jpg"); err != ErrStorageNotConfigured {
		t.Errorf("Open() error = %v, want ErrStorageNotConfigured", err)
	}
}
