package service

import (
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/noteduco342/tourchat-backend/internal/access"
	"github.com/noteduco342/tourchat-backend/internal/apperr"
	"github.com/noteduco342/tourchat-backend/internal/models"
	"github.com/noteduco342/tourchat-backend/internal/repository"
	"github.com/noteduco342/tourchat-backend/internal/storage"
	"github.com/sirupsen/logrus"
)

var ErrStorageNotConfigured = errors.New("storage not configured")

// ObjectStore is the subset of storage.S3Storage used for attachments.
type ObjectStore interface {
	PutObject(ctx context.Context, key string, body io.Reader, size int64, contentType string) (storage.ObjectStat, error)
	GetObject(ctx context.Context, key string) (io.ReadCloser, storage.ObjectStat, error)
}

// Attachment describes an uploaded object. Clients put Key into message
// metadata.
type Attachment struct {
	Key         string             `json:"key"`
	URL         string             `json:"url"`
	ContentType string             `json:"content_type"`
	Size        int64              `json:"size"`
	Type        models.MessageType `json:"type"`
}

type MediaService struct {
	store     ObjectStore
	groupRepo repository.GroupRepositoryInterface
	log       logrus.FieldLogger
}

func NewMediaService(store ObjectStore, groupRepo repository.GroupRepositoryInterface, log logrus.FieldLogger) *MediaService {
	return &MediaService{store: store, groupRepo: groupRepo, log: log}
}

func (s *MediaService) gate(groupID, userID uint) error {
	group, err := s.groupRepo.FindByID(groupID)
	if err != nil {
		if repository.IsNotFound(err) {
			return apperr.NotFound("group_not_found", "Group not found")
		}
		return apperr.Unexpected("group_lookup_failed", err)
	}
	if !access.CanAccessGroup(userID, group) {
		return apperr.Forbidden("group_forbidden", "Access denied")
	}
	return nil
}

// Upload stores an attachment under the group's prefix. Images are
// re-encoded to JPEG; other files are accepted by sniffed type.
func (s *MediaService) Upload(ctx context.Context, userID, groupID uint, kind models.MessageType, body io.Reader, baseURL string) (*Attachment, error) {
	if s == nil || s.store == nil {
		return nil, ErrStorageNotConfigured
	}
	if kind != models.ImageMessage && kind != models.FileMessage {
		return nil, apperr.Validation("invalid_type", "type must be image or file")
	}
	if err := s.gate(groupID, userID); err != nil {
		return nil, err
	}

	var (
		data        []byte
		contentType string
		ext         string
		err         error
	)
	if kind == models.ImageMessage {
		data, contentType, _, err = storage.ProcessImage(body, storage.DefaultImageOptions())
		ext = "jpg"
	} else {
		data, contentType, ext, err = storage.ReadFile(body, storage.MaxFileBytes)
	}
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrTooLarge):
			return nil, apperr.Validation("file_too_large", "File is too large")
		case errors.Is(err, storage.ErrUnsupported):
			return nil, apperr.Validation("unsupported_type", "Unsupported file type")
		case errors.Is(err, storage.ErrInvalidImage), errors.Is(err, storage.ErrEmptyFile):
			return nil, apperr.Validation("invalid_file", "Invalid file")
		}
		return nil, apperr.Validation("invalid_file", "Invalid file")
	}

	key := storage.AttachmentKey(groupID, ext)
	st, err := s.store.PutObject(ctx, key, bytes.NewReader(data), int64(len(data)), contentType)
	if err != nil {
		return nil, apperr.Unexpected("media_upload_failed", err)
	}
	s.log.WithFields(logrus.Fields{"group_id": groupID, "user_id": userID, "key": key, "size": st.Size}).Info("attachment uploaded")

	return &Attachment{
		Key:         key,
		URL:         baseURL + "/media/" + key,
		ContentType: contentType,
		Size:        int64(len(data)),
		Type:        kind,
	}, nil
}

// Open returns a reader for key if the user can access the owning group.
// The caller closes the reader.
func (s *MediaService) Open(ctx context.Context, userID uint, rawKey string) (io.ReadCloser, storage.ObjectStat, error) {
	if s == nil || s.store == nil {
		return nil, storage.ObjectStat{}, ErrStorageNotConfigured
	}
	key, err := storage.SafeKey(rawKey)
	if err != nil {
		return nil, storage.ObjectStat{}, apperr.NotFound("not_found", "Not found")
	}
	groupID, err := storage.GroupIDFromKey(key)
	if err != nil {
		return nil, storage.ObjectStat{}, apperr.NotFound("not_found", "Not found")
	}
	if err := s.gate(groupID, userID); err != nil {
		return nil, storage.ObjectStat{}, err
	}

	obj, st, err := s.store.GetObject(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, storage.ObjectStat{}, apperr.NotFound("not_found", "Not found")
		}
		return nil, storage.ObjectStat{}, apperr.Unexpected("media_fetch_failed", err)
	}
	return obj, st, nil
}
