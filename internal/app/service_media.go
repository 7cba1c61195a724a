package app

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"casedesk/api/internal/media"
	"casedesk/api/internal/store"
	"casedesk/api/internal/util"
)

func mediaUnavailable() *DomainError {
	return domainError(http.StatusServiceUnavailable, "MEDIA_UNAVAILABLE", "Attachment storage is not configured", nil)
}

func (s *Service) ListCaseMedia(ctx context.Context, caseID string) ([]mediaView, error) {
	if _, err := s.store.GetCase(ctx, caseID); err != nil {
		return nil, err
	}
	items, err := s.store.ListMediaByCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	return mapSlice(items, toMediaView), nil
}

// UploadMedia stores the object first and then the row. A failed insert
// removes the object again.
func (s *Service) UploadMedia(ctx context.Context, sess Session, caseID string, upload *media.Upload) (mediaView, error) {
	if s.objects == nil {
		return mediaView{}, mediaUnavailable()
	}
	if _, err := s.store.GetCase(ctx, caseID); err != nil {
		return mediaView{}, err
	}

	id := util.NewID("med")
	item := store.Media{
		ID:          id,
		CaseID:      caseID,
		FileName:    upload.FileName,
		ContentType: upload.ContentType,
		SizeBytes:   upload.Size,
		Bucket:      s.objects.Bucket(),
		ObjectKey:   media.ObjectKey(caseID, id, upload.FileName),
		UploadedBy:  sess.UserID,
	}
	if err := s.objects.Put(ctx, item.ObjectKey, upload.Body, upload.Size, upload.ContentType); err != nil {
		return mediaView{}, err
	}
	if err := s.store.InsertMedia(ctx, item); err != nil {
		if rmErr := s.objects.Remove(ctx, item.ObjectKey); rmErr != nil {
			s.logger.Warn("remove orphaned object", zap.String("key", item.ObjectKey), zap.Error(rmErr))
		}
		return mediaView{}, err
	}
	created, err := s.store.GetMedia(ctx, id)
	if err != nil {
		return mediaView{}, err
	}
	return toMediaView(created), nil
}

// OpenMedia returns the row and a reader for its bytes. The caller closes
// the reader.
func (s *Service) OpenMedia(ctx context.Context, id string) (store.Media, io.ReadCloser, error) {
	if s.objects == nil {
		return store.Media{}, nil, mediaUnavailable()
	}
	item, err := s.store.GetMedia(ctx, id)
	if err != nil {
		return store.Media{}, nil, err
	}
	body, err := s.objects.Get(ctx, item.ObjectKey)
	if err != nil {
		return store.Media{}, nil, err
	}
	return item, body, nil
}

func (s *Service) DeleteMedia(ctx context.Context, id string) error {
	item, err := s.store.GetMedia(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteMedia(ctx, id); err != nil {
		return err
	}
	if s.objects != nil {
		if err := s.objects.Remove(ctx, item.ObjectKey); err != nil {
			s.logger.Warn("remove attachment object", zap.String("media_id", id), zap.Error(err))
		}
	}
	return nil
}

func (s *Service) SetMediaTags(ctx context.Context, id string, input TagIDsInput) (mediaView, error) {
	for _, tagID := range input.TagIDs {
		if _, err := s.store.GetTag(ctx, tagID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return mediaView{}, fieldError("tagIds", "contains an unknown tag")
			}
			return mediaView{}, err
		}
	}
	if err := s.store.SetMediaTags(ctx, id, input.TagIDs); err != nil {
		return mediaView{}, err
	}
	item, err := s.store.GetMedia(ctx, id)
	if err != nil {
		return mediaView{}, err
	}
	return toMediaView(item), nil
}
