package media

import (
	"context"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/fathima-sithara/dm-service/internal/apperror"
	"github.com/fathima-sithara/dm-service/internal/domain"
	"github.com/fathima-sithara/dm-service/internal/utils"
	"go.uber.org/zap"
)

// Store is the blob storage behind uploads.
type Store interface {
	Upload(ctx context.Context, key, contentType string, data []byte) (string, error)
	PresignURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

type Service struct {
	store      Store
	maxBytes   int64
	thumbWidth int
	presignTTL time.Duration
	log        *zap.SugaredLogger
}

func NewService(store Store, maxBytes int64, thumbWidth int, presignTTL time.Duration, log *zap.SugaredLogger) *Service {
	return &Service{store: store, maxBytes: maxBytes, thumbWidth: thumbWidth, presignTTL: presignTTL, log: log}
}

// KindFor maps a content type onto a message kind.
func KindFor(contentType string) domain.Kind {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return domain.KindImage
	case strings.HasPrefix(contentType, "audio/"):
		return domain.KindAudio
	case strings.HasPrefix(contentType, "video/"):
		return domain.KindVideo
	default:
		return domain.KindFile
	}
}

// Upload stores one attachment and returns what a message needs to
// reference it. Images also get a thumbnail, exposed as the poster.
func (s *Service) Upload(ctx context.Context, userID, fileName, contentType string, data []byte, duration float64) (*domain.Media, domain.Kind, error) {
	if len(data) == 0 {
		return nil, "", apperror.Invalid("file is empty")
	}
	if s.maxBytes > 0 && int64(len(data)) > s.maxBytes {
		return nil, "", apperror.Invalid("file is too large")
	}
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	kind := KindFor(contentType)

	name := path.Base(strings.ReplaceAll(fileName, "\\", "/"))
	if name == "." || name == "/" {
		name = "upload"
	}
	key := fmt.Sprintf("%s/%s_%s", userID, utils.NewID(), name)

	link, err := s.put(ctx, key, contentType, data)
	if err != nil {
		return nil, "", err
	}
	m := &domain.Media{URL: link, FileName: name, Size: int64(len(data))}
	if kind == domain.KindAudio || kind == domain.KindVideo {
		m.Duration = duration
	}

	if kind == domain.KindImage && s.thumbWidth > 0 {
		thumb, err := Thumbnail(data, s.thumbWidth)
		if err != nil {
			s.log.Warnw("thumbnail failed", "key", key, "err", err)
		} else if poster, err := s.put(ctx, key+"_thumb.jpg", "image/jpeg", thumb); err != nil {
			s.log.Warnw("thumbnail upload failed", "key", key, "err", err)
		} else {
			m.Poster = poster
		}
	}
	return m, kind, nil
}

func (s *Service) put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	link, err := s.store.Upload(ctx, key, contentType, data)
	if err != nil {
		return "", apperror.Wrap(apperror.Unavailable, "media storage unavailable", err)
	}
	if link != "" {
		return link, nil
	}
	link, err = s.store.PresignURL(ctx, key, s.presignTTL)
	if err != nil {
		return "", apperror.Wrap(apperror.Unavailable, "media storage unavailable", err)
	}
	return link, nil
}
