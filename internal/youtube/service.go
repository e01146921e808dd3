package youtube

import (
	"context"
	"errors"

	"github.com/helpyt/internal/metrics"
	"go.uber.org/zap"
)

// Service 组合 API 客户端与缓存，为频道表单提供预填信息。
type Service struct {
	client  *Client
	cache   Cache
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewService 创建 Service，cache 可为 nil。
func NewService(client *Client, cache Cache, logger *zap.Logger, m *metrics.Metrics) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{client: client, cache: cache, logger: logger, metrics: m}
}

// Configured 判断是否具备调用 API 的条件。
func (s *Service) Configured() bool {
	return s != nil && s.client.Configured()
}

// LookupByVideo 返回视频所属频道的信息，优先使用未过期的缓存。
// 缓存读写失败只记录日志。
func (s *Service) LookupByVideo(ctx context.Context, videoID string) (ChannelMetadata, error) {
	if s.cache != nil {
		meta, hit, err := s.cache.Get(ctx, videoID)
		if err != nil {
			s.logger.Warn("metadata cache read failed", zap.String("videoId", videoID), zap.Error(err))
		}
		s.metrics.ObserveCache(hit)
		if hit {
			return meta, nil
		}
	}

	meta, err := s.client.ChannelByVideo(ctx, videoID)
	if err != nil {
		s.metrics.ObserveYouTube(lookupOutcome(err))
		return ChannelMetadata{}, err
	}
	s.metrics.ObserveYouTube("ok")

	if s.cache != nil {
		if err := s.cache.Put(ctx, videoID, meta); err != nil {
			s.logger.Warn("metadata cache write failed", zap.String("videoId", videoID), zap.Error(err))
		}
	}
	return meta, nil
}

func lookupOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrVideoNotFound), errors.Is(err, ErrChannelNotFound):
		return "not_found"
	case errors.Is(err, ErrAPIKeyMissing):
		return "unconfigured"
	default:
		return "error"
	}
}
