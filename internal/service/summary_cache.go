package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/qr-attendance-api/internal/dto"
)

// SummaryInvalidator drops any cached summary of a session.
type SummaryInvalidator interface {
	InvalidateSummary(ctx context.Context, sessionID uint)
}

// SummaryCache stores summaries of closed sessions in redis. A nil cache is a no-op.
type SummaryCache struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewSummaryCache returns nil when no client is configured or the ttl disables caching.
func NewSummaryCache(client *redis.Client, ttl time.Duration, logger zerolog.Logger) *SummaryCache {
	if client == nil || ttl <= 0 {
		return nil
	}
	return &SummaryCache{
		client: client,
		ttl:    ttl,
		logger: logger.With().Str("component", "summary_cache").Logger(),
	}
}

func summaryCacheKey(sessionID uint) string {
	return fmt.Sprintf("attendance:summary:%d", sessionID)
}

// InvalidateSummary removes the cached summary of sessionID.
func (c *SummaryCache) InvalidateSummary(ctx context.Context, sessionID uint) {
	if c == nil {
		return
	}
	if err := c.client.Del(ctx, summaryCacheKey(sessionID)).Err(); err != nil {
		c.logger.Warn().Err(err).Uint("session_id", sessionID).Msg("failed to invalidate summary cache")
	}
}

// cachedAttendanceService serves summaries of closed sessions from redis.
// Summaries of active sessions are always computed fresh.
type cachedAttendanceService struct {
	AttendanceService
	cache *SummaryCache
}

// NewCachedAttendanceService wraps the attendance service with the summary cache.
// A nil cache returns the service unchanged.
func NewCachedAttendanceService(next AttendanceService, cache *SummaryCache) AttendanceService {
	if cache == nil {
		return next
	}
	return &cachedAttendanceService{AttendanceService: next, cache: cache}
}

func (s *cachedAttendanceService) SessionSummary(ctx context.Context, sessionID uint) (dto.SessionSummaryResponse, error) {
	cacheKey := summaryCacheKey(sessionID)
	tracer := otel.Tracer("github.com/noah-isme/qr-attendance-api/internal/service/summary_cache")
	ctx, span := tracer.Start(ctx, "attendance.summary")
	span.SetAttributes(attribute.String("summary.cache_key", cacheKey))
	defer span.End()

	cached, err := s.cache.client.Get(ctx, cacheKey).Result()
	if err == nil {
		var response dto.SessionSummaryResponse
		if unmarshalErr := json.Unmarshal([]byte(cached), &response); unmarshalErr == nil {
			response.CacheHit = true
			span.SetAttributes(attribute.Bool("summary.cache_hit", true))
			return response, nil
		}
	} else if err != redis.Nil {
		s.cache.logger.Warn().Err(err).Uint("session_id", sessionID).Msg("failed to read summary cache")
		span.RecordError(err)
	}

	summary, err := s.AttendanceService.SessionSummary(ctx, sessionID)
	if err != nil {
		return dto.SessionSummaryResponse{}, err
	}

	if summary.Closed {
		payload, err := json.Marshal(summary)
		if err == nil {
			if err := s.cache.client.Set(ctx, cacheKey, payload, s.cache.ttl).Err(); err != nil {
				s.cache.logger.Warn().Err(err).Uint("session_id", sessionID).Msg("failed to store summary cache")
				span.RecordError(err)
			}
		}
	}

	return summary, nil
}
