// Package cache keeps read-mostly catalog data in redis in front of postgres.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/carmarket/backend/internal/domain/partner"
	"github.com/redis/go-redis/v9"
)

const (
	keyActivePartners = "carmarket:partners:active"
	keyPartnerPrefix  = "carmarket:partners:id:"
)

func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	return redis.NewClient(opts), nil
}

// PartnerSource is a read-through partner.Source. Redis failures degrade to
// the wrapped source; they never fail the request.
type PartnerSource struct {
	next   partner.Source
	client redis.Cmdable
	ttl    time.Duration
	logger *slog.Logger
}

func NewPartnerSource(next partner.Source, client redis.Cmdable, ttl time.Duration, logger *slog.Logger) *PartnerSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &PartnerSource{next: next, client: client, ttl: ttl, logger: logger}
}

func (s *PartnerSource) ListActive(ctx context.Context) ([]partner.Entity, error) {
	var cached []partner.Entity
	if s.load(ctx, keyActivePartners, &cached) {
		return cached, nil
	}
	items, err := s.next.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	s.store(ctx, keyActivePartners, items)
	return items, nil
}

func (s *PartnerSource) GetByID(ctx context.Context, id string) (*partner.Entity, error) {
	key := keyPartnerPrefix + id
	var cached partner.Entity
	if s.load(ctx, key, &cached) {
		return &cached, nil
	}
	item, err := s.next.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.store(ctx, key, item)
	return item, nil
}

// Invalidate drops every cached partner entry, e.g. after an admin edit.
func (s *PartnerSource) Invalidate(ctx context.Context) error {
	keys := []string{keyActivePartners}
	iter := s.client.Scan(ctx, 0, keyPartnerPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	return s.client.Del(ctx, keys...).Err()
}

func (s *PartnerSource) load(ctx context.Context, key string, dst any) bool {
	raw, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn("partner cache read failed", "key", key, "err", err)
		}
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		s.logger.Warn("partner cache entry corrupt", "key", key, "err", err)
		return false
	}
	return true
}

func (s *PartnerSource) store(ctx context.Context, key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := s.client.Set(ctx, key, raw, s.ttl).Err(); err != nil {
		s.logger.Warn("partner cache write failed", "key", key, "err", err)
	}
}
