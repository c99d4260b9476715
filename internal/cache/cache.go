package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"strings"
	"time"

	"roxtor/backend/internal/domain"
)

type DraftCache interface {
	Get(ctx context.Context, key string) (*domain.Draft, bool, error)
	Set(ctx context.Context, key string, value *domain.Draft, ttl time.Duration) error
}

type NoopDraftCache struct{}

func (NoopDraftCache) Get(_ context.Context, _ string) (*domain.Draft, bool, error) {
	return nil, false, nil
}

func (NoopDraftCache) Set(_ context.Context, _ string, _ *domain.Draft, _ time.Duration) error {
	return nil
}

// DraftKey hashes everything a draft depends on, so a rate or catalog change
// misses the cache.
func DraftKey(parts ...string) string {
	sum := sha1.Sum([]byte(strings.Join(parts, "\x1f")))
	return "draft:" + hex.EncodeToString(sum[:])
}
