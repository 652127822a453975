package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"strings"
	"time"

	"techsolutions/backend/internal/domain"
)

// CatalogCache holds sellable-product listings keyed by search query.
// Purge drops every entry and is called whenever stock changes.
type CatalogCache interface {
	Get(ctx context.Context, query string) ([]domain.SellableProduct, bool, error)
	Set(ctx context.Context, query string, value []domain.SellableProduct, ttl time.Duration) error
	Purge(ctx context.Context) error
}

type NoopCatalogCache struct{}

func (NoopCatalogCache) Get(_ context.Context, _ string) ([]domain.SellableProduct, bool, error) {
	return nil, false, nil
}

func (NoopCatalogCache) Set(_ context.Context, _ string, _ []domain.SellableProduct, _ time.Duration) error {
	return nil
}

func (NoopCatalogCache) Purge(_ context.Context) error {
	return nil
}

const keyPrefix = "catalog:sellable:"

func entryKey(query string) string {
	sum := sha1.Sum([]byte(strings.ToLower(strings.TrimSpace(query))))
	return keyPrefix + hex.EncodeToString(sum[:])
}
