package catalog

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// Service serves menu lookups. Menu listings go through the cache; single
// item reads used for pricing do not.
type Service struct {
	repo   Repository
	cache  *Cache
	group  singleflight.Group
	logger *slog.Logger
}

// NewService constructs the catalog service. cache may be nil.
func NewService(repo Repository, cache *Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, logger: logger}
}

// MenuItem reads one item from the database, bypassing the cache, since order
// lines snapshot its price. Concurrent reads of one item share a query.
func (s *Service) MenuItem(ctx context.Context, id uuid.UUID) (MenuItem, error) {
	v, err, _ := s.group.Do("item:"+id.String(), func() (any, error) {
		return s.repo.GetMenuItem(ctx, id)
	})
	if err != nil {
		return MenuItem{}, err
	}
	return v.(MenuItem), nil
}

// Menu lists menu items, active only when requested.
func (s *Service) Menu(ctx context.Context, activeOnly bool) ([]MenuItem, error) {
	flag := "all"
	if activeOnly {
		flag = "active"
	}
	key, err := s.cache.BuildKey(ctx, "catalog", "menu", flag)
	if err != nil {
		s.logger.Warn("catalog cache key", slog.Any("error", err))
		return s.repo.ListMenuItems(ctx, activeOnly)
	}
	var items []MenuItem
	err = s.cache.FetchJSON(ctx, key, &items, func(ctx context.Context) (any, error) {
		return s.repo.ListMenuItems(ctx, activeOnly)
	})
	return items, err
}

// Invalidate drops every cached menu entry.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.Bump(ctx)
}
