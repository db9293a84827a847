// Package search looks up stock and crypto symbols for entry forms, with a
// short-lived cache and a built-in list of popular symbols when the
// upstream search is unavailable.
package search

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/bobmcallan/networth/internal/common"
	"github.com/bobmcallan/networth/internal/interfaces"
	"github.com/bobmcallan/networth/internal/models"
)

const (
	DefaultCacheTTL  = 5 * time.Minute
	DefaultCacheSize = 256
	MaxResults       = 10
)

// Service implements interfaces.SearchService.
type Service struct {
	searchers map[models.SymbolKind]interfaces.SymbolSearcher
	cache     *expirable.LRU[string, []models.Suggestion]
	group     singleflight.Group
	logger    *common.Logger
}

// NewService creates a search service. A nil searcher means only the
// popular list is used for that kind.
func NewService(stocks, crypto interfaces.SymbolSearcher, ttl time.Duration, logger *common.Logger) *Service {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	searchers := make(map[models.SymbolKind]interfaces.SymbolSearcher, 2)
	if stocks != nil {
		searchers[models.SymbolKindStock] = stocks
	}
	if crypto != nil {
		searchers[models.SymbolKindCrypto] = crypto
	}
	return &Service{
		searchers: searchers,
		cache:     expirable.NewLRU[string, []models.Suggestion](DefaultCacheSize, nil, ttl),
		logger:    logger,
	}
}

// Search returns up to MaxResults suggestions for query. Upstream failures
// and empty upstream answers fall back to filtering the popular list.
// Non-empty answers of either kind are cached.
func (s *Service) Search(ctx context.Context, kind models.SymbolKind, query string) ([]models.Suggestion, error) {
	popular, ok := popularByKind[kind]
	if !ok {
		return nil, fmt.Errorf("unknown symbol kind %q", kind)
	}
	normalized := strings.ToUpper(strings.TrimSpace(query))
	if normalized == "" {
		return []models.Suggestion{}, nil
	}

	key := string(kind) + ":" + normalized
	if hit, ok := s.cache.Get(key); ok {
		return hit, nil
	}

	v, _, _ := s.group.Do(key, func() (any, error) {
		results := s.upstream(ctx, kind, query)
		if len(results) == 0 {
			results = filterPopular(popular, normalized)
		}
		if len(results) > 0 {
			s.cache.Add(key, results)
		}
		return results, nil
	})
	return v.([]models.Suggestion), nil
}

func (s *Service) upstream(ctx context.Context, kind models.SymbolKind, query string) []models.Suggestion {
	searcher, ok := s.searchers[kind]
	if !ok {
		return nil
	}
	results, err := searcher.Search(ctx, strings.TrimSpace(query))
	if err != nil {
		s.logger.Warn().Err(err).Str("kind", string(kind)).Msg("Symbol search failed, using popular list")
		return nil
	}
	if len(results) > MaxResults {
		results = results[:MaxResults]
	}
	return results
}

func filterPopular(list []models.Suggestion, upperQuery string) []models.Suggestion {
	out := make([]models.Suggestion, 0, MaxResults)
	for _, p := range list {
		if strings.Contains(strings.ToUpper(p.Symbol), upperQuery) || strings.Contains(strings.ToUpper(p.Name), upperQuery) {
			out = append(out, p)
			if len(out) == MaxResults {
				break
			}
		}
	}
	return out
}
