package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ecolens/backend/internal/domain"
	"github.com/ecolens/backend/internal/infrastructure/openfoodfacts"
)

// SustainabilityServiceConfig holds configuration for the sustainability service
type SustainabilityServiceConfig struct {
	CacheTTL         time.Duration
	CategoryPageSize int
}

// SustainabilityService looks up environmental data for detected products
type SustainabilityService struct {
	cache            domain.CacheRepository
	client           domain.ProductDataClient
	cacheTTL         time.Duration
	categoryPageSize int
	logger           *zap.Logger
}

// categoryAliases maps category slugs OpenFoodFacts does not know to ones it does
var categoryAliases = map[string]string{
	"ice-creams-and-sorbets": "ice-creams",
	"ice-cream-tubs":         "ice-creams",
	"frozen-foods":           "frozen-products",
}

// NewSustainabilityService creates a new sustainability service with dependencies
func NewSustainabilityService(
	cache domain.CacheRepository,
	client domain.ProductDataClient,
	config SustainabilityServiceConfig,
	logger *zap.Logger,
) *SustainabilityService {
	cacheTTL := config.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 720 * time.Hour // Default 30 days
	}
	pageSize := config.CategoryPageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &SustainabilityService{
		cache:            cache,
		client:           client,
		cacheTTL:         cacheTTL,
		categoryPageSize: pageSize,
		logger:           logger.Named("sustainability"),
	}
}

// LookupProduct returns every matching product that carries eco-score data.
// Flow: check cache -> search OpenFoodFacts -> keep scored products -> cache -> return
func (s *SustainabilityService) LookupProduct(ctx context.Context, productName string) ([]domain.ProductInfo, error) {
	if strings.TrimSpace(productName) == "" {
		return nil, domain.ErrInvalidRequest
	}

	cacheKey := url.PathEscape(productName)

	if cached, err := s.getFromCache(ctx, cacheKey); err == nil && len(cached) > 0 {
		s.logger.Debug("cache hit", zap.String("product", productName))
		return cached, nil
	}

	result, err := s.client.SearchProducts(ctx, productName)
	if err != nil {
		if errors.Is(err, domain.ErrProductNotFound) || errors.Is(err, domain.ErrRateLimited) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstreamFailure, err)
	}

	products := make([]domain.ProductInfo, 0, len(result.Products))
	for i := range result.Products {
		if info, ok := openfoodfacts.MapToProductInfo(&result.Products[i], cacheKey); ok {
			products = append(products, info)
		}
	}
	if len(products) == 0 {
		return nil, domain.ErrProductNotFound
	}

	if err := s.cache.Set(ctx, cacheKey, products, s.cacheTTL); err != nil {
		s.logger.Warn("failed to cache products", zap.String("key", cacheKey), zap.Error(err))
	}

	return products, nil
}

// Recommendations fetches products for each category and returns the topN
// best scored, one per product name. A failing category contributes nothing.
func (s *SustainabilityService) Recommendations(ctx context.Context, categories []string, topN int) ([]domain.Recommendation, error) {
	if len(categories) == 0 {
		categories = domain.DefaultRecommendationCategories
	}
	if topN <= 0 {
		topN = 3
	}

	best := make(map[string]domain.Recommendation)
	var order []string
	for _, category := range categories {
		slug := NormalizeCategory(category)
		result, err := s.client.ProductsByCategory(ctx, slug, s.categoryPageSize)
		if err != nil {
			s.logger.Warn("category lookup failed", zap.String("category", slug), zap.Error(err))
			continue
		}

		for i := range result.Products {
			rec, ok := openfoodfacts.MapToRecommendation(&result.Products[i], i)
			if !ok {
				continue
			}
			existing, seen := best[rec.ProductName]
			if !seen {
				order = append(order, rec.ProductName)
			}
			if !seen || rec.EcoscoreScore > existing.EcoscoreScore {
				best[rec.ProductName] = rec
			}
		}
	}

	if len(best) == 0 {
		return nil, domain.ErrProductNotFound
	}

	ranked := make([]domain.Recommendation, 0, len(best))
	for _, name := range order {
		ranked = append(ranked, best[name])
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].EcoscoreScore > ranked[j].EcoscoreScore
	})
	if len(ranked) > topN {
		ranked = ranked[:topN]
	}

	s.logger.Info("recommendations ranked", zap.Int("unique", len(best)), zap.Int("returned", len(ranked)))
	return ranked, nil
}

// NormalizeCategory turns a display category into an OpenFoodFacts tag slug
func NormalizeCategory(category string) string {
	slug := strings.ToLower(strings.TrimSpace(category))
	slug = strings.NewReplacer(" ", "-", "_", "-").Replace(slug)
	if alias, ok := categoryAliases[slug]; ok {
		return alias
	}
	return slug
}

// SelectBestProduct picks the product with the highest quality score, or nil
// when no product scores above zero
func SelectBestProduct(products []domain.ProductInfo) *domain.ProductInfo {
	var best *domain.ProductInfo
	bestScore := 0.0
	for i := range products {
		score := productQualityScore(products[i])
		if score > bestScore {
			best = &products[i]
			bestScore = score
		}
	}
	return best
}

// productQualityScore favours well-documented products with a good eco-score
func productQualityScore(p domain.ProductInfo) float64 {
	score := p.EnvironmentalScoreData.AdjustedScore * 0.6

	if p.Name != "" {
		score += 10
	}
	score += min(float64(len(p.Categories))*2, 10)
	if p.EnvironmentalScoreData.Agribalyse != nil {
		score += 5
	}
	if len(p.EnvironmentalScoreData.MaterialScores) > 0 {
		score += 5
	}
	if p.ID == "" {
		score -= 20
	}

	return max(score, 0)
}

// getFromCache retrieves products from cache. Cached values may come back as
// decoded JSON rather than typed values, so they are re-decoded.
func (s *SustainabilityService) getFromCache(ctx context.Context, key string) ([]domain.ProductInfo, error) {
	value, err := s.cache.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	if products, ok := value.([]domain.ProductInfo); ok {
		return products, nil
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return nil, domain.ErrCacheMiss
	}
	var products []domain.ProductInfo
	if err := json.Unmarshal(raw, &products); err != nil {
		return nil, domain.ErrCacheMiss
	}
	return products, nil
}
