package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ecolens/backend/internal/domain"
)

// MockCacheRepository is a mock implementation of domain.CacheRepository
type MockCacheRepository struct {
	mu        sync.Mutex
	data      map[string]interface{}
	getError  error
	setError  error
	getCalled bool
	setCalled bool
}

func NewMockCacheRepository() *MockCacheRepository {
	return &MockCacheRepository{
		data: make(map[string]interface{}),
	}
}

func (m *MockCacheRepository) Get(ctx context.Context, key string) (interface{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalled = true
	if m.getError != nil {
		return nil, m.getError
	}
	if value, ok := m.data[key]; ok {
		return value, nil
	}
	return nil, domain.ErrCacheMiss
}

func (m *MockCacheRepository) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setCalled = true
	if m.setError != nil {
		return m.setError
	}
	m.data[key] = value
	return nil
}

func (m *MockCacheRepository) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *MockCacheRepository) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok, nil
}

func (m *MockCacheRepository) value(key string) (interface{}, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok
}

// MockProductDataClient is a mock implementation of domain.ProductDataClient
type MockProductDataClient struct {
	searchResult   *domain.OFFSearchResponse
	searchError    error
	searchCalls    int
	categoryResult map[string]*domain.OFFSearchResponse
	categoryError  map[string]error
	categories     []string
}

func NewMockProductDataClient() *MockProductDataClient {
	return &MockProductDataClient{
		categoryResult: make(map[string]*domain.OFFSearchResponse),
		categoryError:  make(map[string]error),
	}
}

func (m *MockProductDataClient) SearchProducts(ctx context.Context, terms string) (*domain.OFFSearchResponse, error) {
	m.searchCalls++
	if m.searchError != nil {
		return nil, m.searchError
	}
	return m.searchResult, nil
}

func (m *MockProductDataClient) ProductsByCategory(ctx context.Context, category string, pageSize int) (*domain.OFFSearchResponse, error) {
	m.categories = append(m.categories, category)
	if err := m.categoryError[category]; err != nil {
		return nil, err
	}
	if result, ok := m.categoryResult[category]; ok {
		return result, nil
	}
	return &domain.OFFSearchResponse{}, nil
}

func ptr(f float64) *float64 { return &f }

func scoredProduct(id, name string, score float64) domain.OFFProduct {
	return domain.OFFProduct{
		ID:          id,
		ProductName: name,
		EcoscoreData: &domain.OFFEcoscore{
			Score: ptr(score),
			Grade: "b",
		},
	}
}

func TestNewSustainabilityService(t *testing.T) {
	cache := NewMockCacheRepository()
	client := NewMockProductDataClient()

	t.Run("creates service with default values", func(t *testing.T) {
		svc := NewSustainabilityService(cache, client, SustainabilityServiceConfig{}, nil)
		if svc == nil {
			t.Fatal("expected service to be created")
		}
		if svc.cacheTTL != 720*time.Hour {
			t.Errorf("cacheTTL = %v, want 720h", svc.cacheTTL)
		}
		if svc.categoryPageSize != 20 {
			t.Errorf("categoryPageSize = %v, want 20", svc.categoryPageSize)
		}
	})

	t.Run("creates service with custom values", func(t *testing.T) {
		svc := NewSustainabilityService(cache, client, SustainabilityServiceConfig{
			CacheTTL:         24 * time.Hour,
			CategoryPageSize: 50,
		}, nil)
		if svc.cacheTTL != 24*time.Hour {
			t.Errorf("cacheTTL = %v, want 24h", svc.cacheTTL)
		}
		if svc.categoryPageSize != 50 {
			t.Errorf("categoryPageSize = %v, want 50", svc.categoryPageSize)
		}
	})
}

func TestLookupProduct(t *testing.T) {
	ctx := context.Background()

	t.Run("returns error for empty product name", func(t *testing.T) {
		svc := NewSustainabilityService(NewMockCacheRepository(), NewMockProductDataClient(), SustainabilityServiceConfig{}, nil)

		_, err := svc.LookupProduct(ctx, "  ")
		if !errors.Is(err, domain.ErrInvalidRequest) {
			t.Errorf("error = %v, want ErrInvalidRequest", err)
		}
	})

	t.Run("keeps only products with eco-score data and caches them", func(t *testing.T) {
		cache := NewMockCacheRepository()
		client := NewMockProductDataClient()
		client.searchResult = &domain.OFFSearchResponse{
			Products: []domain.OFFProduct{
				scoredProduct("1", "Nutella", 23),
				{ID: "2", ProductName: "Nutella Biscuits"},
			},
		}
		svc := NewSustainabilityService(cache, client, SustainabilityServiceConfig{}, nil)

		products, err := svc.LookupProduct(ctx, "nutella hazelnut spread")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(products) != 1 {
			t.Fatalf("len(products) = %d, want 1", len(products))
		}
		if products[0].CacheKey != "nutella%20hazelnut%20spread" {
			t.Errorf("CacheKey = %q, want url-escaped name", products[0].CacheKey)
		}
		if _, ok := cache.value("nutella%20hazelnut%20spread"); !ok {
			t.Error("expected products to be cached")
		}
	})

	t.Run("returns cached products without calling upstream", func(t *testing.T) {
		cache := NewMockCacheRepository()
		cache.data["oat%20drink"] = []interface{}{
			map[string]interface{}{"id": "9", "name": "Oat Drink"},
		}
		client := NewMockProductDataClient()
		svc := NewSustainabilityService(cache, client, SustainabilityServiceConfig{}, nil)

		products, err := svc.LookupProduct(ctx, "oat drink")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if client.searchCalls != 0 {
			t.Errorf("searchCalls = %d, want 0", client.searchCalls)
		}
		if len(products) != 1 || products[0].Name != "Oat Drink" {
			t.Errorf("products = %+v, want cached Oat Drink", products)
		}
	})

	t.Run("not found when no product has eco-score data", func(t *testing.T) {
		client := NewMockProductDataClient()
		client.searchResult = &domain.OFFSearchResponse{
			Products: []domain.OFFProduct{{ID: "2", ProductName: "Mystery"}},
		}
		svc := NewSustainabilityService(NewMockCacheRepository(), client, SustainabilityServiceConfig{}, nil)

		_, err := svc.LookupProduct(ctx, "mystery")
		if !errors.Is(err, domain.ErrProductNotFound) {
			t.Errorf("error = %v, want ErrProductNotFound", err)
		}
	})

	t.Run("passes through not found", func(t *testing.T) {
		client := NewMockProductDataClient()
		client.searchError = domain.ErrProductNotFound
		svc := NewSustainabilityService(NewMockCacheRepository(), client, SustainabilityServiceConfig{}, nil)

		_, err := svc.LookupProduct(ctx, "mystery")
		if !errors.Is(err, domain.ErrProductNotFound) {
			t.Errorf("error = %v, want ErrProductNotFound", err)
		}
	})

	t.Run("passes through rate limiting", func(t *testing.T) {
		client := NewMockProductDataClient()
		client.searchError = fmt.Errorf("%w: 429 Too Many Requests", domain.ErrRateLimited)
		svc := NewSustainabilityService(NewMockCacheRepository(), client, SustainabilityServiceConfig{}, nil)

		_, err := svc.LookupProduct(ctx, "nutella")
		if !errors.Is(err, domain.ErrRateLimited) {
			t.Errorf("error = %v, want ErrRateLimited", err)
		}
		if errors.Is(err, domain.ErrUpstreamFailure) {
			t.Errorf("error = %v, rate limiting must not read as an upstream failure", err)
		}
	})

	t.Run("wraps upstream errors", func(t *testing.T) {
		client := NewMockProductDataClient()
		client.searchError = errors.New("connection refused")
		svc := NewSustainabilityService(NewMockCacheRepository(), client, SustainabilityServiceConfig{}, nil)

		_, err := svc.LookupProduct(ctx, "mystery")
		if !errors.Is(err, domain.ErrUpstreamFailure) {
			t.Errorf("error = %v, want ErrUpstreamFailure", err)
		}
	})

	t.Run("cache write failure does not fail lookup", func(t *testing.T) {
		cache := NewMockCacheRepository()
		cache.setError = errors.New("cache down")
		client := NewMockProductDataClient()
		client.searchResult = &domain.OFFSearchResponse{
			Products: []domain.OFFProduct{scoredProduct("1", "Nutella", 23)},
		}
		svc := NewSustainabilityService(cache, client, SustainabilityServiceConfig{}, nil)

		if _, err := svc.LookupProduct(ctx, "nutella"); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestRecommendations(t *testing.T) {
	ctx := context.Background()

	t.Run("uses default categories", func(t *testing.T) {
		client := NewMockProductDataClient()
		svc := NewSustainabilityService(NewMockCacheRepository(), client, SustainabilityServiceConfig{}, nil)

		_, err := svc.Recommendations(ctx, nil, 3)
		if !errors.Is(err, domain.ErrProductNotFound) {
			t.Errorf("error = %v, want ErrProductNotFound", err)
		}
		if len(client.categories) != len(domain.DefaultRecommendationCategories) {
			t.Errorf("categories queried = %v, want defaults", client.categories)
		}
	})

	t.Run("dedupes by name keeping the higher score and returns top N", func(t *testing.T) {
		client := NewMockProductDataClient()
		client.categoryResult["ice-creams"] = &domain.OFFSearchResponse{
			Products: []domain.OFFProduct{
				{ID: "1", ProductName: "Sorbet", EcoscoreScore: ptr(60)},
				{ID: "2", ProductName: "Gelato", EcoscoreGrade: "a"},
				{ID: "3", ProductName: "Cone", EcoscoreScore: ptr(10)},
			},
		}
		client.categoryResult["frozen-products"] = &domain.OFFSearchResponse{
			Products: []domain.OFFProduct{
				{ID: "4", ProductName: "Sorbet", EcoscoreScore: ptr(90)},
				{ID: "5", ProductName: "Peas", EcoscoreScore: ptr(70)},
			},
		}
		client.categoryError["broken"] = errors.New("timeout")
		svc := NewSustainabilityService(NewMockCacheRepository(), client, SustainabilityServiceConfig{}, nil)

		recs, err := svc.Recommendations(ctx, []string{"Ice Cream Tubs", "frozen_foods", "broken"}, 3)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := []struct {
			name  string
			score float64
		}{
			{"Sorbet", 90},
			{"Gelato", 80},
			{"Peas", 70},
		}
		if len(recs) != len(want) {
			t.Fatalf("len(recs) = %d, want %d", len(recs), len(want))
		}
		for i, w := range want {
			if recs[i].ProductName != w.name || recs[i].EcoscoreScore != w.score {
				t.Errorf("recs[%d] = %s/%v, want %s/%v", i, recs[i].ProductName, recs[i].EcoscoreScore, w.name, w.score)
			}
		}
	})
}

func TestNormalizeCategory(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Plant Based Foods", "plant-based-foods"},
		{"cereals_and_potatoes", "cereals-and-potatoes"},
		{"ice-creams-and-sorbets", "ice-creams"},
		{"Ice Cream Tubs", "ice-creams"},
		{"frozen foods", "frozen-products"},
		{"  Spreads ", "spreads"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := NormalizeCategory(tt.input); got != tt.want {
				t.Errorf("NormalizeCategory(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSelectBestProduct(t *testing.T) {
	t.Run("nil for empty input", func(t *testing.T) {
		if got := SelectBestProduct(nil); got != nil {
			t.Errorf("SelectBestProduct(nil) = %+v, want nil", got)
		}
	})

	t.Run("prefers documented products", func(t *testing.T) {
		products := []domain.ProductInfo{
			{ID: "1", Name: "Bare", EnvironmentalScoreData: domain.EnvironmentalScore{AdjustedScore: 40}},
			{
				ID:         "2",
				Name:       "Documented",
				Categories: []string{"Spreads", "Sweet Spreads", "Hazelnut Spreads"},
				EnvironmentalScoreData: domain.EnvironmentalScore{
					AdjustedScore:  30,
					Agribalyse:     &domain.Agribalyse{CO2Total: 5},
					MaterialScores: map[string]domain.MaterialScore{"GLASS": {Material: "en:glass"}},
				},
			},
		}
		// Bare: 24 + 10 = 34. Documented: 18 + 10 + 6 + 5 + 5 = 44.
		got := SelectBestProduct(products)
		if got == nil || got.ID != "2" {
			t.Errorf("SelectBestProduct() = %+v, want product 2", got)
		}
	})

	t.Run("missing id is penalised", func(t *testing.T) {
		if score := productQualityScore(domain.ProductInfo{Name: "x"}); score != 0 {
			t.Errorf("productQualityScore() = %v, want 0 (floored)", score)
		}
		if got := SelectBestProduct([]domain.ProductInfo{{Name: "x"}}); got != nil {
			t.Errorf("SelectBestProduct() = %+v, want nil", got)
		}
	})
}
