package domain

import (
	"context"
	"time"
)

// CacheRepository defines the interface for caching operations
type CacheRepository interface {
	Get(ctx context.Context, key string) (interface{}, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// ProductDataClient defines the interface for interacting with the OpenFoodFacts API
type ProductDataClient interface {
	SearchProducts(ctx context.Context, terms string) (*OFFSearchResponse, error)
	ProductsByCategory(ctx context.Context, category string, pageSize int) (*OFFSearchResponse, error)
}

// SustainabilityService is the backend the confirmation flow hands detected products to
type SustainabilityService interface {
	LookupProduct(ctx context.Context, productName string) ([]ProductInfo, error)
	Recommendations(ctx context.Context, categories []string, topN int) ([]Recommendation, error)
}

// ConfirmationUI is the surface that asks the user to confirm a detected product
type ConfirmationUI interface {
	// Show must not block on network work; it hands off and returns.
	Show(ctx context.Context, url string, candidate Candidate) error
	Remove() error
}

// ProductsListener receives the "products detected" event
type ProductsListener interface {
	ProductsDetected(url string, candidates []Candidate)
}
