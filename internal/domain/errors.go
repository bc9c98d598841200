package domain

import "errors"

var (
	// ErrProductNotFound is returned when the sustainability backend has no data for a product
	ErrProductNotFound = errors.New("product not found")

	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrUpstreamFailure is returned when an OpenFoodFacts request fails
	ErrUpstreamFailure = errors.New("OpenFoodFacts API request failed")

	// ErrCacheUnavailable is returned when cache service is unavailable
	ErrCacheUnavailable = errors.New("cache service unavailable")

	// ErrStructuredData is returned when an embedded JSON-LD block cannot be parsed
	ErrStructuredData = errors.New("malformed structured data")

	// ErrContextNotFound is returned when a browsing context id is unknown
	ErrContextNotFound = errors.New("browsing context not found")

	// ErrContextClosed is returned when work is posted to a stopped browsing context
	ErrContextClosed = errors.New("browsing context closed")

	// ErrRateLimited is returned when rate limit is exceeded
	ErrRateLimited = errors.New("rate limit exceeded")
)
