package openfoodfacts

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ecolens/backend/internal/domain"
)

const (
	// DefaultBaseURL is the public OpenFoodFacts instance
	DefaultBaseURL = "https://world.openfoodfacts.net"
	// DefaultUserAgent identifies EcoLens to OpenFoodFacts as their API terms require
	DefaultUserAgent = "EcoLens/1.0 (ecolens@example.com)"

	searchPath     = "/cgi/search.pl"
	categoryFields = "_id,product_name,product_name_en,generic_name,generic_name_en,ecoscore_score,ecoscore_grade"
	maxErrorBody   = 512
)

// Config holds the client settings
type Config struct {
	BaseURL           string
	UserAgent         string
	Timeout           time.Duration
	RetryMax          int
	RetryWaitMin      time.Duration
	RetryWaitMax      time.Duration
	RequestsPerSecond float64
	Burst             int
}

// Client talks to the OpenFoodFacts search API
type Client struct {
	httpClient  *retryablehttp.Client
	baseURL     string
	userAgent   string
	rateLimiter *rate.Limiter
	logger      *zap.Logger
}

// NewClient creates a rate-limited OpenFoodFacts client with retries on
// connection errors and 5xx/429 responses
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RequestsPerSecond <= 0 {
		// OpenFoodFacts asks for at most 10 search requests per minute
		cfg.RequestsPerSecond = 10.0 / 60.0
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 5
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.RetryMax
	if cfg.RetryWaitMin > 0 {
		retryClient.RetryWaitMin = cfg.RetryWaitMin
	}
	if cfg.RetryWaitMax > 0 {
		retryClient.RetryWaitMax = cfg.RetryWaitMax
	}
	retryClient.HTTPClient.Timeout = cfg.Timeout
	// Hand the last response back so status codes can be mapped to domain errors
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	retryClient.Logger = leveledLogger{logger.Named("retryablehttp").Sugar()}

	return &Client{
		httpClient:  retryClient,
		baseURL:     cfg.BaseURL,
		userAgent:   cfg.UserAgent,
		rateLimiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		logger:      logger.Named("openfoodfacts"),
	}
}

// SearchProducts runs a full-text product search
func (c *Client) SearchProducts(ctx context.Context, terms string) (*domain.OFFSearchResponse, error) {
	params := url.Values{}
	params.Set("search_terms", terms)
	params.Set("search_simple", "1")
	params.Set("json", "1")

	resp, err := c.search(ctx, params)
	if err != nil {
		return nil, err
	}
	if len(resp.Products) == 0 {
		c.logger.Info("no products found", zap.String("terms", terms))
		return nil, domain.ErrProductNotFound
	}

	c.logger.Info("products found", zap.String("terms", terms), zap.Int("count", len(resp.Products)))
	return resp, nil
}

// ProductsByCategory lists products tagged with a category
func (c *Client) ProductsByCategory(ctx context.Context, category string, pageSize int) (*domain.OFFSearchResponse, error) {
	params := url.Values{}
	params.Set("action", "process")
	params.Set("json", "1")
	params.Set("tagtype_0", "categories")
	params.Set("tag_contains_0", "contains")
	params.Set("tag_0", category)
	params.Set("page_size", strconv.Itoa(pageSize))
	params.Set("fields", categoryFields)

	resp, err := c.search(ctx, params)
	if err != nil {
		return nil, err
	}

	c.logger.Info("category products fetched", zap.String("category", category), zap.Int("count", len(resp.Products)))
	return resp, nil
}

func (c *Client) search(ctx context.Context, params url.Values) (*domain.OFFSearchResponse, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRateLimited, err)
	}

	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, searchPath, params.Encode())
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstreamFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, domain.ErrProductNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Warn("upstream error", zap.Int("status", resp.StatusCode), zap.ByteString("body", body))
		return nil, fmt.Errorf("%w: status %d", domain.ErrUpstreamFailure, resp.StatusCode)
	}

	var searchResp domain.OFFSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %v", domain.ErrUpstreamFailure, err)
	}
	return &searchResp, nil
}

// leveledLogger adapts zap to retryablehttp's LeveledLogger
type leveledLogger struct {
	s *zap.SugaredLogger
}

func (l leveledLogger) Error(msg string, keysAndValues ...interface{}) { l.s.Errorw(msg, keysAndValues...) }
func (l leveledLogger) Info(msg string, keysAndValues ...interface{})  { l.s.Debugw(msg, keysAndValues...) }
func (l leveledLogger) Debug(msg string, keysAndValues ...interface{}) { l.s.Debugw(msg, keysAndValues...) }
func (l leveledLogger) Warn(msg string, keysAndValues ...interface{})  { l.s.Warnw(msg, keysAndValues...) }
