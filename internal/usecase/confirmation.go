package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ecolens/backend/internal/domain"
)

const (
	noDataMessage       = "No sustainability data found for this product"
	detectedOnlyMessage = "Product detected, sustainability data unavailable"
	detectionKeyPrefix  = "detection:"
	defaultLookupTime   = 15 * time.Second
	detectionCacheTTL   = 24 * time.Hour
)

// Poster hands work back to the goroutine that owns a browsing context
type Poster interface {
	Post(f func()) bool
}

// LookupRecorder receives the status of every finished lookup
type LookupRecorder interface {
	RecordLookup(status string)
}

// ConfirmationFlowConfig holds the confirmation flow settings
type ConfirmationFlowConfig struct {
	LookupTimeout time.Duration
	Recorder      LookupRecorder
}

// ConfirmationFlow is the confirmation UI of a headless browsing context.
// Show records a pending report and returns; the sustainability lookup runs
// on its own goroutine and its result is posted back to the owning loop.
type ConfirmationFlow struct {
	service  domain.SustainabilityService
	cache    domain.CacheRepository
	poster   Poster
	timeout  time.Duration
	recorder LookupRecorder
	logger   *zap.Logger

	mu     sync.RWMutex
	report *domain.Report
}

// NewConfirmationFlow creates a confirmation flow
func NewConfirmationFlow(
	service domain.SustainabilityService,
	cache domain.CacheRepository,
	poster Poster,
	config ConfirmationFlowConfig,
	logger *zap.Logger,
) *ConfirmationFlow {
	timeout := config.LookupTimeout
	if timeout <= 0 {
		timeout = defaultLookupTime
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConfirmationFlow{
		service:  service,
		cache:    cache,
		poster:   poster,
		timeout:  timeout,
		recorder: config.Recorder,
		logger:   logger.Named("confirmation"),
	}
}

// Show records a pending report for candidate and starts the lookup
func (f *ConfirmationFlow) Show(ctx context.Context, pageURL string, candidate domain.Candidate) error {
	if strings.TrimSpace(candidate.CleanedText) == "" {
		return domain.ErrInvalidRequest
	}

	term := CleanSearchTerm(candidate.CleanedText)
	if term == "" {
		term = strings.ToLower(candidate.CleanedText)
	}

	report := &domain.Report{
		ID:         uuid.NewString(),
		URL:        pageURL,
		Candidate:  candidate,
		SearchTerm: term,
		Status:     domain.ReportPending,
		CreatedAt:  time.Now(),
	}

	f.mu.Lock()
	f.report = report
	f.mu.Unlock()

	f.logger.Info("confirmation shown",
		zap.String("reportId", report.ID),
		zap.String("url", pageURL),
		zap.String("searchTerm", term),
	)

	go f.lookup(context.WithoutCancel(ctx), *report)
	return nil
}

func (f *ConfirmationFlow) lookup(ctx context.Context, report domain.Report) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	products, err := f.service.LookupProduct(ctx, report.SearchTerm)
	switch {
	case err == nil:
		report.Status = domain.ReportReady
		report.Products = products
		report.BestProduct = SelectBestProduct(products)
	case errors.Is(err, domain.ErrProductNotFound):
		report.Status = domain.ReportNoData
		report.Message = noDataMessage
	default:
		f.logger.Warn("sustainability lookup failed",
			zap.String("reportId", report.ID),
			zap.Error(err),
		)
		report.Status = domain.ReportDetectedOnly
		report.Message = detectedOnlyMessage
		f.storeDetection(ctx, report)
	}
	if f.recorder != nil {
		f.recorder.RecordLookup(string(report.Status))
	}

	apply := func() { f.apply(report) }
	if f.poster == nil || !f.poster.Post(apply) {
		f.logger.Debug("context closed before lookup finished", zap.String("reportId", report.ID))
	}
}

// storeDetection keeps the raw detection so it is not lost when the backend is down
func (f *ConfirmationFlow) storeDetection(ctx context.Context, report domain.Report) {
	if f.cache == nil {
		return
	}
	key := detectionKeyPrefix + report.URL
	if err := f.cache.Set(context.WithoutCancel(ctx), key, report.Candidate, detectionCacheTTL); err != nil {
		f.logger.Warn("failed to store detection", zap.String("key", key), zap.Error(err))
	}
}

// apply replaces the report only if it is still the one the lookup started for
func (f *ConfirmationFlow) apply(result domain.Report) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.report == nil || f.report.ID != result.ID {
		return
	}
	f.report = &result
	f.logger.Info("report updated",
		zap.String("reportId", result.ID),
		zap.String("status", string(result.Status)),
	)
}

// Remove clears the current report
func (f *ConfirmationFlow) Remove() error {
	f.mu.Lock()
	f.report = nil
	f.mu.Unlock()
	return nil
}

// Report returns a copy of the current report, or nil
func (f *ConfirmationFlow) Report() *domain.Report {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.report == nil {
		return nil
	}
	r := *f.report
	return &r
}
