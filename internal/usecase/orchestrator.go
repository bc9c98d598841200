package usecase

import (
	"context"
	"maps"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ecolens/backend/internal/domain"
)

// Scan outcomes reported to the ScanRecorder
const (
	OutcomeFound   = "found"
	OutcomeNotFood = "not_food"
	OutcomeEmpty   = "empty"
	OutcomeRetry   = "retry"
	OutcomeGaveUp  = "gave_up"
	OutcomeBusy    = "busy"
	OutcomeStale   = "stale"
	OutcomeError   = "error"
)

// CandidateExtractor produces ranked candidates for a document
type CandidateExtractor interface {
	Extract(doc domain.Document) []domain.Candidate
}

// ScanRecorder receives scan telemetry
type ScanRecorder interface {
	RecordScan(outcome string)
	RecordRetry()
	RecordPopup()
}

type noopRecorder struct{}

func (noopRecorder) RecordScan(string) {}
func (noopRecorder) RecordRetry()      {}
func (noopRecorder) RecordPopup()      {}

// OrchestratorConfig holds the retry policy and scheduling delays
type OrchestratorConfig struct {
	MaxRetries       int
	NavigationDelay  time.Duration
	DebounceDelay    time.Duration
	RetryDelay       time.Duration
	SlowRenderHosts  []string
	AutoPopupEnabled bool
}

// DefaultOrchestratorConfig returns the default retry policy
func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		MaxRetries:       5,
		NavigationDelay:  1500 * time.Millisecond,
		DebounceDelay:    500 * time.Millisecond,
		RetryDelay:       2000 * time.Millisecond,
		SlowRenderHosts:  []string{"amazon."},
		AutoPopupEnabled: true,
	}
}

// PageScanState is the mutable scan state of one browsing context
type PageScanState struct {
	LastObservedURL  string          `json:"lastObservedUrl"`
	RetryCount       int             `json:"retryCount"`
	MaxRetries       int             `json:"maxRetries"`
	PopupShownForURL map[string]bool `json:"popupShownForUrl"`
	IsProcessing     bool            `json:"isProcessing"`
	AutoPopupEnabled bool            `json:"autoPopupEnabled"`
}

// OrchestratorDeps groups the collaborators of an Orchestrator
type OrchestratorDeps struct {
	Page       domain.Page
	Classifier PageClassifier
	Extractor  CandidateExtractor
	Scheduler  Scheduler
	UI         domain.ConfirmationUI
	Listener   domain.ProductsListener
	Recorder   ScanRecorder
	Logger     *zap.Logger
}

// Orchestrator drives detection for one browsing context. It reacts to page
// mutations and navigations, allows at most one scan at a time, retries
// slow-rendering pages and shows the confirmation UI at most once per URL.
//
// Every method must be called from the goroutine that runs the scheduler's
// callbacks; the orchestrator itself holds no locks.
type Orchestrator struct {
	ctx        context.Context
	page       domain.Page
	classifier PageClassifier
	extractor  CandidateExtractor
	scheduler  Scheduler
	ui         domain.ConfirmationUI
	listener   domain.ProductsListener
	recorder   ScanRecorder
	cfg        OrchestratorConfig
	logger     *zap.Logger

	state      PageScanState
	candidates []domain.Candidate

	// Superseded timers compare their captured generation and no-op
	scanGen      uint64
	retryGen     uint64
	retryPending bool

	stopObserving func()
}

// NewOrchestrator creates an orchestrator. Call Start to begin observing the page.
func NewOrchestrator(ctx context.Context, deps OrchestratorDeps, cfg OrchestratorConfig) *Orchestrator {
	if ctx == nil {
		ctx = context.Background()
	}
	if deps.Recorder == nil {
		deps.Recorder = noopRecorder{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultOrchestratorConfig().MaxRetries
	}

	return &Orchestrator{
		ctx:        ctx,
		page:       deps.Page,
		classifier: deps.Classifier,
		extractor:  deps.Extractor,
		scheduler:  deps.Scheduler,
		ui:         deps.UI,
		listener:   deps.Listener,
		recorder:   deps.Recorder,
		cfg:        cfg,
		logger:     deps.Logger.Named("orchestrator"),
		state: PageScanState{
			MaxRetries:       cfg.MaxRetries,
			PopupShownForURL: make(map[string]bool),
			AutoPopupEnabled: cfg.AutoPopupEnabled,
		},
	}
}

// Start subscribes to page mutations and treats the current URL as a fresh navigation
func (o *Orchestrator) Start() {
	o.stopObserving = o.page.Observe(o.HandleMutations)
	o.navigate(o.page.URL())
}

// Stop unsubscribes from the page. Pending timers become no-ops.
func (o *Orchestrator) Stop() {
	if o.stopObserving != nil {
		o.stopObserving()
		o.stopObserving = nil
	}
	o.scanGen++
	o.retryGen++
	o.removeUI()
}

// HandleMutations reacts to a batch of page mutations. Batches made only of
// changes to EcoLens' own UI are ignored.
func (o *Orchestrator) HandleMutations(mutations []domain.Mutation) {
	if len(mutations) > 0 && allSelfInflicted(mutations) {
		return
	}

	current := o.page.URL()
	if current != o.state.LastObservedURL {
		o.navigate(current)
		return
	}
	o.scheduleScan(o.cfg.DebounceDelay, current)
}

func allSelfInflicted(mutations []domain.Mutation) bool {
	for _, m := range mutations {
		if !m.IsSelfInflicted() {
			return false
		}
	}
	return true
}

// navigate performs the hard reset for a new URL
func (o *Orchestrator) navigate(newURL string) {
	o.logger.Debug("navigation", zap.String("from", o.state.LastObservedURL), zap.String("to", newURL))

	o.state.LastObservedURL = newURL
	o.state.PopupShownForURL = make(map[string]bool)
	o.state.RetryCount = 0
	o.candidates = nil
	o.removeUI()

	if o.retryPending {
		// The pending retry belongs to the old URL and owns the guard
		o.retryGen++
		o.retryPending = false
		o.state.IsProcessing = false
	}

	o.scheduleScan(o.cfg.NavigationDelay, newURL)
}

func (o *Orchestrator) scheduleScan(delay time.Duration, scanURL string) {
	o.scanGen++
	gen := o.scanGen
	o.scheduler.AfterFunc(delay, func() {
		if gen != o.scanGen {
			return
		}
		o.CheckForProducts(scanURL, false)
	})
}

func (o *Orchestrator) scheduleRetry(scanURL string) {
	o.state.RetryCount++
	delete(o.state.PopupShownForURL, scanURL)
	o.retryPending = true
	o.recorder.RecordRetry()

	o.retryGen++
	gen := o.retryGen
	o.scheduler.AfterFunc(o.cfg.RetryDelay, func() {
		if gen != o.retryGen {
			return
		}
		o.retryPending = false
		o.state.IsProcessing = false
		o.CheckForProducts(scanURL, true)
	})
}

// CheckForProducts runs one scan for scanURL. It does nothing while another
// scan holds the guard, when scanURL is no longer the page's URL, or when the
// URL has already been handled in this navigation.
func (o *Orchestrator) CheckForProducts(scanURL string, isRetry bool) {
	if o.state.IsProcessing {
		o.recorder.RecordScan(OutcomeBusy)
		return
	}
	if scanURL != o.page.URL() {
		o.recorder.RecordScan(OutcomeStale)
		return
	}
	if o.state.PopupShownForURL[scanURL] {
		return
	}

	o.state.PopupShownForURL[scanURL] = true
	o.state.IsProcessing = true

	scanID := uuid.NewString()
	holdGuard := false
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("scan failed",
				zap.String("scanId", scanID),
				zap.String("url", scanURL),
				zap.Any("panic", r),
			)
			o.recorder.RecordScan(OutcomeError)
			delete(o.state.PopupShownForURL, scanURL)
			holdGuard = false
		}
		if !holdGuard {
			o.state.IsProcessing = false
		}
	}()

	holdGuard = o.scan(scanID, scanURL, isRetry)
}

// scan reports whether the guard must stay held for a scheduled retry
func (o *Orchestrator) scan(scanID, scanURL string, isRetry bool) bool {
	log := o.logger.With(zap.String("scanId", scanID), zap.String("url", scanURL), zap.Bool("retry", isRetry))

	if !o.classifier.IsFoodPage(o.page.Title()) {
		log.Debug("not a food page")
		o.recorder.RecordScan(OutcomeNotFood)
		return false
	}

	candidates := o.extractor.Extract(o.page)
	if len(candidates) > 0 {
		if scanURL != o.page.URL() {
			o.recorder.RecordScan(OutcomeStale)
			return false
		}
		log.Info("products detected",
			zap.Int("candidates", len(candidates)),
			zap.String("top", candidates[0].CleanedText),
		)
		o.recorder.RecordScan(OutcomeFound)
		o.candidates = candidates
		if o.listener != nil {
			o.listener.ProductsDetected(scanURL, candidates)
		}
		if o.state.AutoPopupEnabled {
			o.showUI(scanURL, candidates[0])
		}
		return false
	}

	if isRetry {
		if o.state.RetryCount < o.state.MaxRetries {
			log.Debug("no candidates, retrying", zap.Int("retryCount", o.state.RetryCount))
			o.recorder.RecordScan(OutcomeRetry)
			o.scheduleRetry(scanURL)
			return true
		}
		log.Info("giving up after retries", zap.Int("retryCount", o.state.RetryCount))
		o.recorder.RecordScan(OutcomeGaveUp)
		return false
	}

	if o.isSlowRenderSite(scanURL) {
		log.Debug("slow-rendering site, entering retry loop")
		o.recorder.RecordScan(OutcomeRetry)
		o.state.RetryCount = 0
		o.scheduleRetry(scanURL)
		return true
	}

	o.recorder.RecordScan(OutcomeEmpty)
	delete(o.state.PopupShownForURL, scanURL)
	return false
}

func (o *Orchestrator) isSlowRenderSite(pageURL string) bool {
	host := pageURL
	if u, err := url.Parse(pageURL); err == nil && u.Host != "" {
		host = u.Host
	}
	host = strings.ToLower(host)
	for _, fragment := range o.cfg.SlowRenderHosts {
		if fragment != "" && strings.Contains(host, strings.ToLower(fragment)) {
			return true
		}
	}
	return false
}

func (o *Orchestrator) showUI(pageURL string, candidate domain.Candidate) {
	if o.ui == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("confirmation UI panicked", zap.Any("panic", r))
		}
	}()
	if err := o.ui.Show(o.ctx, pageURL, candidate); err != nil {
		o.logger.Warn("failed to show confirmation UI", zap.Error(err))
		return
	}
	o.recorder.RecordPopup()
}

func (o *Orchestrator) removeUI() {
	if o.ui == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("confirmation UI removal panicked", zap.Any("panic", r))
		}
	}()
	if err := o.ui.Remove(); err != nil {
		o.logger.Warn("failed to remove confirmation UI", zap.Error(err))
	}
}

// UpdateAutoPopup is the inbound settings command
func (o *Orchestrator) UpdateAutoPopup(enabled bool) {
	o.state.AutoPopupEnabled = enabled
}

// State returns a copy of the scan state
func (o *Orchestrator) State() PageScanState {
	s := o.state
	s.PopupShownForURL = maps.Clone(o.state.PopupShownForURL)
	return s
}

// Candidates returns the ranked candidates cached for the current navigation
func (o *Orchestrator) Candidates() []domain.Candidate {
	return append([]domain.Candidate(nil), o.candidates...)
}
