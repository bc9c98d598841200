package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ecolens/backend/internal/domain"
)

// SnapshotPage is a domain.Page whose content is replaced by snapshots
type SnapshotPage interface {
	domain.Page
	Update(pageURL string, content []byte, contentType string, mutations []domain.Mutation) error
}

// Snapshot is one observed state of a browsing context's page
type Snapshot struct {
	URL         string
	HTML        []byte
	ContentType string
	Mutations   []domain.Mutation
}

// ContextSummary describes a browsing context at one point in time
type ContextSummary struct {
	ID         string             `json:"id"`
	URL        string             `json:"url"`
	Title      string             `json:"title"`
	State      PageScanState      `json:"state"`
	Candidates []domain.Candidate `json:"candidates"`
	Report     *domain.Report     `json:"report,omitempty"`
}

// ContextRecorder receives telemetry from every browsing context
type ContextRecorder interface {
	ScanRecorder
	LookupRecorder
	SetActiveContexts(n int)
}

type noopContextRecorder struct{ noopRecorder }

func (noopContextRecorder) RecordLookup(string)   {}
func (noopContextRecorder) SetActiveContexts(int) {}

// ContextRegistryDeps groups the collaborators shared by all browsing contexts
type ContextRegistryDeps struct {
	NewPage    func() SnapshotPage
	Classifier PageClassifier
	Extractor  CandidateExtractor
	Service    domain.SustainabilityService
	Cache      domain.CacheRepository
	Listener   domain.ProductsListener
	Recorder   ContextRecorder
	Logger     *zap.Logger
}

// ContextRegistryConfig holds the per-context settings
type ContextRegistryConfig struct {
	Orchestrator OrchestratorConfig
	Confirmation ConfirmationFlowConfig
	MaxContexts  int
	QueueSize    int
}

// browsingContext is one watched tab. Everything but lastUsed is owned by loop.
type browsingContext struct {
	id           string
	loop         *EventLoop
	page         SnapshotPage
	orchestrator *Orchestrator
	flow         *ConfirmationFlow
	lastUsed     time.Time
}

func (bc *browsingContext) summary() ContextSummary {
	return ContextSummary{
		ID:         bc.id,
		URL:        bc.page.URL(),
		Title:      bc.page.Title(),
		State:      bc.orchestrator.State(),
		Candidates: bc.orchestrator.Candidates(),
		Report:     bc.flow.Report(),
	}
}

// ContextRegistry owns the browsing contexts fed through snapshots. Each
// context runs its orchestrator on its own event loop; the least recently
// used context is closed when the registry is full.
type ContextRegistry struct {
	ctx      context.Context
	deps     ContextRegistryDeps
	cfg      ContextRegistryConfig
	recorder ContextRecorder
	logger   *zap.Logger

	mu        sync.Mutex
	contexts  map[string]*browsingContext
	autoPopup bool
}

// NewContextRegistry creates an empty registry. Cancelling ctx stops every
// context's event loop.
func NewContextRegistry(ctx context.Context, deps ContextRegistryDeps, cfg ContextRegistryConfig) *ContextRegistry {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	recorder := deps.Recorder
	if recorder == nil {
		recorder = noopContextRecorder{}
	}
	cfg.Confirmation.Recorder = recorder

	return &ContextRegistry{
		ctx:       ctx,
		deps:      deps,
		cfg:       cfg,
		recorder:  recorder,
		logger:    deps.Logger.Named("contexts"),
		contexts:  make(map[string]*browsingContext),
		autoPopup: cfg.Orchestrator.AutoPopupEnabled,
	}
}

// Snapshot feeds a page snapshot to context id, creating the context on first use
func (r *ContextRegistry) Snapshot(id string, snap Snapshot) (ContextSummary, error) {
	id = strings.TrimSpace(id)
	if id == "" || strings.TrimSpace(snap.URL) == "" {
		return ContextSummary{}, fmt.Errorf("%w: context id and url are required", domain.ErrInvalidRequest)
	}

	bc, created := r.acquire(id)

	var updateErr error
	var summary ContextSummary
	err := bc.loop.Do(func() {
		updateErr = bc.page.Update(snap.URL, snap.HTML, snap.ContentType, snap.Mutations)
		if created {
			// Subscribing after the first update makes its URL the first navigation
			bc.orchestrator.Start()
		}
		summary = bc.summary()
	})
	if err != nil {
		return ContextSummary{}, err
	}
	if updateErr != nil {
		return ContextSummary{}, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, updateErr)
	}
	return summary, nil
}

func (r *ContextRegistry) acquire(id string) (*browsingContext, bool) {
	r.mu.Lock()
	if bc, ok := r.contexts[id]; ok {
		bc.lastUsed = time.Now()
		r.mu.Unlock()
		return bc, false
	}

	var evicted *browsingContext
	if r.cfg.MaxContexts > 0 && len(r.contexts) >= r.cfg.MaxContexts {
		evicted = r.oldestLocked()
		delete(r.contexts, evicted.id)
	}

	bc := r.newContext(id)
	r.contexts[id] = bc
	r.recorder.SetActiveContexts(len(r.contexts))
	r.mu.Unlock()

	if evicted != nil {
		r.logger.Info("evicting browsing context", zap.String("contextId", evicted.id))
		r.stop(evicted)
	}
	return bc, true
}

func (r *ContextRegistry) oldestLocked() *browsingContext {
	var oldest *browsingContext
	for _, bc := range r.contexts {
		if oldest == nil || bc.lastUsed.Before(oldest.lastUsed) {
			oldest = bc
		}
	}
	return oldest
}

func (r *ContextRegistry) newContext(id string) *browsingContext {
	logger := r.logger.With(zap.String("contextId", id))
	loop := NewEventLoop(r.cfg.QueueSize, logger)
	page := r.deps.NewPage()
	flow := NewConfirmationFlow(r.deps.Service, r.deps.Cache, loop, r.cfg.Confirmation, logger)

	listener := r.deps.Listener
	if listener == nil {
		listener = loggingListener{logger: logger}
	}

	orchCfg := r.cfg.Orchestrator
	orchCfg.AutoPopupEnabled = r.autoPopup
	orchestrator := NewOrchestrator(r.ctx, OrchestratorDeps{
		Page:       page,
		Classifier: r.deps.Classifier,
		Extractor:  r.deps.Extractor,
		Scheduler:  loop,
		UI:         flow,
		Listener:   listener,
		Recorder:   r.recorder,
		Logger:     logger,
	}, orchCfg)

	go loop.Run(r.ctx)

	logger.Info("browsing context created")
	return &browsingContext{
		id:           id,
		loop:         loop,
		page:         page,
		orchestrator: orchestrator,
		flow:         flow,
		lastUsed:     time.Now(),
	}
}

// Get returns the summary of context id
func (r *ContextRegistry) Get(id string) (ContextSummary, error) {
	r.mu.Lock()
	bc, ok := r.contexts[id]
	r.mu.Unlock()
	if !ok {
		return ContextSummary{}, fmt.Errorf("%w: %s", domain.ErrContextNotFound, id)
	}

	var summary ContextSummary
	if err := bc.loop.Do(func() { summary = bc.summary() }); err != nil {
		return ContextSummary{}, err
	}
	return summary, nil
}

// IDs returns the ids of all open contexts, sorted
func (r *ContextRegistry) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.contexts))
	for id := range r.contexts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Close stops and forgets context id
func (r *ContextRegistry) Close(id string) error {
	r.mu.Lock()
	bc, ok := r.contexts[id]
	if ok {
		delete(r.contexts, id)
		r.recorder.SetActiveContexts(len(r.contexts))
	}
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrContextNotFound, id)
	}

	r.stop(bc)
	r.logger.Info("browsing context closed", zap.String("contextId", id))
	return nil
}

// CloseAll stops every context
func (r *ContextRegistry) CloseAll() {
	r.mu.Lock()
	contexts := r.contexts
	r.contexts = make(map[string]*browsingContext)
	r.recorder.SetActiveContexts(0)
	r.mu.Unlock()

	for _, bc := range contexts {
		r.stop(bc)
	}
}

func (r *ContextRegistry) stop(bc *browsingContext) {
	if err := bc.loop.Do(bc.orchestrator.Stop); err != nil {
		r.logger.Debug("context loop already closed", zap.String("contextId", bc.id))
	}
	bc.loop.Close()
}

// SetAutoPopup broadcasts the auto-popup setting to every context and to
// contexts created later. It returns the number of contexts notified.
func (r *ContextRegistry) SetAutoPopup(enabled bool) int {
	r.mu.Lock()
	r.autoPopup = enabled
	contexts := make([]*browsingContext, 0, len(r.contexts))
	for _, bc := range r.contexts {
		contexts = append(contexts, bc)
	}
	r.mu.Unlock()

	notified := 0
	for _, bc := range contexts {
		orchestrator := bc.orchestrator
		if bc.loop.Post(func() { orchestrator.UpdateAutoPopup(enabled) }) {
			notified++
		}
	}
	r.logger.Info("auto popup updated", zap.Bool("enabled", enabled), zap.Int("contexts", notified))
	return notified
}

// AutoPopup reports the current auto-popup setting
func (r *ContextRegistry) AutoPopup() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.autoPopup
}

type loggingListener struct {
	logger *zap.Logger
}

func (l loggingListener) ProductsDetected(pageURL string, candidates []domain.Candidate) {
	fields := []zap.Field{zap.String("url", pageURL), zap.Int("count", len(candidates))}
	if len(candidates) > 0 {
		fields = append(fields, zap.String("top", candidates[0].CleanedText))
	}
	l.logger.Info("products detected", fields...)
}
