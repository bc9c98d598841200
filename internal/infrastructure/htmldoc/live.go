package htmldoc

import (
	"sort"
	"sync"

	"github.com/ecolens/backend/internal/domain"
)

// LivePage is a domain.Page fed by snapshots. Every Update replaces the
// current document and notifies observers synchronously, so callers run it on
// the goroutine that owns the page's orchestrator.
type LivePage struct {
	viewport float64

	mu       sync.RWMutex
	doc      *Document
	handlers map[int]domain.MutationHandler
	nextID   int
}

// NewLivePage creates an empty page at about:blank
func NewLivePage(viewport float64) *LivePage {
	if viewport <= 0 {
		viewport = DefaultViewportHeight
	}
	empty, _ := FromString("about:blank", "", WithViewportHeight(viewport))
	return &LivePage{
		viewport: viewport,
		doc:      empty,
		handlers: make(map[int]domain.MutationHandler),
	}
}

// Update loads a new snapshot. Observers receive mutations when there are
// any, or an empty batch when only the URL changed.
func (p *LivePage) Update(pageURL string, content []byte, contentType string, mutations []domain.Mutation) error {
	doc, err := Load(pageURL, content, contentType, WithViewportHeight(p.viewport))
	if err != nil {
		return err
	}

	p.mu.Lock()
	navigated := p.doc.URL() != pageURL
	p.doc = doc
	handlers := p.snapshotHandlers()
	p.mu.Unlock()

	if len(mutations) == 0 && !navigated {
		return nil
	}
	for _, h := range handlers {
		h(mutations)
	}
	return nil
}

func (p *LivePage) snapshotHandlers() []domain.MutationHandler {
	ids := make([]int, 0, len(p.handlers))
	for id := range p.handlers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]domain.MutationHandler, 0, len(ids))
	for _, id := range ids {
		out = append(out, p.handlers[id])
	}
	return out
}

// Observe registers a mutation handler
func (p *LivePage) Observe(handler domain.MutationHandler) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.handlers[id] = handler
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.handlers, id)
			p.mu.Unlock()
		})
	}
}

func (p *LivePage) current() *Document {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.doc
}

func (p *LivePage) URL() string                               { return p.current().URL() }
func (p *LivePage) Title() string                             { return p.current().Title() }
func (p *LivePage) ViewportHeight() float64                   { return p.viewport }
func (p *LivePage) QueryAll(selector string) []domain.Element { return p.current().QueryAll(selector) }

