package usecase

import (
	"sort"
	"time"

	"github.com/ecolens/backend/internal/domain"
)

// fakeElement is a hand-built domain.Element
type fakeElement struct {
	tag    string
	text   string
	attrs  map[string]string
	parent *fakeElement
	style  domain.ComputedStyle
	top    float64
	panics bool
}

func newElement(tag, text string) *fakeElement {
	return &fakeElement{tag: tag, text: text, attrs: map[string]string{}, style: domain.DefaultStyle()}
}

func (e *fakeElement) with(attr, value string) *fakeElement {
	e.attrs[attr] = value
	return e
}

func (e *fakeElement) in(parent *fakeElement) *fakeElement {
	e.parent = parent
	return e
}

func (e *fakeElement) at(top float64) *fakeElement {
	e.top = top
	return e
}

func (e *fakeElement) fontSize(px float64) *fakeElement {
	e.style.FontSizePx = px
	return e
}

func (e *fakeElement) TagName() string { return e.tag }

func (e *fakeElement) Text() string {
	if e.panics {
		panic("detached node")
	}
	return e.text
}

func (e *fakeElement) Attr(name string) (string, bool) {
	v, ok := e.attrs[name]
	return v, ok
}

func (e *fakeElement) Parent() (domain.Element, bool) {
	if e.parent == nil {
		return nil, false
	}
	return e.parent, true
}

func (e *fakeElement) Style() domain.ComputedStyle { return e.style }
func (e *fakeElement) BoundingTop() float64        { return e.top }

// fakeDocument answers QueryAll from a fixed selector table
type fakeDocument struct {
	url      string
	title    string
	viewport float64
	elements map[string][]domain.Element
}

func newDocument(url, title string) *fakeDocument {
	return &fakeDocument{url: url, title: title, viewport: 900, elements: map[string][]domain.Element{}}
}

func (d *fakeDocument) add(selector string, elements ...*fakeElement) *fakeDocument {
	for _, el := range elements {
		d.elements[selector] = append(d.elements[selector], el)
	}
	return d
}

func (d *fakeDocument) addJSONLD(blocks ...string) *fakeDocument {
	for _, b := range blocks {
		d.add(`script[type="application/ld+json"]`, newElement("script", b))
	}
	return d
}

func (d *fakeDocument) addMeta(selector, content string) *fakeDocument {
	return d.add(selector, newElement("meta", "").with("content", content))
}

func (d *fakeDocument) URL() string                               { return d.url }
func (d *fakeDocument) Title() string                             { return d.title }
func (d *fakeDocument) ViewportHeight() float64                   { return d.viewport }
func (d *fakeDocument) QueryAll(selector string) []domain.Element { return d.elements[selector] }

// fakePage is a fakeDocument whose URL, title and content tests can change
type fakePage struct {
	*fakeDocument
	handlers map[int]domain.MutationHandler
	nextID   int
}

func newPage(url, title string) *fakePage {
	return &fakePage{fakeDocument: newDocument(url, title), handlers: map[int]domain.MutationHandler{}}
}

func (p *fakePage) Observe(handler domain.MutationHandler) func() {
	id := p.nextID
	p.nextID++
	p.handlers[id] = handler
	return func() { delete(p.handlers, id) }
}

func (p *fakePage) mutate(mutations ...domain.Mutation) {
	for _, h := range p.handlers {
		h(mutations)
	}
}

// fakeScheduler runs callbacks on a virtual clock advanced by the test
type fakeScheduler struct {
	now   time.Duration
	seq   int
	queue []scheduledTask
}

type scheduledTask struct {
	at  time.Duration
	seq int
	f   func()
}

func (s *fakeScheduler) AfterFunc(d time.Duration, f func()) {
	s.seq++
	s.queue = append(s.queue, scheduledTask{at: s.now + d, seq: s.seq, f: f})
}

// Advance runs every callback due within d, in due order
func (s *fakeScheduler) Advance(d time.Duration) {
	deadline := s.now + d
	for {
		sort.SliceStable(s.queue, func(i, j int) bool {
			if s.queue[i].at != s.queue[j].at {
				return s.queue[i].at < s.queue[j].at
			}
			return s.queue[i].seq < s.queue[j].seq
		})
		if len(s.queue) == 0 || s.queue[0].at > deadline {
			break
		}
		task := s.queue[0]
		s.queue = s.queue[1:]
		s.now = task.at
		task.f()
	}
	s.now = deadline
}

func (s *fakeScheduler) pending() int {
	return len(s.queue)
}
