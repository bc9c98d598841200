package domain

import "strings"

// OwnUIPrefix marks ids and classes of elements injected by EcoLens itself
const OwnUIPrefix = "ecolens-"

// Document is the read-only view of a web page the detection engine works on
type Document interface {
	URL() string
	Title() string
	// QueryAll returns every element matching a CSS selector, in document order.
	// An invalid selector yields no elements.
	QueryAll(selector string) []Element
	ViewportHeight() float64
}

// Element is a single node of a Document
type Element interface {
	TagName() string
	Text() string
	Attr(name string) (string, bool)
	Parent() (Element, bool)
	Style() ComputedStyle
	// BoundingTop is the element's distance in px from the top of the viewport
	BoundingTop() float64
}

// ComputedStyle holds the subset of computed CSS the visual filters need
type ComputedStyle struct {
	FontSizePx float64
	Opacity    float64
	Visibility string
	Display    string
}

// DefaultStyle is the computed style of an unstyled, visible body element
func DefaultStyle() ComputedStyle {
	return ComputedStyle{FontSizePx: 16, Opacity: 1, Visibility: "visible", Display: "block"}
}

// IsHidden reports whether the style makes the element invisible to the user
func (s ComputedStyle) IsHidden() bool {
	return s.Opacity < 0.1 || s.Visibility == "hidden" || s.Visibility == "collapse" || s.Display == "none"
}

// MutationHandler receives batches of document mutations
type MutationHandler func(mutations []Mutation)

// Page is a live document that reports its own mutations
type Page interface {
	Document
	// Observe registers a handler and returns a function that unregisters it
	Observe(handler MutationHandler) (stop func())
}

// MutationType mirrors the MutationObserver record types
type MutationType string

const (
	MutationChildList  MutationType = "childList"
	MutationAttributes MutationType = "attributes"
	MutationText       MutationType = "characterData"
)

// NodeRef identifies a node touched by a mutation
type NodeRef struct {
	ID    string `json:"id,omitempty"`
	Class string `json:"class,omitempty"`
}

// Mutation is a single change record reported by a Page
type Mutation struct {
	Type    MutationType `json:"type"`
	Target  NodeRef      `json:"target"`
	Added   []NodeRef    `json:"added,omitempty"`
	Removed []NodeRef    `json:"removed,omitempty"`
}

// IsOwnUI reports whether the node belongs to EcoLens' injected UI
func (n NodeRef) IsOwnUI() bool {
	if strings.HasPrefix(n.ID, OwnUIPrefix) {
		return true
	}
	for _, class := range strings.Fields(n.Class) {
		if strings.HasPrefix(class, OwnUIPrefix) {
			return true
		}
	}
	return false
}

// IsSelfInflicted reports whether the mutation was caused entirely by EcoLens' own UI
func (m Mutation) IsSelfInflicted() bool {
	if m.Target.IsOwnUI() {
		return true
	}
	touched := len(m.Added) + len(m.Removed)
	if touched == 0 {
		return false
	}
	for _, n := range m.Added {
		if !n.IsOwnUI() {
			return false
		}
	}
	for _, n := range m.Removed {
		if !n.IsOwnUI() {
			return false
		}
	}
	return true
}
