// Package htmldoc adapts parsed HTML to the detection engine's Document and
// Page abstractions. Layout is estimated statically: there is no rendering
// engine, so styles come from inline declarations and tag defaults and
// vertical positions from a running line count.
package htmldoc

import (
	"io"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/ecolens/backend/internal/domain"
)

// DefaultViewportHeight is used when no viewport height is configured
const DefaultViewportHeight = 900.0

const (
	rootFontPx = 16.0
	lineHeight = 1.5
)

var headingFontPx = map[atom.Atom]float64{
	atom.H1: 32,
	atom.H2: 24,
	atom.H3: 18.72,
	atom.H4: 16,
	atom.H5: 13.28,
	atom.H6: 10.72,
}

var neverRendered = map[atom.Atom]bool{
	atom.Head:     true,
	atom.Script:   true,
	atom.Style:    true,
	atom.Template: true,
	atom.Noscript: true,
	atom.Meta:     true,
	atom.Link:     true,
	atom.Title:    true,
}

// Document is a domain.Document over a goquery tree
type Document struct {
	url      string
	doc      *goquery.Document
	viewport float64

	styles map[*html.Node]domain.ComputedStyle
	tops   map[*html.Node]float64
}

// Option customises a Document
type Option func(*Document)

// WithViewportHeight sets the viewport height used by the visual filters
func WithViewportHeight(px float64) Option {
	return func(d *Document) {
		if px > 0 {
			d.viewport = px
		}
	}
}

// NewDocument parses UTF-8 HTML from r
func NewDocument(pageURL string, r io.Reader, opts ...Option) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}

	d := &Document{
		url:      pageURL,
		doc:      doc,
		viewport: DefaultViewportHeight,
		styles:   make(map[*html.Node]domain.ComputedStyle),
		tops:     make(map[*html.Node]float64),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.layout()
	return d, nil
}

// FromString parses an HTML string
func FromString(pageURL, content string, opts ...Option) (*Document, error) {
	return NewDocument(pageURL, strings.NewReader(content), opts...)
}

func (d *Document) URL() string { return d.url }

func (d *Document) Title() string {
	return strings.TrimSpace(d.doc.Find("title").First().Text())
}

func (d *Document) ViewportHeight() float64 { return d.viewport }

// QueryAll returns the matches in document order. goquery compiles an
// invalid selector to a matcher that matches nothing.
func (d *Document) QueryAll(selector string) []domain.Element {
	sel := d.doc.Find(selector)
	out := make([]domain.Element, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		out = append(out, &Element{sel: s, doc: d})
	})
	return out
}

// layout walks the body once, computing styles and estimated tops
func (d *Document) layout() {
	for _, root := range d.doc.Nodes {
		d.walkStyles(root, domain.DefaultStyle())
	}
	y := 0.0
	d.doc.Find("body").Each(func(_ int, s *goquery.Selection) {
		for _, n := range s.Nodes {
			d.walkTops(n, &y)
		}
	})
}

func (d *Document) walkStyles(n *html.Node, parent domain.ComputedStyle) {
	style := parent
	if n.Type == html.ElementNode {
		style = computeStyle(n, parent)
		d.styles[n] = style
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		d.walkStyles(c, style)
	}
}

// walkTops assigns every element the running y at which it starts. Each
// element with its own visible text advances y by one line of its font size.
func (d *Document) walkTops(n *html.Node, y *float64) {
	if n.Type != html.ElementNode {
		return
	}
	style := d.styles[n]
	if top, ok := inlineTop(n); ok {
		d.tops[n] = top
	} else {
		d.tops[n] = *y
	}
	if style.Display == "none" {
		return
	}

	if n.DataAtom == atom.Img {
		if h, ok := attrPx(n, "height"); ok {
			*y += h
		}
	}

	advanced := false
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.TextNode:
			if !advanced && strings.TrimSpace(c.Data) != "" {
				*y += style.FontSizePx * lineHeight
				advanced = true
			}
		case html.ElementNode:
			d.walkTops(c, y)
		}
	}
}

func computeStyle(n *html.Node, parent domain.ComputedStyle) domain.ComputedStyle {
	style := domain.ComputedStyle{
		FontSizePx: parent.FontSizePx,
		Opacity:    1,
		Visibility: parent.Visibility,
		Display:    "block",
	}
	if size, ok := headingFontPx[n.DataAtom]; ok {
		style.FontSizePx = size
	}
	if neverRendered[n.DataAtom] {
		style.Display = "none"
	}
	for _, a := range n.Attr {
		if a.Key == "hidden" {
			style.Display = "none"
		}
	}

	for prop, value := range inlineDeclarations(n) {
		switch prop {
		case "font-size":
			if px, ok := parseFontSize(value, parent.FontSizePx); ok {
				style.FontSizePx = px
			}
		case "opacity":
			if f, err := strconv.ParseFloat(value, 64); err == nil {
				style.Opacity = f
			}
		case "visibility":
			style.Visibility = value
		case "display":
			style.Display = value
		}
	}
	return style
}

// inlineDeclarations parses the style attribute into lowercased property/value pairs
func inlineDeclarations(n *html.Node) map[string]string {
	raw := ""
	for _, a := range n.Attr {
		if a.Key == "style" {
			raw = a.Val
			break
		}
	}
	if raw == "" {
		return nil
	}

	decls := make(map[string]string)
	for _, part := range strings.Split(raw, ";") {
		prop, value, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(value), "!important"))
		decls[strings.ToLower(strings.TrimSpace(prop))] = strings.ToLower(value)
	}
	return decls
}

func parseFontSize(value string, parentPx float64) (float64, bool) {
	switch {
	case strings.HasSuffix(value, "px"):
		return parseNumber(strings.TrimSuffix(value, "px"))
	case strings.HasSuffix(value, "rem"):
		f, ok := parseNumber(strings.TrimSuffix(value, "rem"))
		return f * rootFontPx, ok
	case strings.HasSuffix(value, "em"):
		f, ok := parseNumber(strings.TrimSuffix(value, "em"))
		return f * parentPx, ok
	case strings.HasSuffix(value, "%"):
		f, ok := parseNumber(strings.TrimSuffix(value, "%"))
		return f / 100 * parentPx, ok
	}
	return 0, false
}

func parseNumber(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || f < 0 {
		return 0, false
	}
	return f, true
}

func inlineTop(n *html.Node) (float64, bool) {
	value, ok := inlineDeclarations(n)["top"]
	if !ok || !strings.HasSuffix(value, "px") {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(value, "px")), 64)
	return f, err == nil
}

func attrPx(n *html.Node, name string) (float64, bool) {
	for _, a := range n.Attr {
		if a.Key == name {
			return parseNumber(strings.TrimSuffix(a.Val, "px"))
		}
	}
	return 0, false
}

// Element is a domain.Element backed by a single-node goquery selection
type Element struct {
	sel *goquery.Selection
	doc *Document
}

func (e *Element) TagName() string { return goquery.NodeName(e.sel) }
func (e *Element) Text() string    { return e.sel.Text() }

func (e *Element) Attr(name string) (string, bool) {
	return e.sel.Attr(name)
}

func (e *Element) Parent() (domain.Element, bool) {
	p := e.sel.Parent()
	if p.Length() == 0 {
		return nil, false
	}
	return &Element{sel: p, doc: e.doc}, true
}

func (e *Element) Style() domain.ComputedStyle {
	if style, ok := e.doc.styles[e.sel.Get(0)]; ok {
		return style
	}
	return domain.DefaultStyle()
}

// BoundingTop is the estimated top of the element. Elements outside the body
// sit at the top of the page.
func (e *Element) BoundingTop() float64 {
	return e.doc.tops[e.sel.Get(0)]
}
