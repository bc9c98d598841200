package usecase

import (
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"regexp"
	"sort"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/ecolens/backend/internal/domain"
)

// Strategy confidences
const (
	confidenceStructuredData = 0.9
	confidenceDOMHigh        = 0.7
	confidenceDOMMedium      = 0.6
	confidenceDOMFallback    = 0.5

	// metaEarlyStop ends the meta-tag strategy once a candidate this strong is found
	metaEarlyStop = 0.8

	maxStructuredDataDepth = 32
)

// PageClassifier gates extraction on whether a title is about food
type PageClassifier interface {
	IsFoodPage(title string) bool
}

type metaSource struct {
	locator    string
	selector   string
	confidence float64
}

var metaSources = []metaSource{
	{"product:name", `meta[property="product:name"], meta[name="product:name"]`, 0.85},
	{"og:title", `meta[property="og:title"], meta[name="og:title"]`, 0.80},
	{"twitter:title", `meta[name="twitter:title"], meta[property="twitter:title"]`, 0.75},
}

const documentTitleConfidence = 0.70

var highPrioritySelectors = []string{
	"h1",
	"#productTitle",
	`[data-testid="product-title"]`,
	`[data-test="product-title"]`,
	`[itemprop="name"]`,
	".product-title",
	".product-name",
}

var mediumPrioritySelectors = []string{
	`[class*="product-title"]`,
	`[class*="productTitle"]`,
	`[class*="product-name"]`,
	`[class*="productName"]`,
	`[class*="pdp-title"]`,
	`[class*="item-title"]`,
	`[id*="product-title"]`,
	`[id*="productName"]`,
	`[data-testid*="title"]`,
	"h2",
}

var fallbackSelectors = []string{"h1", "h2", "h3"}

var productTypes = map[string]bool{
	"product":           true,
	"productgroup":      true,
	"individualproduct": true,
	"productmodel":      true,
	"someproducts":      true,
}

var (
	trailingCommaRegex = regexp.MustCompile(`,\s*([}\]])`)
	whitespaceRegex    = regexp.MustCompile(`\s+`)
)

type extractionStrategy struct {
	name domain.Strategy
	run  func(doc domain.Document, isFoodPage bool) ([]domain.Candidate, error)
}

// Extractor finds product-name candidates in a document through a strict
// fallback chain of strategies. A later strategy only runs when every earlier
// one produced nothing.
type Extractor struct {
	classifier PageClassifier
	normalizer *Normalizer
	sanitizer  *bluemonday.Policy
	strategies []extractionStrategy
	logger     *zap.Logger
}

// NewExtractor creates an extractor
func NewExtractor(classifier PageClassifier, normalizer *Normalizer, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Extractor{
		classifier: classifier,
		normalizer: normalizer,
		sanitizer:  bluemonday.StrictPolicy(),
		logger:     logger.Named("extractor"),
	}
	e.strategies = []extractionStrategy{
		{domain.StrategyStructuredData, e.extractStructuredData},
		{domain.StrategyMetaTag, e.extractMetaTags},
		{domain.StrategyDOMHigh, e.extractDOMHigh},
		{domain.StrategyDOMMedium, e.extractDOMMedium},
		{domain.StrategyDOMFallback, e.extractDOMFallback},
		{domain.StrategyMetaTag, e.extractDocumentTitle},
	}
	return e
}

// Extract classifies the page once, runs the strategy chain and returns the
// ranked candidates. It never panics.
func (e *Extractor) Extract(doc domain.Document) []domain.Candidate {
	isFood := e.isFoodPage(doc)

	for _, strategy := range e.strategies {
		candidates := e.runStrategy(strategy, doc, isFood)
		if len(candidates) == 0 {
			continue
		}
		e.logger.Debug("strategy produced candidates",
			zap.String("strategy", string(strategy.name)),
			zap.Int("count", len(candidates)),
			zap.String("url", doc.URL()),
		)
		return Rank(candidates)
	}
	return nil
}

func (e *Extractor) isFoodPage(doc domain.Document) (isFood bool) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("classification failed", zap.Any("panic", r))
			isFood = false
		}
	}()
	return e.classifier.IsFoodPage(doc.Title())
}

func (e *Extractor) runStrategy(strategy extractionStrategy, doc domain.Document, isFood bool) (candidates []domain.Candidate) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("extraction strategy panicked",
				zap.String("strategy", string(strategy.name)),
				zap.Any("panic", r),
			)
			candidates = nil
		}
	}()

	candidates, err := strategy.run(doc, isFood)
	if err != nil {
		e.logger.Warn("extraction strategy failed",
			zap.String("strategy", string(strategy.name)),
			zap.Error(err),
		)
		return nil
	}
	return candidates
}

// newCandidate normalizes raw text; an empty cleaned name is not a candidate
func (e *Extractor) newCandidate(raw string, confidence float64, tag string) (domain.Candidate, bool) {
	cleaned := e.normalizer.Clean(raw)
	if cleaned == "" {
		return domain.Candidate{}, false
	}
	return domain.Candidate{
		RawText:     raw,
		CleanedText: cleaned,
		Confidence:  confidence,
		SourceTag:   tag,
	}, true
}

func (e *Extractor) extractStructuredData(doc domain.Document, isFood bool) ([]domain.Candidate, error) {
	blocks := doc.QueryAll(`script[type="application/ld+json"]`)

	var candidates []domain.Candidate
	var errs []error
	for i, block := range blocks {
		data, err := parseStructuredData(block.Text())
		if err != nil {
			errs = append(errs, fmt.Errorf("block %d: %w", i, err))
			continue
		}

		node := findProductNode(data, 0)
		if node == nil {
			continue
		}
		name := e.sanitizeName(node["name"])
		if !IsValidProductName(name, isFood) {
			continue
		}
		tag := fmt.Sprintf("%s:block-%d", domain.StrategyStructuredData, i)
		if c, ok := e.newCandidate(name, confidenceStructuredData, tag); ok {
			candidates = append(candidates, c)
		}
	}

	if len(candidates) == 0 && len(errs) > 0 {
		return nil, fmt.Errorf("%w: %v", domain.ErrStructuredData, errors.Join(errs...))
	}
	for _, err := range errs {
		e.logger.Debug("skipped structured data block", zap.Error(err))
	}
	return candidates, nil
}

// parseStructuredData tolerates trailing commas and junk around the outermost object
func parseStructuredData(raw string) (any, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "<!--")
	s = strings.TrimSuffix(s, "-->")
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.New("empty block")
	}

	openDelim, closeDelim := "{", "}"
	if s[0] == '[' {
		openDelim, closeDelim = "[", "]"
	}
	start := strings.Index(s, openDelim)
	end := strings.LastIndex(s, closeDelim)
	if start < 0 || end <= start {
		return nil, errors.New("no json object found")
	}
	s = trailingCommaRegex.ReplaceAllString(s[start:end+1], "$1")

	var data any
	if err := json.Unmarshal([]byte(s), &data); err != nil {
		return nil, err
	}
	return data, nil
}

// findProductNode walks arrays, @graph wrappers and nested objects depth-first
// and returns the first node typed as a product.
func findProductNode(v any, depth int) map[string]any {
	if depth > maxStructuredDataDepth {
		return nil
	}

	switch node := v.(type) {
	case []any:
		for _, item := range node {
			if found := findProductNode(item, depth+1); found != nil {
				return found
			}
		}
	case map[string]any:
		if isProductType(node["@type"]) {
			return node
		}
		if graph, ok := node["@graph"]; ok {
			if found := findProductNode(graph, depth+1); found != nil {
				return found
			}
		}
		keys := make([]string, 0, len(node))
		for k := range node {
			if k != "@graph" {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		for _, k := range keys {
			if found := findProductNode(node[k], depth+1); found != nil {
				return found
			}
		}
	}
	return nil
}

func isProductType(v any) bool {
	switch t := v.(type) {
	case string:
		if i := strings.LastIndex(t, "/"); i >= 0 {
			t = t[i+1:]
		}
		return productTypes[strings.ToLower(t)]
	case []any:
		for _, item := range t {
			if isProductType(item) {
				return true
			}
		}
	}
	return false
}

// sanitizeName strips markup from a structured-data name
func (e *Extractor) sanitizeName(v any) string {
	var name string
	switch n := v.(type) {
	case string:
		name = n
	case []any:
		if len(n) > 0 {
			name, _ = n[0].(string)
		}
	case map[string]any:
		name, _ = n["@value"].(string)
	}
	if name == "" {
		return ""
	}
	name = html.UnescapeString(e.sanitizer.Sanitize(name))
	return collapseWhitespace(name)
}

func (e *Extractor) extractMetaTags(doc domain.Document, isFood bool) ([]domain.Candidate, error) {
	var candidates []domain.Candidate
	emit := func(raw string, confidence float64, locator string) bool {
		raw = collapseWhitespace(raw)
		if raw == "" || !IsValidProductName(raw, isFood) {
			return false
		}
		c, ok := e.newCandidate(raw, confidence, fmt.Sprintf("%s:%s", domain.StrategyMetaTag, locator))
		if !ok {
			return false
		}
		candidates = append(candidates, c)
		return confidence >= metaEarlyStop
	}

	for _, source := range metaSources {
		content := firstAttr(doc.QueryAll(source.selector), "content")
		if emit(content, source.confidence, source.locator) {
			return candidates, nil
		}
	}
	// The bare title only backs up a real meta tag; a title alone must not
	// shadow the heading strategies.
	if len(candidates) > 0 {
		emit(doc.Title(), documentTitleConfidence, "title")
	}
	return candidates, nil
}

// extractDocumentTitle is the last resort for pages without any usable heading
func (e *Extractor) extractDocumentTitle(doc domain.Document, isFood bool) ([]domain.Candidate, error) {
	raw := collapseWhitespace(doc.Title())
	if raw == "" || !IsValidProductName(raw, isFood) {
		return nil, nil
	}
	c, ok := e.newCandidate(raw, documentTitleConfidence, fmt.Sprintf("%s:title", domain.StrategyMetaTag))
	if !ok {
		return nil, nil
	}
	return []domain.Candidate{c}, nil
}

func firstAttr(elements []domain.Element, name string) string {
	for _, el := range elements {
		if v, ok := el.Attr(name); ok && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func (e *Extractor) extractDOMHigh(doc domain.Document, isFood bool) ([]domain.Candidate, error) {
	viewport := doc.ViewportHeight()
	return e.scanSelectors(doc, highPrioritySelectors, domain.StrategyDOMHigh, confidenceDOMHigh, func(el domain.Element, text string) bool {
		return IsValidProductName(text, isFood) &&
			IsLikelyProductTitle(text) &&
			HasGoodVisualHierarchy(el, viewport)
	}), nil
}

func (e *Extractor) extractDOMMedium(doc domain.Document, isFood bool) ([]domain.Candidate, error) {
	return e.scanSelectors(doc, mediumPrioritySelectors, domain.StrategyDOMMedium, confidenceDOMMedium, func(_ domain.Element, text string) bool {
		return IsValidProductName(text, isFood)
	}), nil
}

// extractDOMFallback takes the first heading of each level without any filter
func (e *Extractor) extractDOMFallback(doc domain.Document, _ bool) ([]domain.Candidate, error) {
	var candidates []domain.Candidate
	for _, selector := range fallbackSelectors {
		elements := doc.QueryAll(selector)
		if len(elements) == 0 {
			continue
		}
		text, ok := e.elementText(elements[0])
		if !ok {
			continue
		}
		tag := fmt.Sprintf("%s:%s:0", domain.StrategyDOMFallback, selector)
		if c, ok := e.newCandidate(text, confidenceDOMFallback, tag); ok {
			candidates = append(candidates, c)
		}
	}
	return candidates, nil
}

func (e *Extractor) scanSelectors(
	doc domain.Document,
	selectors []string,
	strategy domain.Strategy,
	confidence float64,
	accept func(el domain.Element, text string) bool,
) []domain.Candidate {
	var candidates []domain.Candidate
	for _, selector := range selectors {
		for i, el := range doc.QueryAll(selector) {
			text, ok := e.elementText(el)
			if !ok || !e.accepts(accept, el, text) {
				continue
			}
			tag := fmt.Sprintf("%s:%s:%d", strategy, selector, i)
			if c, ok := e.newCandidate(text, confidence, tag); ok {
				candidates = append(candidates, c)
			}
		}
	}
	return candidates
}

// elementText reads an element's text; a failing element is dropped, not fatal
func (e *Extractor) elementText(el domain.Element) (text string, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Debug("element text unavailable", zap.Any("panic", r))
			text, ok = "", false
		}
	}()
	text = collapseWhitespace(el.Text())
	return text, text != ""
}

func (e *Extractor) accepts(accept func(domain.Element, string) bool, el domain.Element, text string) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Debug("element inspection failed", zap.Any("panic", r))
			ok = false
		}
	}()
	return accept(el, text)
}

func collapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRegex.ReplaceAllString(s, " "))
}
