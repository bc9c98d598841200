package usecase

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"go.uber.org/zap"
)

// normalizeStage is one named step of the product-name cleaning pipeline.
// Stages run in order and each one only sees the output of the previous one.
type normalizeStage struct {
	name  string
	apply func(string) string
}

// Normalizer turns raw candidate strings into clean display product names
type Normalizer struct {
	stages []normalizeStage
	logger *zap.Logger
}

// NewNormalizer creates a normalizer with the default stage pipeline
func NewNormalizer(logger *zap.Logger) *Normalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{
		stages: []normalizeStage{
			{"split-camel-case", splitCamelCase},
			{"strip-retailers", stripRetailers},
			{"strip-quality-adjectives", stripQualityAdjectives},
			{"strip-quantities", stripQuantities},
			{"strip-size-color-model", stripSizeColorModel},
			{"strip-noise-words", stripNoiseWords},
			{"strip-punctuation", stripPunctuation},
			{"filter-tokens", filterTokens},
			{"restore-casing", restoreCasing},
			{"title-case", titleCase},
		},
		logger: logger.Named("normalizer"),
	}
}

// StageNames returns the pipeline stage names in execution order
func (n *Normalizer) StageNames() []string {
	names := make([]string, len(n.stages))
	for i, s := range n.stages {
		names[i] = s.name
	}
	return names
}

// Clean normalizes a raw product string. It is pure and total: empty input
// returns "" without running the pipeline, and the pipeline itself may reduce
// a string to "" when every word is filtered out.
func (n *Normalizer) Clean(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}

	cleaned := raw
	for _, stage := range n.stages {
		cleaned = stage.apply(cleaned)
		if cleaned == "" {
			break
		}
	}

	n.logger.Debug("cleaned product name", zap.String("input", raw), zap.String("output", cleaned))
	return cleaned
}

// RE2's \b only knows ASCII letters, so "Açaí" would split around "ç".
// wordStart and wordEnd bound a match by any non-letter, non-digit rune.
const (
	wordStart = `(^|[^\p{L}\p{N}_])`
	wordEnd   = `($|[^\p{L}\p{N}_])`
)

// wholeWords compiles a case-insensitive pattern that only matches whole words
func wholeWords(pattern string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)` + wordStart + `(?:` + pattern + `)` + wordEnd)
}

// wordListPattern compiles a case-insensitive whole-word alternation.
// Longer entries are tried first so phrases win over their prefixes.
func wordListPattern(words ...[]string) *regexp.Regexp {
	var all []string
	for _, list := range words {
		all = append(all, list...)
	}
	sort.SliceStable(all, func(i, j int) bool { return len(all[i]) > len(all[j]) })

	quoted := make([]string, len(all))
	for i, w := range all {
		quoted[i] = regexp.QuoteMeta(w)
	}
	return wholeWords(strings.Join(quoted, "|"))
}

// removeWords blanks every whole-word match of re. The boundary runes are
// part of each match, so neighbours sharing one are caught on a later pass.
func removeWords(re *regexp.Regexp, s string) string {
	for {
		next := re.ReplaceAllString(s, "${1} ${2}")
		if next == s {
			return s
		}
		s = next
	}
}

var retailerNames = []string{
	"amazon", "amazon.com", "amazon.co.uk", "amazon fresh", "walmart", "walmart.com",
	"tesco", "sainsbury's", "sainsburys", "asda", "waitrose", "morrisons", "ocado",
	"aldi", "lidl", "carrefour", "kroger", "costco", "target", "safeway", "publix",
	"whole foods", "whole foods market", "instacart", "co-op", "iceland", "bigbasket",
	"jiomart", "blinkit", "flipkart", "ebay", "rewe", "edeka", "albert heijn",
}

var storefrontWords = []string{
	"shop", "store", "online", "supermarket", "marketplace", "grocery", "groceries",
	"official site", "delivery", "webshop",
}

var qualityAdjectives = []string{
	"premium", "organic", "organics", "artisan", "artisanal", "gourmet", "finest",
	"deluxe", "luxury", "select", "selected", "quality", "handmade", "hand-made",
	"handcrafted", "natural", "all natural", "all-natural", "superior", "signature",
}

var provenanceAdjectives = []string{
	"imported", "local", "locally sourced", "locally grown", "authentic", "traditional",
	"genuine", "heritage", "product of",
}

var promotionalWords = []string{
	"new", "improved", "new & improved", "best", "bestseller", "best-seller", "best seller",
	"sale", "offer", "deal", "deals", "hot", "special", "limited", "limited edition",
	"exclusive", "bonus", "value", "save", "clearance", "discount", "discounted",
	"popular", "trending", "favourite", "favorite", "top rated", "top-rated",
	"delicious", "tasty",
}

var preparationWords = []string{
	"fresh", "frozen", "chilled", "ambient", "ready to eat", "ready-to-eat",
	"precooked", "pre-cooked", "uncooked", "ready to cook",
}

var dietClaimWords = []string{
	"gluten free", "gluten-free", "vegan", "vegetarian", "keto", "keto friendly",
	"paleo", "low fat", "fat free", "fat-free", "sugar free", "sugar-free",
	"no added sugar", "dairy free", "dairy-free", "lactose free", "lactose-free",
	"non-gmo", "non gmo", "low carb", "high protein", "low sodium", "halal", "kosher",
	"plant based", "plant-based",
}

var nutrientWords = []string{
	"protein", "fibre", "fiber", "calcium", "vitamin", "vitamins", "omega 3", "omega-3",
	"iron", "sodium", "calories", "kcal", "carbs", "antioxidants", "probiotic", "probiotics",
}

var commercePhrases = []string{
	"add to cart", "add to basket", "add to trolley", "buy now", "shop now", "in stock",
	"out of stock", "free delivery", "free shipping", "subscribe & save",
	"subscribe and save", "order now", "buy online", "same day delivery",
}

var articleStopwords = []string{"the", "a", "an"}

// genericNouns are dropped as whole tokens after punctuation stripping
var genericNouns = map[string]bool{
	"item": true, "items": true, "product": true, "products": true, "goods": true,
	"pack": true, "packs": true, "family": true, "size": true, "piece": true,
	"pieces": true, "unit": true, "units": true, "each": true, "bundle": true,
	"set": true, "variety": true, "assorted": true, "brand": true, "multipack": true,
	"count": true,
}

// casingOverrides restores the exact spelling of known brands and terms
var casingOverrides = map[string]string{
	"nutella":   "Nutella",
	"kitkat":    "KitKat",
	"bbq":       "BBQ",
	"coca-cola": "Coca-Cola",
	"pepsico":   "PepsiCo",
	"mcvities":  "McVitie's",
	"m&ms":      "M&M's",
	"uht":       "UHT",
	"haribo":    "HARIBO",
	"oreo":      "OREO",
	"nescafe":   "NESCAFÉ",
	"weetabix":  "Weetabix",
}

var (
	camelLowerUpperRegex = regexp.MustCompile(`(\p{Ll})(\p{Lu})`)
	camelAcronymRegex    = regexp.MustCompile(`(\p{Lu}+)(\p{Lu}\p{Ll})`)

	retailerRegex      = wordListPattern(retailerNames, storefrontWords)
	qualityRegex       = wordListPattern(qualityAdjectives, provenanceAdjectives)
	noiseWordsRegex    = wordListPattern(promotionalWords, preparationWords, dietClaimWords, nutrientWords, commercePhrases, articleStopwords)
	multipackRegex     = regexp.MustCompile(`(?i)` + wordStart + `\d+\s?[x×]\s?(\d)`)
	packOfRegex        = wholeWords(`(?:pack|case|box|tray|set)\s+of\s+\d+`)
	quantityRegex      = wholeWords(`\d+(?:[.,]\d+)?\s?(?:fl\.?\s?oz|kgs?|gms?|gr|grams?|mg|ml|cl|dl|ltr|litres?|liters?|g|l|oz|ounces?|lbs?|pounds?|pcs|pc|pieces?|packs?|pk|ct|count|servings?|capsules|tablets|x)`)
	percentRegex       = regexp.MustCompile(`\d+(?:[.,]\d+)?\s?%`)
	sizeLabelRegex     = wholeWords(`(?:size|sz)\s*[:\-]?\s*(?:xxxl|xx?l|xx?s|s|m|l|small|medium|large|\d+)`)
	sizeWordRegex      = wholeWords(`extra[\s-]large|xx?-large|xxl|xl|small|medium|large|mini|jumbo|(?:family|party|king|snack|fun|share|travel|bonus|mega)[\s-]size|(?:value|club)[\s-]pack`)
	colorRegex         = wholeWords(`colou?r\s*[:\-]?\s*\p{L}+`)
	modelRegex         = wholeWords(`(?:model|sku|item|art|article|ref|upc|ean)\s*(?:no\.?|number|#)?\s*[:#]?\s*[a-z0-9\-]*\d[a-z0-9\-]*`)
	hashNumberRegex    = regexp.MustCompile(`#\s?\d+`)
	versionRegex       = wholeWords(`(?:version|ver\.?)\s?\d+(?:\.\d+)*|v\d+(?:\.\d+)+`)
	disallowedRegex    = regexp.MustCompile(`[^\p{L}\p{N}\s&\-]+`)
	collapseSpaceRegex = regexp.MustCompile(`\s+`)
)

// splitCamelCase separates glued words ("PhillyCheese") but leaves known
// brand spellings such as "KitKat" intact
func splitCamelCase(s string) string {
	tokens := strings.Fields(s)
	for i, token := range tokens {
		if _, ok := casingOverrides[strings.ToLower(token)]; ok {
			continue
		}
		token = camelLowerUpperRegex.ReplaceAllString(token, "$1 $2")
		tokens[i] = camelAcronymRegex.ReplaceAllString(token, "$1 $2")
	}
	return strings.Join(tokens, " ")
}

func stripRetailers(s string) string {
	return removeWords(retailerRegex, s)
}

func stripQualityAdjectives(s string) string {
	return removeWords(qualityRegex, s)
}

func stripQuantities(s string) string {
	s = removeWords(packOfRegex, s)
	s = multipackRegex.ReplaceAllString(s, "${1} ${2}")
	s = removeWords(quantityRegex, s)
	return percentRegex.ReplaceAllString(s, " ")
}

func stripSizeColorModel(s string) string {
	s = removeWords(sizeLabelRegex, s)
	s = removeWords(sizeWordRegex, s)
	s = removeWords(colorRegex, s)
	s = removeWords(modelRegex, s)
	s = hashNumberRegex.ReplaceAllString(s, " ")
	return removeWords(versionRegex, s)
}

func stripNoiseWords(s string) string {
	return removeWords(noiseWordsRegex, s)
}

func stripPunctuation(s string) string {
	s = disallowedRegex.ReplaceAllString(s, " ")
	s = collapseSpaceRegex.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

func filterTokens(s string) string {
	var kept []string
	for _, token := range strings.Fields(s) {
		if len([]rune(token)) <= 1 {
			continue
		}
		if isNumeric(token) || !hasLetterOrDigit(token) {
			continue
		}
		if genericNouns[strings.ToLower(token)] {
			continue
		}
		kept = append(kept, token)
	}
	return strings.Join(kept, " ")
}

func restoreCasing(s string) string {
	tokens := strings.Fields(s)
	for i, token := range tokens {
		if override, ok := casingOverrides[strings.ToLower(token)]; ok {
			tokens[i] = override
		}
	}
	return strings.Join(tokens, " ")
}

func titleCase(s string) string {
	tokens := strings.Fields(s)
	for i, token := range tokens {
		r := []rune(token)
		if unicode.IsUpper(r[0]) {
			continue
		}
		r[0] = unicode.ToUpper(r[0])
		tokens[i] = string(r)
	}
	return strings.Join(tokens, " ")
}

func hasLetterOrDigit(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
