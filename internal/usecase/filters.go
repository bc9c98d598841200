package usecase

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/cloudflare/ahocorasick"

	"github.com/ecolens/backend/internal/domain"
)

const (
	minProductNameRunes = 3
	maxProductNameRunes = 200

	minTitleWords = 2
	maxTitleWords = 8
	minTitleRunes = 5
	maxTitleRunes = 100

	minHeadingFontPx     = 18.0
	upperViewportPortion = 0.6
)

// blacklistedPhrases never appear in a real product name
var blacklistedPhrases = []string{
	// navigation chrome
	"sign in", "log in", "my account", "shopping cart", "your basket", "your cart",
	"checkout", "main menu", "skip to", "back to top", "search results", "store locator",
	"customer service", "customer reviews", "write a review", "track your order",
	// recommendation widgets
	"recommended for you", "frequently bought together", "customers also bought",
	"customers who bought", "customers also viewed", "you may also like",
	"you might also like", "related products", "similar items", "similar products",
	"sponsored", "inspired by your browsing",
	// legal and cookie boilerplate
	"cookie policy", "cookie settings", "accept cookies", "we use cookies",
	"privacy policy", "terms and conditions", "terms of use", "all rights reserved",
	"copyright", "newsletter", "subscribe to",
	// error and bot pages
	"page not found", "access denied", "robot check", "captcha",
	"enter the characters", "something went wrong",
}

// foodIndicatorWords are ingredient, nutrition and diet vocabulary. They are
// matched at word starts so plurals and compounds still count.
var foodIndicatorWords = []string{
	"food", "snack", "drink", "beverage", "juice", "milk", "cheese", "yogurt", "yoghurt",
	"butter", "cream", "egg", "meat", "chicken", "beef", "pork", "fish", "salmon", "tuna",
	"bread", "rice", "pasta", "cereal", "oat", "wheat", "flour", "noodle", "biscuit",
	"cookie", "cake", "chocolate", "cocoa", "candy", "sweet", "sugar", "honey", "jam",
	"spread", "sauce", "ketchup", "mayo", "mustard", "soup", "salad", "pizza", "fruit",
	"vegetable", "apple", "banana", "orange", "berry", "berries", "tomato", "potato",
	"bean", "lentil", "nut", "hazelnut", "almond", "peanut", "coffee", "tea", "water",
	"soda", "cola", "protein", "calorie", "kcal", "fibre", "fiber", "vitamin", "nutrition",
	"ingredient", "organic", "vegan", "vegetarian", "gluten", "dairy", "lactose", "keto",
	"halal", "kosher", "flavour", "flavor", "recipe", "crisps", "chips", "cracker",
	"granola", "muesli", "syrup", "oil", "vinegar", "spice", "herb", "salt", "pepper",
}

// foodNouns are strong signals that a heading names a food product
var foodNouns = map[string]bool{
	"chicken": true, "beef": true, "pork": true, "fish": true, "salmon": true,
	"turkey": true, "lamb": true, "shrimp": true, "tuna": true, "bacon": true,
	"sausage": true, "steak": true, "ham": true, "milk": true, "cheese": true,
	"yogurt": true, "butter": true, "cream": true, "eggs": true, "bread": true,
	"rice": true, "pasta": true, "cereal": true, "oats": true, "flour": true,
	"noodles": true, "tortilla": true, "apple": true, "banana": true, "tomato": true,
	"potato": true, "juice": true, "soda": true, "coffee": true, "tea": true,
	"water": true, "chips": true, "crackers": true, "cookies": true, "chocolate": true,
	"cake": true, "ketchup": true, "mustard": true, "mayonnaise": true, "sauce": true,
	"syrup": true, "honey": true, "jam": true, "spread": true, "pizza": true,
	"soup": true, "salad": true, "biscuits": true, "crisps": true, "granola": true,
}

var (
	blacklistMatcher     = ahocorasick.NewStringMatcher(blacklistedPhrases)
	foodIndicatorMatcher = ahocorasick.NewStringMatcher(wordStartPatterns(foodIndicatorWords))

	dayNameRegex        = wholeWords(`monday|tuesday|wednesday|thursday|friday|saturday|sunday`)
	titlePercentRegex   = regexp.MustCompile(`\d+(?:[.,]\d+)?\s?%`)
	twoCapitalizedRegex = regexp.MustCompile(`\p{Lu}\p{Ll}+\s+\p{Lu}[\p{L}']*`)
	repeatedSepRegex    = regexp.MustCompile(`\|\s*\||>\s*>|»\s*»|›\s*›|•\s*•|-{2,}|_{2,}|={2,}|\*{2,}|~{2,}|\.{3,}|!{2,}|\?{2,}`)
	capsMarkerRegex     = regexp.MustCompile(wordStart + `(?:NEW|SALE|SOLD OUT|HOT|DEAL|OFFER|FREE|LIMITED|EXCLUSIVE|BESTSELLER)` + wordEnd)
)

// bareAttributeWords are rejected when they make up the whole string
var bareAttributeWords = map[string]bool{
	"halal": true, "kosher": true, "organic": true, "vegan": true, "vegetarian": true,
	"gluten free": true, "gluten-free": true, "non-gmo": true, "fair trade": true,
	"new": true, "sale": true, "ingredients": true, "nutrition": true, "description": true,
	"reviews": true, "details": true, "allergens": true,
}

var countryNames = map[string]bool{
	"france": true, "germany": true, "italy": true, "spain": true, "portugal": true,
	"united kingdom": true, "united states": true, "usa": true, "uk": true, "india": true,
	"china": true, "japan": true, "mexico": true, "brazil": true, "canada": true,
	"australia": true, "belgium": true, "netherlands": true, "switzerland": true,
	"ireland": true, "thailand": true, "vietnam": true, "turkey": true, "greece": true,
}

// layoutRegionMarkers identify specification and recommendation regions by class or attribute
var layoutRegionMarkers = []string{
	"specification", "specs", "attributes", "recommend", "related", "similar",
	"carousel", "upsell", "cross-sell", "also-bought", "sponsored",
}

var containerPhrases = []string{"frequently bought together", "sponsored"}

var blockTags = map[string]bool{
	"div": true, "section": true, "article": true, "aside": true, "li": true,
}

func wordStartPatterns(words []string) []string {
	patterns := make([]string, len(words))
	for i, w := range words {
		patterns[i] = " " + w
	}
	return patterns
}

// IsValidProductName rejects strings that cannot be product names. Outside a
// page already classified as food, the string must also carry a food word.
func IsValidProductName(text string, isFoodPage bool) bool {
	trimmed := strings.TrimSpace(text)
	length := len([]rune(trimmed))
	if length < minProductNameRunes || length > maxProductNameRunes {
		return false
	}
	if isNumeric(strings.NewReplacer(" ", "", ".", "", ",", "", "-", "").Replace(trimmed)) {
		return false
	}

	lower := strings.ToLower(trimmed)
	if blacklistMatcher.Contains([]byte(lower)) {
		return false
	}

	if !isFoodPage && !containsFoodIndicator(lower) {
		return false
	}
	return true
}

func containsFoodIndicator(lower string) bool {
	normalized := " " + punctuationRegex.ReplaceAllString(lower, " ")
	return foodIndicatorMatcher.Contains([]byte(normalized))
}

// IsLikelyProductTitle checks that a heading reads like a product name rather
// than a label, a breadcrumb or a promotional banner.
func IsLikelyProductTitle(text string) bool {
	trimmed := strings.TrimSpace(text)
	if !hasLetterOrDigit(trimmed) || isAllCaps(trimmed) {
		return false
	}

	lower := strings.ToLower(trimmed)
	if dayNameRegex.MatchString(trimmed) || titlePercentRegex.MatchString(trimmed) {
		return false
	}
	if bareAttributeWords[lower] || countryNames[lower] {
		return false
	}

	words := strings.Fields(trimmed)
	length := len([]rune(trimmed))
	if len(words) < minTitleWords || len(words) > maxTitleWords {
		return false
	}
	if length < minTitleRunes || length > maxTitleRunes {
		return false
	}

	if repeatedSepRegex.MatchString(trimmed) || breadcrumbSeparators(trimmed) >= 2 {
		return false
	}
	if capsMarkerRegex.MatchString(trimmed) {
		return false
	}

	return looksNameLike(trimmed, words)
}

func looksNameLike(text string, words []string) bool {
	first := []rune(words[0])
	if unicode.IsUpper(first[0]) {
		return true
	}
	if twoCapitalizedRegex.MatchString(text) {
		return true
	}
	for _, w := range words {
		if foodNouns[strings.ToLower(strings.Trim(w, ",.;:!?()"))] {
			return true
		}
	}
	return false
}

func isAllCaps(s string) bool {
	letters := 0
	for _, r := range s {
		if !unicode.IsLetter(r) {
			continue
		}
		if unicode.IsLower(r) {
			return false
		}
		letters++
	}
	return letters >= 2
}

func breadcrumbSeparators(s string) int {
	count := 0
	for _, r := range s {
		switch r {
		case '|', '>', '»', '›', '/':
			count++
		}
	}
	return count
}

// HasGoodVisualHierarchy accepts elements that look like the page's main
// product heading: visible, outside recommendation and specification regions,
// large or heading-level, and in the upper part of the viewport.
func HasGoodVisualHierarchy(el domain.Element, viewportHeight float64) bool {
	if el.Style().IsHidden() {
		return false
	}

	containerChecked := false
	for node, ok := el.Parent(); ok; node, ok = node.Parent() {
		if node.Style().IsHidden() || inLayoutRegion(node) {
			return false
		}
		if !containerChecked && blockTags[strings.ToLower(node.TagName())] {
			containerChecked = true
			text := strings.ToLower(node.Text())
			for _, phrase := range containerPhrases {
				if strings.Contains(text, phrase) {
					return false
				}
			}
		}
	}

	if el.Style().FontSizePx < minHeadingFontPx && !isHeadingTag(el.TagName()) {
		return false
	}
	if viewportHeight <= 0 {
		return true
	}
	return el.BoundingTop() < viewportHeight*upperViewportPortion
}

func inLayoutRegion(node domain.Element) bool {
	for _, attr := range []string{"class", "id", "data-component", "aria-label"} {
		value, ok := node.Attr(attr)
		if !ok || value == "" {
			continue
		}
		value = strings.ToLower(value)
		for _, marker := range layoutRegionMarkers {
			if strings.Contains(value, marker) {
				return true
			}
		}
	}
	return false
}

func isHeadingTag(tag string) bool {
	switch strings.ToLower(tag) {
	case "h1", "h2", "h3", "h4", "h5", "h6":
		return true
	}
	return false
}
