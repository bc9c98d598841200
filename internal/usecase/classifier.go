package usecase

import (
	"regexp"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/ecolens/backend/internal/domain"
)

// ClassifierConfig holds the similarity thresholds of the two indices
type ClassifierConfig struct {
	CategoryThreshold    float64
	DescriptionThreshold float64
}

// DefaultClassifierConfig returns the tuned thresholds. The description index
// is looser because page titles only loosely paraphrase canonical descriptions.
func DefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfig{
		CategoryThreshold:    0.8,
		DescriptionThreshold: 0.7,
	}
}

// Classifier decides whether a document title is about food
type Classifier struct {
	categories   *FuzzyIndex
	descriptions *FuzzyIndex
	logger       *zap.Logger
}

// titleDelimiterRegex splits page titles into candidate tokens
var titleDelimiterRegex = regexp.MustCompile(`[\s\-_|:,.;/()\[\]!?'"]+`)

// titleStopWords are site and domain words that say nothing about the product
var titleStopWords = map[string]bool{
	"www": true, "com": true, "net": true, "org": true, "co": true, "uk": true,
	"shop": true, "store": true, "online": true, "buy": true, "sale": true,
	"amazon": true, "walmart": true, "tesco": true, "official": true, "site": true,
	"page": true, "home": true, "the": true, "and": true, "for": true, "with": true,
	"from": true, "free": true, "delivery": true, "price": true, "best": true,
	"deals": true, "your": true, "you": true, "our": true, "new": true,
}

// descriptionIgnoreWords are left out of description index entries so that
// connective words never produce a match on their own
var descriptionIgnoreWords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true, "of": true,
	"in": true, "on": true, "with": true, "for": true, "from": true, "to": true,
	"by": true, "as": true, "at": true, "no": true, "per": true,
}

// NewClassifier builds both indices from the reference corpora
func NewClassifier(categoryTerms, foodDescriptions []string, cfg ClassifierConfig, logger *zap.Logger) *Classifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Classifier{
		categories:   NewFuzzyIndex(categoryTerms, cfg.CategoryThreshold, nil),
		descriptions: NewFuzzyIndex(foodDescriptions, cfg.DescriptionThreshold, descriptionIgnoreWords),
		logger:       logger.Named("classifier"),
	}
	c.logger.Info("food indices built",
		zap.Int("categoryTerms", c.categories.Len()),
		zap.Int("foodDescriptions", c.descriptions.Len()),
	)
	return c
}

// IsFoodPage reports whether any meaningful title token matches the food
// description index. Empty and stopword-only titles are not food pages.
func (c *Classifier) IsFoodPage(title string) bool {
	for _, token := range titleTokens(title) {
		if c.descriptions.Matches(token) {
			c.logger.Debug("food page detected", zap.String("title", title), zap.String("token", token))
			return true
		}
	}
	return false
}

// GetFoodMatches matches the whole title against the category index.
// The result hints at categories and never gates detection.
func (c *Classifier) GetFoodMatches(title string) []domain.FoodMatch {
	cleaned := strings.TrimSpace(strings.ToLower(title))
	if cleaned == "" {
		return nil
	}
	return c.categories.Search(cleaned)
}

func titleTokens(title string) []string {
	cleaned := strings.TrimSpace(strings.ToLower(title))
	if cleaned == "" {
		return nil
	}

	var tokens []string
	for _, token := range titleDelimiterRegex.Split(cleaned, -1) {
		if len([]rune(token)) < 3 || containsDigit(token) || titleStopWords[token] {
			continue
		}
		tokens = append(tokens, token)
	}
	return tokens
}

func containsDigit(s string) bool {
	for _, r := range s {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
