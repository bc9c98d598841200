package usecase

import (
	"github.com/ecolens/backend/internal/domain"
)

// FoodMatcher is a PageClassifier that can also explain its verdict
type FoodMatcher interface {
	PageClassifier
	GetFoodMatches(title string) []domain.FoodMatch
}

// Detector runs a single classification and extraction pass over a document
type Detector struct {
	classifier FoodMatcher
	extractor  CandidateExtractor
}

// NewDetector creates a detector
func NewDetector(classifier FoodMatcher, extractor CandidateExtractor) *Detector {
	return &Detector{classifier: classifier, extractor: extractor}
}

// Detect inspects doc once, without retries or UI
func (d *Detector) Detect(doc domain.Document) domain.Detection {
	title := doc.Title()
	categories := d.classifier.GetFoodMatches(title)
	if categories == nil {
		categories = []domain.FoodMatch{}
	}
	candidates := d.extractor.Extract(doc)
	if candidates == nil {
		candidates = []domain.Candidate{}
	}
	return domain.Detection{
		URL:        doc.URL(),
		Title:      title,
		IsFoodPage: d.classifier.IsFoodPage(title),
		Categories: categories,
		Candidates: candidates,
	}
}
