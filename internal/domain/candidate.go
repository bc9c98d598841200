package domain

// Strategy identifies the extraction strategy that produced a candidate
type Strategy string

const (
	StrategyStructuredData Strategy = "structured-data"
	StrategyMetaTag        Strategy = "meta-tag"
	StrategyDOMHigh        Strategy = "dom-high"
	StrategyDOMMedium      Strategy = "dom-medium"
	StrategyDOMFallback    Strategy = "dom-fallback"
)

// Candidate is a scored, sourced guess at a product name found in a document.
// Candidates are values: once produced by a strategy they are never mutated.
type Candidate struct {
	RawText     string  `json:"rawText"`
	CleanedText string  `json:"cleanedText"`
	Confidence  float64 `json:"confidence"` // (0,1], strategy-assigned
	SourceTag   string  `json:"sourceTag"`  // "<strategy>:<locator>"
}

// FoodMatch is a single hit from a fuzzy food index
type FoodMatch struct {
	Term  string  `json:"term"`
	Score float64 `json:"score"` // similarity in [0,1], 1 is an exact match
}

// Detection is the one-shot result of inspecting a document
type Detection struct {
	URL        string      `json:"url"`
	Title      string      `json:"title"`
	IsFoodPage bool        `json:"isFoodPage"`
	Categories []FoodMatch `json:"categories"`
	Candidates []Candidate `json:"candidates"`
}
