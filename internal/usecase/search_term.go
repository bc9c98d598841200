package usecase

import (
	"regexp"
	"strings"
)

// storeBrands are retailer house brands that OpenFoodFacts rarely indexes by name
var storeBrands = []string{
	"great value", "marketside", "sam's choice", "equate", "parent's choice",
	"spring valley", "mainstays", "kirkland signature", "kirkland", "tesco finest",
	"tesco", "sainsbury's taste the difference", "by sainsbury's", "asda extra special",
	"m&s", "aldi specially selected", "365 by whole foods market", "good & gather",
	"amazon basics", "happy belly", "simply balanced", "market pantry",
}

// searchNoiseWords are terms that only add noise to an outbound product search
var searchNoiseWords = map[string]bool{
	"buy": true, "online": true, "price": true, "prices": true, "deals": true,
	"deal": true, "sale": true, "cheap": true, "shop": true, "store": true,
	"delivery": true, "offer": true, "offers": true, "best": true, "new": true,
	"official": true, "value": true, "family": true, "bonus": true, "size": true,
	"large": true, "small": true, "mini": true, "jumbo": true, "item": true,
	"product": true, "brand": true, "package": true, "box": true, "bag": true,
	"bottle": true, "jar": true, "tub": true, "pouch": true, "carton": true,
	"pack": true,
}

var (
	retailerPrefixRegex = regexp.MustCompile(`(?i)^\s*(?:amazon\.com|amazon\.co\.uk|amazon|walmart\.com|walmart|tesco|sainsbury's|asda|waitrose|ocado|target|kroger|costco)\s*[:|\-–—]\s*`)
	retailerSuffixRegex = regexp.MustCompile(`(?i)\s*[:|\-–—]\s*(?:amazon\.com|amazon\.co\.uk|amazon|walmart\.com|walmart|tesco|sainsbury's|asda|waitrose|ocado|target|kroger|costco)\b.*$`)
	retailerAtRegex     = regexp.MustCompile(`(?i)\s+(?:at|from|on)\s+(?:amazon\.com|amazon|walmart\.com|walmart|tesco|sainsbury's|asda|waitrose|ocado|target|kroger|costco)\b.*$`)

	// specialCharsRegex removes characters that upstream search endpoints reject
	specialCharsRegex = regexp.MustCompile(`[#%+@!^*()=\[\]{}<>|\\~:;"` + "`" + `]`)

	// sizePatternRegex matches size/quantity patterns commonly found in product names
	sizePatternRegex = regexp.MustCompile(
		`(?i)\b\d+\.?\d*\s*(?:fl\s*oz|oz|ml|cl|liters?|litres?|l|gallons?|gal|lbs?|pounds?|kg|grams?|g|ct|count|pk|pack|pcs|ea|each|qt|quart|pt|pint)\b`,
	)

	multipleSpacesRegex = regexp.MustCompile(`\s+`)
	orphanInnerRegex    = regexp.MustCompile(`\s+[,\-;:]+\s+`)
	orphanTrailRegex    = regexp.MustCompile(`[,\-;:]+\s*$`)
	orphanLeadRegex     = regexp.MustCompile(`^\s*[,\-;:]+`)
)

const maxSearchTermLength = 100

// CleanSearchTerm builds the lower-case query sent to the product lookup
// backend. It is lighter than Normalizer.Clean and keeps descriptive words.
func CleanSearchTerm(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}

	term := strings.ToLower(raw)

	// Retailer decorations around the product name
	term = retailerPrefixRegex.ReplaceAllString(term, "")
	term = retailerSuffixRegex.ReplaceAllString(term, "")
	term = retailerAtRegex.ReplaceAllString(term, "")

	term = strings.ReplaceAll(term, "&", " and ")
	term = specialCharsRegex.ReplaceAllString(term, " ")
	term = sizePatternRegex.ReplaceAllString(term, " ")

	for _, brand := range storeBrands {
		brand = strings.ReplaceAll(brand, "&", " and ")
		if strings.Contains(term, brand) {
			term = strings.ReplaceAll(term, brand, " ")
		}
	}

	term = removeSearchNoise(term)
	term = cleanOrphanedPunctuation(term)
	term = multipleSpacesRegex.ReplaceAllString(term, " ")
	term = strings.TrimSpace(term)

	if len(term) > maxSearchTermLength {
		term = term[:maxSearchTermLength]
		// Cut at a word boundary when one is reasonably close
		if lastSpace := strings.LastIndex(term, " "); lastSpace > maxSearchTermLength/2 {
			term = term[:lastSpace]
		}
	}

	return term
}

func removeSearchNoise(s string) string {
	words := strings.Fields(s)
	kept := make([]string, 0, len(words))
	for _, word := range words {
		if searchNoiseWords[strings.Trim(word, ",.!?;:-'\"")] {
			continue
		}
		kept = append(kept, word)
	}
	return strings.Join(kept, " ")
}

// cleanOrphanedPunctuation removes punctuation that's now alone (e.g., lone commas)
func cleanOrphanedPunctuation(s string) string {
	result := orphanInnerRegex.ReplaceAllString(s, " ")
	result = orphanTrailRegex.ReplaceAllString(result, "")
	return orphanLeadRegex.ReplaceAllString(result, "")
}
