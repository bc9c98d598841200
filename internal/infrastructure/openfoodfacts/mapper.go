package openfoodfacts

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/ecolens/backend/internal/domain"
)

const (
	englishTagPrefix = "en:"
	unknownName      = "Unknown"
	defaultGrade     = "c"
	defaultScore     = 50.0
)

// gradeScores stands in for a missing eco-score
var gradeScores = map[string]float64{
	"a": 80,
	"b": 65,
	"c": 50,
	"d": 35,
	"e": 20,
}

// MapToProductInfo converts an OpenFoodFacts product into our ProductInfo.
// Products without eco-score data are skipped (ok is false).
func MapToProductInfo(p *domain.OFFProduct, cacheKey string) (domain.ProductInfo, bool) {
	if p == nil || p.EcoscoreData == nil {
		return domain.ProductInfo{}, false
	}

	name := p.ProductName
	if name == "" {
		name = unknownName
	}

	return domain.ProductInfo{
		ID:                     p.ID,
		CacheKey:               cacheKey,
		Name:                   name,
		EnvironmentalScoreData: mapEnvironmentalScore(p.EcoscoreData),
		Categories:             EnglishCategories(p.CategoriesHierarchy),
		Labels:                 Labels(p.Labels),
	}, true
}

func mapEnvironmentalScore(eco *domain.OFFEcoscore) domain.EnvironmentalScore {
	score := domain.EnvironmentalScore{
		AdjustedScore:  deref(eco.Score),
		OverallGrade:   eco.Grade,
		PackagingScore: deref(eco.Adjustments.Packaging.Score),
	}

	for _, pkg := range eco.Adjustments.Packaging.Packagings {
		if pkg.Material == "" {
			continue
		}
		if score.MaterialScores == nil {
			score.MaterialScores = make(map[string]domain.MaterialScore)
		}
		score.MaterialScores[materialKey(pkg.Material)] = domain.MaterialScore{
			Material:      pkg.Material,
			PackagingID:   pkg.Material,
			MaterialScore: pkg.MaterialScore,
			ShapeRatio:    pkg.ShapeRatio,
			Shape:         pkg.Shape,
			ShapeID:       strings.TrimPrefix(pkg.Shape, englishTagPrefix),
		}
	}

	// A warning without a CO2 total means the agribalyse numbers are not usable
	if agri := eco.Agribalyse; agri != nil {
		hasCO2 := agri.CO2Total != nil && *agri.CO2Total != 0
		if hasCO2 || agri.Warning == "" {
			score.Agribalyse = &domain.Agribalyse{
				CO2Total:          deref(agri.CO2Total),
				CO2Agriculture:    agri.CO2Agriculture,
				CO2Consumption:    agri.CO2Consumption,
				CO2Distribution:   agri.CO2Distribution,
				CO2Packaging:      agri.CO2Packaging,
				CO2Processing:     agri.CO2Processing,
				CO2Transportation: agri.CO2Transportation,
			}
		}
	}

	return score
}

// materialKey maps "en:pet-1-polyethylene-terephthalate" to "PET_1_POLYETHYLENE_TEREPHTHALATE"
func materialKey(material string) string {
	key := strings.ReplaceAll(material, englishTagPrefix, "")
	return strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
}

// EnglishCategories keeps "en:" categories and turns them into display names
func EnglishCategories(hierarchy []string) []string {
	categories := make([]string, 0, len(hierarchy))
	for _, c := range hierarchy {
		if !strings.HasPrefix(c, englishTagPrefix) {
			continue
		}
		categories = append(categories, displayTag(strings.TrimPrefix(c, englishTagPrefix)))
	}
	return categories
}

// Labels splits the comma-separated labels field into display names
func Labels(raw string) []string {
	labels := []string{}
	for _, label := range strings.Split(raw, ",") {
		label = strings.TrimSpace(label)
		if label == "" {
			continue
		}
		labels = append(labels, displayTag(strings.TrimPrefix(label, englishTagPrefix)))
	}
	return labels
}

func displayTag(tag string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(tag, "-", " "))
}

// MapToRecommendation converts a category listing entry into a Recommendation.
// Entries without any name are skipped. A missing score falls back to the grade.
func MapToRecommendation(p *domain.OFFProduct, index int) (domain.Recommendation, bool) {
	name := firstNonEmpty(p.ProductName, p.ProductNameEN, p.GenericName, p.GenericNameEN)
	if name == "" {
		return domain.Recommendation{}, false
	}

	grade := p.EcoscoreGrade
	score := p.EcoscoreScore
	if p.EcoscoreData != nil {
		if grade == "" {
			grade = p.EcoscoreData.Grade
		}
		if score == nil {
			score = p.EcoscoreData.Score
		}
	}

	fallback := defaultScore
	if s, ok := gradeScores[strings.ToLower(grade)]; ok {
		fallback = s
	}

	rec := domain.Recommendation{
		ID:            p.ID,
		ProductName:   name,
		EcoscoreScore: fallback,
		EcoscoreGrade: grade,
	}
	if score != nil {
		rec.EcoscoreScore = *score
	}
	if rec.ID == "" {
		rec.ID = fmt.Sprintf("rec_%d", index)
	}
	if rec.EcoscoreGrade == "" {
		rec.EcoscoreGrade = defaultGrade
	}
	return rec, true
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func deref(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
