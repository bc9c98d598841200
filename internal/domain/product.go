package domain

import "time"

// ProductInfo is a product with its environmental impact data, as served by /product_info
type ProductInfo struct {
	ID                     string             `json:"id"`
	CacheKey               string             `json:"cache_key,omitempty"`
	Name                   string             `json:"name"`
	EnvironmentalScoreData EnvironmentalScore `json:"environmental_score_data"`
	Categories             []string           `json:"categories"`
	Labels                 []string           `json:"labels"`
}

// EnvironmentalScore is the eco-score breakdown of a product
type EnvironmentalScore struct {
	AdjustedScore  float64                  `json:"adjusted_score"`
	OverallGrade   string                   `json:"overall_grade"`
	PackagingScore float64                  `json:"packaging_score"`
	MaterialScores map[string]MaterialScore `json:"material_scores,omitempty"`
	Agribalyse     *Agribalyse              `json:"agribalyse,omitempty"`
}

// MaterialScore is the packaging score of a single material
type MaterialScore struct {
	Material      string  `json:"material"`
	PackagingID   string  `json:"packaging_id"`
	MaterialScore float64 `json:"environmental_score_material_score"`
	ShapeRatio    float64 `json:"environmental_score_shape_ratio"`
	Shape         string  `json:"shape"`
	ShapeID       string  `json:"shape_id"`
}

// Agribalyse holds the CO2 footprint breakdown (kg CO2 eq/kg)
type Agribalyse struct {
	CO2Total          float64 `json:"co2_total"`
	CO2Agriculture    float64 `json:"co2_agriculture"`
	CO2Consumption    float64 `json:"co2_consumption"`
	CO2Distribution   float64 `json:"co2_distribution"`
	CO2Packaging      float64 `json:"co2_packaging"`
	CO2Processing     float64 `json:"co2_processing"`
	CO2Transportation float64 `json:"co2_transportation"`
}

// Recommendation is a ranked greener alternative
type Recommendation struct {
	ID            string  `json:"id"`
	ProductName   string  `json:"product_name"`
	EcoscoreScore float64 `json:"ecoscore_score"`
	EcoscoreGrade string  `json:"ecoscore_grade"`
}

// ProductRequest is the body of POST /product_info
type ProductRequest struct {
	ProductName string `json:"product_name" binding:"required"`
}

// RecommendationsRequest is the body of POST /recommendations
type RecommendationsRequest struct {
	Categories []string `json:"categories"`
}

// DefaultRecommendationCategories are used when a request names none
var DefaultRecommendationCategories = []string{
	"plant-based-foods-and-beverages",
	"plant-based-foods",
	"cereals-and-potatoes",
}

// ReportStatus is the state of the confirmation report for a detected product
type ReportStatus string

const (
	ReportPending      ReportStatus = "pending"
	ReportReady        ReportStatus = "ready"
	ReportNoData       ReportStatus = "no_data"
	ReportDetectedOnly ReportStatus = "detected_only"
)

// Report is what the confirmation UI shows for a detected product
type Report struct {
	ID          string        `json:"id"`
	URL         string        `json:"url"`
	Candidate   Candidate     `json:"candidate"`
	SearchTerm  string        `json:"searchTerm"`
	Status      ReportStatus  `json:"status"`
	Message     string        `json:"message,omitempty"`
	BestProduct *ProductInfo  `json:"bestProduct,omitempty"`
	Products    []ProductInfo `json:"products,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
}

// OFFProduct is a product record from the OpenFoodFacts search API
type OFFProduct struct {
	ID                  string       `json:"_id"`
	Code                string       `json:"code"`
	ProductName         string       `json:"product_name"`
	ProductNameEN       string       `json:"product_name_en"`
	GenericName         string       `json:"generic_name"`
	GenericNameEN       string       `json:"generic_name_en"`
	CategoriesHierarchy []string     `json:"categories_hierarchy"`
	Labels              string       `json:"labels"`
	EcoscoreScore       *float64     `json:"ecoscore_score"`
	EcoscoreGrade       string       `json:"ecoscore_grade"`
	EcoscoreData        *OFFEcoscore `json:"ecoscore_data"`
}

// OFFEcoscore is the ecoscore_data block of an OpenFoodFacts product
type OFFEcoscore struct {
	Score       *float64       `json:"score"`
	Grade       string         `json:"grade"`
	Adjustments OFFAdjustments `json:"adjustments"`
	Agribalyse  *OFFAgribalyse `json:"agribalyse"`
}

// OFFAdjustments holds eco-score adjustments
type OFFAdjustments struct {
	Packaging OFFPackagingAdjustment `json:"packaging"`
}

// OFFPackagingAdjustment is the packaging part of the eco-score
type OFFPackagingAdjustment struct {
	Score      *float64       `json:"score"`
	Packagings []OFFPackaging `json:"packagings"`
}

// OFFPackaging is a single packaging component
type OFFPackaging struct {
	Material      string  `json:"material"`
	Shape         string  `json:"shape"`
	MaterialScore float64 `json:"environmental_score_material_score"`
	ShapeRatio    float64 `json:"environmental_score_shape_ratio"`
}

// OFFAgribalyse is the raw agribalyse block
type OFFAgribalyse struct {
	Warning           string   `json:"warning"`
	CO2Total          *float64 `json:"co2_total"`
	CO2Agriculture    float64  `json:"co2_agriculture"`
	CO2Consumption    float64  `json:"co2_consumption"`
	CO2Distribution   float64  `json:"co2_distribution"`
	CO2Packaging      float64  `json:"co2_packaging"`
	CO2Processing     float64  `json:"co2_processing"`
	CO2Transportation float64  `json:"co2_transportation"`
}

// OFFSearchResponse is the envelope of the OpenFoodFacts search API
type OFFSearchResponse struct {
	Count    int          `json:"count"`
	Page     int          `json:"page"`
	PageSize int          `json:"page_size"`
	Products []OFFProduct `json:"products"`
}
