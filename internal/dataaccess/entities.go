// Package dataaccess is the typed read/write layer against the state
// store, following the monorepo's gorm-repository convention: a thin
// entity-to-domain mapping, no business logic.
package dataaccess

import "time"

// propertyRow is the gorm-mapped properties table row.
type propertyRow struct {
	ID           string `gorm:"primaryKey"`
	Country      string
	City         string
	Neighborhood string
	PropertyType string
	Capacity     int
	FloorPrice   float64
	CeilingPrice float64
	BasePrice    float64
	Currency     string
}

func (propertyRow) TableName() string { return "properties" }

// bookingRow is the gorm-mapped bookings table row.
type bookingRow struct {
	ID         uint `gorm:"primaryKey;autoIncrement"`
	PropertyID string `gorm:"index"`
	StartDate  time.Time
}

func (bookingRow) TableName() string { return "bookings" }

// priceOverrideRow is the gorm-mapped price_overrides table row.
type priceOverrideRow struct {
	ID         uint `gorm:"primaryKey;autoIncrement"`
	PropertyID string `gorm:"index"`
	Date       time.Time
	Price      float64
}

func (priceOverrideRow) TableName() string { return "price_overrides" }

// pricingFeatureRow is the gorm-mapped features_pricing_daily table row.
type pricingFeatureRow struct {
	ID                 uint `gorm:"primaryKey;autoIncrement"`
	PropertyID         string `gorm:"index"`
	Date               time.Time
	CompetitorAvgPrice *float64
	MarketDemandLevel  *float64
}

func (pricingFeatureRow) TableName() string { return "features_pricing_daily" }

// marketFeatureRow is the gorm-mapped market_features table row.
type marketFeatureRow struct {
	ID                 uint `gorm:"primaryKey;autoIncrement"`
	Country             string `gorm:"index:idx_market_key"`
	City                 string `gorm:"index:idx_market_key"`
	Neighborhood        string
	PropertyType        string
	Date                time.Time `gorm:"index:idx_market_key"`
	CompetitorAvgPrice  *float64
	CompetitorMinPrice  *float64
	CompetitorMaxPrice  *float64
	WeatherScore        *float64
	EventIntensity      *float64
	TrendScore          *float64
	SentimentScore      *float64
	IsHoliday           bool
	IsSchoolHoliday     bool
	MarketOccupancyEst  *float64
}

func (marketFeatureRow) TableName() string { return "market_features" }

// modelMetricRow is the gorm-mapped pricing_model_metrics table row.
type modelMetricRow struct {
	ID                string `gorm:"primaryKey"`
	PropertyID        string `gorm:"index"`
	ModelVersion      string
	TrainRMSE         float64
	ValRMSE           float64
	TrainMAE          float64
	ValMAE            float64
	NTrain            int
	NVal              int
	FeatureImportance string // JSON-encoded map[string]float64
	ArtifactPath      string
	TrainedAt         time.Time `gorm:"index"`
	TrainedBy         string
	Metadata          string // JSON-encoded map[string]interface{}
}

func (modelMetricRow) TableName() string { return "pricing_model_metrics" }

// recommendationRow is the gorm-mapped pricing_recommendations table row.
type recommendationRow struct {
	ID               string `gorm:"primaryKey"`
	PropertyID       string `gorm:"index"`
	StayDate         time.Time
	RecommendedPrice float64
	Currency         string
	Confidence       float64
	Strategy         string
	ExpectedRevenue  float64
	PredictedDemand  float64
	Context          string // JSON-encoded map[string]interface{}
	CreatedAt        time.Time `gorm:"index"`
}

func (recommendationRow) TableName() string { return "pricing_recommendations" }
