// Package pricingmodel holds the data-model types shared by every layer of
// the pricing core: raw store rows, the training frame, model artifacts,
// and the two append-only event streams (metrics, recommendations).
package pricingmodel

import (
	"time"

	"github.com/shopspring/decimal"
)

// Property is the immutable-within-a-request view of a rental property:
// location, capacity, and the pricing constraints the optimizer must honor.
type Property struct {
	ID           string
	Country      string
	City         string
	Neighborhood string
	PropertyType string
	Capacity     int
	FloorPrice   decimal.Decimal
	CeilingPrice decimal.Decimal
	BasePrice    decimal.Decimal
	Currency     string
}

// Booking is a single reservation row from the bookings ledger.
type Booking struct {
	PropertyID string
	StartDate  time.Time
}

// PriceOverride is a manually-set nominal price for one property-date.
type PriceOverride struct {
	PropertyID string
	Date       time.Time
	Price      float64
}

// InternalRecord is the densified per-(property,date) view: exactly one row
// per calendar day in the requested window, zero-booking days explicit.
type InternalRecord struct {
	PropertyID    string
	Date          time.Time
	OverridePrice *float64
	Bookings      int
	Capacity      int
}

// MarketFeatureRow is a (country, city, neighborhood?, property_type?, date)
// row produced by the external market-data pipeline. Only the columns the
// core actually consumes are modeled; everything else is passthrough.
type MarketFeatureRow struct {
	Country             string
	City                string
	Neighborhood        string
	PropertyType        string
	Date                time.Time
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

// PricingFeatureRow is the property-scoped projection of MarketFeatureRow
// that the dataset builder joins against internal records.
type PricingFeatureRow struct {
	PropertyID         string
	Date               time.Time
	CompetitorAvgPrice *float64
	MarketDemandLevel  *float64
}

// Row is one record of a training frame: a dense map of feature name to
// value plus the fixed identity/target columns every row carries. Using an
// explicit map (rather than the source's untyped dict-of-everything) keeps
// the feature schema a first-class, inspectable thing per the Design Notes'
// "typed feature row" guidance.
type Row struct {
	PropertyID string
	Date       time.Time
	YDemand    float64
	Features   map[string]float64
}

// Frame is the joined, densified, imputed training frame 4.B produces.
// FeatureColumns is the canonical, ordered feature column set — the same
// list that gets persisted alongside a trained model.
type Frame struct {
	Rows           []Row
	FeatureColumns []string
}

// ModelArtifactMeta is the sidecar persisted next to a serialized model.
type ModelArtifactMeta struct {
	Key            string // property_id, or "market_<country>_<city>" for market models
	FeatureColumns []string
	Config         TrainConfig
	SavedAt        time.Time
	Format         string // "json" (native) or "gob" (fallback)
	Version        int
}

// TrainConfig is the gradient-boosted regressor's hyperparameter set.
// Defaults match spec.md §4.C exactly.
type TrainConfig struct {
	NEstimators     int
	LearningRate    float64
	MaxDepth        int
	Subsample       float64
	ColsampleByTree float64
	Seed            int64
}

// DefaultTrainConfig returns the spec-mandated defaults.
func DefaultTrainConfig() TrainConfig {
	return TrainConfig{
		NEstimators:     300,
		LearningRate:    0.05,
		MaxDepth:        6,
		Subsample:       0.9,
		ColsampleByTree: 0.9,
		Seed:            42,
	}
}

// TrainMetrics is the result of fitting a model.
type TrainMetrics struct {
	TrainRMSE float64
	ValRMSE   float64
	TrainMAE  float64
	ValMAE    float64
	NTrain    int
	NVal      int
}

// TrainedBy enumerates who initiated a training run.
type TrainedBy string

const (
	TrainedByManual      TrainedBy = "manual"
	TrainedByBatch       TrainedBy = "batch"
	TrainedByAutoRetrain TrainedBy = "auto_retrain"
	TrainedByE2ETest     TrainedBy = "e2e_test"
)

// ModelMetricRecord is one append-only row in pricing_model_metrics.
type ModelMetricRecord struct {
	ID                string
	PropertyID        string
	ModelVersion      string
	TrainRMSE         float64
	ValRMSE           float64
	TrainMAE          float64
	ValMAE            float64
	NTrain            int
	NVal              int
	FeatureImportance map[string]float64
	ArtifactPath      string
	TrainedAt         time.Time
	TrainedBy         TrainedBy
	Metadata          map[string]interface{}
}

// Strategy tags the optimizer/recommendation path can return. Every
// fallback path carries one of these so a caller always knows why.
type Strategy string

const (
	StrategyGridSearch       Strategy = "demand_simulation_grid_search"
	StrategyInvalidConfig    Strategy = "fallback_invalid_config"
	StrategyNoValidSim       Strategy = "fallback_no_valid_simulation"
)

// RecommendationRecord is one append-only row in pricing_recommendations.
type RecommendationRecord struct {
	ID                string
	PropertyID        string
	StayDate          time.Time
	RecommendedPrice  decimal.Decimal
	Currency          string
	Confidence        float64
	Strategy          Strategy
	ExpectedRevenue   float64
	PredictedDemand   float64
	Context           map[string]interface{}
	CreatedAt         time.Time
}

// PriceGridPoint is one candidate price and its simulated outcome.
type PriceGridPoint struct {
	Price           float64
	PredictedDemand float64
	ExpectedRevenue float64
}
