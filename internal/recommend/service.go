// Package recommend implements the recommendation entry point: the one
// operation everything else in the pricing core exists to support. It
// composes the demand model, the market model's cold-start adjustment,
// the price-grid optimizer, and the confidence heuristic into a single
// decision record, and appends that record for the retrain controller to
// later judge itself against.
package recommend

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/priceye/pricing-engine/internal/cache"
	"github.com/priceye/pricing-engine/internal/coldstart"
	"github.com/priceye/pricing-engine/internal/confidence"
	"github.com/priceye/pricing-engine/internal/demand"
	"github.com/priceye/pricing-engine/internal/market"
	"github.com/priceye/pricing-engine/internal/metrics"
	"github.com/priceye/pricing-engine/internal/obslog"
	"github.com/priceye/pricing-engine/internal/optimizer"
	"github.com/priceye/pricing-engine/internal/pricingerr"
	"github.com/priceye/pricing-engine/internal/pricingmodel"
	"github.com/priceye/pricing-engine/internal/store"
)

// Repository is the subset of the data-access layer the recommendation
// path needs: property constraints, booking history, and the
// market-features lookup the cold-start adjustment uses.
type Repository interface {
	GetProperty(ctx context.Context, propertyID string) (pricingmodel.Property, error)
	GetBookings(ctx context.Context, propertyID string, start, end time.Time) ([]pricingmodel.Booking, error)
	GetMarketFeatureRow(ctx context.Context, country, city string, date time.Time) (*pricingmodel.MarketFeatureRow, error)
	InsertRecommendation(ctx context.Context, rec pricingmodel.RecommendationRecord) error
}

// Request is the inbound shape of 4.H: capacity and context are optional,
// the rest is required.
type Request struct {
	PropertyID string
	RoomType   string
	Date       time.Time
	Capacity   *int
	Context    map[string]float64
}

// Meta carries everything the decision record's meta block needs beyond
// the top-level price/currency/confidence fields.
type Meta struct {
	Strategy               pricingmodel.Strategy
	HorizonDays            int
	DataQuality            string
	ExpectedRevenue        float64
	PredictedDemand        float64
	IsColdStart            bool
	MarketDemandAdjustment *float64
	Details                map[string]interface{}
	Alternatives           []pricingmodel.PriceGridPoint
}

// Decision is the assembled 4.H response.
type Decision struct {
	PropertyID       string
	Date             time.Time
	RecommendedPrice decimal.Decimal
	Currency         string
	Confidence       float64
	Meta             Meta
}

// Config carries the tunables 4.H's steps reference.
type Config struct {
	Optimizer      optimizer.Config
	MinHistoryDays int
	LookbackDays   int
}

// DefaultConfig mirrors the spec-mandated defaults used elsewhere.
func DefaultConfig() Config {
	return Config{
		Optimizer:      optimizer.DefaultConfig(),
		MinHistoryDays: coldstart.DefaultMinHistoryDays,
		LookbackDays:   coldstart.DefaultLookbackDays,
	}
}

// Service composes the recommendation path.
type Service struct {
	repo    Repository
	models  *store.ModelStore
	log     *obslog.Logger
	metrics *metrics.Recorder
	cache   *cache.Cache
	cfg     Config
}

// New wires a Service from its dependencies.
func New(repo Repository, models *store.ModelStore, log *obslog.Logger, rec *metrics.Recorder, cfg Config) *Service {
	return &Service{repo: repo, models: models, log: log, metrics: rec, cfg: cfg}
}

// WithCache attaches an optional in-process-adjacent predictor cache
// (internal/cache). When set, Recommend consults it before falling back
// to a ModelStore load and populates it on a miss; the retrain controller
// bumps its version on promotion so a cached predictor never outlives the
// artifact it was loaded from (spec.md §5).
func (s *Service) WithCache(c *cache.Cache) *Service {
	s.cache = c
	return s
}

// zeroPredictor stands in for a demand model that has not been trained
// yet: it always predicts zero demand. This keeps the optimizer's grid
// search active (rather than short-circuiting to an unrelated fallback
// strategy) when a property has no artifact — the grid still degrades
// gracefully to the lowest candidate price, which is the conservative
// choice for an un-modeled property.
type zeroPredictor struct{}

func (zeroPredictor) Predict(map[string]float64) (float64, error) { return 0, nil }
func (zeroPredictor) UsesPriceFeature() bool                      { return false }

// Recommend implements 4.H end to end.
func (s *Service) Recommend(ctx context.Context, req Request) (Decision, error) {
	start := time.Now()

	property, err := s.repo.GetProperty(ctx, req.PropertyID)
	if err != nil {
		return Decision{}, err
	}

	isColdStart := coldstart.IsColdStart(ctx, s.repo, req.PropertyID, start, s.cfg.MinHistoryDays, s.cfg.LookbackDays)
	historyDays := coldstart.HistoryDays(ctx, s.repo, req.PropertyID, start)

	capacity := s.resolveCapacity(ctx, property, req)

	floor, _ := property.FloorPrice.Float64()
	ceiling, _ := property.CeilingPrice.Float64()
	base, _ := property.BasePrice.Float64()

	var basePtr *float64
	var adjustment *float64
	if !property.BasePrice.IsZero() {
		adjustedBase := base
		if isColdStart {
			adjustedBase, adjustment = s.adjustForColdStart(ctx, property, req.Date, base, floor, ceiling)
		}
		basePtr = &adjustedBase
	}

	predictor := s.loadDemandPredictor(ctx, req.PropertyID)

	optReq := optimizer.Request{
		RoomType:          req.RoomType,
		CapacityRemaining: capacity,
		Context:           req.Context,
		Floor:             floor,
		Ceiling:           ceiling,
		Base:              basePtr,
	}
	decision := optimizer.ChoosePrice(predictor, s.cfg.Optimizer, optReq)

	horizonDays := int(truncateDay(req.Date).Sub(truncateDay(start)).Hours() / 24)
	conf := confidence.Score(start, req.Date, &historyDays)
	dataQuality := "low"
	if conf > 0.7 {
		dataQuality = "high"
	}

	price := decimal.NewFromFloat(decision.Price).Round(2)

	meta := Meta{
		Strategy:               decision.Strategy,
		HorizonDays:            horizonDays,
		DataQuality:            dataQuality,
		ExpectedRevenue:        decision.ExpectedRevenue,
		PredictedDemand:        decision.PredictedDemand,
		IsColdStart:            isColdStart,
		MarketDemandAdjustment: adjustment,
		Details: map[string]interface{}{
			"floor":              floor,
			"ceiling":            ceiling,
			"base":               base,
			"capacity_remaining": capacity,
		},
		Alternatives: decision.Alternatives,
	}

	out := Decision{
		PropertyID:       req.PropertyID,
		Date:             req.Date,
		RecommendedPrice: price,
		Currency:         property.Currency,
		Confidence:       conf,
		Meta:             meta,
	}

	s.appendRecord(ctx, out)

	if s.metrics != nil {
		s.metrics.ObserveRecommendation(string(decision.Strategy), time.Since(start).Seconds())
	}

	return out, nil
}

func (s *Service) loadDemandPredictor(ctx context.Context, propertyID string) optimizer.DemandPredictor {
	if s.cache != nil {
		if data, hit, err := s.cache.Get(ctx, propertyID); err == nil && hit {
			if model, err := demand.DecodeCache(data); err == nil {
				return model
			}
		}
	}

	model, err := demand.Load(s.models, propertyID)
	if err != nil {
		s.log.Nonfatal(string(pricingerr.KindModelLifecycle), err, "property_id", propertyID)
		return zeroPredictor{}
	}

	if s.cache != nil {
		if data, encErr := model.EncodeCache(); encErr == nil {
			if err := s.cache.Set(ctx, propertyID, data); err != nil {
				s.log.Nonfatal(string(pricingerr.KindTransientStore), err, "property_id", propertyID, "op", "cache_set")
			}
		}
	}
	return model
}

// adjustForColdStart implements 4.H step 3: load the city/country market
// model, score the stay date, and nudge base price by the spec's bands.
// Any market-model error is swallowed and the original base is returned
// unadjusted, per spec.md §7's "never fail a recommendation" policy.
func (s *Service) adjustForColdStart(ctx context.Context, property pricingmodel.Property, date time.Time, base, floor, ceiling float64) (float64, *float64) {
	marketModel, err := market.Load(s.models, property.Country, property.City)
	if err != nil {
		s.log.Nonfatal(string(pricingerr.KindConfiguration), err, "country", property.Country, "city", property.City)
		return base, nil
	}

	predictor := market.NewPredictor(marketModel, s.repo)
	score, err := predictor.PredictScore(ctx, property.Country, property.City, date)
	if err != nil {
		s.log.Nonfatal(string(pricingerr.KindTransientStore), err, "country", property.Country, "city", property.City)
		return base, nil
	}

	adjusted := base
	switch {
	case score > 70:
		adjusted = base * 1.20
	case score > 50:
		adjusted = base * 1.10
	case score < 30:
		adjusted = base * 0.90
	default:
		return base, nil
	}

	adjusted = clampFloat(adjusted, floor, ceiling)
	delta := adjusted - base
	return adjusted, &delta
}

// resolveCapacity implements 4.H step 2.
func (s *Service) resolveCapacity(ctx context.Context, property pricingmodel.Property, req Request) int {
	if req.Capacity != nil {
		return *req.Capacity
	}

	bookings, err := s.repo.GetBookings(ctx, req.PropertyID, req.Date, req.Date)
	if err != nil {
		return 1
	}

	booked := 0
	for _, b := range bookings {
		if sameDay(b.StartDate, req.Date) {
			booked++
		}
	}

	remaining := property.Capacity - booked
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

// appendRecord implements 4.H step 7: logging errors never fail the
// response already assembled.
func (s *Service) appendRecord(ctx context.Context, d Decision) {
	rec := pricingmodel.RecommendationRecord{
		ID:               uuid.NewString(),
		PropertyID:       d.PropertyID,
		StayDate:         d.Date,
		RecommendedPrice: d.RecommendedPrice,
		Currency:         d.Currency,
		Confidence:       d.Confidence,
		Strategy:         d.Meta.Strategy,
		ExpectedRevenue:  d.Meta.ExpectedRevenue,
		PredictedDemand:  d.Meta.PredictedDemand,
		CreatedAt:        time.Now(),
		Context: map[string]interface{}{
			"horizon_days":             d.Meta.HorizonDays,
			"data_quality":             d.Meta.DataQuality,
			"is_cold_start":            d.Meta.IsColdStart,
			"market_demand_adjustment": d.Meta.MarketDemandAdjustment,
			"details":                  d.Meta.Details,
			"alternatives":             d.Meta.Alternatives,
		},
	}

	if err := s.repo.InsertRecommendation(ctx, rec); err != nil {
		s.log.Nonfatal(string(pricingerr.KindTransientStore), err, "property_id", d.PropertyID)
	}
}

func sameDay(a, b time.Time) bool {
	return truncateDay(a).Equal(truncateDay(b))
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
