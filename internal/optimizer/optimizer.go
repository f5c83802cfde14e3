// Package optimizer implements the revenue-maximizing price-grid search
// described in spec.md §4.E: sanitize constraints, build a bounded grid,
// simulate demand per candidate, and select the revenue-maximizing price.
package optimizer

import (
	"math"
	"sort"

	"github.com/priceye/pricing-engine/internal/pricingmodel"
)

// DemandPredictor is the subset of demand.Model the optimizer needs.
// UsesPriceFeature reports whether the persisted feature schema includes
// a "price" column — the optimizer only injects the candidate price into
// the feature row when it does, per the feature-list-is-authoritative
// resolution in the design notes.
type DemandPredictor interface {
	Predict(row map[string]float64) (float64, error)
	UsesPriceFeature() bool
}

// Config carries the grid-construction tunables.
type Config struct {
	StepSize     float64
	MaxPoints    int
	FallbackPrice float64
}

// DefaultConfig uses the same step and point cap as config.Default's grid
// section, with a fallback price of 100.
func DefaultConfig() Config {
	return Config{StepSize: 1.0, MaxPoints: 50, FallbackPrice: 100}
}

// Request bundles the inputs to ChoosePrice.
type Request struct {
	RoomType         string
	CapacityRemaining int
	Context          map[string]float64
	Floor            float64
	Ceiling          float64
	Base             *float64
}

// Decision is the result of one optimizer call.
type Decision struct {
	Price           float64
	ExpectedRevenue float64
	PredictedDemand float64
	Strategy        pricingmodel.Strategy
	Alternatives    []pricingmodel.PriceGridPoint
}

// ChoosePrice implements 4.E end to end.
func ChoosePrice(predictor DemandPredictor, cfg Config, req Request) Decision {
	if req.Floor <= 0 || req.Ceiling <= 0 || req.Ceiling <= req.Floor {
		return Decision{Price: cfg.FallbackPrice, Strategy: pricingmodel.StrategyInvalidConfig}
	}

	grid := buildPriceGrid(req.Floor, req.Ceiling, req.Base, cfg.StepSize, cfg.MaxPoints)

	points := simulate(predictor, grid, req)

	valid := make([]pricingmodel.PriceGridPoint, 0, len(points))
	for _, p := range points {
		if !math.IsNaN(p.ExpectedRevenue) && !math.IsInf(p.ExpectedRevenue, 0) {
			valid = append(valid, p)
		}
	}
	if len(valid) == 0 {
		return Decision{Price: cfg.FallbackPrice, Strategy: pricingmodel.StrategyNoValidSim}
	}

	ranked := rankByRevenueDesc(valid)

	best := ranked[0]
	alternatives := []pricingmodel.PriceGridPoint{}
	if len(ranked) > 1 {
		end := 4
		if end > len(ranked) {
			end = len(ranked)
		}
		alternatives = append(alternatives, ranked[1:end]...)
	}

	return Decision{
		Price:           best.Price,
		ExpectedRevenue: best.ExpectedRevenue,
		PredictedDemand: best.PredictedDemand,
		Strategy:        pricingmodel.StrategyGridSearch,
		Alternatives:    alternatives,
	}
}

// rankByRevenueDesc sorts by expected revenue descending, ties broken by
// lower price — the single ordering key used both to pick the winner and
// to slice the alternatives, resolving the ambiguity between the
// reference implementation's separate max()/sorted() calls.
func rankByRevenueDesc(points []pricingmodel.PriceGridPoint) []pricingmodel.PriceGridPoint {
	ranked := append([]pricingmodel.PriceGridPoint(nil), points...)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].ExpectedRevenue != ranked[j].ExpectedRevenue {
			return ranked[i].ExpectedRevenue > ranked[j].ExpectedRevenue
		}
		return ranked[i].Price < ranked[j].Price
	})
	return ranked
}

func simulate(predictor DemandPredictor, grid []float64, req Request) []pricingmodel.PriceGridPoint {
	out := make([]pricingmodel.PriceGridPoint, 0, len(grid))
	for _, price := range grid {
		row := map[string]float64{}
		for k, v := range req.Context {
			row[k] = v
		}
		if predictor.UsesPriceFeature() {
			row["price"] = price
		}

		demand, err := predictor.Predict(row)
		if err != nil {
			continue
		}

		effectiveDemand := math.Min(demand, float64(req.CapacityRemaining))
		if effectiveDemand < 0 {
			effectiveDemand = 0
		}
		revenue := price * effectiveDemand

		out = append(out, pricingmodel.PriceGridPoint{
			Price:           price,
			PredictedDemand: demand,
			ExpectedRevenue: revenue,
		})
	}
	return out
}
