package market

import (
	"context"
	"time"

	"github.com/priceye/pricing-engine/internal/pricingmodel"
)

// FeatureSource is the subset of the data-access layer needed to resolve
// a market-features row for a single (country, city, date).
type FeatureSource interface {
	GetMarketFeatureRow(ctx context.Context, country, city string, date time.Time) (*pricingmodel.MarketFeatureRow, error)
}

// Predictor composes a trained Model with a feature source so callers can
// ask for a score by (city, country, date) rather than a raw feature row.
type Predictor struct {
	Model *Model
	Src   FeatureSource
}

// NewPredictor builds a Predictor over an already-loaded model.
func NewPredictor(model *Model, src FeatureSource) *Predictor {
	return &Predictor{Model: model, Src: src}
}

func toFeatureMap(row *pricingmodel.MarketFeatureRow) map[string]float64 {
	m := map[string]float64{}
	if row == nil {
		return m
	}
	if row.CompetitorAvgPrice != nil {
		m["competitor_avg_price"] = *row.CompetitorAvgPrice
	}
	if row.CompetitorMinPrice != nil {
		m["competitor_min_price"] = *row.CompetitorMinPrice
	}
	if row.CompetitorMaxPrice != nil {
		m["competitor_max_price"] = *row.CompetitorMaxPrice
	}
	if row.WeatherScore != nil {
		m["weather_score"] = *row.WeatherScore
	}
	if row.EventIntensity != nil {
		m["event_intensity"] = *row.EventIntensity
	}
	if row.TrendScore != nil {
		m["trend_score"] = *row.TrendScore
	}
	if row.SentimentScore != nil {
		m["sentiment_score"] = *row.SentimentScore
	}
	if row.IsHoliday {
		m["is_holiday"] = 1
	}
	if row.IsSchoolHoliday {
		m["is_school_holiday"] = 1
	}
	return m
}

// PredictScore loads the market-features row for (city, country, date)
// and invokes the predictor, returning [0, 100].
func (p *Predictor) PredictScore(ctx context.Context, country, city string, date time.Time) (float64, error) {
	row, err := p.Src.GetMarketFeatureRow(ctx, country, city, date)
	if err != nil {
		return 0, err
	}
	return p.Model.PredictScore(toFeatureMap(row))
}

// Next30Days returns a date -> score map for the 30 days starting at
// start, defaulting missing dates to 50 (per the market model's
// convenience routine in spec.md §4.D): a date with no matching
// market-features row, or a lookup error, never reaches the model.
func (p *Predictor) Next30Days(ctx context.Context, country, city string, start time.Time) map[string]float64 {
	out := make(map[string]float64, 30)
	for i := 0; i < 30; i++ {
		d := start.AddDate(0, 0, i)
		key := d.Format("2006-01-02")

		row, err := p.Src.GetMarketFeatureRow(ctx, country, city, d)
		if err != nil || row == nil {
			out[key] = 50
			continue
		}
		score, err := p.Model.PredictScore(toFeatureMap(row))
		if err != nil {
			out[key] = 50
			continue
		}
		out[key] = score
	}
	return out
}
