// Package dataset joins internal booking history with market pricing
// features into the dense tabular frame the demand models train on.
package dataset

import (
	"context"
	"sort"
	"time"

	"github.com/priceye/pricing-engine/internal/pricingerr"
	"github.com/priceye/pricing-engine/internal/pricingmodel"
)

// Source is the subset of the data-access layer the builder needs.
type Source interface {
	GetBookings(ctx context.Context, propertyID string, start, end time.Time) ([]pricingmodel.Booking, error)
	GetPriceOverrides(ctx context.Context, propertyID string, start, end time.Time) ([]pricingmodel.PriceOverride, error)
	GetProperty(ctx context.Context, propertyID string) (pricingmodel.Property, error)
	GetMarketFeatures(ctx context.Context, propertyID string, start, end time.Time) ([]pricingmodel.PricingFeatureRow, error)
}

// CanonicalColumns is the feature column set an empty frame still reports,
// per 4.B's edge-case requirement.
var CanonicalColumns = []string{"override_price", "capacity", "competitor_avg_price", "market_demand_level"}

// Builder builds training frames for one property at a time.
type Builder struct {
	src Source
}

// New constructs a Builder over src.
func New(src Source) *Builder {
	return &Builder{src: src}
}

const dayLayout = "2006-01-02"

// BuildTrainingFrame implements 4.B: densify internal records over
// [start, end], left-join market pricing features, derive y_demand, and
// impute neutral defaults for missing numeric features.
func (b *Builder) BuildTrainingFrame(ctx context.Context, propertyID string, start, end time.Time) (pricingmodel.Frame, error) {
	start = truncateDay(start)
	end = truncateDay(end)
	if end.Before(start) {
		return pricingmodel.Frame{FeatureColumns: append([]string(nil), CanonicalColumns...)}, nil
	}

	property, err := b.src.GetProperty(ctx, propertyID)
	if err != nil {
		return pricingmodel.Frame{}, err
	}

	bookings, err := b.src.GetBookings(ctx, propertyID, start, end)
	if err != nil {
		return pricingmodel.Frame{}, err
	}
	overrides, err := b.src.GetPriceOverrides(ctx, propertyID, start, end)
	if err != nil {
		return pricingmodel.Frame{}, err
	}
	marketRows, err := b.src.GetMarketFeatures(ctx, propertyID, start, end)
	if err != nil {
		return pricingmodel.Frame{}, err
	}

	bookingCounts := make(map[string]int)
	for _, bk := range bookings {
		bookingCounts[truncateDay(bk.StartDate).Format(dayLayout)]++
	}
	overrideByDate := make(map[string]float64)
	for _, o := range overrides {
		overrideByDate[truncateDay(o.Date).Format(dayLayout)] = o.Price
	}
	marketByDate := make(map[string]pricingmodel.PricingFeatureRow)
	for _, m := range marketRows {
		marketByDate[truncateDay(m.Date).Format(dayLayout)] = m
	}

	var rows []pricingmodel.Row
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		key := d.Format(dayLayout)

		bookingCount := bookingCounts[key]
		yDemand := float64(bookingCount)
		if yDemand < 0 {
			yDemand = 0
		}

		features := map[string]float64{
			"capacity": float64(property.Capacity),
		}

		if price, ok := overrideByDate[key]; ok {
			features["override_price"] = price
		} else {
			features["override_price"] = 0.0
		}

		if m, ok := marketByDate[key]; ok && m.CompetitorAvgPrice != nil {
			features["competitor_avg_price"] = *m.CompetitorAvgPrice
		} else {
			features["competitor_avg_price"] = 0.0
		}
		if m, ok := marketByDate[key]; ok && m.MarketDemandLevel != nil {
			features["market_demand_level"] = *m.MarketDemandLevel
		} else {
			features["market_demand_level"] = 50.0
		}

		rows = append(rows, pricingmodel.Row{
			PropertyID: propertyID,
			Date:       d,
			YDemand:    yDemand,
			Features:   features,
		})
	}

	cols := append([]string(nil), CanonicalColumns...)
	sort.Strings(cols)

	return pricingmodel.Frame{Rows: rows, FeatureColumns: cols}, nil
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ValidateNonEmpty enforces the "training fails loudly on an empty frame"
// rule from 4.C's failure semantics.
func ValidateNonEmpty(f pricingmodel.Frame) error {
	if len(f.Rows) == 0 {
		return pricingerr.Data("training frame has no rows", nil)
	}
	return nil
}
