package dataset

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/priceye/pricing-engine/internal/pricingmodel"
)

type fakeSource struct {
	property  pricingmodel.Property
	bookings  []pricingmodel.Booking
	overrides []pricingmodel.PriceOverride
	market    []pricingmodel.PricingFeatureRow
}

func (f fakeSource) GetBookings(_ context.Context, _ string, _, _ time.Time) ([]pricingmodel.Booking, error) {
	return f.bookings, nil
}
func (f fakeSource) GetPriceOverrides(_ context.Context, _ string, _, _ time.Time) ([]pricingmodel.PriceOverride, error) {
	return f.overrides, nil
}
func (f fakeSource) GetProperty(_ context.Context, _ string) (pricingmodel.Property, error) {
	return f.property, nil
}
func (f fakeSource) GetMarketFeatures(_ context.Context, _ string, _, _ time.Time) ([]pricingmodel.PricingFeatureRow, error) {
	return f.market, nil
}

func TestBuildTrainingFrameDensifies(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 6) // 7-day window

	src := fakeSource{
		property: pricingmodel.Property{ID: "p1", Capacity: 4},
		bookings: []pricingmodel.Booking{
			{PropertyID: "p1", StartDate: start.AddDate(0, 0, 2)},
			{PropertyID: "p1", StartDate: start.AddDate(0, 0, 2)},
		},
	}

	b := New(src)
	frame, err := b.BuildTrainingFrame(context.Background(), "p1", start, end)
	require.NoError(t, err)

	assert.Len(t, frame.Rows, 7)
	for _, row := range frame.Rows {
		assert.GreaterOrEqual(t, row.YDemand, 0.0)
	}
	assert.Equal(t, 2.0, frame.Rows[2].YDemand)
	assert.Equal(t, 0.0, frame.Rows[0].YDemand)
}

func TestBuildTrainingFrameImputesDefaults(t *testing.T) {
	start := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	end := start

	src := fakeSource{property: pricingmodel.Property{ID: "p1", Capacity: 2}}
	b := New(src)
	frame, err := b.BuildTrainingFrame(context.Background(), "p1", start, end)
	require.NoError(t, err)

	require.Len(t, frame.Rows, 1)
	row := frame.Rows[0]
	assert.Equal(t, 0.0, row.Features["competitor_avg_price"])
	assert.Equal(t, 50.0, row.Features["market_demand_level"])
}

func TestBuildTrainingFrameEmptyWindowReturnsCanonicalColumns(t *testing.T) {
	start := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, -1)

	b := New(fakeSource{})
	frame, err := b.BuildTrainingFrame(context.Background(), "p1", start, end)
	require.NoError(t, err)
	assert.Empty(t, frame.Rows)
	assert.NotEmpty(t, frame.FeatureColumns)
}

func TestValidateNonEmpty(t *testing.T) {
	assert.Error(t, ValidateNonEmpty(pricingmodel.Frame{}))
	assert.NoError(t, ValidateNonEmpty(pricingmodel.Frame{Rows: []pricingmodel.Row{{}}}))
}
