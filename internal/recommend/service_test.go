package recommend

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/priceye/pricing-engine/internal/cache"
	"github.com/priceye/pricing-engine/internal/demand"
	"github.com/priceye/pricing-engine/internal/gbt"
	"github.com/priceye/pricing-engine/internal/market"
	"github.com/priceye/pricing-engine/internal/metrics"
	"github.com/priceye/pricing-engine/internal/obslog"
	"github.com/priceye/pricing-engine/internal/pricingmodel"
	"github.com/priceye/pricing-engine/internal/store"

	"github.com/prometheus/client_golang/prometheus"
)

type fakeRepo struct {
	property  pricingmodel.Property
	bookings  []pricingmodel.Booking
	marketRow *pricingmodel.MarketFeatureRow
	marketErr error
	recs      []pricingmodel.RecommendationRecord
}

func (f *fakeRepo) GetProperty(ctx context.Context, propertyID string) (pricingmodel.Property, error) {
	return f.property, nil
}

func (f *fakeRepo) GetBookings(ctx context.Context, propertyID string, start, end time.Time) ([]pricingmodel.Booking, error) {
	var out []pricingmodel.Booking
	for _, b := range f.bookings {
		if !b.StartDate.Before(truncateDay(start)) && !b.StartDate.After(truncateDay(end)) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeRepo) GetMarketFeatureRow(ctx context.Context, country, city string, date time.Time) (*pricingmodel.MarketFeatureRow, error) {
	return f.marketRow, f.marketErr
}

func (f *fakeRepo) InsertRecommendation(ctx context.Context, rec pricingmodel.RecommendationRecord) error {
	f.recs = append(f.recs, rec)
	return nil
}

func newService(t *testing.T, repo *fakeRepo) *Service {
	t.Helper()
	dir := t.TempDir()
	s, err := store.New(dir)
	require.NoError(t, err)
	log := obslog.Noop()
	rec := metrics.New(prometheus.NewRegistry())
	return New(repo, s, log, rec, DefaultConfig())
}

func propertyFixture() pricingmodel.Property {
	return pricingmodel.Property{
		ID:           "p1",
		Country:      "US",
		City:         "austin",
		Capacity:     4,
		FloorPrice:   decimal.NewFromInt(50),
		CeilingPrice: decimal.NewFromInt(300),
		BasePrice:    decimal.NewFromInt(100),
		Currency:     "USD",
	}
}

// S1 — empty history: no model, no bookings, cold-start, confidence <= 0.60.
func TestRecommendS1EmptyHistory(t *testing.T) {
	repo := &fakeRepo{property: propertyFixture()}
	svc := newService(t, repo)

	now := time.Now().UTC()
	decision, err := svc.Recommend(context.Background(), Request{
		PropertyID: "p1",
		RoomType:   "entire_place",
		Date:       now.AddDate(0, 0, 14),
	})
	require.NoError(t, err)

	price, _ := decision.RecommendedPrice.Float64()
	assert.GreaterOrEqual(t, price, 50.0)
	assert.LessOrEqual(t, price, 300.0)
	assert.LessOrEqual(t, decision.Confidence, 0.60)
	assert.True(t, decision.Meta.IsColdStart)
	assert.Len(t, repo.recs, 1)
}

// S2 — invalid constraints: floor > ceiling.
func TestRecommendS2InvalidConstraints(t *testing.T) {
	property := propertyFixture()
	property.FloorPrice = decimal.NewFromInt(100)
	property.CeilingPrice = decimal.NewFromInt(80)
	repo := &fakeRepo{property: property}
	svc := newService(t, repo)

	now := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	decision, err := svc.Recommend(context.Background(), Request{
		PropertyID: "p1",
		Date:       now.AddDate(0, 0, 5),
	})
	require.NoError(t, err)

	assert.Equal(t, pricingmodel.StrategyInvalidConfig, decision.Meta.Strategy)
	price, _ := decision.RecommendedPrice.Float64()
	assert.Equal(t, 100.0, price)
}

// S3 — horizon penalty: long history, far-out stay date.
func TestRecommendS3HorizonPenalty(t *testing.T) {
	now := time.Now().UTC()
	bookings := make([]pricingmodel.Booking, 0, 366)
	for i := 0; i < 366; i++ {
		bookings = append(bookings, pricingmodel.Booking{
			PropertyID: "p1",
			StartDate:  truncateDay(now.AddDate(0, 0, -i)),
		})
	}
	repo := &fakeRepo{property: propertyFixture(), bookings: bookings}
	svc := newService(t, repo)

	decision, err := svc.Recommend(context.Background(), Request{
		PropertyID: "p1",
		Date:       now.AddDate(0, 0, 200),
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.55, decision.Confidence, 0.001)
}

// S4 — base-price adjustment driven by a cold-start market score of 80.
func TestRecommendS4BasePriceAdjustment(t *testing.T) {
	property := propertyFixture()
	repo := &fakeRepo{property: property}
	svc := newService(t, repo)

	marketModel := &market.Model{
		Country:        property.Country,
		City:           property.City,
		FeatureColumns: []string{},
		Ensemble:       &gbt.Ensemble{Init: 80},
	}
	require.NoError(t, marketModel.Save(svc.models))

	now := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	decision, err := svc.Recommend(context.Background(), Request{
		PropertyID: "p1",
		Date:       now.AddDate(0, 0, 10),
	})
	require.NoError(t, err)

	require.NotNil(t, decision.Meta.MarketDemandAdjustment)
	assert.InDelta(t, 20.0, *decision.Meta.MarketDemandAdjustment, 0.01)

	price, _ := decision.RecommendedPrice.Float64()
	assert.GreaterOrEqual(t, price, 50.0)
	assert.LessOrEqual(t, price, 300.0)
}

// Invariant 8: repeated calls with identical inputs produce distinct
// recommendation records but identical recommended_price and confidence.
func TestRecommendIdempotentAcrossRepeatedCalls(t *testing.T) {
	repo := &fakeRepo{property: propertyFixture()}
	svc := newService(t, repo)

	now := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	req := Request{PropertyID: "p1", Date: now.AddDate(0, 0, 14)}

	first, err := svc.Recommend(context.Background(), req)
	require.NoError(t, err)
	second, err := svc.Recommend(context.Background(), req)
	require.NoError(t, err)

	assert.True(t, first.RecommendedPrice.Equal(second.RecommendedPrice))
	assert.Equal(t, first.Confidence, second.Confidence)
	require.Len(t, repo.recs, 2)
	assert.NotEqual(t, repo.recs[0].ID, repo.recs[1].ID)
}

// The predictor cache, once attached, serves a demand model on a second
// call without re-reading the ModelStore.
func TestRecommendServesCachedPredictorOnSecondCall(t *testing.T) {
	repo := &fakeRepo{property: propertyFixture()}
	svc := newService(t, repo)

	model := demand.New("p1")
	model.FeatureColumns = []string{"competitor_avg_price"}
	model.Ensemble = &gbt.Ensemble{Init: 2}
	require.NoError(t, model.Save(svc.models))

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	svc.WithCache(cache.New(redisClient, time.Minute))

	now := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	req := Request{PropertyID: "p1", Date: now.AddDate(0, 0, 14)}

	first, err := svc.Recommend(context.Background(), req)
	require.NoError(t, err)

	data, hit, err := svc.cache.Get(context.Background(), "p1")
	require.NoError(t, err)
	require.True(t, hit, "first recommend call should have populated the cache")

	cached, err := demand.DecodeCache(data)
	require.NoError(t, err)
	assert.Equal(t, model.FeatureColumns, cached.FeatureColumns)

	second, err := svc.Recommend(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, first.RecommendedPrice.Equal(second.RecommendedPrice))
}
