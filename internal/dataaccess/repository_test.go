package dataaccess

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/priceye/pricing-engine/internal/obslog"
	"github.com/priceye/pricing-engine/internal/pricingmodel"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&propertyRow{}, &bookingRow{}, &priceOverrideRow{},
		&pricingFeatureRow{}, &marketFeatureRow{},
		&modelMetricRow{}, &recommendationRow{},
	))
	return db
}

func TestRepositoryGetPropertyAndBookings(t *testing.T) {
	db := openTestDB(t)
	repo := New(db, obslog.Noop())
	ctx := context.Background()

	require.NoError(t, db.Create(&propertyRow{
		ID: "p1", Country: "US", City: "Austin", Capacity: 4,
		FloorPrice: 50, CeilingPrice: 300, BasePrice: 100, Currency: "USD",
	}).Error)

	day := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	require.NoError(t, db.Create(&bookingRow{PropertyID: "p1", StartDate: day}).Error)

	prop, err := repo.GetProperty(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, "Austin", prop.City)
	require.Equal(t, 4, prop.Capacity)

	bookings, err := repo.GetBookings(ctx, "p1", day.AddDate(0, 0, -1), day.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, bookings, 1)
}

func TestRepositoryMetricsAndRecommendationsAppendOnly(t *testing.T) {
	db := openTestDB(t)
	repo := New(db, obslog.Noop())
	ctx := context.Background()

	rec := pricingmodel.ModelMetricRecord{
		ID: "m1", PropertyID: "p1", ModelVersion: "v1",
		TrainRMSE: 1, ValRMSE: 2, TrainedAt: time.Now().UTC(),
		TrainedBy: pricingmodel.TrainedByBatch,
	}
	repo.InsertMetric(ctx, rec)

	latest, err := repo.GetLatestModelMetric(ctx, "p1")
	require.NoError(t, err)
	require.NotNil(t, latest)
	require.Equal(t, "v1", latest.ModelVersion)

	rr := pricingmodel.RecommendationRecord{
		ID: "r1", PropertyID: "p1", StayDate: time.Now().UTC(),
		RecommendedPrice: decimalFromFloat(120), Currency: "USD",
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, repo.InsertRecommendation(ctx, rr))

	count, err := repo.CountRecommendationsSince(ctx, "p1", time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestRepositoryGetPropertyNotFound(t *testing.T) {
	db := openTestDB(t)
	repo := New(db, obslog.Noop())

	_, err := repo.GetProperty(context.Background(), "missing")
	require.Error(t, err)
}
