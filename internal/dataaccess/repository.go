package dataaccess

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sony/gobreaker"
	"gorm.io/gorm"

	"github.com/priceye/pricing-engine/internal/obslog"
	"github.com/priceye/pricing-engine/internal/pricingerr"
	"github.com/priceye/pricing-engine/internal/pricingmodel"
)

// Repository is the sole gateway between the pricing core and its state
// store. It holds no business logic — only typed reads and append writes.
type Repository struct {
	db      *gorm.DB
	log     *obslog.Logger
	breaker *gobreaker.CircuitBreaker
}

// New wraps an already-open gorm connection. Migrations are applied
// separately (internal/db/migrate); New assumes the schema exists.
func New(db *gorm.DB, log *obslog.Logger) *Repository {
	if log == nil {
		log = obslog.Noop()
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "market-features",
		MaxRequests: 5,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return &Repository{db: db, log: log, breaker: cb}
}

// GetBookings returns raw bookings whose start_date falls in [start, end].
func (r *Repository) GetBookings(ctx context.Context, propertyID string, start, end time.Time) ([]pricingmodel.Booking, error) {
	var rows []bookingRow
	err := r.db.WithContext(ctx).
		Where("property_id = ? AND start_date BETWEEN ? AND ?", propertyID, start, end).
		Find(&rows).Error
	if err != nil {
		return nil, pricingerr.TransientStore("get_bookings failed", err).WithContext("property_id", propertyID)
	}
	out := make([]pricingmodel.Booking, 0, len(rows))
	for _, b := range rows {
		out = append(out, pricingmodel.Booking{PropertyID: b.PropertyID, StartDate: b.StartDate})
	}
	return out, nil
}

// GetPriceOverrides returns (date, price) overrides in [start, end].
func (r *Repository) GetPriceOverrides(ctx context.Context, propertyID string, start, end time.Time) ([]pricingmodel.PriceOverride, error) {
	var rows []priceOverrideRow
	err := r.db.WithContext(ctx).
		Where("property_id = ? AND date BETWEEN ? AND ?", propertyID, start, end).
		Find(&rows).Error
	if err != nil {
		return nil, pricingerr.TransientStore("get_price_overrides failed", err).WithContext("property_id", propertyID)
	}
	out := make([]pricingmodel.PriceOverride, 0, len(rows))
	for _, o := range rows {
		out = append(out, pricingmodel.PriceOverride{PropertyID: o.PropertyID, Date: o.Date, Price: o.Price})
	}
	return out, nil
}

// GetProperty returns capacity, location, and pricing constraints.
func (r *Repository) GetProperty(ctx context.Context, propertyID string) (pricingmodel.Property, error) {
	var row propertyRow
	err := r.db.WithContext(ctx).Where("id = ?", propertyID).First(&row).Error
	if err != nil {
		return pricingmodel.Property{}, pricingerr.Configuration("property not found", err).WithContext("property_id", propertyID)
	}
	capacity := row.Capacity
	if c := safeInt(row.Capacity); c != nil {
		capacity = *c
	}
	return pricingmodel.Property{
		ID:           row.ID,
		Country:      row.Country,
		City:         row.City,
		Neighborhood: row.Neighborhood,
		PropertyType: row.PropertyType,
		Capacity:     capacity,
		FloorPrice:   decimalFromFloat(row.FloorPrice),
		CeilingPrice: decimalFromFloat(row.CeilingPrice),
		BasePrice:    decimalFromFloat(row.BasePrice),
		Currency:     row.Currency,
	}, nil
}

// ListPropertyIDs returns every known property id, used by the retrain
// controller's CLI entry point to build its candidate list.
func (r *Repository) ListPropertyIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&propertyRow{}).Pluck("id", &ids).Error
	if err != nil {
		return nil, pricingerr.TransientStore("list_property_ids failed", err)
	}
	return ids, nil
}

// GetMarketFeatures returns property-scoped pricing-feature rows for the
// window, wrapped in a circuit breaker since this table is populated by an
// out-of-process ingestion pipeline that can stall.
func (r *Repository) GetMarketFeatures(ctx context.Context, propertyID string, start, end time.Time) ([]pricingmodel.PricingFeatureRow, error) {
	result, err := r.breaker.Execute(func() (interface{}, error) {
		var rows []pricingFeatureRow
		err := r.db.WithContext(ctx).
			Where("property_id = ? AND date BETWEEN ? AND ?", propertyID, start, end).
			Find(&rows).Error
		return rows, err
	})
	if err != nil {
		return nil, pricingerr.TransientStore("get_market_features failed", err).WithContext("property_id", propertyID)
	}
	rows := result.([]pricingFeatureRow)
	out := make([]pricingmodel.PricingFeatureRow, 0, len(rows))
	for _, f := range rows {
		out = append(out, pricingmodel.PricingFeatureRow{
			PropertyID:         f.PropertyID,
			Date:               f.Date,
			CompetitorAvgPrice: safeFloat(floatOrNil(f.CompetitorAvgPrice)),
			MarketDemandLevel:  safeFloat(floatOrNil(f.MarketDemandLevel)),
		})
	}
	return out, nil
}

// GetMarketFeatureRow returns the market_features row whose country, city
// and date match exactly, or nil if there is none; used by the
// market-demand model.
func (r *Repository) GetMarketFeatureRow(ctx context.Context, country, city string, date time.Time) (*pricingmodel.MarketFeatureRow, error) {
	result, err := r.breaker.Execute(func() (interface{}, error) {
		var row marketFeatureRow
		err := r.db.WithContext(ctx).
			Where("country = ? AND city = ? AND date = ?", country, city, date).
			First(&row).Error
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return &row, err
	})
	if err != nil {
		return nil, pricingerr.TransientStore("get_market_feature_row failed", err).WithContext("city", city)
	}
	if result == nil {
		return nil, nil
	}
	row := result.(*marketFeatureRow)
	return &pricingmodel.MarketFeatureRow{
		Country:            row.Country,
		City:               row.City,
		Neighborhood:       row.Neighborhood,
		PropertyType:       row.PropertyType,
		Date:               row.Date,
		CompetitorAvgPrice: row.CompetitorAvgPrice,
		CompetitorMinPrice: row.CompetitorMinPrice,
		CompetitorMaxPrice: row.CompetitorMaxPrice,
		WeatherScore:       row.WeatherScore,
		EventIntensity:     row.EventIntensity,
		TrendScore:         row.TrendScore,
		SentimentScore:     row.SentimentScore,
		IsHoliday:          row.IsHoliday,
		IsSchoolHoliday:    row.IsSchoolHoliday,
		MarketOccupancyEst: row.MarketOccupancyEst,
	}, nil
}

// GetLatestModelMetric returns the most recent metric row, or nil.
func (r *Repository) GetLatestModelMetric(ctx context.Context, propertyID string) (*pricingmodel.ModelMetricRecord, error) {
	var row modelMetricRow
	err := r.db.WithContext(ctx).
		Where("property_id = ?", propertyID).
		Order("trained_at DESC").
		First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, pricingerr.TransientStore("get_latest_model_metric failed", err).WithContext("property_id", propertyID)
	}
	rec := metricFromRow(row)
	return &rec, nil
}

// GetModelMetrics returns the last k metric rows, newest first.
func (r *Repository) GetModelMetrics(ctx context.Context, propertyID string, k int) ([]pricingmodel.ModelMetricRecord, error) {
	var rows []modelMetricRow
	err := r.db.WithContext(ctx).
		Where("property_id = ?", propertyID).
		Order("trained_at DESC").
		Limit(k).
		Find(&rows).Error
	if err != nil {
		return nil, pricingerr.TransientStore("get_model_metrics failed", err).WithContext("property_id", propertyID)
	}
	out := make([]pricingmodel.ModelMetricRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, metricFromRow(row))
	}
	return out, nil
}

// CountRecommendationsSince counts recommendation rows for propertyID
// created at or after since.
func (r *Repository) CountRecommendationsSince(ctx context.Context, propertyID string, since time.Time) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&recommendationRow{}).
		Where("property_id = ? AND created_at >= ?", propertyID, since).
		Count(&count).Error
	if err != nil {
		return 0, pricingerr.TransientStore("count_recommendations_since failed", err).WithContext("property_id", propertyID)
	}
	return int(count), nil
}

// InsertMetric appends a model metric record. Transport failures are
// logged and swallowed — the caller never fails because logging failed.
func (r *Repository) InsertMetric(ctx context.Context, rec pricingmodel.ModelMetricRecord) {
	fi, _ := json.Marshal(rec.FeatureImportance)
	md, _ := json.Marshal(rec.Metadata)
	row := modelMetricRow{
		ID:                rec.ID,
		PropertyID:        rec.PropertyID,
		ModelVersion:      rec.ModelVersion,
		TrainRMSE:         rec.TrainRMSE,
		ValRMSE:           rec.ValRMSE,
		TrainMAE:          rec.TrainMAE,
		ValMAE:            rec.ValMAE,
		NTrain:            rec.NTrain,
		NVal:              rec.NVal,
		FeatureImportance: string(fi),
		ArtifactPath:      rec.ArtifactPath,
		TrainedAt:         rec.TrainedAt,
		TrainedBy:         string(rec.TrainedBy),
		Metadata:          string(md),
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		r.log.Nonfatal("transient_store", err, "op", "insert_metric", "property_id", rec.PropertyID)
	}
}

// InsertRecommendation appends a recommendation record. A store error is
// logged and also returned, so the caller decides whether to surface it
// or drop it.
func (r *Repository) InsertRecommendation(ctx context.Context, rec pricingmodel.RecommendationRecord) error {
	price, _ := rec.RecommendedPrice.Float64()
	ctxJSON, _ := json.Marshal(rec.Context)
	row := recommendationRow{
		ID:               rec.ID,
		PropertyID:       rec.PropertyID,
		StayDate:         rec.StayDate,
		RecommendedPrice: price,
		Currency:         rec.Currency,
		Confidence:       rec.Confidence,
		Strategy:         string(rec.Strategy),
		ExpectedRevenue:  rec.ExpectedRevenue,
		PredictedDemand:  rec.PredictedDemand,
		Context:          string(ctxJSON),
		CreatedAt:        rec.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		err = pricingerr.TransientStore("insert_recommendation failed", err).WithContext("property_id", rec.PropertyID)
		r.log.Nonfatal("transient_store", err, "op", "insert_recommendation", "property_id", rec.PropertyID)
		return err
	}
	return nil
}

func metricFromRow(row modelMetricRow) pricingmodel.ModelMetricRecord {
	var fi map[string]float64
	_ = json.Unmarshal([]byte(row.FeatureImportance), &fi)
	var md map[string]interface{}
	_ = json.Unmarshal([]byte(row.Metadata), &md)
	return pricingmodel.ModelMetricRecord{
		ID:                row.ID,
		PropertyID:        row.PropertyID,
		ModelVersion:      row.ModelVersion,
		TrainRMSE:         row.TrainRMSE,
		ValRMSE:           row.ValRMSE,
		TrainMAE:          row.TrainMAE,
		ValMAE:            row.ValMAE,
		NTrain:            row.NTrain,
		NVal:              row.NVal,
		FeatureImportance: fi,
		ArtifactPath:      row.ArtifactPath,
		TrainedAt:         row.TrainedAt,
		TrainedBy:         pricingmodel.TrainedBy(row.TrainedBy),
		Metadata:          md,
	}
}

func floatOrNil(p *float64) interface{} {
	if p == nil {
		return nil
	}
	return *p
}
