// Package coldstart extracts the cold-start predicate called out in the
// design notes: a dedicated, independently-testable check rather than
// logic embedded in the recommendation path.
package coldstart

import (
	"context"
	"time"

	"github.com/priceye/pricing-engine/internal/pricingmodel"
)

// BookingSource is the subset of the data-access layer needed to look at
// recent booking history.
type BookingSource interface {
	GetBookings(ctx context.Context, propertyID string, start, end time.Time) ([]pricingmodel.Booking, error)
}

// DefaultMinHistoryDays is the spec-mandated threshold: fewer than this
// many distinct days with bookings in the lookback window means cold
// start.
const DefaultMinHistoryDays = 30

// DefaultLookbackDays is how far back the check looks for booking history.
const DefaultLookbackDays = 365

// IsColdStart reports whether propertyID has fewer than minHistoryDays
// distinct days with at least one booking over the last lookbackDays.
// Any error accessing history defaults to cold-start, per spec.md §4.G.
func IsColdStart(ctx context.Context, src BookingSource, propertyID string, now time.Time, minHistoryDays, lookbackDays int) bool {
	start := now.AddDate(0, 0, -lookbackDays)
	bookings, err := src.GetBookings(ctx, propertyID, start, now)
	if err != nil {
		return true
	}

	days := map[string]struct{}{}
	for _, b := range bookings {
		days[b.StartDate.Format("2006-01-02")] = struct{}{}
	}
	return len(days) < minHistoryDays
}

// HistoryDays counts distinct dates with internal records (bookings) in
// the last 365 days, used by the confidence heuristic's history_days
// input.
func HistoryDays(ctx context.Context, src BookingSource, propertyID string, now time.Time) int {
	start := now.AddDate(0, 0, -DefaultLookbackDays)
	bookings, err := src.GetBookings(ctx, propertyID, start, now)
	if err != nil {
		return 0
	}
	days := map[string]struct{}{}
	for _, b := range bookings {
		days[b.StartDate.Format("2006-01-02")] = struct{}{}
	}
	return len(days)
}
