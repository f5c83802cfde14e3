package coldstart

import (
	"context"
	"time"

	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/priceye/pricing-engine/internal/pricingmodel"
)

type fakeBookingSource struct {
	bookings []pricingmodel.Booking
	err      error
}

func (f fakeBookingSource) GetBookings(_ context.Context, _ string, _, _ time.Time) ([]pricingmodel.Booking, error) {
	return f.bookings, f.err
}

func TestNoHistoryIsColdStart(t *testing.T) {
	assert.True(t, IsColdStart(context.Background(), fakeBookingSource{}, "p1", time.Now(), DefaultMinHistoryDays, DefaultLookbackDays))
}

func TestErrorDefaultsToColdStart(t *testing.T) {
	src := fakeBookingSource{err: assertError{}}
	assert.True(t, IsColdStart(context.Background(), src, "p1", time.Now(), DefaultMinHistoryDays, DefaultLookbackDays))
}

type assertError struct{}

func (assertError) Error() string { return "boom" }

func TestEnoughHistoryIsNotColdStart(t *testing.T) {
	now := time.Now().UTC()
	var bookings []pricingmodel.Booking
	for i := 0; i < 40; i++ {
		bookings = append(bookings, pricingmodel.Booking{PropertyID: "p1", StartDate: now.AddDate(0, 0, -i)})
	}
	assert.False(t, IsColdStart(context.Background(), fakeBookingSource{bookings: bookings}, "p1", now, DefaultMinHistoryDays, DefaultLookbackDays))
}

func TestHistoryDaysCountsDistinctDates(t *testing.T) {
	now := time.Now().UTC()
	bookings := []pricingmodel.Booking{
		{PropertyID: "p1", StartDate: now.AddDate(0, 0, -1)},
		{PropertyID: "p1", StartDate: now.AddDate(0, 0, -1)},
		{PropertyID: "p1", StartDate: now.AddDate(0, 0, -2)},
	}
	assert.Equal(t, 2, HistoryDays(context.Background(), fakeBookingSource{bookings: bookings}, "p1", now))
}
