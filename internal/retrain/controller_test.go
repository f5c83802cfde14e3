package retrain

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/priceye/pricing-engine/internal/cache"
	"github.com/priceye/pricing-engine/internal/obslog"
	"github.com/priceye/pricing-engine/internal/pricingmodel"
	"github.com/priceye/pricing-engine/internal/store"
)

type fakeMetricSource struct {
	mu      sync.Mutex
	latest  map[string]*pricingmodel.ModelMetricRecord
	history map[string][]pricingmodel.ModelMetricRecord
	counts  map[string]int
	inserts []pricingmodel.ModelMetricRecord
}

func newFakeMetricSource() *fakeMetricSource {
	return &fakeMetricSource{
		latest:  map[string]*pricingmodel.ModelMetricRecord{},
		history: map[string][]pricingmodel.ModelMetricRecord{},
		counts:  map[string]int{},
	}
}

func (f *fakeMetricSource) GetLatestModelMetric(_ context.Context, propertyID string) (*pricingmodel.ModelMetricRecord, error) {
	return f.latest[propertyID], nil
}
func (f *fakeMetricSource) GetModelMetrics(_ context.Context, propertyID string, limit int) ([]pricingmodel.ModelMetricRecord, error) {
	h := f.history[propertyID]
	if len(h) > limit {
		h = h[:limit]
	}
	return h, nil
}
func (f *fakeMetricSource) CountRecommendationsSince(_ context.Context, propertyID string, _ time.Time) (int, error) {
	return f.counts[propertyID], nil
}
func (f *fakeMetricSource) InsertMetric(_ context.Context, rec pricingmodel.ModelMetricRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserts = append(f.inserts, rec)
}

type fakeFrameBuilder struct{}

func (fakeFrameBuilder) BuildTrainingFrame(_ context.Context, propertyID string, start, end time.Time) (pricingmodel.Frame, error) {
	rng := rand.New(rand.NewSource(1))
	var rows []pricingmodel.Row
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		rows = append(rows, pricingmodel.Row{
			PropertyID: propertyID,
			Date:       d,
			YDemand:    rng.Float64() * 5,
			Features:   map[string]float64{"x": rng.Float64() * 10},
		})
	}
	return pricingmodel.Frame{Rows: rows, FeatureColumns: []string{"x"}}, nil
}

func TestNoIncumbentAlwaysPromotes(t *testing.T) {
	s, err := store.New(t.TempDir())
	require.NoError(t, err)
	ms := newFakeMetricSource()
	c := New(ms, fakeFrameBuilder{}, s, obslog.Noop(), DefaultConfig())

	report := c.Run(context.Background(), []string{"p1"}, time.Now().UTC())
	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, 1, report.Promoted)
	assert.True(t, s.Exists("p1"))
}

func TestNotEligibleIsSkippedUnlessForced(t *testing.T) {
	s, err := store.New(t.TempDir())
	require.NoError(t, err)
	ms := newFakeMetricSource()
	ms.latest["p1"] = &pricingmodel.ModelMetricRecord{ValRMSE: 5, TrainedAt: time.Now().UTC()}
	ms.counts["p1"] = 0

	c := New(ms, fakeFrameBuilder{}, s, obslog.Noop(), DefaultConfig())
	report := c.Run(context.Background(), []string{"p1"}, time.Now().UTC())
	assert.Equal(t, OutcomeSkipped, report.Results[0].Outcome)
}

func TestForceAlwaysProcessesAndPromotes(t *testing.T) {
	s, err := store.New(t.TempDir())
	require.NoError(t, err)
	ms := newFakeMetricSource()
	ms.latest["p1"] = &pricingmodel.ModelMetricRecord{ValRMSE: 5, TrainedAt: time.Now().UTC()}

	cfg := DefaultConfig()
	cfg.Force = true
	c := New(ms, fakeFrameBuilder{}, s, obslog.Noop(), cfg)
	report := c.Run(context.Background(), []string{"p1"}, time.Now().UTC())
	assert.Equal(t, OutcomePromoted, report.Results[0].Outcome)
}

func TestDegradationMakesPropertyEligible(t *testing.T) {
	s, err := store.New(t.TempDir())
	require.NoError(t, err)
	ms := newFakeMetricSource()
	now := time.Now().UTC()
	ms.latest["p1"] = &pricingmodel.ModelMetricRecord{ValRMSE: 10, TrainedAt: now}
	ms.history["p1"] = []pricingmodel.ModelMetricRecord{
		{ValRMSE: 10, TrainedAt: now},
		{ValRMSE: 5, TrainedAt: now.AddDate(0, 0, -10)},
	}
	ms.counts["p1"] = 0

	c := New(ms, fakeFrameBuilder{}, s, obslog.Noop(), DefaultConfig())
	report := c.Run(context.Background(), []string{"p1"}, now)
	assert.NotEqual(t, OutcomeSkipped, report.Results[0].Outcome)
}

func TestPromotionBumpsAttachedCacheVersion(t *testing.T) {
	s, err := store.New(t.TempDir())
	require.NoError(t, err)
	ms := newFakeMetricSource()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	ch := cache.New(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Minute)

	c := New(ms, fakeFrameBuilder{}, s, obslog.Noop(), DefaultConfig()).WithCache(ch)

	before, err := ch.CurrentVersion(context.Background(), "p1")
	require.NoError(t, err)

	report := c.Run(context.Background(), []string{"p1"}, time.Now().UTC())
	require.Equal(t, OutcomePromoted, report.Results[0].Outcome)

	after, err := ch.CurrentVersion(context.Background(), "p1")
	require.NoError(t, err)
	assert.Greater(t, after, before)
}

func TestEveryOutcomeAppendsOneMetricRecord(t *testing.T) {
	s, err := store.New(t.TempDir())
	require.NoError(t, err)
	ms := newFakeMetricSource()
	c := New(ms, fakeFrameBuilder{}, s, obslog.Noop(), DefaultConfig())

	c.Run(context.Background(), []string{"p1", "p2"}, time.Now().UTC())
	assert.Len(t, ms.inserts, 2)
}
