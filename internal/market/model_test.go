package market

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/priceye/pricing-engine/internal/pricingmodel"
	"github.com/priceye/pricing-engine/internal/store"
)

func syntheticRows(n int) []Row {
	rng := rand.New(rand.NewSource(5))
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := make([]Row, n)
	for i := 0; i < n; i++ {
		trend := rng.Float64() * 100
		rows[i] = Row{
			Date:   start.AddDate(0, 0, i),
			Target: trend,
			Features: map[string]float64{
				"trend_score":          trend,
				"competitor_avg_price": rng.Float64() * 150,
			},
		}
	}
	return rows
}

func TestTrainClipsTargetToRange(t *testing.T) {
	rows := syntheticRows(60)
	rows[0].Target = 500
	rows[1].Target = -50

	m := New("US", "Austin")
	metrics, err := m.Train(rows)
	require.NoError(t, err)
	assert.Greater(t, metrics.NTrain, 0)
}

func TestPredictScoreClamped(t *testing.T) {
	m := New("US", "Austin")
	_, err := m.Train(syntheticRows(80))
	require.NoError(t, err)

	score, err := m.PredictScore(map[string]float64{"trend_score": 9999})
	require.NoError(t, err)
	assert.LessOrEqual(t, score, 100.0)
	assert.GreaterOrEqual(t, score, 0.0)
}

func TestMarketSaveLoadRoundTrip(t *testing.T) {
	m := New("US", "Austin")
	_, err := m.Train(syntheticRows(80))
	require.NoError(t, err)

	s, err := store.New(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, m.Save(s))

	loaded, err := Load(s, "US", "Austin")
	require.NoError(t, err)

	row := map[string]float64{"trend_score": 40}
	p1, _ := m.PredictScore(row)
	p2, _ := loaded.PredictScore(row)
	assert.InDelta(t, p1, p2, 1e-9)
}

type fakeFeatureSource struct {
	row *pricingmodel.MarketFeatureRow
	err error
}

func (f fakeFeatureSource) GetMarketFeatureRow(_ context.Context, _, _ string, _ time.Time) (*pricingmodel.MarketFeatureRow, error) {
	return f.row, f.err
}

func TestNext30DaysDefaultsMissingToFifty(t *testing.T) {
	m := New("US", "Austin")
	_, err := m.Train(syntheticRows(80))
	require.NoError(t, err)

	pred := NewPredictor(m, fakeFeatureSource{row: nil})
	scores := pred.Next30Days(context.Background(), "US", "Austin", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	assert.Len(t, scores, 30)
	for _, v := range scores {
		assert.Equal(t, 50.0, v)
	}
}
