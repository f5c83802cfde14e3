// Package market implements the city-level market-demand model used to
// adjust base price for cold-start properties, per spec.md §4.D. It
// shares the same gradient-boosted ensemble as internal/demand but is
// keyed by (country, city) and predicts a clipped [0,100] occupancy
// estimate rather than a raw booking count.
package market

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"sort"
	"time"

	"github.com/priceye/pricing-engine/internal/gbt"
	"github.com/priceye/pricing-engine/internal/pricingerr"
	"github.com/priceye/pricing-engine/internal/pricingmodel"
	"github.com/priceye/pricing-engine/internal/store"
)

// Key builds the storage key for a (country, city) pair.
func Key(country, city string) string {
	return "market_" + country + "_" + city
}

// Model is a trained (or loaded) market-demand predictor for one city.
type Model struct {
	Country        string
	City           string
	FeatureColumns []string
	Ensemble       *gbt.Ensemble
	Config         pricingmodel.TrainConfig
	SavedAt        time.Time
}

// New constructs an untrained Model for (country, city).
func New(country, city string) *Model {
	return &Model{Country: country, City: city}
}

// Row is one training row for the market model: a feature map plus the
// market_occupancy_estimate target, clipped to [0, 100] in Train.
type Row struct {
	Date     time.Time
	Target   float64
	Features map[string]float64
}

// Train fits the ensemble on rows using the same temporal 80/20 split as
// the demand model, clipping the target to [0, 100].
func (m *Model) Train(rows []Row) (pricingmodel.TrainMetrics, error) {
	if len(rows) == 0 {
		return pricingmodel.TrainMetrics{}, pricingerr.Data("cannot train market model on empty rows", nil).WithContext("city", m.City)
	}

	sorted := append([]Row(nil), rows...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	colSet := map[string]struct{}{}
	for _, r := range sorted {
		for k := range r.Features {
			colSet[k] = struct{}{}
		}
	}
	cols := make([]string, 0, len(colSet))
	for k := range colSet {
		cols = append(cols, k)
	}
	sort.Strings(cols)

	X := make([][]float64, len(sorted))
	y := make([]float64, len(sorted))
	for i, r := range sorted {
		X[i] = rowToVector(r.Features, cols)
		y[i] = clip(r.Target, 0, 100)
	}

	splitAt := int(float64(len(sorted)) * 0.8)
	if splitAt < 1 {
		splitAt = 1
	}
	if splitAt >= len(sorted) {
		splitAt = len(sorted) - 1
	}
	trainX, valX := X[:splitAt], X[splitAt:]
	trainY, valY := y[:splitAt], y[splitAt:]

	cfg := pricingmodel.DefaultTrainConfig()
	ens := gbt.Fit(gbt.Config{
		NEstimators:     cfg.NEstimators,
		LearningRate:    cfg.LearningRate,
		MaxDepth:        cfg.MaxDepth,
		Subsample:       cfg.Subsample,
		ColsampleByTree: cfg.ColsampleByTree,
		Seed:            cfg.Seed,
	}, trainX, trainY)

	trainPred := predictAll(ens, trainX)
	valPred := predictAll(ens, valX)

	m.FeatureColumns = cols
	m.Ensemble = ens
	m.Config = cfg

	return pricingmodel.TrainMetrics{
		TrainRMSE: gbt.RMSE(trainPred, trainY),
		ValRMSE:   gbt.RMSE(valPred, valY),
		TrainMAE:  gbt.MAE(trainPred, trainY),
		ValMAE:    gbt.MAE(valPred, valY),
		NTrain:    len(trainY),
		NVal:      len(valY),
	}, nil
}

func predictAll(ens *gbt.Ensemble, X [][]float64) []float64 {
	out := make([]float64, len(X))
	for i, row := range X {
		out[i] = ens.Predict(row)
	}
	return out
}

func rowToVector(features map[string]float64, cols []string) []float64 {
	v := make([]float64, len(cols))
	for i, c := range cols {
		v[i] = features[c]
	}
	return v
}

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// PredictScore predicts the market occupancy estimate for a single
// feature row, clipped to [0, 100].
func (m *Model) PredictScore(features map[string]float64) (float64, error) {
	if m.Ensemble == nil {
		return 0, pricingerr.ModelLifecycle("market model not loaded", nil).WithContext("city", m.City)
	}
	vec := rowToVector(features, m.FeatureColumns)
	return clip(m.Ensemble.Predict(vec), 0, 100), nil
}

// Save publishes the model via s, JSON-first with a gob fallback.
func (m *Model) Save(s *store.ModelStore) error {
	key := Key(m.Country, m.City)
	format := "json"
	artifactBytes, err := json.Marshal(m.Ensemble)
	if err != nil {
		format = "gob"
		var buf bytes.Buffer
		if gerr := gob.NewEncoder(&buf).Encode(m.Ensemble); gerr != nil {
			return pricingerr.ModelLifecycle("failed to serialize market model", gerr).WithContext("city", m.City)
		}
		artifactBytes = buf.Bytes()
	}

	meta := pricingmodel.ModelArtifactMeta{
		Key:            key,
		FeatureColumns: m.FeatureColumns,
		Config:         m.Config,
		SavedAt:        time.Now().UTC(),
		Format:         format,
	}
	sidecarBytes, err := json.Marshal(meta)
	if err != nil {
		return pricingerr.ModelLifecycle("failed to serialize market sidecar", err).WithContext("city", m.City)
	}

	if err := s.Save(key, format, artifactBytes, sidecarBytes); err != nil {
		return err
	}
	m.SavedAt = meta.SavedAt
	return nil
}

// Load reconstructs a market Model for (country, city) from s.
func Load(s *store.ModelStore, country, city string) (*Model, error) {
	key := Key(country, city)
	artifactBytes, format, sidecarBytes, err := s.Load(key)
	if err != nil {
		return nil, err
	}

	var meta pricingmodel.ModelArtifactMeta
	if err := json.Unmarshal(sidecarBytes, &meta); err != nil {
		return nil, pricingerr.ModelLifecycle("failed to parse market sidecar", err).WithContext("city", city)
	}

	ens := &gbt.Ensemble{}
	switch format {
	case "gob":
		if err := gob.NewDecoder(bytes.NewReader(artifactBytes)).Decode(ens); err != nil {
			return nil, pricingerr.ModelLifecycle("failed to decode gob market artifact", err).WithContext("city", city)
		}
	case "json":
		if err := json.Unmarshal(artifactBytes, ens); err != nil {
			return nil, pricingerr.ModelLifecycle("failed to decode json market artifact", err).WithContext("city", city)
		}
	default:
		return nil, pricingerr.ModelLifecycle("unrecognized market artifact format", nil).WithContext("format", format)
	}

	return &Model{
		Country:        country,
		City:           city,
		FeatureColumns: meta.FeatureColumns,
		Ensemble:       ens,
		Config:         meta.Config,
		SavedAt:        meta.SavedAt,
	}, nil
}
