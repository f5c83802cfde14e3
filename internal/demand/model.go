// Package demand implements the per-property gradient-boosted demand
// model: train, persist, reload, predict, following the lifecycle spec.md
// §4.C describes over the shared gbt ensemble.
package demand

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

// Model is a trained (or loaded) per-property demand predictor.
type Model struct {
	PropertyID     string
	FeatureColumns []string
	Ensemble       *gbt.Ensemble
	Config         pricingmodel.TrainConfig
	SavedAt        time.Time
}

// New constructs an untrained Model for propertyID.
func New(propertyID string) *Model {
	return &Model{PropertyID: propertyID}
}

// Train fits the ensemble on frame using a strictly temporal 80/20 split
// (sorted by date, no shuffling) and the spec-mandated default
// hyperparameters. It fails loudly on an empty frame.
func (m *Model) Train(frame pricingmodel.Frame) (pricingmodel.TrainMetrics, error) {
	if len(frame.Rows) == 0 {
		return pricingmodel.TrainMetrics{}, pricingerr.Data("cannot train on empty frame", nil).WithContext("property_id", m.PropertyID)
	}

	rows := append([]pricingmodel.Row(nil), frame.Rows...)
	sort.Slice(rows, func(i, j int) bool { return rows[i].Date.Before(rows[j].Date) })

	cols := append([]string(nil), frame.FeatureColumns...)
	sort.Strings(cols)

	X := make([][]float64, len(rows))
	y := make([]float64, len(rows))
	for i, r := range rows {
		if r.YDemand < 0 {
			return pricingmodel.TrainMetrics{}, pricingerr.Data("negative y_demand is invalid", nil).WithContext("property_id", m.PropertyID)
		}
		X[i] = rowToVector(r.Features, cols)
		y[i] = r.YDemand
	}

	splitAt := int(float64(len(rows)) * 0.8)
	if splitAt < 1 {
		splitAt = 1
	}
	if splitAt >= len(rows) {
		splitAt = len(rows) - 1
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
	m.SavedAt = time.Time{}

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

// rowToVector builds a feature vector in cols order, filling missing
// columns with 0.0 — identical semantics at train and predict time.
func rowToVector(features map[string]float64, cols []string) []float64 {
	v := make([]float64, len(cols))
	for i, c := range cols {
		v[i] = features[c]
	}
	return v
}

// UsesPriceFeature reports whether the persisted feature schema includes
// a "price" column.
func (m *Model) UsesPriceFeature() bool {
	for _, c := range m.FeatureColumns {
		if c == "price" {
			return true
		}
	}
	return false
}

// Predict builds a feature row in the persisted column order, filling
// missing features with 0.0, and clips the output to >= 0. It raises only
// if the model was never trained or loaded.
func (m *Model) Predict(row map[string]float64) (float64, error) {
	if m.Ensemble == nil {
		return 0, pricingerr.ModelLifecycle("model not loaded", nil).WithContext("property_id", m.PropertyID)
	}
	vec := rowToVector(row, m.FeatureColumns)
	out := m.Ensemble.Predict(vec)
	if out < 0 {
		out = 0
	}
	return out, nil
}

// Save publishes the model via store, writing JSON by default and
// falling back to a gob-encoded artifact (sidecar format="gob") if the
// ensemble cannot be marshaled as JSON.
func (m *Model) Save(s *store.ModelStore) error {
	format := "json"
	artifactBytes, err := json.Marshal(m.Ensemble)
	if err != nil {
		format = "gob"
		var buf bytes.Buffer
		if gerr := gob.NewEncoder(&buf).Encode(m.Ensemble); gerr != nil {
			return pricingerr.ModelLifecycle("failed to serialize model in both json and gob", gerr).WithContext("property_id", m.PropertyID)
		}
		artifactBytes = buf.Bytes()
	}

	meta := pricingmodel.ModelArtifactMeta{
		Key:            m.PropertyID,
		FeatureColumns: m.FeatureColumns,
		Config:         m.Config,
		SavedAt:        time.Now().UTC(),
		Format:         format,
	}
	sidecarBytes, err := json.Marshal(meta)
	if err != nil {
		return pricingerr.ModelLifecycle("failed to serialize sidecar", err).WithContext("property_id", m.PropertyID)
	}

	if err := s.Save(m.PropertyID, format, artifactBytes, sidecarBytes); err != nil {
		return err
	}
	m.SavedAt = meta.SavedAt
	return nil
}

// EncodeCache gob-encodes the model for the in-process predictor cache
// (internal/cache); the ensemble's exported fields make it round-trip
// through gob the same way Save's fallback path does.
func (m *Model) EncodeCache() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(m); err != nil {
		return nil, pricingerr.ModelLifecycle("failed to encode model for cache", err).WithContext("property_id", m.PropertyID)
	}
	return buf.Bytes(), nil
}

// DecodeCache reconstructs a Model previously produced by EncodeCache.
func DecodeCache(data []byte) (*Model, error) {
	var m Model
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&m); err != nil {
		return nil, pricingerr.ModelLifecycle("failed to decode cached model", err)
	}
	return &m, nil
}

// Load reconstructs a Model for propertyID from s, including its ordered
// feature list. It raises if either the artifact or sidecar is missing.
func Load(s *store.ModelStore, propertyID string) (*Model, error) {
	artifactBytes, format, sidecarBytes, err := s.Load(propertyID)
	if err != nil {
		return nil, err
	}

	var meta pricingmodel.ModelArtifactMeta
	if err := json.Unmarshal(sidecarBytes, &meta); err != nil {
		return nil, pricingerr.ModelLifecycle("failed to parse sidecar", err).WithContext("property_id", propertyID)
	}

	ens := &gbt.Ensemble{}
	switch format {
	case "gob":
		if err := gob.NewDecoder(bytes.NewReader(artifactBytes)).Decode(ens); err != nil {
			return nil, pricingerr.ModelLifecycle("failed to decode gob artifact", err).WithContext("property_id", propertyID)
		}
	case "json":
		if err := json.Unmarshal(artifactBytes, ens); err != nil {
			return nil, pricingerr.ModelLifecycle("failed to decode json artifact", err).WithContext("property_id", propertyID)
		}
	default:
		return nil, pricingerr.ModelLifecycle("unrecognized artifact format", nil).WithContext("format", format)
	}

	return &Model{
		PropertyID:     propertyID,
		FeatureColumns: meta.FeatureColumns,
		Ensemble:       ens,
		Config:         meta.Config,
		SavedAt:        meta.SavedAt,
	}, nil
}
