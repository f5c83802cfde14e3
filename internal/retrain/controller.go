// Package retrain implements the closed-loop retrain controller from
// spec.md §4.G: eligibility scan, train-backup-compare-promote/rollback
// per property, append-only metric logging, and a structured report.
package retrain

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/priceye/pricing-engine/internal/cache"
	"github.com/priceye/pricing-engine/internal/demand"
	"github.com/priceye/pricing-engine/internal/obslog"
	"github.com/priceye/pricing-engine/internal/pricingmodel"
	"github.com/priceye/pricing-engine/internal/store"
)

// MetricSource is the subset of the data-access layer the controller
// needs to evaluate eligibility and append metric rows.
type MetricSource interface {
	GetLatestModelMetric(ctx context.Context, propertyID string) (*pricingmodel.ModelMetricRecord, error)
	GetModelMetrics(ctx context.Context, propertyID string, limit int) ([]pricingmodel.ModelMetricRecord, error)
	CountRecommendationsSince(ctx context.Context, propertyID string, since time.Time) (int, error)
	InsertMetric(ctx context.Context, rec pricingmodel.ModelMetricRecord)
}

// FrameBuilder builds the training frame for a property over a window.
type FrameBuilder interface {
	BuildTrainingFrame(ctx context.Context, propertyID string, start, end time.Time) (pricingmodel.Frame, error)
}

// Config carries the eligibility thresholds and windows from
// spec.md §4.G, matching internal/config.RetrainConfig's shape.
type Config struct {
	MinDaysSinceTraining  int
	MinNewRecommendations int
	DegradationThreshold  float64
	PromotionThreshold    float64
	RollbackThreshold     float64
	WindowDays            int
	MaxConcurrentProperty int
	Force                 bool
}

// DefaultConfig mirrors spec.md's stated defaults.
func DefaultConfig() Config {
	return Config{
		MinDaysSinceTraining:  30,
		MinNewRecommendations: 50,
		DegradationThreshold:  0.20,
		PromotionThreshold:    0.05,
		RollbackThreshold:     -0.05,
		WindowDays:            180,
		MaxConcurrentProperty: 4,
	}
}

// Outcome classifies what the controller did for one property.
type Outcome string

const (
	OutcomePromoted Outcome = "promoted"
	OutcomeKept     Outcome = "kept"
	OutcomeRolled   Outcome = "rolled_back"
	OutcomeSkipped  Outcome = "skipped_not_eligible"
	OutcomeError    Outcome = "error"
)

// PropertyResult is one property's retrain outcome.
type PropertyResult struct {
	PropertyID   string
	Outcome      Outcome
	OldValRMSE   float64
	NewValRMSE   float64
	Delta        float64
	Duration     time.Duration
	Error        string
}

// Report is the structured output of one controller run.
type Report struct {
	Processed int
	Promoted  int
	Kept      int
	RolledBack int
	Errors    int
	Results   []PropertyResult
}

// Controller coordinates eligibility selection and the per-property
// train/backup/promote/rollback sequence. It is the sole writer to model
// artifacts; distinct properties may train concurrently, each property
// is handled by one goroutine per run, and each write to its artifact is
// serialized by the ModelStore's per-key mutex.
type Controller struct {
	metrics MetricSource
	builder FrameBuilder
	store   *store.ModelStore
	log     *obslog.Logger
	cache   *cache.Cache
	cfg     Config
}

// New builds a Controller.
func New(metrics MetricSource, builder FrameBuilder, s *store.ModelStore, log *obslog.Logger, cfg Config) *Controller {
	if log == nil {
		log = obslog.Noop()
	}
	return &Controller{metrics: metrics, builder: builder, store: s, log: log, cfg: cfg}
}

// WithCache attaches the predictor cache whose version counter must be
// bumped whenever this controller publishes a new incumbent artifact, so
// a cached predictor never outlives the artifact it was loaded from.
func (c *Controller) WithCache(ch *cache.Cache) *Controller {
	c.cache = ch
	return c
}

// Run scans properties, selects the eligible ones (unless cfg.Force),
// and processes each through the promotion protocol, bounding
// concurrency at cfg.MaxConcurrentProperty.
func (c *Controller) Run(ctx context.Context, propertyIDs []string, now time.Time) Report {
	results := make([]PropertyResult, len(propertyIDs))

	g, gctx := errgroup.WithContext(ctx)
	concurrency := c.cfg.MaxConcurrentProperty
	if concurrency < 1 {
		concurrency = 1
	}
	sem := make(chan struct{}, concurrency)

	for i, propertyID := range propertyIDs {
		i, propertyID := i, propertyID
		sem <- struct{}{}
		g.Go(func() error {
			defer func() { <-sem }()
			results[i] = c.processProperty(gctx, propertyID, now)
			return nil
		})
	}
	_ = g.Wait()

	report := Report{Processed: len(results), Results: results}
	for _, r := range results {
		switch r.Outcome {
		case OutcomePromoted:
			report.Promoted++
		case OutcomeKept:
			report.Kept++
		case OutcomeRolled:
			report.RolledBack++
		case OutcomeError:
			report.Errors++
		}
	}
	return report
}

func (c *Controller) processProperty(ctx context.Context, propertyID string, now time.Time) PropertyResult {
	start := time.Now()
	result := PropertyResult{PropertyID: propertyID}

	eligible, latest := c.isEligible(ctx, propertyID, now)
	if !eligible && !c.cfg.Force {
		result.Outcome = OutcomeSkipped
		result.Duration = time.Since(start)
		return result
	}

	windowStart := now.AddDate(0, 0, -c.cfg.WindowDays)
	frame, err := c.builder.BuildTrainingFrame(ctx, propertyID, windowStart, now)
	if err != nil {
		return errorResult(propertyID, start, err)
	}

	var backupKey string
	hadIncumbent := c.store.Exists(propertyID)
	if hadIncumbent {
		backupKey, err = c.store.Backup(propertyID, now)
		if err != nil {
			return errorResult(propertyID, start, err)
		}
	}

	candidate := demand.New(propertyID)
	trainMetrics, err := candidate.Train(frame)
	if err != nil {
		return errorResult(propertyID, start, err)
	}

	oldValRMSE := 0.0
	if latest != nil {
		oldValRMSE = latest.ValRMSE
	}
	newValRMSE := trainMetrics.ValRMSE

	delta := 0.0
	if oldValRMSE > 0 {
		delta = (oldValRMSE - newValRMSE) / oldValRMSE
	}

	outcome := OutcomeKept
	switch {
	case c.cfg.Force:
		outcome = OutcomePromoted
	case !hadIncumbent:
		outcome = OutcomePromoted
	case delta >= c.cfg.PromotionThreshold:
		outcome = OutcomePromoted
	case delta < c.cfg.RollbackThreshold:
		outcome = OutcomeRolled
	}

	if outcome == OutcomePromoted || outcome == OutcomeKept {
		if err := candidate.Save(c.store); err != nil {
			return errorResult(propertyID, start, err)
		}
	}
	if outcome == OutcomeRolled && hadIncumbent {
		if err := c.store.Restore(propertyID, backupKey); err != nil {
			return errorResult(propertyID, start, err)
		}
	}

	if outcome == OutcomePromoted || outcome == OutcomeKept || outcome == OutcomeRolled {
		c.bumpCache(ctx, propertyID)
	}

	version := fmt.Sprintf("%s-%d", propertyID, now.UnixNano())
	trainedBy := pricingmodel.TrainedByAutoRetrain
	if c.cfg.Force {
		trainedBy = pricingmodel.TrainedByManual
	}
	c.metrics.InsertMetric(ctx, pricingmodel.ModelMetricRecord{
		ID:           version,
		PropertyID:   propertyID,
		ModelVersion: version,
		TrainRMSE:    trainMetrics.TrainRMSE,
		ValRMSE:      trainMetrics.ValRMSE,
		TrainMAE:     trainMetrics.TrainMAE,
		ValMAE:       trainMetrics.ValMAE,
		NTrain:       trainMetrics.NTrain,
		NVal:         trainMetrics.NVal,
		ArtifactPath: propertyID,
		TrainedAt:    now,
		TrainedBy:    trainedBy,
		Metadata:     map[string]interface{}{"outcome": string(outcome)},
	})

	return PropertyResult{
		PropertyID: propertyID,
		Outcome:    outcome,
		OldValRMSE: oldValRMSE,
		NewValRMSE: newValRMSE,
		Delta:      delta,
		Duration:   time.Since(start),
	}
}

// bumpCache invalidates any cached predictor for propertyID after the
// live artifact changes underneath it. A bump failure is nonfatal — the
// cache entry simply expires on its own TTL instead.
func (c *Controller) bumpCache(ctx context.Context, propertyID string) {
	if c.cache == nil {
		return
	}
	if err := c.cache.BumpVersion(ctx, propertyID); err != nil {
		c.log.Nonfatal("transient_store", err, "op", "bump_cache_version", "property_id", propertyID)
	}
}

func errorResult(propertyID string, start time.Time, err error) PropertyResult {
	return PropertyResult{PropertyID: propertyID, Outcome: OutcomeError, Duration: time.Since(start), Error: err.Error()}
}

// isEligible implements the OR-of-conditions eligibility rule: staleness
// plus new-recommendation volume, or performance degradation beyond the
// configured threshold.
func (c *Controller) isEligible(ctx context.Context, propertyID string, now time.Time) (bool, *pricingmodel.ModelMetricRecord) {
	latest, err := c.metrics.GetLatestModelMetric(ctx, propertyID)
	if err != nil {
		c.log.Nonfatal("transient_store", err, "op", "get_latest_model_metric", "property_id", propertyID)
	}
	if latest == nil {
		return true, nil
	}

	daysSince := int(now.Sub(latest.TrainedAt).Hours() / 24)
	newRecs, err := c.metrics.CountRecommendationsSince(ctx, propertyID, latest.TrainedAt)
	if err != nil {
		c.log.Nonfatal("transient_store", err, "op", "count_recommendations_since", "property_id", propertyID)
	}

	staleEnough := daysSince >= c.cfg.MinDaysSinceTraining && newRecs >= c.cfg.MinNewRecommendations

	degraded := false
	history, err := c.metrics.GetModelMetrics(ctx, propertyID, 2)
	if err != nil {
		c.log.Nonfatal("transient_store", err, "op", "get_model_metrics", "property_id", propertyID)
	}
	if len(history) == 2 && history[1].ValRMSE > 0 {
		ratio := (history[0].ValRMSE - history[1].ValRMSE) / history[1].ValRMSE
		degraded = ratio > c.cfg.DegradationThreshold
	}

	return staleEnough || degraded, latest
}
