// Command retrain is the batch entry point for the closed-loop retrain
// controller (spec.md §4.G / §6). It scans every known property, selects
// the eligible ones (or all of them with --force), and runs the
// train/backup/promote-or-rollback protocol, emitting a structured
// report. Exit code is 0 on a completed run regardless of per-property
// outcome — non-zero only on configuration errors (bad DSN, unreadable
// models root, unwritable output path).
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/priceye/pricing-engine/internal/cache"
	"github.com/priceye/pricing-engine/internal/config"
	"github.com/priceye/pricing-engine/internal/dataaccess"
	"github.com/priceye/pricing-engine/internal/dataset"
	"github.com/priceye/pricing-engine/internal/obslog"
	"github.com/priceye/pricing-engine/internal/retrain"
	"github.com/priceye/pricing-engine/internal/store"
)

var (
	flagConfigPath             string
	flagDays                   int
	flagMinNewRecommendations  int
	flagMinDaysSinceTraining   int
	flagMinImprovement         float64
	flagForce                  bool
	flagOutput                 string
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "retrain",
		Short: "Scan properties and retrain demand models that are stale or degraded",
		Long: `retrain runs the pricing core's closed-loop retrain controller: it
selects properties eligible for retraining (by staleness, new-recommendation
volume, or validation-RMSE degradation), trains a candidate model for each,
promotes it when its validation RMSE improves on the incumbent's by at least
the configured ratio, and restores the incumbent when the candidate is worse
by more than the rollback threshold.`,
		RunE: runRetrain,
	}

	cmd.Flags().StringVar(&flagConfigPath, "config", "", "path to YAML config file")
	cmd.Flags().IntVar(&flagDays, "days", 180, "training window size in days")
	cmd.Flags().IntVar(&flagMinNewRecommendations, "min-new-recommendations", 50, "minimum new recommendations since last training to be eligible")
	cmd.Flags().IntVar(&flagMinDaysSinceTraining, "min-days-since-training", 30, "minimum days since last training to be eligible")
	cmd.Flags().Float64Var(&flagMinImprovement, "min-improvement", 0.05, "validation-RMSE improvement ratio required to promote a candidate")
	cmd.Flags().BoolVar(&flagForce, "force", false, "retrain and promote every property regardless of eligibility")
	cmd.Flags().StringVar(&flagOutput, "output", "", "write the JSON report to this path instead of stdout")

	return cmd
}

func runRetrain(cmd *cobra.Command, args []string) error {
	log := obslog.NewFromEnv("retrain-cli")
	defer log.Sync()

	cfg, err := config.Load(flagConfigPath)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	db, err := dataaccess.Connect(cfg.Database)
	if err != nil {
		return fmt.Errorf("configuration error: failed to connect to database: %w", err)
	}
	repo := dataaccess.New(db, log)

	modelStore, err := store.New(cfg.Models.Root)
	if err != nil {
		return fmt.Errorf("configuration error: failed to open model store: %w", err)
	}

	builder := dataset.New(repo)

	// The config file's retrain thresholds win unless the operator
	// explicitly passed the equivalent flag, in which case the flag wins.
	rcfg := retrain.Config{
		MinDaysSinceTraining:  cfg.Retrain.MinDaysSinceTraining,
		MinNewRecommendations: cfg.Retrain.MinNewRecommendations,
		DegradationThreshold:  cfg.Retrain.DegradationThreshold,
		PromotionThreshold:    cfg.Retrain.PromotionThreshold,
		RollbackThreshold:     cfg.Retrain.RollbackThreshold,
		WindowDays:            cfg.Retrain.LookbackDays,
		MaxConcurrentProperty: cfg.Retrain.MaxConcurrentProperty,
		Force:                 flagForce,
	}
	if cmd.Flags().Changed("min-days-since-training") {
		rcfg.MinDaysSinceTraining = flagMinDaysSinceTraining
	}
	if cmd.Flags().Changed("min-new-recommendations") {
		rcfg.MinNewRecommendations = flagMinNewRecommendations
	}
	if cmd.Flags().Changed("min-improvement") {
		rcfg.PromotionThreshold = flagMinImprovement
	}
	if cmd.Flags().Changed("days") {
		rcfg.WindowDays = flagDays
	}

	controller := retrain.New(repo, builder, modelStore, log, rcfg)
	if cfg.Cache.Enabled && cfg.Cache.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.Addr,
			Password: cfg.Cache.Password,
			DB:       cfg.Cache.DB,
		})
		controller = controller.WithCache(cache.New(redisClient, cfg.Cache.TTL))
	}

	ctx := context.Background()
	propertyIDs, err := repo.ListPropertyIDs(ctx)
	if err != nil {
		return fmt.Errorf("configuration error: failed to list properties: %w", err)
	}

	report := controller.Run(ctx, propertyIDs, time.Now().UTC())

	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("configuration error: failed to marshal report: %w", err)
	}

	if flagOutput == "" {
		fmt.Fprintln(os.Stdout, string(out))
		return nil
	}
	if err := os.WriteFile(flagOutput, out, 0o644); err != nil {
		return fmt.Errorf("configuration error: failed to write report to %s: %w", flagOutput, err)
	}
	log.Infow("retrain run complete", "processed", report.Processed, "promoted", report.Promoted,
		"kept", report.Kept, "rolled_back", report.RolledBack, "errors", report.Errors, "output", flagOutput)
	return nil
}
