package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rigsight/wellscan-cli/internal/model"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <listing>...",
	Short: "Learn rules and train models from listings",
	Long:  "Runs the full analysis over one or more listing files: filters to image records, learns filename rules and trains the statistical model per source, scans for anomalies, and persists the results.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		records, err := loadListings(ctx, args)
		if err != nil {
			return err
		}

		run, err := env.Store.CreateRun(ctx, strings.Join(args, ","))
		if err != nil {
			return eris.Wrap(err, "create run")
		}

		res, err := env.Pipeline.Run(ctx, records)
		if err != nil {
			if failErr := env.Store.FailRun(ctx, run.ID, err); failErr != nil {
				zap.L().Warn("failed to record run failure", zap.Error(failErr))
			}
			return eris.Wrap(err, "analyze")
		}

		for _, source := range res.RuleSet.Sources() {
			if err := env.Store.ReplaceRules(ctx, source, res.RuleSet.Rules(source)); err != nil {
				return eris.Wrapf(err, "persist rules for %s", source)
			}
		}
		if err := env.Store.SaveAnomalies(ctx, run.ID, res.Anomalies); err != nil {
			return eris.Wrap(err, "persist anomalies")
		}

		result := &model.RunResult{
			Total:        res.Stats.Total,
			ImageCount:   res.Stats.ImageCount,
			NonImage:     res.Stats.NonImage,
			Distribution: res.Stats.Distribution,
			RuleCount:    res.RuleSet.Len(),
			ModelCount:   len(res.Models),
			AnomalyCount: len(res.Anomalies),
		}
		if err := env.Store.CompleteRun(ctx, run.ID, result); err != nil {
			return eris.Wrap(err, "complete run")
		}

		out := struct {
			RunID string `json:"run_id"`
			model.RunResult
		}{RunID: run.ID, RunResult: *result}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
}
