package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rigsight/wellscan-cli/internal/bayes"
	"github.com/rigsight/wellscan-cli/internal/classify"
	"github.com/rigsight/wellscan-cli/internal/model"
	"github.com/rigsight/wellscan-cli/internal/ruleset"
)

var (
	classifyRulesFile string
	classifyTrainFile string
	classifyListing   string
	classifySource    string
	classifyReport    bool
)

var classifyCmd = &cobra.Command{
	Use:   "classify [path]...",
	Short: "Classify captured file paths",
	Long:  "Classifies paths given as arguments or read from a listing, fusing stored rules with a statistical model trained from --train listings. Out-of-scope records are skipped.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if len(args) == 0 && classifyListing == "" {
			return eris.New("nothing to classify: give paths or --listing")
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		var rs *ruleset.RuleSet
		if classifyRulesFile != "" {
			data, err := os.ReadFile(classifyRulesFile)
			if err != nil {
				return eris.Wrap(err, "read rules file")
			}
			rs, err = ruleset.UnmarshalYAML(data)
			if err != nil {
				return eris.Wrap(err, "parse rules file")
			}
		} else {
			rs, err = loadStoredRules(ctx, env.Store)
			if err != nil {
				return eris.Wrap(err, "load rules")
			}
		}

		hybrid, err := buildClassifier(ctx, env, rs)
		if err != nil {
			return err
		}

		var records []model.FileRecord
		if classifyListing != "" {
			records, err = loadListings(ctx, []string{classifyListing})
			if err != nil {
				return err
			}
		}
		for _, path := range args {
			records = append(records, model.NewFileRecord(path, model.Source(classifySource), model.Labels{}))
		}

		var preds []model.Prediction
		skipped := 0
		for _, rec := range records {
			pred, err := hybrid.Classify(rec)
			if err != nil {
				var oos *classify.OutOfScopeError
				if errors.As(err, &oos) {
					skipped++
					zap.L().Debug("skipping out-of-scope record", zap.String("path", rec.Path))
					continue
				}
				return eris.Wrap(err, "classify")
			}
			preds = append(preds, pred)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if classifyReport {
			return enc.Encode(classify.BuildReport(preds))
		}
		out := struct {
			Predictions []model.Prediction `json:"predictions"`
			Skipped     int                `json:"skipped"`
		}{Predictions: preds, Skipped: skipped}
		return enc.Encode(out)
	},
}

// buildClassifier assembles the hybrid classifier: the given rules plus
// statistical models trained from the --train listings when provided.
func buildClassifier(ctx context.Context, env *scanEnv, rs *ruleset.RuleSet) (*classify.Hybrid, error) {
	var models map[model.Source]*bayes.Model
	if classifyTrainFile != "" {
		records, err := loadListings(ctx, []string{classifyTrainFile})
		if err != nil {
			return nil, err
		}
		res, err := env.Pipeline.Run(ctx, records)
		if err != nil {
			return nil, eris.Wrap(err, "train models")
		}
		models = res.Models
	}
	return classify.New(env.Pipeline.Filter(), rs, models, classify.Config{
		RuleAuthoritativeThreshold: cfg.Classify.RuleAuthoritativeThreshold,
	}), nil
}

func init() {
	classifyCmd.Flags().StringVar(&classifyRulesFile, "rules", "", "YAML rules file (default: stored rules)")
	classifyCmd.Flags().StringVar(&classifyTrainFile, "train", "", "labeled listing to train the statistical model from")
	classifyCmd.Flags().StringVar(&classifyListing, "listing", "", "listing file with paths to classify")
	classifyCmd.Flags().StringVar(&classifySource, "source", "default", "source id for paths given as arguments")
	classifyCmd.Flags().BoolVar(&classifyReport, "report", false, "print the coverage/accuracy report instead of predictions")
	rootCmd.AddCommand(classifyCmd)
}
