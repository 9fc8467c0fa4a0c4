package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var learnOutput string

var learnCmd = &cobra.Command{
	Use:   "learn <listing>...",
	Short: "Learn filename rules from labeled listings",
	Long:  "Learns per-source filename rules from labeled image records and persists them, replacing each source's stored rule set. With --output the rules are written as YAML instead.",
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

		res, err := env.Pipeline.Run(ctx, records)
		if err != nil {
			return eris.Wrap(err, "learn")
		}

		if learnOutput != "" {
			data, err := res.RuleSet.MarshalYAML()
			if err != nil {
				return eris.Wrap(err, "marshal rules")
			}
			if err := os.WriteFile(learnOutput, data, 0o644); err != nil {
				return eris.Wrap(err, "write rules file")
			}
			zap.L().Info("rules written", zap.String("path", learnOutput), zap.Int("rules", res.RuleSet.Len()))
			return nil
		}

		for _, source := range res.RuleSet.Sources() {
			if err := env.Store.ReplaceRules(ctx, source, res.RuleSet.Rules(source)); err != nil {
				return eris.Wrapf(err, "persist rules for %s", source)
			}
		}
		zap.L().Info("rules persisted",
			zap.Int("sources", len(res.RuleSet.Sources())),
			zap.Int("rules", res.RuleSet.Len()),
		)
		return nil
	},
}

func init() {
	learnCmd.Flags().StringVarP(&learnOutput, "output", "o", "", "write rules as YAML to this file instead of the store")
	rootCmd.AddCommand(learnCmd)
}
