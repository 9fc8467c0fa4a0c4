package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/rigsight/wellscan-cli/internal/anomaly"
	"github.com/rigsight/wellscan-cli/internal/model"
)

var scanRunID string

var scanCmd = &cobra.Command{
	Use:   "scan <listing>...",
	Short: "Scan listings for anomalous records",
	Long:  "Checks every in-scope record against the stored rules and reports records no rule sufficiently explains. With --run the anomalies of a past analysis run are printed instead.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		if scanRunID != "" {
			anomalies, err := env.Store.ListAnomalies(ctx, scanRunID)
			if err != nil {
				return eris.Wrap(err, "list anomalies")
			}
			return enc.Encode(anomalies)
		}

		if len(args) == 0 {
			return eris.New("nothing to scan: give listings or --run")
		}

		records, err := loadListings(ctx, args)
		if err != nil {
			return err
		}
		images, _, _ := env.Pipeline.Filter().Split(records)

		rs, err := loadStoredRules(ctx, env.Store)
		if err != nil {
			return eris.Wrap(err, "load rules")
		}

		anomalies := anomaly.Scan(images, rs, cfg.Classify.AnomalyReportThreshold)
		out := struct {
			Scanned   int                   `json:"scanned"`
			Anomalies []model.AnomalyRecord `json:"anomalies"`
		}{Scanned: len(images), Anomalies: anomalies}
		return enc.Encode(out)
	},
}

func init() {
	scanCmd.Flags().StringVar(&scanRunID, "run", "", "print stored anomalies of this run id")
	rootCmd.AddCommand(scanCmd)
}
