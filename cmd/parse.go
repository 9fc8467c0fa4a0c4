package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/rigsight/wellscan-cli/internal/extract"
)

var parseCmd = &cobra.Command{
	Use:   "parse <path>...",
	Short: "Extract metadata from file paths",
	Long:  "Parses well name, category, sample type and depth directly from paths using the built-in extractors, without rules or models.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		type parsed struct {
			Path     string           `json:"path"`
			Metadata extract.Metadata `json:"metadata"`
		}

		out := make([]parsed, 0, len(args))
		for _, path := range args {
			out = append(out, parsed{Path: path, Metadata: extract.Parse(path)})
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	rootCmd.AddCommand(parseCmd)
}
