package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/EnzoMH/cradcrawl-enrich/internal/model"
)

var enrichCmd = &cobra.Command{
	Use:   "enrich <org-id>",
	Short: "Enrich a single organization's contact fields",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		outcome := env.Enricher.EnrichByID(ctx, args[0])

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(outcome); err != nil {
			return eris.Wrap(err, "encode outcome")
		}

		if outcome.Status != model.OutcomeSuccess {
			zap.L().Error("enrichment failed",
				zap.String("org_id", outcome.OrgID),
				zap.String("error", outcome.Error),
			)
			return eris.New("enrichment failed")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(enrichCmd)
}
