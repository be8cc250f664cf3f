package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	autoLimit       int
	autoConcurrency int
)

var autoCmd = &cobra.Command{
	Use:   "auto",
	Short: "Enrich the most incomplete organizations automatically",
	Long:  "Selects up to --limit organizations with missing contact fields, most incomplete first, and runs a batch over them.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		concurrency := autoConcurrency
		if concurrency == 0 {
			concurrency = cfg.Batch.Concurrency
		}

		j, err := env.Orchestrator.StartAuto(ctx, "cli", autoLimit, concurrency)
		if err != nil {
			return err
		}

		go func() {
			<-ctx.Done()
			j.Stop()
		}()

		<-j.Done()
		snap := j.Snapshot()

		zap.L().Info("auto enrichment finished",
			zap.String("job_id", snap.ID),
			zap.String("status", string(snap.Status)),
			zap.Int("processed", snap.Processed),
			zap.Int("succeeded", snap.Succeeded),
			zap.Int("failed", snap.Failed),
		)
		return nil
	},
}

func init() {
	autoCmd.Flags().IntVar(&autoLimit, "limit", 50, "max organizations to enrich")
	autoCmd.Flags().IntVar(&autoConcurrency, "concurrency", 0, "worker pool size (default from config)")
	rootCmd.AddCommand(autoCmd)
}
