package main

import (
	"bufio"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/EnzoMH/cradcrawl-enrich/internal/model"
)

var (
	batchIDsFile     string
	batchConcurrency int
	batchRequester   string
)

var batchCmd = &cobra.Command{
	Use:   "batch [org-id...]",
	Short: "Batch enrich organizations by id",
	Long:  "Runs enrichment over the given organization ids (arguments or --ids-file, one id per line) with a bounded worker pool. Ctrl-C stops cooperatively: in-flight items finish, the rest are skipped.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		ids, err := collectIDs(args, batchIDsFile)
		if err != nil {
			return err
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		concurrency := batchConcurrency
		if concurrency == 0 {
			concurrency = cfg.Batch.Concurrency
		}

		j := env.Orchestrator.Start(ctx, "batch", batchRequester, ids, concurrency)

		go func() {
			<-ctx.Done()
			zap.L().Info("stop requested, letting in-flight items finish")
			j.Stop()
		}()

		<-j.Done()
		snap := j.Snapshot()

		zap.L().Info("batch finished",
			zap.String("job_id", snap.ID),
			zap.String("status", string(snap.Status)),
			zap.Int("processed", snap.Processed),
			zap.Int("succeeded", snap.Succeeded),
			zap.Int("failed", snap.Failed),
		)

		if snap.Status == model.JobStatusFailed {
			return eris.New("batch failed")
		}
		return nil
	},
}

// collectIDs merges ids from arguments and an optional file, one per
// line, keeping the first occurrence of duplicates.
func collectIDs(args []string, path string) ([]string, error) {
	seen := make(map[string]bool)
	var ids []string
	add := func(id string) {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		ids = append(ids, id)
	}

	for _, a := range args {
		add(a)
	}

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrap(err, "open ids file")
		}
		defer f.Close() //nolint:errcheck

		sc := bufio.NewScanner(f)
		for sc.Scan() {
			add(sc.Text())
		}
		if err := sc.Err(); err != nil {
			return nil, eris.Wrap(err, "read ids file")
		}
	}

	return ids, nil
}

func init() {
	batchCmd.Flags().StringVar(&batchIDsFile, "ids-file", "", "file with one organization id per line")
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 0, "worker pool size (default from config)")
	batchCmd.Flags().StringVar(&batchRequester, "requester", "cli", "who requested this run")
	rootCmd.AddCommand(batchCmd)
}
