package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/EnzoMH/cradcrawl-enrich/internal/enrich"
	"github.com/EnzoMH/cradcrawl-enrich/internal/model"
	"github.com/EnzoMH/cradcrawl-enrich/internal/store"
)

var (
	candLimit    int
	candCategory string
	candStats    bool
)

var candidatesCmd = &cobra.Command{
	Use:   "candidates",
	Short: "List organizations with missing contact fields",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		candidates, err := enrich.ListCandidates(ctx, env.Store, store.CandidateFilter{
			Category: candCategory,
			Limit:    candLimit,
		})
		if err != nil {
			return err
		}

		if candStats {
			printStats(enrich.Stats(candidates))
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tPRIORITY\tMISSING")
		for _, c := range candidates {
			missing := make([]string, len(c.Missing))
			for i, f := range c.Missing {
				missing[i] = string(f)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				c.Org.ID, c.Org.Name, c.Priority, strings.Join(missing, ","))
		}
		return w.Flush()
	},
}

func printStats(s enrich.CandidateStats) {
	fmt.Printf("candidates: %d\n", s.Total)
	for _, p := range []model.Priority{model.PriorityHigh, model.PriorityMedium, model.PriorityLow} {
		if n := s.ByPriority[p]; n > 0 {
			fmt.Printf("  %-6s %d\n", p, n)
		}
	}
	fmt.Println("grades:")
	for _, g := range []enrich.Grade{enrich.GradeA, enrich.GradeB, enrich.GradeC, enrich.GradeD, enrich.GradeE, enrich.GradeF} {
		if n := s.ByGrade[g]; n > 0 {
			fmt.Printf("  %s %d\n", g, n)
		}
	}
}

func init() {
	candidatesCmd.Flags().IntVar(&candLimit, "limit", 100, "max candidates to list")
	candidatesCmd.Flags().StringVar(&candCategory, "category", "", "filter by organization category")
	candidatesCmd.Flags().BoolVar(&candStats, "stats", false, "print priority and grade distribution instead of rows")
	rootCmd.AddCommand(candidatesCmd)
}
