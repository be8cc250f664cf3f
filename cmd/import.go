package main

import (
	"encoding/csv"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/EnzoMH/cradcrawl-enrich/internal/model"
	"github.com/EnzoMH/cradcrawl-enrich/internal/store"
)

var importCSVPath string

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import organizations from CSV",
	Long:  "Reads a CSV with a header row (name required; category, address, postal_code, phone, fax, email, homepage optional) and creates organization records.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		orgs, err := readOrganizationsCSV(importCSVPath)
		if err != nil {
			return err
		}
		if len(orgs) == 0 {
			zap.L().Info("no rows to import", zap.String("csv", importCSVPath))
			return nil
		}

		var created int64
		if pg, ok := env.Store.(*store.PostgresStore); ok {
			created, err = pg.BulkImportOrganizations(ctx, orgs)
			if err != nil {
				return eris.Wrap(err, "bulk import")
			}
		} else {
			for _, org := range orgs {
				if _, err := env.Store.CreateOrganization(ctx, org); err != nil {
					zap.L().Warn("row skipped",
						zap.String("name", org.Name),
						zap.Error(err),
					)
					continue
				}
				created++
			}
		}

		zap.L().Info("import complete",
			zap.Int64("created", created),
			zap.Int("rows", len(orgs)),
			zap.String("csv", importCSVPath),
		)
		return nil
	},
}

// readOrganizationsCSV parses the CSV by header name, so column order
// does not matter. Rows without a name are skipped.
func readOrganizationsCSV(path string) ([]model.Organization, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "open csv")
	}
	defer f.Close() //nolint:errcheck

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, eris.Wrap(err, "read csv header")
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	if _, ok := col["name"]; !ok {
		return nil, eris.New("csv has no name column")
	}

	get := func(row []string, key string) string {
		i, ok := col[key]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var orgs []model.Organization
	skipped := 0
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "read csv row")
		}

		name := get(row, "name")
		if name == "" {
			skipped++
			continue
		}
		orgs = append(orgs, model.Organization{
			Name:       name,
			Category:   get(row, "category"),
			Address:    get(row, "address"),
			PostalCode: get(row, "postal_code"),
			Phone:      get(row, "phone"),
			Fax:        get(row, "fax"),
			Email:      get(row, "email"),
			Homepage:   get(row, "homepage"),
		})
	}
	if skipped > 0 {
		zap.L().Warn("rows without a name skipped", zap.Int("skipped", skipped))
	}
	return orgs, nil
}

func init() {
	importCmd.Flags().StringVar(&importCSVPath, "csv", "", "path to CSV file (required)")
	_ = importCmd.MarkFlagRequired("csv")
	rootCmd.AddCommand(importCmd)
}
