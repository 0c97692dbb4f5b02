package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/forensicflow/forensicflow/config"
	"github.com/forensicflow/forensicflow/internal/engine"
	"github.com/forensicflow/forensicflow/internal/evidence"
	"github.com/forensicflow/forensicflow/internal/store"
)

func ingestCMD() *cobra.Command {
	var cfgPath string
	var caseID string
	var caseName string

	var ingest = &cobra.Command{
		Use:   "ingest [file...]",
		Short: "Parse forensic export files and load them into a case",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)
			ctx := context.Background()
			st, err := store.NewWithDSN(ctx, cfg.Storage.Postgres.DSN())
			if err != nil {
				return err
			}
			defer st.DB.Close()

			if caseID == "" {
				if caseName == "" {
					caseName = "Imported case"
				}
				cs, err := st.CreateCase(ctx, caseName)
				if err != nil {
					return err
				}
				caseID = cs.ID
			}

			parser := &evidence.Parser{}
			total := 0
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				items, err := parser.Parse(filepath.Base(path), data)
				if err != nil {
					return fmt.Errorf("parse %s: %w", path, err)
				}
				for _, it := range items {
					if err := st.InsertEvidence(ctx, caseID, it); err != nil {
						return err
					}
				}
				total += len(items)
			}

			all, err := st.ListEvidence(ctx, caseID, 0)
			if err != nil {
				return err
			}
			analysis := engine.AnalyzeCase(all)
			if err := st.DeleteInsights(ctx, caseID); err != nil {
				return err
			}
			stored := 0
			for _, findings := range [][]engine.Finding{analysis.Flags, analysis.Patterns, analysis.Anomalies} {
				for _, f := range findings {
					if _, err := st.InsertInsight(ctx, store.InsightRecord{
						CaseID:      caseID,
						Kind:        f.Type,
						Title:       f.Title,
						Description: f.Description,
						Confidence:  f.Confidence,
						Metadata:    f.Metadata,
					}); err != nil {
						return err
					}
					stored++
				}
			}
			if err := st.SetCaseStatus(ctx, caseID, store.CaseStatusReady); err != nil {
				return err
			}

			fmt.Printf("case %s: ingested %d items (%d total), stored %d insights\n", caseID, total, len(all), stored)
			return nil
		},
	}
	ingest.Flags().StringVar(&caseID, "case", "", "existing case id (a new case is created when empty)")
	ingest.Flags().StringVar(&caseName, "name", "", "name for the new case")
	ingest.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return ingest
}
