package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/forensicflow/forensicflow/config"
	"github.com/forensicflow/forensicflow/internal/store"
)

func insightsCMD() *cobra.Command {
	var cfgPath string

	var insights = &cobra.Command{
		Use:   "insights [case-id]",
		Short: "Print stored insights for a case",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)
			ctx := context.Background()
			st, err := store.NewWithDSN(ctx, cfg.Storage.Postgres.DSN())
			if err != nil {
				return err
			}
			defer st.DB.Close()

			recs, err := st.ListInsights(ctx, args[0])
			if err != nil {
				return err
			}
			if len(recs) == 0 {
				fmt.Println("no insights stored for this case")
				return nil
			}
			for _, rec := range recs {
				fmt.Printf("[%s] %.2f  %s\n", rec.Kind, rec.Confidence, rec.Title)
				if rec.Description != "" {
					fmt.Printf("    %s\n", rec.Description)
				}
			}
			return nil
		},
	}
	insights.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return insights
}
