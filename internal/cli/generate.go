package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opensource-finance/salespulse/internal/analytics"
	"github.com/opensource-finance/salespulse/internal/api"
	"github.com/opensource-finance/salespulse/internal/domain"
)

func newGenerateCommand(load loader) *cobra.Command {
	var start, end string

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a report for a date range and print it as JSON",
		Example: `  salespulse generate --start 2024-01-01 --end 2024-01-31`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rng, err := analytics.ParseDateRange(start, end)
			if err != nil {
				var verr *domain.ValidationError
				if errors.As(err, &verr) {
					return errors.New(verr.Message)
				}
				return err
			}

			cfg, err := load(cmd)
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.close()

			report, err := a.analytics.GenerateReport(cmd.Context(), rng)
			if err != nil {
				return fmt.Errorf("failed to generate report: %w", err)
			}
			return printJSON(cmd, api.NewReportResponse(report))
		},
	}

	cmd.Flags().StringVar(&start, "start", "", "first day of the range (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "last day of the range, inclusive (YYYY-MM-DD)")
	return cmd
}

func newReportsCommand(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "reports",
		Short: "Print the report history as JSON, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load(cmd)
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.close()

			reports, err := a.analytics.ListReports(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to get reports: %w", err)
			}
			return printJSON(cmd, api.NewReportSummaries(reports))
		},
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
