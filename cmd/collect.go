package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/naka-gawa/github-pr-exporter/internal/domain"
	"github.com/naka-gawa/github-pr-exporter/internal/gateway"
	"github.com/naka-gawa/github-pr-exporter/internal/usecase"
)

type failureOutput struct {
	Repository string              `json:"repository"`
	Kind       gateway.FailureKind `json:"kind"`
	Error      string              `json:"error"`
}

type collectOutput struct {
	Records  []domain.RepositoryMetricsRecord `json:"records"`
	Failures []failureOutput                  `json:"failures"`
	Summary  usecase.Summary                  `json:"summary"`
}

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Runs one collection pass and outputs it as JSON",
	Long:  `Collects pull request metrics for the configured repositories once and prints the records, the failures and a summary in JSON format. Repository failures do not change the exit code.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := setup(cmd)
		if err != nil {
			return err
		}

		result, err := rt.collector.Collect(cmd.Context(), rt.repos)
		if err != nil {
			return fmt.Errorf("failed to collect metrics: %w", err)
		}

		out := collectOutput{
			Records:  result.Records,
			Failures: make([]failureOutput, 0, len(result.Failures)),
			Summary:  usecase.Summarize(result),
		}
		for _, failure := range result.Failures {
			out.Failures = append(out.Failures, failureOutput{
				Repository: failure.Identity.String(),
				Kind:       failure.Kind,
				Error:      failure.Err.Error(),
			})
		}

		// Marshal the results into a pretty-printed JSON string.
		jsonData, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal results to JSON: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(jsonData))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(collectCmd)
}
