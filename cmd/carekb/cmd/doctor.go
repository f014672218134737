package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/carekb/carekb/internal/output"
)

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check knowledge base health",
		Long: `Verify the metadata store loads, the vector index matches the chunk
count, and the embedding provider responds.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			knowledge, _, err := openKB()
			if err != nil {
				return err
			}

			status := knowledge.HealthCheck(cmd.Context())
			output.New(cmd.OutOrStdout()).HealthReport(status)
			if !status.Healthy {
				return errors.New("health check failed")
			}
			return nil
		},
	}
}
