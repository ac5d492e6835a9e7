package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check the API server's health",
	RunE: func(cmd *cobra.Command, _ []string) error {
		response, err := apiClient.HealthCheck(cmd.Context())
		if err != nil {
			return fmt.Errorf("error checking health: %w", err)
		}

		prettyJSON, err := json.MarshalIndent(response, "", "  ")
		if err != nil {
			return fmt.Errorf("error formatting response: %w", err)
		}
		fmt.Println(string(prettyJSON))
		return nil
	},
}

// GetHealthCmd returns the health command
func GetHealthCmd() *cobra.Command {
	return healthCmd
}
