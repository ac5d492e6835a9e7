package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/parlatext/parlatext/internal/submit"
	"github.com/parlatext/parlatext/internal/upload"
)

// submitOutput is the filtered output for a finished submission
type submitOutput struct {
	JobID    string `json:"job_id"`
	Cached   bool   `json:"cached"`
	CachedAt string `json:"cached_at,omitempty"`
}

func init() {
	submitCmd.Flags().String("language", "", "Language hint (e.g. en, de)")
	submitCmd.Flags().Int("num-speakers", 0, "Exact speaker count (exclusive with min/max)")
	submitCmd.Flags().Int("min-speakers", 0, "Minimum speaker count")
	submitCmd.Flags().Int("max-speakers", 0, "Maximum speaker count")
	submitCmd.Flags().Bool("quiet", false, "Suppress progress output")
}

var submitCmd = &cobra.Command{
	Use:   "submit <file>",
	Short: "Submit a file for transcription",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, closeStore, err := openStore()
		if err != nil {
			return err
		}
		defer closeStore()

		opts := submit.Options{}
		opts.Language, _ = cmd.Flags().GetString("language")
		opts.NumSpeakers = intFlagPtr(cmd, "num-speakers")
		opts.MinSpeakers = intFlagPtr(cmd, "min-speakers")
		opts.MaxSpeakers = intFlagPtr(cmd, "max-speakers")

		quiet, _ := cmd.Flags().GetBool("quiet")
		var onProgress submit.ProgressFunc
		if !quiet {
			var lastStage submit.Stage
			onProgress = func(p submit.Progress) {
				if p.Stage != lastStage {
					lastStage = p.Stage
					fmt.Printf("\n%s", p.Stage)
				}
				fmt.Printf("\r%s %3d%%", p.Stage, p.Percent)
			}
		}

		submitter := submit.New(apiClient, upload.New(apiClient), st)
		response, err := submitter.Submit(cmd.Context(), args[0], opts, onProgress)
		if !quiet {
			fmt.Println()
		}
		if err != nil {
			return err
		}

		output := submitOutput{
			JobID:  response.JobID,
			Cached: response.Cached,
		}
		if response.CachedAt != nil {
			output.CachedAt = response.CachedAt.String()
		}

		prettyJSON, err := json.MarshalIndent(output, "", "  ")
		if err != nil {
			return fmt.Errorf("error formatting response: %w", err)
		}
		fmt.Println(string(prettyJSON))
		return nil
	},
}

// intFlagPtr returns a pointer to the flag's value, or nil when the flag was
// not provided.
func intFlagPtr(cmd *cobra.Command, name string) *int {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	value, _ := cmd.Flags().GetInt(name)
	return &value
}

// GetSubmitCmd returns the submit command
func GetSubmitCmd() *cobra.Command {
	return submitCmd
}
