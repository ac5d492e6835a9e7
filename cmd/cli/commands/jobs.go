package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/parlatext/parlatext/config"
	"github.com/parlatext/parlatext/internal/logger"
	"github.com/parlatext/parlatext/internal/notify"
	"github.com/parlatext/parlatext/internal/realtime"
	"github.com/parlatext/parlatext/internal/tracker"
	"github.com/parlatext/parlatext/pkg/types"
)

// jobOutput represents the filtered output for a job
type jobOutput struct {
	JobID    string `json:"job_id"`
	Filename string `json:"filename"`
	Status   string `json:"status"`
	Progress int    `json:"progress,omitempty"`
	Error    string `json:"error,omitempty"`
}

// jobListOutput represents the filtered output for a list of jobs
type jobListOutput struct {
	Jobs       []jobOutput `json:"jobs"`
	Total      int         `json:"total"`
	Page       int         `json:"page"`
	TotalPages int         `json:"total_pages"`
	Offline    bool        `json:"offline,omitempty"`
}

func init() {
	jobsCmd.AddCommand(listJobsCmd)
	jobsCmd.AddCommand(getJobCmd)
	jobsCmd.AddCommand(cancelJobCmd)
	jobsCmd.AddCommand(watchJobsCmd)

	listJobsCmd.Flags().IntP("page", "p", 1, "Page to fetch")
	listJobsCmd.Flags().Int("per-page", tracker.DefaultPerPage, "Jobs per page")

	getJobCmd.Flags().StringP("id", "i", "", "Job ID to fetch")
	_ = getJobCmd.MarkFlagRequired("id")

	cancelJobCmd.Flags().StringP("id", "i", "", "Job ID to cancel")
	_ = cancelJobCmd.MarkFlagRequired("id")

	watchJobsCmd.Flags().Duration("interval", tracker.DefaultPollInterval, "Poll interval")
}

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Manage transcription jobs",
}

var listJobsCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked jobs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		page, _ := cmd.Flags().GetInt("page")
		perPage, _ := cmd.Flags().GetInt("per-page")

		st, closeStore, err := openStore()
		if err != nil {
			return err
		}
		defer closeStore()

		jobTracker := tracker.New(tracker.Config{
			API:     apiClient,
			Store:   st,
			PerPage: perPage,
		})
		view := jobTracker.Fetch(cmd.Context(), page)
		return printView(view)
	},
}

var getJobCmd = &cobra.Command{
	Use:   "get",
	Short: "Get a specific job",
	RunE: func(cmd *cobra.Command, _ []string) error {
		jobID, _ := cmd.Flags().GetString("id")

		st, closeStore, err := openStore()
		if err != nil {
			return err
		}
		defer closeStore()

		records, err := st.List()
		if err != nil {
			return err
		}
		var token string
		for _, record := range records {
			if record.JobID == jobID {
				token = record.AccessToken
				break
			}
		}
		if token == "" {
			return fmt.Errorf("job %s is not tracked on this device", jobID)
		}

		job, err := apiClient.GetJob(cmd.Context(), jobID, token)
		if err != nil {
			return fmt.Errorf("error fetching job: %w", err)
		}

		prettyJSON, err := json.MarshalIndent(toJobOutput(job), "", "  ")
		if err != nil {
			return fmt.Errorf("error formatting response: %w", err)
		}
		fmt.Println(string(prettyJSON))
		return nil
	},
}

var cancelJobCmd = &cobra.Command{
	Use:   "cancel",
	Short: "Cancel a pending job and forget it locally",
	RunE: func(cmd *cobra.Command, _ []string) error {
		jobID, _ := cmd.Flags().GetString("id")

		st, closeStore, err := openStore()
		if err != nil {
			return err
		}
		defer closeStore()

		jobTracker := tracker.New(tracker.Config{API: apiClient, Store: st})
		// Fetch first so cancel can check the job is still pending
		jobTracker.Fetch(cmd.Context(), 1)
		if err := jobTracker.Cancel(cmd.Context(), jobID); err != nil {
			return err
		}

		fmt.Printf("job %s cancelled\n", jobID)
		return nil
	},
}

var watchJobsCmd = &cobra.Command{
	Use:   "watch",
	Short: "Continuously track job statuses (poll + live updates)",
	RunE: func(cmd *cobra.Command, _ []string) error {
		interval, _ := cmd.Flags().GetDuration("interval")

		st, closeStore, err := openStore()
		if err != nil {
			return err
		}
		defer closeStore()

		var sub realtime.Subscriber
		if redisURL := config.GetEnv(envRedisURL, ""); redisURL != "" {
			sub, err = realtime.NewRedisSubscriber(cmd.Context(), redisURL)
			if err != nil {
				logger.Warnf("live updates unavailable: %v", err)
				sub = nil
			} else {
				defer func() { _ = sub.Close() }()
			}
		}

		// An interactive watch session counts as "already looking at the
		// result": desktop alerts would be redundant, so they are
		// suppressed. A detached session (output piped or redirected)
		// notifies normally.
		interactive := isatty.IsTerminal(os.Stdout.Fd())
		notifier := notify.NewManager(st, func() bool { return interactive })

		jobTracker := tracker.New(tracker.Config{
			API:      apiClient,
			Store:    st,
			Sub:      sub,
			Notifier: notifier,
			Interval: interval,
		})

		go jobTracker.Run(cmd.Context())

		for {
			select {
			case <-cmd.Context().Done():
				return nil
			case view := <-jobTracker.Views():
				renderWatch(view)
			}
		}
	},
}

func toJobOutput(job types.Job) jobOutput {
	return jobOutput{
		JobID:    job.ID,
		Filename: job.Filename,
		Status:   job.Status.String(),
		Progress: job.Progress,
		Error:    job.ErrorMessage,
	}
}

func printView(view tracker.View) error {
	output := jobListOutput{
		Jobs:       make([]jobOutput, len(view.Jobs)),
		Total:      view.Total,
		Page:       view.Page,
		TotalPages: view.TotalPages,
		Offline:    view.Offline,
	}
	for i, job := range view.Jobs {
		output.Jobs[i] = toJobOutput(job)
	}

	prettyJSON, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		return fmt.Errorf("error formatting response: %w", err)
	}
	fmt.Println(string(prettyJSON))
	return nil
}

func renderWatch(view tracker.View) {
	fmt.Printf("--- %s", time.Now().Format(time.TimeOnly))
	if view.Offline {
		fmt.Print("  (offline, data may be stale)")
	}
	fmt.Println()
	for _, job := range view.Jobs {
		line := fmt.Sprintf("%-36s  %-10s  %s", job.ID, job.Status, job.Filename)
		if job.Status == types.JobStatusProcessing {
			line += fmt.Sprintf("  %d%%", job.Progress)
			if job.ProgressStage != "" {
				line += " " + job.ProgressStage
			}
		}
		fmt.Println(line)
	}
}

// GetJobsCmd returns the jobs command
func GetJobsCmd() *cobra.Command {
	return jobsCmd
}
