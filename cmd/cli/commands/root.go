// Package commands implements the parlatext CLI
package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/parlatext/parlatext/config"
	"github.com/parlatext/parlatext/internal/store"
	v1 "github.com/parlatext/parlatext/pkg/api/v1/client"
	"github.com/parlatext/parlatext/pkg/api/v1/routes"
)

// flag names
const (
	flagServerAddress = "server-address"
)

// environment variable names
const (
	envServerAddress = "PARLATEXT_SERVER_ADDRESS"
	envDataDir       = "PARLATEXT_DATA_DIR"
	envRedisURL      = "PARLATEXT_REDIS_URL"
)

// dbFilename is the embedded store file inside the data directory
const dbFilename = "parlatext.db"

var (
	// apiClient is the shared API client instance
	apiClient v1.Client
	// serverAddress holds the target API server address. Flag parsing sets this.
	serverAddress string
)

// initClient initializes the API client
func initClient() error {
	var err error
	opts := v1.DefaultOptions()
	opts.BaseURL = serverAddress

	apiClient, err = v1.NewClient(opts)
	return err
}

// openStore opens the local job store in the configured data directory
func openStore() (*store.Store, func(), error) {
	dataDir := config.GetEnv(envDataDir, "")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, nil, fmt.Errorf("cannot determine home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".parlatext")
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("cannot create data directory: %w", err)
	}

	kv, err := store.NewSQLiteKV(filepath.Join(dataDir, dbFilename))
	if err != nil {
		return nil, nil, err
	}
	return store.New(kv), func() { _ = kv.Close() }, nil
}

func init() {
	// Set a basic default for the flag. PersistentPreRunE handles the env
	// var override.
	RootCmd.PersistentFlags().StringVarP(&serverAddress, flagServerAddress, "s", routes.DefaultBaseURL, "Address of the Parlatext API server (env: PARLATEXT_SERVER_ADDRESS)")

	RootCmd.AddCommand(GetSubmitCmd())
	RootCmd.AddCommand(GetJobsCmd())
	RootCmd.AddCommand(GetNotifyCmd())
	RootCmd.AddCommand(GetHealthCmd())
}

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "parlatext",
	Short: "Parlatext CLI - submit and track transcription jobs",
	Long: `Parlatext CLI submits audio and video files for transcription and tracks
the resulting jobs across restarts, network outages, and live updates.`,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		// Flag > env var > default
		if !cmd.Flags().Changed(flagServerAddress) {
			if envAddr := os.Getenv(envServerAddress); envAddr != "" {
				serverAddress = envAddr
			}
		}

		if serverAddress == "" {
			return fmt.Errorf("server address cannot be empty")
		}
		return initClient()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return RootCmd.Execute()
}
