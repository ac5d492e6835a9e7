package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/parlatext/parlatext/internal/notify"
)

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Manage desktop notifications",
}

var enableNotifyCmd = &cobra.Command{
	Use:   "enable",
	Short: "Enable desktop notifications for finished jobs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		st, closeStore, err := openStore()
		if err != nil {
			return err
		}
		defer closeStore()

		manager := notify.NewManager(st, nil)
		if manager.Enabled() {
			fmt.Println("notifications already enabled")
			return nil
		}
		if err := manager.RequestPermission(); err != nil {
			return err
		}

		fmt.Println("notifications enabled")
		return nil
	},
}

func init() {
	notifyCmd.AddCommand(enableNotifyCmd)
}

// GetNotifyCmd returns the notify command
func GetNotifyCmd() *cobra.Command {
	return notifyCmd
}
