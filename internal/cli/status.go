package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/nodeforge/nodeforge/internal/types"
)

var statusServerID string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the latest preparation run for a server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if statusServerID == "" {
			return fmt.Errorf("--server is required")
		}

		config, err := loadConfig()
		if err != nil {
			return err
		}

		store, err := openStore(config)
		if err != nil {
			return err
		}
		defer store.Close()

		prep, err := store.LatestPreparation(statusServerID)
		if err != nil {
			return err
		}
		if prep == nil {
			fmt.Printf("No preparation recorded for %s\n", statusServerID)
			return nil
		}

		printStatus(prep)

		logs, err := store.PreparationLogs(prep.ID)
		if err != nil {
			return err
		}
		for _, entry := range logs {
			marker := color.GreenString("ok")
			if entry.Status != "success" {
				marker = color.RedString("failed")
			}
			fmt.Printf("  %-22s %-6s %s\n", entry.Step, marker, entry.Timestamp.Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusServerID, "server", "", "Server id to inspect")
}

func printStatus(prep *types.ServerPreparation) {
	status := string(prep.Status)
	switch prep.Status {
	case types.StatusCompleted:
		status = color.GreenString(status)
	case types.StatusFailed:
		status = color.RedString(status)
	default:
		status = color.YellowString(status)
	}

	fmt.Printf("Server:       %s\n", prep.ServerID)
	fmt.Printf("Status:       %s\n", status)
	fmt.Printf("Current step: %s\n", prep.CurrentStep)
	if prep.DetectedOS != "" {
		fmt.Printf("OS family:    %s\n", prep.DetectedOS)
	}
	fmt.Printf("Started:      %s\n", prep.StartedAt.Format("2006-01-02 15:04:05"))
	if prep.CompletedAt != nil {
		fmt.Printf("Completed:    %s\n", prep.CompletedAt.Format("2006-01-02 15:04:05"))
	}
	if prep.ErrorMessage != "" {
		fmt.Printf("Error:        %s\n", prep.ErrorMessage)
	}
}
