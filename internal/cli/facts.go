package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nodeforge/nodeforge/internal/ssh"
)

var factsServerID string

var factsCmd = &cobra.Command{
	Use:   "facts",
	Short: "Gather basic system facts from a server",
	Long: `Connects to the server over SSH and probes OS release, kernel,
architecture and uptime. Probes are independent; a failing probe
reports "unknown" instead of aborting.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if factsServerID == "" {
			return fmt.Errorf("--server is required")
		}

		config, err := loadConfig()
		if err != nil {
			return err
		}

		logger, err := newLogger()
		if err != nil {
			return err
		}
		defer logger.Sync()

		ctx, cancel := commandContext()
		defer cancel()

		server, err := findServer(config, factsServerID)
		if err != nil {
			return err
		}

		credVault, err := openVault(ctx, config)
		if err != nil {
			return err
		}

		session, err := dialServer(server, config, credVault, logger)
		if err != nil {
			return err
		}
		defer session.Close()

		facts := ssh.GatherFacts(session, logger)

		out, err := json.MarshalIndent(facts, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	factsCmd.Flags().StringVar(&factsServerID, "server", "", "Server id to probe")
}
