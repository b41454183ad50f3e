package cli

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nodeforge/nodeforge/internal/agent"
)

var deployServerID string

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Package the agent and install it on a server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if deployServerID == "" {
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

		server, err := findServer(config, deployServerID)
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

		cache, err := agent.NewArchiveCache(24 * time.Hour)
		if err != nil {
			logger.Warn("archive cache unavailable, packaging fresh", zap.Error(err))
		}

		packager := agent.NewPackager(config.Agent.SourceDir)
		deployer := agent.NewDeployer(packager, cache, config.Agent, logger)

		if err := deployer.Deploy(session); err != nil {
			return fmt.Errorf("deploy to %s failed: %w", server.ID, err)
		}
		if err := deployer.Verify(session); err != nil {
			return fmt.Errorf("agent on %s did not come up: %w", server.ID, err)
		}

		color.Green("✔ Agent %s deployed to %s", packager.Version(), server.ID)
		return nil
	},
}

func init() {
	deployCmd.Flags().StringVar(&deployServerID, "server", "", "Server id to deploy the agent to")
}
