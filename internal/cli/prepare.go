package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nodeforge/nodeforge/internal/notification"
	"github.com/nodeforge/nodeforge/internal/prepare"
	"github.com/nodeforge/nodeforge/internal/ssh"
	"github.com/nodeforge/nodeforge/internal/types"
	"github.com/nodeforge/nodeforge/internal/ui"
	"github.com/nodeforge/nodeforge/internal/vault"
)

var (
	prepareServerID string
	prepareVerbose  bool
)

var prepareCmd = &cobra.Command{
	Use:   "prepare",
	Short: "Bootstrap Docker on remote servers over SSH",
	RunE: func(cmd *cobra.Command, args []string) error {
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

		store, err := openStore(config)
		if err != nil {
			return err
		}
		defer store.Close()

		credVault, err := openVault(ctx, config)
		if err != nil {
			return err
		}

		servers := config.Servers
		if prepareServerID != "" {
			server, err := findServer(config, prepareServerID)
			if err != nil {
				return err
			}
			servers = []types.Server{server}
		}
		if len(servers) == 0 {
			return fmt.Errorf("no servers configured")
		}

		ui.PrintBanner()

		engine := prepare.NewEngine(store, logger, 4)

		for _, server := range servers {
			server := server
			var reporter prepare.Reporter = ui.NewStepSpinner(server.ID)
			if prepareVerbose {
				reporter = ui.NewVerboseReporter(server.ID)
			}
			dial := func() (prepare.Session, error) {
				return dialServer(server, config, credVault, logger)
			}
			if err := engine.Start(ctx, server.ID, dial, reporter); err != nil {
				color.Red("✗ %s: %v", server.ID, err)
			}
		}

		if err := engine.Wait(ctx); err != nil {
			return err
		}

		notifier := notification.New()
		notifier.Send("nodeforge", fmt.Sprintf("Preparation finished for %d server(s)", len(servers)))

		color.Green("✔ Preparation finished for %d server(s)", len(servers))
		return nil
	},
}

func init() {
	prepareCmd.Flags().StringVar(&prepareServerID, "server", "", "Prepare a single server by id")
	prepareCmd.Flags().BoolVar(&prepareVerbose, "verbose", false, "Show a scrolling pane of step transitions")
}

// dialServer decrypts the server's stored credentials and opens an SSH
// session with the configured timeouts.
func dialServer(server types.Server, config *types.Config, credVault *vault.Vault, logger *zap.Logger) (prepare.Session, error) {
	creds, err := serverCredentials(server, credVault)
	if err != nil {
		return nil, err
	}
	return ssh.Connect(server, creds, config.SSH, logger)
}

// serverCredentials decrypts the credential blob stored for a server and
// maps it onto the SSH credential set.
func serverCredentials(server types.Server, credVault *vault.Vault) (ssh.Credentials, error) {
	fields, err := credVault.Decrypt(server.EncryptedCredentials)
	if err != nil {
		return ssh.Credentials{}, fmt.Errorf("failed to decrypt credentials for %s: %w", server.ID, err)
	}

	return ssh.Credentials{
		Password:   fields["password"],
		PrivateKey: fields["private_key"],
		Passphrase: fields["passphrase"],
	}, nil
}
