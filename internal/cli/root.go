package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nodeforge/nodeforge/internal/db"
	"github.com/nodeforge/nodeforge/internal/secrets"
	"github.com/nodeforge/nodeforge/internal/types"
	"github.com/nodeforge/nodeforge/internal/vault"
)

var (
	configPath string

	rootCmd = &cobra.Command{
		Use:   "nodeforge",
		Short: "Remote node bootstrap and agent control plane",
		Long: `nodeforge brings bare Linux hosts under management: it bootstraps
Docker over SSH, deploys a control agent, and speaks JSON-RPC to it.`,
		SilenceUsage: true,
	}
)

func Execute() {
	c := make(chan os.Signal, 1)

	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		os.Exit(1)
	}()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "./config.json", "Path to config file")

	rootCmd.AddCommand(prepareCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(factsCmd)
	rootCmd.AddCommand(deployCmd)
	rootCmd.AddCommand(agentCmd)
	rootCmd.AddCommand(vaultCmd)
}

func loadConfig() (*types.Config, error) {
	configFile, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config types.Config
	if err := json.Unmarshal(configFile, &config); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	config.SSH = config.SSH.WithDefaults()
	return &config, nil
}

func newLogger() (*zap.Logger, error) {
	if os.Getenv("NODEFORGE_DEBUG") != "" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func openStore(config *types.Config) (*db.PostgresDB, error) {
	uriEnv := config.DB.URIEnv
	if uriEnv == "" {
		uriEnv = "NODEFORGE_DATABASE_URL"
	}
	uri := os.Getenv(uriEnv)
	if uri == "" {
		return nil, fmt.Errorf("environment variable %s is not set", uriEnv)
	}

	database, err := db.NewPostgresDB(db.Config{URI: uri})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := database.EnsureSchema(); err != nil {
		database.Close()
		return nil, err
	}

	return database, nil
}

func openVault(ctx context.Context, config *types.Config) (*vault.Vault, error) {
	master, err := secrets.MasterSecret(ctx, config.Vault)
	if err != nil {
		return nil, err
	}
	return vault.New(master), nil
}

func findServer(config *types.Config, serverID string) (types.Server, error) {
	for _, server := range config.Servers {
		if server.ID == serverID {
			return server, nil
		}
	}
	return types.Server{}, fmt.Errorf("server %q not found in config", serverID)
}

func commandContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Minute)
}
