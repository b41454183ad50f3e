package secrets

import (
	"context"
	"fmt"
	"os"

	infisical "github.com/infisical/go-sdk"

	"github.com/nodeforge/nodeforge/internal/types"
)

// MasterSecret resolves the vault master password. A configured
// environment variable wins; otherwise the secret is fetched from
// Infisical using machine-identity credentials taken from the
// environment.
func MasterSecret(ctx context.Context, cfg types.VaultConfig) (string, error) {
	if cfg.MasterSecretEnv != "" {
		secret := os.Getenv(cfg.MasterSecretEnv)
		if secret == "" {
			return "", fmt.Errorf("environment variable %s is not set", cfg.MasterSecretEnv)
		}
		return secret, nil
	}

	client, err := initializeInfisical(ctx, cfg.InfisicalSiteURL)
	if err != nil {
		return "", fmt.Errorf("authentication failed: %w", err)
	}

	env := cfg.InfisicalEnv
	if env == "" {
		env = "prod"
	}

	secret, err := client.Secrets().Retrieve(infisical.RetrieveSecretOptions{
		SecretKey:   cfg.InfisicalSecretKey,
		Environment: env,
		ProjectID:   cfg.InfisicalProjectID,
		SecretPath:  "/",
	})
	if err != nil {
		return "", fmt.Errorf("error retrieving master secret: %w", err)
	}

	return secret.SecretValue, nil
}

func initializeInfisical(ctx context.Context, siteURL string) (infisical.InfisicalClientInterface, error) {
	if siteURL == "" {
		siteURL = "https://app.infisical.com"
	}

	client := infisical.NewInfisicalClient(ctx, infisical.Config{
		SiteUrl:          siteURL,
		AutoTokenRefresh: true,
		SilentMode:       true,
	})

	clientID := os.Getenv("INFISICAL_CLIENT_ID")
	clientSecret := os.Getenv("INFISICAL_CLIENT_SECRET")
	if clientID == "" || clientSecret == "" {
		return nil, fmt.Errorf("INFISICAL_CLIENT_ID and INFISICAL_CLIENT_SECRET must be set")
	}

	if _, err := client.Auth().UniversalAuthLogin(clientID, clientSecret); err != nil {
		return nil, err
	}

	return client, nil
}
