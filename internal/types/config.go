package types

import (
	"encoding/json"
	"fmt"
	"time"
)

type Config struct {
	Servers []Server     `json:"servers"`
	SSH     SSHConfig    `json:"ssh"`
	Agent   AgentConfig  `json:"agent"`
	Vault   VaultConfig  `json:"vault"`
	DB      DatabaseConf `json:"database"`
}

type Server struct {
	ID       string `json:"id"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`

	// EncryptedCredentials is a vault blob holding the SSH secrets for
	// this host (password, or private_key plus optional passphrase).
	EncryptedCredentials string `json:"encrypted_credentials"`
}

type SSHConfig struct {
	ConnectTimeout time.Duration `json:"-"`
	BannerTimeout  time.Duration `json:"-"`
	CommandTimeout time.Duration `json:"-"`
}

// UnmarshalJSON accepts human-friendly duration strings ("10s", "5m")
// in the config file.
func (c *SSHConfig) UnmarshalJSON(data []byte) error {
	var raw struct {
		ConnectTimeout string `json:"connect_timeout"`
		BannerTimeout  string `json:"banner_timeout"`
		CommandTimeout string `json:"command_timeout"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	parse := func(name, value string, out *time.Duration) error {
		if value == "" {
			return nil
		}
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
		*out = d
		return nil
	}

	if err := parse("connect_timeout", raw.ConnectTimeout, &c.ConnectTimeout); err != nil {
		return err
	}
	if err := parse("banner_timeout", raw.BannerTimeout, &c.BannerTimeout); err != nil {
		return err
	}
	return parse("command_timeout", raw.CommandTimeout, &c.CommandTimeout)
}

// WithDefaults fills unset timeouts.
func (c SSHConfig) WithDefaults() SSHConfig {
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 10 * time.Second
	}
	if c.BannerTimeout <= 0 {
		c.BannerTimeout = 30 * time.Second
	}
	if c.CommandTimeout <= 0 {
		c.CommandTimeout = 10 * time.Minute
	}
	return c
}

type AgentConfig struct {
	SourceDir   string `json:"source_dir"`
	RemoteDir   string `json:"remote_dir"`
	ProcessName string `json:"process_name"`
	ListenAddr  string `json:"listen_addr"`
}

type VaultConfig struct {
	// MasterSecretEnv names the environment variable holding the vault
	// master password. When empty the secret is fetched from Infisical.
	MasterSecretEnv string `json:"master_secret_env"`

	InfisicalSiteURL   string `json:"infisical_site_url,omitempty"`
	InfisicalProjectID string `json:"infisical_project_id,omitempty"`
	InfisicalSecretKey string `json:"infisical_secret_key,omitempty"`
	InfisicalEnv       string `json:"infisical_env,omitempty"`
}

type DatabaseConf struct {
	URIEnv string `json:"uri_env"`
}
