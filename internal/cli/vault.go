package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var vaultCmd = &cobra.Command{
	Use:   "vault",
	Short: "Encrypt and decrypt server credential blobs",
}

var vaultEncryptCmd = &cobra.Command{
	Use:   "encrypt <file>",
	Short: "Encrypt a JSON credential file into a vault blob",
	Long: `Reads a JSON object of credential fields (password, private_key,
passphrase) from the given file, encrypts it under the master secret,
and prints the blob to be stored in the config's encrypted_credentials
field. Pass "-" to read from stdin.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, cancel := commandContext()
		defer cancel()

		credVault, err := openVault(ctx, config)
		if err != nil {
			return err
		}

		var raw []byte
		if args[0] == "-" {
			raw, err = io.ReadAll(os.Stdin)
		} else {
			raw, err = os.ReadFile(args[0])
		}
		if err != nil {
			return err
		}

		var fields map[string]string
		if err := json.Unmarshal(raw, &fields); err != nil {
			return fmt.Errorf("credential file must be a flat JSON object of strings: %w", err)
		}

		blob, err := credVault.Encrypt(fields)
		if err != nil {
			return err
		}

		fmt.Println(blob)
		return nil
	},
}

var vaultDecryptCmd = &cobra.Command{
	Use:   "decrypt <server-id>",
	Short: "Decrypt a server's stored credentials",
	Long: `Decrypts the encrypted_credentials blob of the named server and
prints the credential fields as JSON. Secret values are printed in the
clear, so use with care.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, cancel := commandContext()
		defer cancel()

		credVault, err := openVault(ctx, config)
		if err != nil {
			return err
		}

		server, err := findServer(config, args[0])
		if err != nil {
			return err
		}

		fields, err := credVault.Decrypt(server.EncryptedCredentials)
		if err != nil {
			return err
		}

		out, err := json.MarshalIndent(fields, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	vaultCmd.AddCommand(vaultEncryptCmd)
	vaultCmd.AddCommand(vaultDecryptCmd)
}
