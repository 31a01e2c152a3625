package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/repomotion/repomotion/internal/config"
	"github.com/repomotion/repomotion/pkg/token"
)

var encryptTokenSecret string

var encryptTokenCmd = &cobra.Command{
	Use:   "encrypt-token <token>",
	Short: "Encrypt an access token for job submissions",
	Long: `Encrypt a plaintext access token with the daemon's secret key so
it can be sent in the access_token field of a job submission.

The secret comes from --secret, or from the configured secret.key when
--secret is omitted.`,
	Args: cobra.ExactArgs(1),
	RunE: runEncryptToken,
}

func init() {
	rootCmd.AddCommand(encryptTokenCmd)
	encryptTokenCmd.Flags().StringVar(&encryptTokenSecret, "secret", "", "secret key (overrides config)")
}

func runEncryptToken(cmd *cobra.Command, args []string) error {
	secret := encryptTokenSecret
	if secret == "" {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		secret = cfg.Secret.Key
	}
	if secret == "" {
		return fmt.Errorf("no secret key: pass --secret or set secret.key")
	}

	encrypted, err := token.Encrypt(args[0], secret)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), encrypted)
	return nil
}
