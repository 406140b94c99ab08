package main

import (
	"fmt"
	"os"

	"github.com/legit-games/authcode-service/generates"
	"github.com/spf13/cobra"
)

func newKeygenCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate an ES256 signing key",
		Long: `Generate a P-256 private key for signing access tokens and write it
as a PEM file. Point keys.private_key_path at the file to use it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := generates.GenerateSigningKey()
			if err != nil {
				return err
			}
			pemBytes, err := key.EncodePrivateKeyPEM()
			if err != nil {
				return err
			}
			if out == "" || out == "-" {
				_, err = cmd.OutOrStdout().Write(pemBytes)
				return err
			}
			if err := os.WriteFile(out, pemBytes, 0o600); err != nil {
				return fmt.Errorf("write key: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote key %s to %s\n", key.KeyID(), out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	return cmd
}
