package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/BizzBuzzCreations/BBC-MEET-FRONTEND/internal/client/vault"
)

func newVaultCmd(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{Use: "vault", Short: "Manage the key that seals stored credentials"}
	cmd.AddCommand(&cobra.Command{Use: "init", Short: "Generate the local vault key", RunE: func(cmd *cobra.Command, args []string) error {
		d, err := o.deps(cmd)
		if err != nil {
			return err
		}
		if _, err := d.Vault.Generate(); err != nil {
			if errors.Is(err, vault.ErrExists) {
				d.Out.Info(fmt.Sprintf("Vault key already present at %s", d.Vault.Path()))
				return nil
			}
			return err
		}
		d.Out.Success(fmt.Sprintf("Vault key generated at %s", d.Vault.Path()))
		return nil
	}})
	cmd.AddCommand(&cobra.Command{Use: "status", Short: "Show vault status", RunE: func(cmd *cobra.Command, args []string) error {
		d, err := o.deps(cmd)
		if err != nil {
			return err
		}
		if d.Vault.Exists() {
			fmt.Fprintln(cmd.OutOrStdout(), "Vault: ready")
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), "Vault: not initialized")
		}
		return nil
	}})
	return cmd
}
