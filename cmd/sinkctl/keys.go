package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stellarcarbon/sorocarbon/cmd/internal/passphrase"
	"github.com/stellarcarbon/sorocarbon/crypto"
)

func keysCmd() *cobra.Command {
	subCmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage encrypted account keys",
	}

	var (
		passEnv string
		force   bool
		light   bool
	)
	newCmd := &cobra.Command{
		Use:   "new <keystore>",
		Short: "Generate an account key and write it to an encrypted keystore",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pass, err := passphrase.NewSource(passEnv, "new keystore").WithConfirmation().Get()
			if err != nil {
				return err
			}
			key, err := crypto.GeneratePrivateKey()
			if err != nil {
				return err
			}
			params := crypto.StandardKeystore
			if light {
				params = crypto.LightKeystore
			}
			addr, err := crypto.SaveKeystore(args[0], key, pass, params, force)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), addr.String())
			return nil
		},
	}
	newCmd.Flags().StringVar(&passEnv, "pass-env", defaultPassEnv, "Environment variable holding the keystore passphrase")
	newCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing keystore file")
	newCmd.Flags().BoolVar(&light, "light", false, "Use cheap scrypt parameters (test keys only)")

	showCmd := &cobra.Command{
		Use:   "show <keystore>",
		Short: "Print the account address of a keystore",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := loadKey(args[0], passEnv)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), key.PubKey().Address().String())
			return nil
		},
	}
	showCmd.Flags().StringVar(&passEnv, "pass-env", defaultPassEnv, "Environment variable holding the keystore passphrase")

	subCmd.AddCommand(newCmd)
	subCmd.AddCommand(showCmd)
	return subCmd
}

func loadKey(path, passEnv string) (*crypto.PrivateKey, error) {
	pass, err := passphrase.NewSource(passEnv, "keystore").Get()
	if err != nil {
		return nil, err
	}
	return crypto.LoadKeystore(path, pass)
}
