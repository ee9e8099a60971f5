package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/benhaq/sui-nautilus/pkg/identity"
)

var (
	identityDir     string
	identityName    string
	identityEncrypt bool
	overwrite       bool
)

// NewIdentityCmd creates the identity command group
func NewIdentityCmd() *cobra.Command {
	var cmd = &cobra.Command{
		Use:   "identity",
		Short: "Manage the enclave wallet identity",
	}
	cmd.AddCommand(newGenerateCmd())
	return cmd
}

func newGenerateCmd() *cobra.Command {
	var cmd = &cobra.Command{
		Use:   "generate",
		Short: "Generate a wallet key file, optionally Age-encrypted",
		Long:  "Generate a wallet key file, optionally Age-encrypted with a passphrase",
		RunE:  runGenerateIdentity,
	}

	cmd.Flags().StringVarP(&identityDir, "output-dir", "o", "identity", "Output directory for identity files")
	cmd.Flags().StringVarP(&identityName, "name", "n", "wallet", "Key file name")
	cmd.Flags().BoolVarP(&identityEncrypt, "encrypt", "e", false, "Encrypt the key with Age (recommended for production)")
	cmd.Flags().BoolVarP(&overwrite, "overwrite", "f", false, "Overwrite the key file if it already exists")

	return cmd
}

func runGenerateIdentity(cmd *cobra.Command, args []string) error {
	var passphrase string
	if identityEncrypt {
		var err error
		passphrase, err = requestPassword()
		if err != nil {
			return err
		}
	} else {
		fmt.Println("WARNING: Wallet key will NOT be encrypted. This is not recommended for production environments.")
		fmt.Println("Use --encrypt flag to enable encryption.")
	}

	keypair, err := identity.NewKeypair()
	if err != nil {
		return fmt.Errorf("generate wallet key: %w", err)
	}

	path, err := identity.SaveWalletSeed(identityDir, identityName, keypair.Seed(), passphrase, overwrite)
	if err != nil {
		return fmt.Errorf("save wallet key: %w", err)
	}

	fmt.Printf("Wallet key written to %s\n", path)
	fmt.Printf("Wallet address: %s\n", keypair.Address())
	return nil
}
