package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "sealctl",
		Short: "Enclave operator tooling",
		Long:  "Operator tooling for wallet identity files and key bootstrap",
	}

	rootCmd.AddCommand(NewIdentityCmd())
	rootCmd.AddCommand(NewBootstrapCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
