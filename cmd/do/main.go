package main

import (
	"os"

	"github.com/flipwise/flipwise/cmd/do/cmd"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "do",
		Short:        "Development and operations tools for flipwise",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(cmd.DevCmd())
	rootCmd.AddCommand(cmd.MigrateCmd())
	rootCmd.AddCommand(cmd.WebhookCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
