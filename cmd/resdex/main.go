// Command resdex runs the resource discovery and matching engine.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/resdex/internal/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "resdex",
		Short: "Resource discovery and matching engine",
		Long: `resdex keeps a semantic index of database connections, APIs, knowledge
snippets and tools, kept in sync with their systems of record, and ranks them
against free-text requests.`,
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String("env", "", "config environment (config/<env>.yaml); defaults to $ENV or local")
	rootCmd.PersistentFlags().String("config", "", "explicit config file path; overrides --env")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newSyncCmd())
	rootCmd.AddCommand(newMatchCmd())
	rootCmd.AddCommand(newNotifyCmd())
	rootCmd.AddCommand(newMigrateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
