// Command approvalctl is the operator CLI for the service approval store.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "approvalctl",
	Short: "Operate the service approval store",
	Long: `approvalctl inspects and maintains the service approval store.

Available commands:
  migrate   - Apply pending database migrations
  verify    - Check a verification hash the way the public page does
  approvals - Inspect the approvals of a service order
  audit     - Print the audit trail of an entity`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("APPROVALS_CONFIG"), "path to the YAML configuration file")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(approvalsCmd)
	rootCmd.AddCommand(auditCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
