package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/providencia/approvals/internal/config"
	"github.com/providencia/approvals/internal/container"
	"github.com/providencia/approvals/pkg/utils"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := bootstrap()
		if err != nil {
			return err
		}
		defer logger.Sync()

		bundle, err := container.ProvideDatabase(&cfg.ToContainerConfig().Database, logger)
		if err != nil {
			return err
		}
		defer bundle.Database.Close()

		fmt.Fprintf(cmd.OutOrStdout(), "database %s is up to date\n", cfg.Database.Path)
		return nil
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify <hash>",
	Short: "Check a verification hash",
	Long: `Look a verification hash up across all companies and print the
redacted proof shown on the public verification page. The attempt is
recorded in the audit trail.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(cmd.Context(), func(c *container.Container) error {
			result := c.Services().Verification.VerifyDocument(cmd.Context(), args[0])
			return printJSON(cmd.OutOrStdout(), result)
		})
	},
}

var approvalsCmd = &cobra.Command{
	Use:   "approvals",
	Short: "Inspect approvals",
}

var listOrderID string

var approvalsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the approvals of a service order, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(cmd.Context(), func(c *container.Container) error {
			approvals, err := c.Repositories().Approval.ListByOrderID(cmd.Context(), listOrderID)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTATUS\tMETHOD\tTOTAL\tCREATED\tHASH")
			for _, a := range approvals {
				fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%s\t%s\n",
					a.ID, a.Status, a.ApprovalMethod(), a.TotalValue,
					a.CreatedAt.Local().Format(time.DateTime), a.VerificationHash)
			}
			return w.Flush()
		})
	},
}

var auditCmd = &cobra.Command{
	Use:   "audit <entity-type> <entity-id>",
	Short: "Print the audit trail of an entity, oldest first",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(cmd.Context(), func(c *container.Container) error {
			entries, err := c.Repositories().Audit.ListByEntity(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), entries)
		})
	},
}

func init() {
	approvalsListCmd.Flags().StringVar(&listOrderID, "order", "", "service order id")
	_ = approvalsListCmd.MarkFlagRequired("order")
	approvalsCmd.AddCommand(approvalsListCmd)
}

func bootstrap() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load configuration: %w", err)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: "stderr",
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("initialize logger: %w", err)
	}
	return cfg, logger, nil
}

func withContainer(ctx context.Context, fn func(*container.Container) error) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer logger.Sync()

	c, err := container.NewContainer(cfg.ToContainerConfig(), logger)
	if err != nil {
		return err
	}
	if err := c.Start(ctx); err != nil {
		return err
	}
	defer c.Close()

	return fn(c)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
