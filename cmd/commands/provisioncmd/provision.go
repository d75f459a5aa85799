// Package provisioncmd provisions orders from the command line, the
// same path the HTTP API uses.
package provisioncmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sulphurninja/oceanlinux-sub002/internal/app"
)

// NewCommand returns the provision command.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "provision",
		Short: "Provision one order or a batch",
		Long: `Provision places paid orders with their upstream provider and stores
the returned credentials. With --orders, eligible orders in the batch
are processed with bounded concurrency and isolated failures.

Examples:
  orchestrator provision --order 6617f1a2
  orchestrator provision --orders 6617f1a2,6617f1b3 --workers 8
  orchestrator provision --order 6617f1a2 --force`,
		RunE: run,
	}

	cmd.Flags().String("order", "", "order id to provision")
	cmd.Flags().String("orders", "", "comma-separated order ids for bulk provisioning")
	cmd.Flags().Bool("force", false, "re-provision even if the order is already active")

	return cmd
}

func run(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	a, err := app.New(configPath)
	if err != nil {
		return fmt.Errorf("startup failed: %w", err)
	}
	defer a.Close()

	orderID, _ := cmd.Flags().GetString("order")
	orderList, _ := cmd.Flags().GetString("orders")
	force, _ := cmd.Flags().GetBool("force")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	switch {
	case orderID != "":
		result, err := a.Orchestrator.Provision(ctx, orderID, force)
		if result != nil {
			printJSON(cmd, result)
		}
		return err
	case orderList != "":
		ids := strings.Split(orderList, ",")
		for i := range ids {
			ids[i] = strings.TrimSpace(ids[i])
		}
		summary, err := a.Bulk.ProvisionMany(ctx, ids)
		if summary != nil {
			printJSON(cmd, summary)
		}
		return err
	default:
		return fmt.Errorf("either --order or --orders is required")
	}
}

func printJSON(cmd *cobra.Command, v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		return
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
}
