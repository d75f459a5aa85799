// Package synccmd runs one reconciliation pass over active orders.
package synccmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/sulphurninja/oceanlinux-sub002/internal/app"
)

// NewCommand returns the sync command.
func NewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Reconcile stored order state with the providers once",
		RunE:  run,
	}
}

func run(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	a, err := app.New(configPath)
	if err != nil {
		return fmt.Errorf("startup failed: %w", err)
	}
	defer a.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	a.Syncer.SyncAll(ctx)
	return nil
}
