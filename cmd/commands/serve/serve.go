// Package serve runs the orchestrator daemon: the HTTP API plus the
// background state-sync loop.
package serve

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sulphurninja/oceanlinux-sub002/internal/app"
	"github.com/sulphurninja/oceanlinux-sub002/internal/httpapi"
)

// NewCommand returns the serve command.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and background state sync",
		RunE:  run,
	}
	cmd.Flags().String("listen", "", "listen address (overrides config)")
	return cmd
}

func run(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	a, err := app.New(configPath)
	if err != nil {
		return fmt.Errorf("startup failed: %w", err)
	}
	defer a.Close()

	addr := a.Config.ListenAddr
	if flagAddr, _ := cmd.Flags().GetString("listen"); flagAddr != "" {
		addr = flagAddr
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go a.Syncer.Run(ctx)

	api := httpapi.New(a.Orders, a.Executor, a.Orchestrator, a.Bulk, a.Approval, a.Log)
	return api.Serve(ctx, addr)
}
