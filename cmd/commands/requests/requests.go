// Package requests lists and decides pending action requests from the
// command line.
package requests

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/sulphurninja/oceanlinux-sub002/internal/app"
	"github.com/sulphurninja/oceanlinux-sub002/internal/domain"
)

// NewCommand returns the requests command and its subcommands.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "requests",
		Short: "Manage server action approval requests",
	}

	cmd.AddCommand(newListCommand())
	cmd.AddCommand(newDecideCommand("approve", "Approve a pending request and execute its action"))
	cmd.AddCommand(newDecideCommand("reject", "Reject a pending request"))

	return cmd
}

func newListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List action requests by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			status, _ := cmd.Flags().GetString("status")

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
			defer cancel()

			list, err := a.Approval.List(ctx, domain.RequestStatus(status))
			if err != nil {
				return err
			}
			return printJSON(cmd, list)
		},
	}
	cmd.Flags().String("status", string(domain.RequestPending), "request status to list")
	return cmd
}

func newDecideCommand(use, short string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			id, _ := cmd.Flags().GetString("id")
			admin, _ := cmd.Flags().GetString("admin")
			notes, _ := cmd.Flags().GetString("notes")
			if id == "" {
				return fmt.Errorf("--id is required")
			}
			if admin == "" {
				return fmt.Errorf("--admin is required")
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
			defer cancel()

			decide := a.Approval.Approve
			if use == "reject" {
				decide = a.Approval.Reject
			}
			req, err := decide(ctx, id, admin, notes)
			if err != nil {
				return err
			}
			return printJSON(cmd, req)
		},
	}
	cmd.Flags().String("id", "", "request id")
	cmd.Flags().String("admin", "", "deciding admin id")
	cmd.Flags().String("notes", "", "optional decision notes")
	return cmd
}

func openApp(cmd *cobra.Command) (*app.App, error) {
	configPath, _ := cmd.Flags().GetString("config")
	a, err := app.New(configPath)
	if err != nil {
		return nil, fmt.Errorf("startup failed: %w", err)
	}
	return a, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
