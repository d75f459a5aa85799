package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sulphurninja/oceanlinux-sub002/cmd/commands/provisioncmd"
	"github.com/sulphurninja/oceanlinux-sub002/cmd/commands/requests"
	"github.com/sulphurninja/oceanlinux-sub002/cmd/commands/serve"
	"github.com/sulphurninja/oceanlinux-sub002/cmd/commands/synccmd"
)

// rootCmd represents the base command when called without any subcommands.
func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orchestrator",
		Short: "VPS lifecycle orchestrator",
		Long: `orchestrator bridges paid hosting orders to running virtual servers
across multiple upstream providers: the Hostycare reseller API,
any number of Virtualizor hypervisor panels, and Hetzner Cloud.

Quick start:
  orchestrator serve                     # HTTP API + background state sync
  orchestrator provision --order <id>    # provision one order
  orchestrator requests list             # review pending action requests`,
	}

	cmd.PersistentFlags().String("config", "", "path to the config file")

	cmd.AddCommand(serve.NewCommand())
	cmd.AddCommand(provisioncmd.NewCommand())
	cmd.AddCommand(synccmd.NewCommand())
	cmd.AddCommand(requests.NewCommand())

	return cmd
}

// Execute runs the root command. Called by main.main().
func Execute() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
