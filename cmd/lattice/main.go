package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"lattice/internal/logging"
	"lattice/internal/support/buildinfo"
)

// connection flags shared by every command that talks to a node.
var (
	flagAddr    string
	flagContext string
)

func main() {
	var debug bool

	if err := logging.Configure(logging.LevelWarn); err != nil {
		_, _ = os.Stderr.WriteString("configure logger: " + err.Error() + "\n")
		os.Exit(1)
	}

	root := &cobra.Command{
		Use:           "lattice",
		Short:         "Manage lattice nodes",
		Version:       buildinfo.String(),
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := logging.LevelWarn
			if debug {
				level = logging.LevelDebug
			}
			return logging.Configure(level)
		},
	}
	root.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&flagAddr, "addr", "", "Node API address (overrides the context)")
	root.PersistentFlags().StringVar(&flagContext, "context", "", "Context name to use")

	root.AddCommand(contextCmd())
	root.AddCommand(statusCmd())
	root.AddCommand(tcpCmd())
	root.AddCommand(vaultCmd())
	root.AddCommand(identityCmd())
	root.AddCommand(secureChannelCmd())
	root.AddCommand(serviceCmd())
	root.AddCommand(forwarderCmd())
	root.AddCommand(portalCmd())
	root.AddCommand(credentialCmd())
	root.AddCommand(messageCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
