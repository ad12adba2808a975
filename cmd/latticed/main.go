package main

import (
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"lattice/daemon"
	"lattice/internal/logging"
	"lattice/internal/support/buildinfo"
)

func main() {
	if err := logging.Configure(logging.LevelInfo); err != nil {
		_, _ = os.Stderr.WriteString("configure logger: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := rootCmd().Execute(); err != nil {
		slog.Error("command failed", "err", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		name            string
		nodeDir         string
		apiAddress      string
		authoritiesPath string
		projectID       string
		controllerRoute []string
		skipDefaults    bool
		credChecks      bool
		debug           bool
		logFormat       string
	)

	cmd := &cobra.Command{
		Use:     "latticed",
		Short:   "Lattice node daemon",
		Version: buildinfo.String(),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := logging.LevelInfo
			if debug {
				level = logging.LevelDebug
			}
			return logging.ConfigureFormat(level, logFormat)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if nodeDir == "" {
				nodeDir = defaultNodeDir(name)
			}
			return daemon.Run(ctx, daemon.Options{
				NodeName:               name,
				NodeDir:                nodeDir,
				APIAddress:             apiAddress,
				SkipDefaults:           skipDefaults,
				EnableCredentialChecks: credChecks,
				AuthoritiesPath:        authoritiesPath,
				ProjectID:              projectID,
				ControllerRoute:        controllerRoute,
			})
		},
	}

	cmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	cmd.PersistentFlags().StringVar(&logFormat, "log-format", logging.FormatText, "Log output format (text or json)")
	cmd.Flags().StringVar(&name, "name", "default", "Node name")
	cmd.Flags().StringVar(&nodeDir, "node-dir", "", "Node state directory (defaults to ~/.lattice/nodes/<name>)")
	cmd.Flags().StringVar(&apiAddress, "api", "127.0.0.1:4000", "Management API listen address")
	cmd.Flags().StringVar(&authoritiesPath, "authorities", "", "YAML file with trusted authority identities")
	cmd.Flags().StringVar(&projectID, "project-id", "", "Project this node belongs to")
	cmd.Flags().StringSliceVar(&controllerRoute, "controller-route", nil, "Route to the orchestrator controller")
	cmd.Flags().BoolVar(&skipDefaults, "skip-defaults", false, "Start without default services, vault or identity")
	cmd.Flags().BoolVar(&credChecks, "enable-credential-checks", false, "Require a full trust context at startup")
	return cmd
}

func defaultNodeDir(name string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".lattice", "nodes", name)
	}
	return filepath.Join(home, ".lattice", "nodes", name)
}
