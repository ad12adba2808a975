// Package daemon assembles and runs a node: runtime, transports, node
// manager and the supporting probes.
package daemon

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"

	systemd "github.com/coreos/go-systemd/v22/daemon"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"lattice"
	"lattice/internal/telemetry"
	"lattice/node"
	"lattice/runtime"
	"lattice/transport/tcp"
)

// Options configures one daemon run.
type Options struct {
	NodeName string
	NodeDir  string

	// APIAddress is the TCP address the management API listens on.
	APIAddress string

	SkipDefaults           bool
	EnableCredentialChecks bool

	// AuthoritiesPath points at a YAML trust context file, empty for
	// none.
	AuthoritiesPath string
	ProjectID       string

	// ControllerRoute is the route orchestrator requests are proxied
	// over, empty when the node is not enrolled.
	ControllerRoute []string

	// SkipClockProbe disables the NTP skew probe.
	SkipClockProbe bool
}

// Run brings up a node and blocks until ctx is cancelled. The node's
// management API is reachable over TCP at Options.APIAddress for the
// whole lifetime of the run.
func Run(ctx context.Context, opts Options) error {
	shutdownTelemetry := telemetry.Setup("latticed")
	defer func() { _ = shutdownTelemetry(context.Background()) }()

	rt := runtime.NewNode()
	driver := tcp.New(rt)
	defer func() { _ = driver.Close() }()

	bound, err := driver.Listen(opts.APIAddress)
	if err != nil {
		return fmt.Errorf("listen api: %w", err)
	}

	authorities, err := loadAuthorities(opts.AuthoritiesPath)
	if err != nil {
		return err
	}

	var projectID []byte
	if opts.ProjectID != "" {
		projectID = []byte(opts.ProjectID)
	}

	mgr, err := node.Create(ctx, node.Options{
		Name: opts.NodeName,
		Dir:  opts.NodeDir,
		APITransport: lattice.Transport{
			Type:    lattice.TransportTCP,
			Mode:    lattice.TransportListen,
			Address: bound,
		},
		Driver:                 driver,
		Runtime:                rt,
		SkipDefaults:           opts.SkipDefaults,
		EnableCredentialChecks: opts.EnableCredentialChecks,
		Authorities:            authorities,
		ProjectID:              projectID,
		ControllerRoute:        opts.ControllerRoute,
	})
	if err != nil {
		return fmt.Errorf("create node: %w", err)
	}
	defer func() { _ = mgr.Close() }()

	if err := rt.Start(node.WorkerAddress, mgr); err != nil {
		return fmt.Errorf("start node manager: %w", err)
	}
	slog.Info("Node is running.", "name", opts.NodeName, "api", bound)

	if _, err := systemd.SdNotify(false, systemd.SdNotifyReady); err != nil {
		slog.Error("Failed to notify systemd that the daemon is ready.", "err", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	if !opts.SkipClockProbe {
		g.Go(func() error {
			probeClock(ctx)
			return nil
		})
	}
	g.Go(func() error {
		<-ctx.Done()
		return ctx.Err()
	})

	err = g.Wait()
	if err == context.Canceled {
		return nil
	}
	return err
}

// authoritiesFile is the on-disk trust context: exported authority
// identities in base64, each with the address it is reachable at.
type authoritiesFile struct {
	Authorities []struct {
		Identity string `yaml:"identity"`
		Address  string `yaml:"address"`
	} `yaml:"authorities"`
}

func loadAuthorities(path string) (*node.AuthoritiesConfig, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read authorities file: %w", err)
	}
	var file authoritiesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse authorities file: %w", err)
	}

	cfg := &node.AuthoritiesConfig{}
	for i, a := range file.Authorities {
		ident, err := base64.StdEncoding.DecodeString(a.Identity)
		if err != nil {
			return nil, fmt.Errorf("authority %d: decode identity: %w", i, err)
		}
		cfg.Authorities = append(cfg.Authorities, node.AuthorityConfig{
			Identity: ident,
			Address:  a.Address,
		})
	}
	return cfg, nil
}
