package main

import (
	"fmt"
	"strings"

	"lattice/config"
	"lattice/sdk"
)

// connect resolves the target node from --addr, --context or the
// current context, in that order, and dials its API.
func connect() (*sdk.Client, error) {
	addr := flagAddr
	if addr == "" {
		cfg, err := config.Load()
		if err != nil {
			return nil, err
		}
		name := flagContext
		if name == "" {
			name = cfg.CurrentContext
		}
		if name == "" {
			return nil, fmt.Errorf("no node selected: pass --addr or set a context (lattice context add)")
		}
		ctx, ok := cfg.Contexts[name]
		if !ok {
			return nil, fmt.Errorf("context %q not found", name)
		}
		addr = ctx.Address
	}
	return sdk.Dial(addr)
}

// splitRoute parses the CLI's comma-separated route notation.
func splitRoute(s string) []string {
	var hops []string
	for _, hop := range strings.Split(s, ",") {
		hop = strings.TrimSpace(hop)
		if hop != "" {
			hops = append(hops, hop)
		}
	}
	return hops
}
