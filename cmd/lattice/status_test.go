package main

import (
	"strings"
	"testing"

	"lattice"
)

func TestRenderStatus(t *testing.T) {
	out := renderStatus(lattice.NodeStatus{
		Name:           "edge-1",
		State:          "Running",
		WorkerCount:    7,
		PID:            12345,
		TransportCount: 2,
	})

	for _, want := range []string{"edge-1", "Running", "12345", "7", "2"} {
		if !strings.Contains(out, want) {
			t.Fatalf("rendered status %q is missing %q", out, want)
		}
	}
}
