package api

import (
	"context"
	"strings"
)

// maxSegments caps dispatchable path depth. Longer paths never match.
const maxSegments = 5

// Handler serves one routed endpoint. args carries positional captures
// in pattern order.
type Handler func(ctx context.Context, req Request, args []string) (Response, error)

// Table is a declarative (method, segment-pattern) route table.
// Patterns are slash-separated literals with "*" marking a positional
// capture; lookups prefer the candidate with the most literal segments,
// so "node/tcp/connection" wins over "node/tcp/*".
type Table struct {
	routes []route
}

type route struct {
	method   Method
	segments []string
	literals int
	handler  Handler
}

// Handle registers a pattern. Registration order breaks literal-count
// ties, so register the more specific entry first if counts are equal.
func (t *Table) Handle(method Method, pattern string, h Handler) {
	segments := splitPath(pattern)
	literals := 0
	for _, s := range segments {
		if s != "*" {
			literals++
		}
	}
	t.routes = append(t.routes, route{
		method:   method,
		segments: segments,
		literals: literals,
		handler:  h,
	})
}

// Lookup resolves (method, path) to a handler and its captured
// segments. The second return is false when no pattern matches.
func (t *Table) Lookup(method Method, path string) (Handler, []string, bool) {
	segments := splitPath(path)
	if len(segments) == 0 || len(segments) > maxSegments {
		return nil, nil, false
	}

	var best *route
	var bestArgs []string
	for i := range t.routes {
		r := &t.routes[i]
		args, ok := r.match(method, segments)
		if !ok {
			continue
		}
		if best == nil || r.literals > best.literals {
			best = r
			bestArgs = args
		}
	}
	if best == nil {
		return nil, nil, false
	}
	return best.handler, bestArgs, true
}

func (r *route) match(method Method, segments []string) ([]string, bool) {
	if r.method != method || len(r.segments) != len(segments) {
		return nil, false
	}
	var args []string
	for i, want := range r.segments {
		if want == "*" {
			args = append(args, segments[i])
			continue
		}
		if want != segments[i] {
			return nil, false
		}
	}
	return args, true
}

func splitPath(path string) []string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
