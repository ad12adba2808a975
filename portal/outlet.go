// Package portal bridges raw TCP sockets and the routing fabric. An
// inlet accepts local connections and streams their bytes along a
// route; an outlet at the far end of that route connects the stream to
// a target address. An empty chunk marks end of stream in both
// directions.
package portal

import (
	"fmt"
	"log/slog"
	"net"
	"slices"
	"strings"
	"sync"

	"lattice/runtime"
)

// chunkSize bounds one relayed read.
const chunkSize = 32 * 1024

// Outlet terminates portal streams by connecting each one to a fixed
// TCP target.
type Outlet struct {
	target string

	mu       sync.Mutex
	sessions map[string]net.Conn
}

// NewOutlet builds an outlet toward target.
func NewOutlet(target string) *Outlet {
	return &Outlet{target: target, sessions: make(map[string]net.Conn)}
}

// Target returns the outlet's TCP target address.
func (o *Outlet) Target() string { return o.target }

func (o *Outlet) Initialize(*runtime.Context) error { return nil }

func (o *Outlet) Handle(ctx *runtime.Context, msg runtime.Message) error {
	key := routeKey(msg.Return)

	o.mu.Lock()
	conn, ok := o.sessions[key]
	o.mu.Unlock()

	if !ok {
		if len(msg.Payload) == 0 {
			return nil // close for an unknown session
		}
		c, err := net.Dial("tcp", o.target)
		if err != nil {
			return fmt.Errorf("outlet dial %s: %w", o.target, err)
		}
		conn = c
		o.mu.Lock()
		o.sessions[key] = conn
		o.mu.Unlock()
		go o.readLoop(ctx, conn, slices.Clone(msg.Return), key)
	}

	if len(msg.Payload) == 0 {
		o.drop(key)
		return nil
	}
	if _, err := conn.Write(msg.Payload); err != nil {
		o.drop(key)
		return fmt.Errorf("outlet write: %w", err)
	}
	return nil
}

func (o *Outlet) readLoop(ctx *runtime.Context, conn net.Conn, back runtime.Route, key string) {
	buf := make([]byte, chunkSize)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			if err := ctx.Send(back, slices.Clone(buf[:n])); err != nil {
				slog.Debug("Outlet failed to send chunk.", "err", err)
				break
			}
		}
		if err != nil {
			break
		}
	}
	_ = ctx.Send(back, nil) // end of stream
	o.drop(key)
}

func (o *Outlet) drop(key string) {
	o.mu.Lock()
	conn, ok := o.sessions[key]
	if ok {
		delete(o.sessions, key)
	}
	o.mu.Unlock()
	if ok {
		_ = conn.Close()
	}
}

func routeKey(r runtime.Route) string {
	parts := make([]string, len(r))
	for i, a := range r {
		parts[i] = string(a)
	}
	return strings.Join(parts, "/")
}
