package portal

import (
	"fmt"
	"log/slog"
	"net"
	"slices"

	"lattice/runtime"
)

// Inlet listens on a local TCP address and streams each accepted
// connection along a route toward an outlet.
type Inlet struct {
	node     *runtime.Node
	route    runtime.Route
	listener net.Listener
}

// NewInlet starts an inlet listening on listen, streaming toward the
// outlet reachable via route. It returns the bound address.
func NewInlet(node *runtime.Node, listen string, route runtime.Route) (*Inlet, string, error) {
	ln, err := net.Listen("tcp", listen)
	if err != nil {
		return nil, "", fmt.Errorf("inlet listen %s: %w", listen, err)
	}
	in := &Inlet{node: node, route: slices.Clone(route), listener: ln}
	go in.acceptLoop()
	return in, ln.Addr().String(), nil
}

// Close stops accepting connections.
func (in *Inlet) Close() error {
	return in.listener.Close()
}

func (in *Inlet) acceptLoop() {
	for {
		conn, err := in.listener.Accept()
		if err != nil {
			return
		}
		if err := in.startSession(conn); err != nil {
			slog.Error("Inlet failed to start session.", "err", err)
			_ = conn.Close()
		}
	}
}

// startSession registers a session worker that writes returned chunks
// to the connection, and pumps reads from the connection along the
// portal route.
func (in *Inlet) startSession(conn net.Conn) error {
	addr := runtime.RandomAddress()
	if err := in.node.Start(addr, &inletSession{conn: conn}); err != nil {
		return err
	}

	go func() {
		defer func() { _ = in.node.Stop(addr) }()
		buf := make([]byte, chunkSize)
		for {
			n, err := conn.Read(buf)
			if n > 0 {
				if err := in.node.Route(runtime.Message{
					Onward:  slices.Clone(in.route),
					Return:  runtime.Route{addr},
					Payload: slices.Clone(buf[:n]),
				}); err != nil {
					return
				}
			}
			if err != nil {
				// Signal end of stream to the outlet side.
				_ = in.node.Route(runtime.Message{
					Onward: slices.Clone(in.route),
					Return: runtime.Route{addr},
				})
				return
			}
		}
	}()
	return nil
}

// inletSession writes relayed chunks back to one accepted connection.
type inletSession struct {
	conn net.Conn
}

func (s *inletSession) Initialize(*runtime.Context) error { return nil }

func (s *inletSession) Handle(ctx *runtime.Context, msg runtime.Message) error {
	if len(msg.Payload) == 0 {
		return s.conn.Close()
	}
	if _, err := s.conn.Write(msg.Payload); err != nil {
		return fmt.Errorf("inlet write: %w", err)
	}
	return nil
}
