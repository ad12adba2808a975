package channel

import (
	"log/slog"
	"slices"

	"lattice"
	"lattice/identity"
	"lattice/runtime"
)

// Listener accepts inbound secure channel handshakes and spawns one
// responder channel per initiator. With an empty authorized list it
// accepts any peer identity; trust decisions are deferred to
// credential exchange.
type Listener struct {
	local      *identity.Identity
	authorized []string
}

// NewListener builds a listener for the given local identity.
func NewListener(local *identity.Identity, authorized []string) *Listener {
	return &Listener{local: local, authorized: slices.Clone(authorized)}
}

// CreateListener starts a listener worker at addr.
func CreateListener(n *runtime.Node, addr runtime.Address, local *identity.Identity, authorized []string) error {
	return n.Start(addr, NewListener(local, authorized))
}

func (l *Listener) Initialize(*runtime.Context) error { return nil }

// Handle spawns a responder for each handshake opener and hands it the
// first message. Anything else arriving at the listener is a protocol
// error from a confused peer.
func (l *Listener) Handle(ctx *runtime.Context, msg runtime.Message) error {
	f, ok := decodeFrame(msg.Payload)
	if !ok || f.Kind != kindHandshake {
		return lattice.Invalidf("secure channel listener received a non-handshake frame")
	}

	addr := runtime.RandomAddress()
	responder := newResponder(l.local, l.authorized)
	if err := ctx.Node().Start(addr, responder); err != nil {
		return err
	}

	slog.Debug("Accepted secure channel handshake.", "responder", addr)

	return ctx.Node().Route(runtime.Message{
		Onward:  runtime.Route{addr},
		Return:  msg.Return,
		Payload: msg.Payload,
	})
}
