package services

import (
	"log/slog"
	"slices"

	"lattice/runtime"
)

// registerPayload is the message that asks the forwarding service for
// a relay address.
var registerPayload = []byte("register")

// Forwarding hands out relay workers: a registrant sends "register"
// and gets back the address of a fresh forwarder that relays every
// message it receives to the registrant's route.
type Forwarding struct{}

func (Forwarding) Initialize(*runtime.Context) error { return nil }

func (Forwarding) Handle(ctx *runtime.Context, msg runtime.Message) error {
	if string(msg.Payload) != string(registerPayload) {
		slog.Warn("Forwarding service received an unknown payload.")
		return nil
	}

	addr := runtime.RandomAddress()
	relay := &forwarder{to: slices.Clone(msg.Return)}
	if err := ctx.Node().Start(addr, relay); err != nil {
		return err
	}

	return ctx.Reply(msg, []byte(addr))
}

// forwarder relays messages to a fixed route. Hops left on the inbound
// onward route are preserved, so senders can address workers behind the
// registrant.
type forwarder struct {
	to runtime.Route
}

func (f *forwarder) Initialize(*runtime.Context) error { return nil }

func (f *forwarder) Handle(ctx *runtime.Context, msg runtime.Message) error {
	return ctx.Node().Route(runtime.Message{
		Onward:  append(slices.Clone(f.to), msg.Onward...),
		Return:  msg.Return,
		Payload: msg.Payload,
	})
}

// RegisterForwarder asks the forwarding service reachable via route for
// a relay back to returnRoute, returning the relay's address.
func RegisterForwarder() []byte { return registerPayload }
