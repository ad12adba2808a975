package node

import (
	"context"
	"log/slog"
	"time"

	"lattice"
	"lattice/api"
	"lattice/runtime"
	"lattice/services"
)

const forwarderTimeout = 30 * time.Second

// forwarderClient is the persistent local end of a forwarding relay.
// It registers with a remote forwarding service on startup, then passes
// relayed traffic on to the workers the relayed route names. It has to
// stay alive for as long as the relay exists, since the relay's route
// back terminates at this worker.
type forwarderClient struct {
	route      runtime.Route
	registered bool
	res        chan forwarderResult
}

type forwarderResult struct {
	relay string
	err   error
}

func newForwarderClient(route runtime.Route) *forwarderClient {
	return &forwarderClient{route: route, res: make(chan forwarderResult, 1)}
}

func (f *forwarderClient) Initialize(ctx *runtime.Context) error {
	if err := ctx.Send(f.route, services.RegisterForwarder()); err != nil {
		f.res <- forwarderResult{err: err}
		return err
	}
	return nil
}

func (f *forwarderClient) Handle(ctx *runtime.Context, msg runtime.Message) error {
	if !f.registered {
		f.registered = true
		f.res <- forwarderResult{relay: string(msg.Payload)}
		return nil
	}
	if len(msg.Onward) == 0 {
		slog.Warn("Dropping relayed message with no onward route.")
		return nil
	}
	return ctx.Forward(msg)
}

func (f *forwarderClient) await(ctx context.Context) (string, error) {
	select {
	case r := <-f.res:
		return r.relay, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// handleCreateForwarder registers a forwarding relay with the
// forwarding service at the end of the request's route. The reply
// carries the relay address remote peers can send through.
func (m *Manager) handleCreateForwarder(ctx context.Context, req api.Request, _ []string) (api.Response, error) {
	var body CreateForwarderRequest
	if err := api.DecodeBody(req.Body, &body); err != nil {
		return api.Response{}, lattice.Invalidf("%v", err)
	}
	if len(body.Route) == 0 {
		return api.Response{}, lattice.Invalidf("a route to the forwarding service is required")
	}

	client := newForwarderClient(toRoute(body.Route))
	addr := runtime.RandomAddress()
	if err := m.rt.Start(addr, client); err != nil {
		return api.Response{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, forwarderTimeout)
	defer cancel()
	relay, err := client.await(ctx)
	if err != nil {
		_ = m.rt.Stop(addr)
		return api.Response{}, err
	}
	if relay == "" {
		_ = m.rt.Stop(addr)
		return api.Response{}, lattice.Internalf("forwarding service returned no relay address")
	}

	info := ForwarderInfo{RelayAddr: relay, Route: routeString(body.Route)}
	m.registry.addForwarder(info)
	slog.Info("Created forwarder.", "relay", relay)
	return api.OK(req.ID, ForwarderStatus(info))
}

func (m *Manager) handleListForwarders(_ context.Context, req api.Request, _ []string) (api.Response, error) {
	var list []ForwarderStatus
	for _, info := range m.registry.listForwarders() {
		list = append(list, ForwarderStatus(info))
	}
	return api.OK(req.ID, list)
}
