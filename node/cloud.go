package node

import (
	"context"
	"log/slog"
	"time"

	"lattice"
	"lattice/api"
)

// cloudTimeout bounds one proxied orchestrator round trip.
const cloudTimeout = 2 * time.Minute

// handleCloudProxy forwards a request to the controller verbatim and
// relays the controller's response back under the original request id.
func (m *Manager) handleCloudProxy(ctx context.Context, req api.Request, _ []string) (api.Response, error) {
	if len(m.controllerRoute) == 0 {
		return api.Response{}, lattice.Invalidf("no controller route is configured")
	}

	forwarded := req
	forwarded.ID = 0 // the upstream reply is matched by transport, not id
	payload, err := api.Encode(forwarded)
	if err != nil {
		return api.Response{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, cloudTimeout)
	defer cancel()
	raw, err := m.rt.Call(ctx, toRoute(m.controllerRoute), payload)
	if err != nil {
		return api.Response{}, err
	}

	res, err := api.DecodeResponse(raw)
	if err != nil {
		return api.Response{}, lattice.Internalf("malformed controller response: %v", err)
	}
	res.ID = req.ID
	slog.Debug("Proxied request to controller.",
		"method", req.Method, "path", req.Path, "status", res.Status)
	return res, nil
}

// handleSendMessage sends an arbitrary payload along a route and
// returns the raw reply.
func (m *Manager) handleSendMessage(ctx context.Context, req api.Request, _ []string) (api.Response, error) {
	var body SendMessageRequest
	if err := api.DecodeBody(req.Body, &body); err != nil {
		return api.Response{}, lattice.Invalidf("%v", err)
	}
	if len(body.Route) == 0 {
		return api.Response{}, lattice.Invalidf("a route is required")
	}

	ctx, cancel := context.WithTimeout(ctx, cloudTimeout)
	defer cancel()
	reply, err := m.rt.Call(ctx, toRoute(body.Route), body.Message)
	if err != nil {
		return api.Response{}, err
	}
	return api.OK(req.ID, reply)
}
