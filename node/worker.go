package node

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"

	"lattice"
	"lattice/api"
	"lattice/runtime"
)

// Initialize starts the node's default services unless the node was
// created bare.
func (m *Manager) Initialize(ctx *runtime.Context) error {
	m.rtctx = ctx
	if m.skipDefaults {
		return nil
	}
	return m.startDefaultServices(ctx)
}

// Handle serves one management request. Envelopes that do not decode
// are dropped without a reply; every decodable request gets exactly one
// response echoing its id.
func (m *Manager) Handle(ctx *runtime.Context, msg runtime.Message) error {
	req, err := api.DecodeRequest(msg.Payload)
	if err != nil {
		slog.Warn("Dropping undecodable management request.", "err", err)
		return nil
	}

	res := m.dispatch(context.Background(), req)

	payload, err := api.Encode(res)
	if err != nil {
		slog.Error("Failed to encode management response.", "err", err)
		return nil
	}
	return ctx.Reply(msg, payload)
}

// dispatch routes a request through the table. Unrouted paths get a
// 400 naming the endpoint; handler failures are mapped onto the error
// taxonomy.
func (m *Manager) dispatch(ctx context.Context, req api.Request) api.Response {
	ctx, span := m.tracer.Start(ctx, "node.request")
	defer span.End()
	span.SetAttributes(
		attribute.String("request.method", req.Method.String()),
		attribute.String("request.path", req.Path),
	)

	h, args, ok := m.routes.Lookup(req.Method, req.Path)
	if !ok {
		slog.Warn("Rejecting request for unknown endpoint.",
			"method", req.Method, "path", req.Path)
		span.SetStatus(otelcodes.Error, "unknown endpoint")
		return api.Error(req.ID, api.StatusBadRequest, "Invalid endpoint: "+req.Path)
	}

	res, err := h(ctx, req, args)
	if err != nil {
		slog.Error("Request handler failed.",
			"method", req.Method, "path", req.Path, "err", err)
		span.SetStatus(otelcodes.Error, err.Error())
		return errorResponse(req.ID, err)
	}
	return res
}

func errorResponse(id uint32, err error) api.Response {
	switch {
	case errors.Is(err, lattice.ErrNotFound):
		return api.Error(id, api.StatusNotFound, err.Error())
	case errors.Is(err, lattice.ErrInvalid):
		return api.Error(id, api.StatusBadRequest, err.Error())
	default:
		return api.Error(id, api.StatusInternalError,
			"Failed to handle request: "+err.Error())
	}
}
