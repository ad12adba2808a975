package node

import (
	"context"
	"log/slog"

	"lattice"
	"lattice/api"
	"lattice/runtime"
)

func (m *Manager) handleNodeStatus(_ context.Context, req api.Request, _ []string) (api.Response, error) {
	return api.OK(req.ID, m.Status())
}

func (m *Manager) transportList(mode lattice.TransportMode) TransportList {
	var list TransportList
	for alias, tr := range m.transports {
		if tr.Mode != mode {
			continue
		}
		list.Items = append(list.Items, TransportStatus{
			Alias:   alias,
			Type:    tr.Type,
			Mode:    tr.Mode,
			Address: tr.Address,
		})
	}
	return list
}

func (m *Manager) handleListConnections(_ context.Context, req api.Request, _ []string) (api.Response, error) {
	return api.OK(req.ID, m.transportList(lattice.TransportConnect))
}

func (m *Manager) handleListTCPListeners(_ context.Context, req api.Request, _ []string) (api.Response, error) {
	return api.OK(req.ID, m.transportList(lattice.TransportListen))
}

// handleCreateConnection dials a peer. The returned alias doubles as
// the runtime address of the connection's sender worker, so it can be
// used directly as a route hop.
func (m *Manager) handleCreateConnection(_ context.Context, req api.Request, _ []string) (api.Response, error) {
	var body CreateTransportRequest
	if err := api.DecodeBody(req.Body, &body); err != nil {
		return api.Response{}, lattice.Invalidf("%v", err)
	}
	if body.Type != lattice.TransportTCP || body.Mode != lattice.TransportConnect {
		return api.Response{}, lattice.Invalidf("unsupported transport %s %s", body.Type, body.Mode)
	}

	sender, err := m.driver.Connect(body.Address)
	if err != nil {
		return api.Response{}, err
	}

	alias := string(sender)
	m.transports[alias] = lattice.Transport{
		Type:    lattice.TransportTCP,
		Mode:    lattice.TransportConnect,
		Address: body.Address,
	}
	slog.Info("Connected transport.", "address", body.Address, "alias", alias)
	return api.OK(req.ID, TransportStatus{
		Alias:   alias,
		Type:    lattice.TransportTCP,
		Mode:    lattice.TransportConnect,
		Address: body.Address,
	})
}

func (m *Manager) handleCreateTCPListener(_ context.Context, req api.Request, _ []string) (api.Response, error) {
	var body CreateTransportRequest
	if err := api.DecodeBody(req.Body, &body); err != nil {
		return api.Response{}, lattice.Invalidf("%v", err)
	}
	if body.Type != lattice.TransportTCP || body.Mode != lattice.TransportListen {
		return api.Response{}, lattice.Invalidf("unsupported transport %s %s", body.Type, body.Mode)
	}

	bound, err := m.driver.Listen(body.Address)
	if err != nil {
		return api.Response{}, err
	}

	alias := string(runtime.RandomAddress())
	m.transports[alias] = lattice.Transport{
		Type:    lattice.TransportTCP,
		Mode:    lattice.TransportListen,
		Address: bound,
	}
	slog.Info("Started transport listener.", "address", bound, "alias", alias)
	return api.OK(req.ID, TransportStatus{
		Alias:   alias,
		Type:    lattice.TransportTCP,
		Mode:    lattice.TransportListen,
		Address: bound,
	})
}

// handleDeleteTransport tears down a connection or listener by alias.
// The API listener itself cannot be deleted.
func (m *Manager) handleDeleteTransport(_ context.Context, req api.Request, _ []string) (api.Response, error) {
	var body DeleteTransportRequest
	if err := api.DecodeBody(req.Body, &body); err != nil {
		return api.Response{}, lattice.Invalidf("%v", err)
	}
	if body.Alias == m.apiTransportAlias {
		return api.Response{}, lattice.Invalidf("the api transport cannot be deleted")
	}

	tr, ok := m.transports[body.Alias]
	if !ok {
		return api.Response{}, lattice.NotFoundf("transport %s does not exist", body.Alias)
	}
	if err := m.driver.Disconnect(tr.Address); err != nil {
		return api.Response{}, err
	}
	delete(m.transports, body.Alias)
	slog.Info("Deleted transport.", "address", tr.Address, "alias", body.Alias)
	return api.OK(req.ID, nil)
}
