package node

import (
	"context"
	"log/slog"
	"time"

	"lattice"
	"lattice/api"
	"lattice/channel"
	"lattice/runtime"
)

// channelTimeout bounds how long a secure channel handshake may take.
const channelTimeout = time.Minute

// handleCreateSecureChannel starts an initiator toward the listener at
// the end of the request's route and waits for the handshake to
// complete before replying.
func (m *Manager) handleCreateSecureChannel(ctx context.Context, req api.Request, _ []string) (api.Response, error) {
	var body CreateSecureChannelRequest
	if err := api.DecodeBody(req.Body, &body); err != nil {
		return api.Response{}, lattice.Invalidf("%v", err)
	}
	if len(body.Route) == 0 {
		return api.Response{}, lattice.Invalidf("a route to the listener is required")
	}

	ident, err := m.Identity()
	if err != nil {
		return api.Response{}, err
	}

	addr := runtime.RandomAddress()
	ch, err := channel.CreateInitiator(m.rt, addr, toRoute(body.Route), ident)
	if err != nil {
		return api.Response{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, channelTimeout)
	defer cancel()
	peer, err := ch.Await(ctx)
	if err != nil {
		_ = m.rt.Stop(addr)
		return api.Response{}, err
	}

	if len(body.AuthorizedIdentifiers) > 0 && !contains(body.AuthorizedIdentifiers, peer.ID) {
		_ = m.rt.Stop(addr)
		return api.Response{}, lattice.Invalidf("peer %s is not an authorized identifier", peer.ID)
	}

	m.registry.addChannel(SecureChannelInfo{
		Addr:   addr,
		Route:  routeString(body.Route),
		PeerID: peer.ID,
		ch:     ch,
	})
	slog.Info("Established secure channel.", "addr", addr, "peer", peer.ID)
	return api.OK(req.ID, CreateSecureChannelResponse{Addr: string(addr), PeerID: peer.ID})
}

func (m *Manager) handleDeleteSecureChannel(_ context.Context, req api.Request, _ []string) (api.Response, error) {
	var body DeleteSecureChannelRequest
	if err := api.DecodeBody(req.Body, &body); err != nil {
		return api.Response{}, lattice.Invalidf("%v", err)
	}

	info, ok := m.registry.removeChannel(body.Addr)
	if !ok {
		return api.Response{}, lattice.NotFoundf("secure channel %s does not exist", body.Addr)
	}
	if err := m.rt.Stop(info.Addr); err != nil {
		return api.Response{}, err
	}
	slog.Info("Deleted secure channel.", "addr", info.Addr)
	return api.OK(req.ID, DeleteSecureChannelResponse{Addr: body.Addr})
}

func (m *Manager) handleShowSecureChannel(_ context.Context, req api.Request, _ []string) (api.Response, error) {
	var body ShowSecureChannelRequest
	if err := api.DecodeBody(req.Body, &body); err != nil {
		return api.Response{}, lattice.Invalidf("%v", err)
	}

	info, ok := m.registry.channel(body.Addr)
	if !ok {
		return api.Response{}, lattice.NotFoundf("secure channel %s does not exist", body.Addr)
	}
	return api.OK(req.ID, SecureChannelStatus{
		Addr:   string(info.Addr),
		Route:  info.Route,
		PeerID: info.PeerID,
	})
}

func (m *Manager) handleListSecureChannels(_ context.Context, req api.Request, _ []string) (api.Response, error) {
	var list SecureChannelList
	for _, info := range m.registry.listChannels() {
		list.Items = append(list.Items, SecureChannelStatus{
			Addr:   string(info.Addr),
			Route:  info.Route,
			PeerID: info.PeerID,
		})
	}
	return api.OK(req.ID, list)
}

// handleCreateChannelListener starts a secure channel listener at the
// requested address.
func (m *Manager) handleCreateChannelListener(_ context.Context, req api.Request, _ []string) (api.Response, error) {
	var body CreateSecureChannelListenerRequest
	if err := api.DecodeBody(req.Body, &body); err != nil {
		return api.Response{}, lattice.Invalidf("%v", err)
	}
	if body.Addr == "" {
		return api.Response{}, lattice.Invalidf("a listener address is required")
	}

	ident, err := m.Identity()
	if err != nil {
		return api.Response{}, err
	}
	err = channel.CreateListener(m.rt, runtime.Address(body.Addr), ident, body.AuthorizedIdentifiers)
	if err != nil {
		return api.Response{}, err
	}

	m.registry.addListener(body.Addr)
	slog.Info("Started secure channel listener.", "addr", body.Addr)
	return api.OK(req.ID, nil)
}

func (m *Manager) handleListChannelListeners(_ context.Context, req api.Request, _ []string) (api.Response, error) {
	return api.OK(req.ID, SecureChannelListenerList{Addrs: m.registry.listListeners()})
}

func contains(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}
