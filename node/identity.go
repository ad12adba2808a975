package node

import (
	"context"
	"fmt"
	"log/slog"

	"lattice"
	"lattice/api"
	"lattice/identity"
)

// handleCreateIdentity creates the node identity, keyed in the node
// vault. A node has at most one identity; a second create conflicts.
func (m *Manager) handleCreateIdentity(_ context.Context, req api.Request, _ []string) (api.Response, error) {
	if m.identity != nil {
		return api.Error(req.ID, api.StatusConflict, "identity already exists"), nil
	}
	if m.vault == nil {
		return api.Response{}, lattice.NotFoundf("vault does not exist")
	}

	ident, err := identity.Create(m.vault)
	if err != nil {
		return api.Response{}, fmt.Errorf("create identity: %w", err)
	}
	if err := m.setIdentity(ident); err != nil {
		return api.Response{}, err
	}

	exported, err := ident.Export()
	if err != nil {
		return api.Response{}, fmt.Errorf("export identity: %w", err)
	}
	err = m.config.Update(func(s *configState) { s.Identity = exported })
	if err != nil {
		return api.Response{}, err
	}

	slog.Info("Created node identity.", "id", ident.ID())
	return api.OK(req.ID, CreateIdentityResponse{ID: ident.ID()})
}

func (m *Manager) handleShowIdentityShort(_ context.Context, req api.Request, _ []string) (api.Response, error) {
	ident, err := m.Identity()
	if err != nil {
		return api.Response{}, err
	}
	return api.OK(req.ID, ShortIdentityResponse{ID: ident.ID()})
}

func (m *Manager) handleShowIdentityLong(_ context.Context, req api.Request, _ []string) (api.Response, error) {
	ident, err := m.Identity()
	if err != nil {
		return api.Response{}, err
	}
	exported, err := ident.Export()
	if err != nil {
		return api.Response{}, err
	}
	return api.OK(req.ID, LongIdentityResponse{Identity: exported})
}
