package node

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"lattice"
	"lattice/api"
	"lattice/vault"
)

// handleCreateVault creates the node vault, optionally at a caller
// chosen path. A node has at most one vault; a second create conflicts.
func (m *Manager) handleCreateVault(_ context.Context, req api.Request, _ []string) (api.Response, error) {
	var body CreateVaultRequest
	if req.HasBody {
		if err := api.DecodeBody(req.Body, &body); err != nil {
			return api.Response{}, lattice.Invalidf("%v", err)
		}
	}
	if m.vault != nil {
		return api.Error(req.ID, api.StatusConflict, "vault already exists"), nil
	}

	path := body.Path
	if path == "" {
		path = filepath.Join(m.dir, defaultVaultFile)
	}
	v, err := vault.Open(path)
	if err != nil {
		return api.Response{}, fmt.Errorf("open vault: %w", err)
	}
	if err := m.setVault(v); err != nil {
		return api.Response{}, err
	}
	err = m.config.Update(func(s *configState) { s.VaultPath = path })
	if err != nil {
		return api.Response{}, err
	}

	slog.Info("Created node vault.", "path", path)
	return api.OK(req.ID, nil)
}
