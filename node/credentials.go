package node

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fxamacker/cbor/v2"

	"lattice"
	"lattice/api"
	"lattice/services"
)

// credentialTimeout bounds round trips to remote credential services.
const credentialTimeout = 30 * time.Second

// handleGetCredential asks the authority reachable over the request's
// route to issue this node a credential, and caches it for later
// presentation.
func (m *Manager) handleGetCredential(ctx context.Context, req api.Request, _ []string) (api.Response, error) {
	var body GetCredentialRequest
	if err := api.DecodeBody(req.Body, &body); err != nil {
		return api.Response{}, lattice.Invalidf("%v", err)
	}
	if len(body.Route) == 0 {
		return api.Response{}, lattice.Invalidf("a route to the authority is required")
	}

	ident, err := m.Identity()
	if err != nil {
		return api.Response{}, err
	}
	if _, err := m.Authorities(); err != nil {
		return api.Response{}, err
	}
	if m.credential != nil && !body.Overwrite {
		return api.Error(req.ID, api.StatusConflict, "credential already obtained"), nil
	}

	exported, err := ident.Export()
	if err != nil {
		return api.Response{}, err
	}
	reply, err := m.callCredentialService(ctx, body.Route, services.CredentialRequest{
		Op:       "issue",
		Identity: exported,
	})
	if err != nil {
		return api.Response{}, err
	}
	if reply.Credential == nil {
		return api.Response{}, lattice.Internalf("authority returned no credential")
	}

	m.credential = reply.Credential
	slog.Info("Obtained credential.", "issuer", reply.Credential.Issuer)
	return api.OK(req.ID, reply.Credential)
}

// handlePresentCredential presents the cached credential to the
// credential exchange reachable over the request's route.
func (m *Manager) handlePresentCredential(ctx context.Context, req api.Request, _ []string) (api.Response, error) {
	var body PresentCredentialRequest
	if err := api.DecodeBody(req.Body, &body); err != nil {
		return api.Response{}, lattice.Invalidf("%v", err)
	}
	if len(body.Route) == 0 {
		return api.Response{}, lattice.Invalidf("a route to present over is required")
	}
	if _, err := m.Authorities(); err != nil {
		return api.Response{}, err
	}
	if m.credential == nil {
		return api.Response{}, lattice.NotFoundf("credential does not exist")
	}

	reply, err := m.callCredentialService(ctx, body.Route, services.CredentialRequest{
		Op:         "present",
		Credential: m.credential,
	})
	if err != nil {
		return api.Response{}, err
	}
	if !reply.Verified {
		return api.Response{}, lattice.Internalf("credential was not accepted")
	}
	return api.OK(req.ID, nil)
}

func (m *Manager) callCredentialService(ctx context.Context, route []string, creq services.CredentialRequest) (services.CredentialReply, error) {
	payload, err := cbor.Marshal(creq)
	if err != nil {
		return services.CredentialReply{}, fmt.Errorf("encode credential request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, credentialTimeout)
	defer cancel()
	raw, err := m.rt.Call(ctx, toRoute(route), payload)
	if err != nil {
		return services.CredentialReply{}, err
	}

	var reply services.CredentialReply
	if err := cbor.Unmarshal(raw, &reply); err != nil {
		return services.CredentialReply{}, lattice.Internalf("malformed credential reply: %v", err)
	}
	if reply.Error != "" {
		return services.CredentialReply{}, lattice.Internalf("credential service: %s", reply.Error)
	}
	return reply, nil
}
