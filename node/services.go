package node

import (
	"context"
	"log/slog"
	"sort"

	"lattice"
	"lattice/api"
	"lattice/channel"
	"lattice/runtime"
	"lattice/services"
)

// startDefaultServices brings up the node's baseline workers: the
// security services, the toy test services, the forwarding service and
// the secure channel listener every remote peer talks to first.
func (m *Manager) startDefaultServices(_ *runtime.Context) error {
	ident, err := m.Identity()
	if err != nil {
		return err
	}

	defaults := []struct {
		addr runtime.Address
		kind string
	}{
		{services.VaultService, "vault"},
		{services.IdentityService, "identity"},
		{services.AuthenticatedService, "authenticated"},
		{services.UppercaseService, "uppercase"},
		{services.EchoService, "echo"},
		{services.ForwardingService, "forwarding"},
	}
	for _, d := range defaults {
		w, err := m.serviceWorker(d.kind)
		if err != nil {
			return err
		}
		if err := m.rt.Start(d.addr, w); err != nil {
			return err
		}
		m.registry.addService(string(d.addr), d.kind)
	}

	err = channel.CreateListener(m.rt, services.SecureChannelListener, ident, nil)
	if err != nil {
		return err
	}
	m.registry.addListener(string(services.SecureChannelListener))

	if m.authorities != nil {
		w, err := m.serviceWorker("credentials")
		if err != nil {
			return err
		}
		if err := m.rt.Start(services.CredentialService, w); err != nil {
			return err
		}
		m.registry.addService(string(services.CredentialService), "credentials")
	}

	slog.Debug("Started default services.", "node", m.name)
	return nil
}

// serviceWorker builds a service worker of the given kind, failing when
// the node is missing the state the service depends on.
func (m *Manager) serviceWorker(kind string) (runtime.Worker, error) {
	switch kind {
	case "vault":
		v, err := m.Vault()
		if err != nil {
			return nil, err
		}
		return services.NewVaultWorker(v), nil
	case "identity":
		ident, err := m.Identity()
		if err != nil {
			return nil, err
		}
		return services.NewIdentityWorker(ident), nil
	case "authenticated":
		return services.NewAuthenticatedWorker(m.authStore), nil
	case "uppercase":
		return services.Uppercase{}, nil
	case "echo":
		return services.Echo{}, nil
	case "forwarding":
		return services.Forwarding{}, nil
	case "authenticator":
		ident, err := m.Identity()
		if err != nil {
			return nil, err
		}
		projectID, err := m.ProjectID()
		if err != nil {
			return nil, err
		}
		return services.NewAuthenticator(ident, projectID), nil
	case "verifier":
		auth, err := m.Authorities()
		if err != nil {
			return nil, err
		}
		return services.NewVerifier(auth.PublicIdentities()), nil
	case "credentials":
		auth, err := m.Authorities()
		if err != nil {
			return nil, err
		}
		return services.NewCredentialExchange(auth.PublicIdentities(), m.authStore), nil
	default:
		return nil, lattice.Invalidf("unknown service kind %q", kind)
	}
}

// startService returns the handler that starts one service kind at its
// default or caller-chosen address.
func (m *Manager) startService(addr runtime.Address, kind string) api.Handler {
	return func(_ context.Context, req api.Request, _ []string) (api.Response, error) {
		var body StartServiceRequest
		if req.HasBody {
			if err := api.DecodeBody(req.Body, &body); err != nil {
				return api.Response{}, lattice.Invalidf("%v", err)
			}
		}
		target := addr
		if body.Addr != "" {
			target = runtime.Address(body.Addr)
		}

		w, err := m.serviceWorker(kind)
		if err != nil {
			return api.Response{}, err
		}
		if err := m.rt.Start(target, w); err != nil {
			return api.Response{}, err
		}
		m.registry.addService(string(target), kind)

		slog.Info("Started service.", "kind", kind, "addr", target)
		return api.OK(req.ID, ServiceStatus{Addr: string(target), Kind: kind})
	}
}

func (m *Manager) handleListServices(_ context.Context, req api.Request, _ []string) (api.Response, error) {
	var list ServiceList
	for addr, kind := range m.registry.listServices() {
		list.Items = append(list.Items, ServiceStatus{Addr: addr, Kind: kind})
	}
	sort.Slice(list.Items, func(i, j int) bool {
		return list.Items[i].Addr < list.Items[j].Addr
	})
	return api.OK(req.ID, list)
}
