package node

import (
	"lattice/api"
	"lattice/services"
)

// buildRoutes registers every endpoint of the management surface.
// Paths are stable wire contract; handlers live in the files named
// after their subsystem.
func (m *Manager) buildRoutes() {
	t := &m.routes

	t.Handle(api.Get, "node", m.handleNodeStatus)

	// Transports.
	t.Handle(api.Get, "node/tcp/connection", m.handleListConnections)
	t.Handle(api.Post, "node/tcp/connection", m.handleCreateConnection)
	t.Handle(api.Delete, "node/tcp/connection", m.handleDeleteTransport)
	t.Handle(api.Get, "node/tcp/listener", m.handleListTCPListeners)
	t.Handle(api.Post, "node/tcp/listener", m.handleCreateTCPListener)
	t.Handle(api.Delete, "node/tcp/listener", m.handleDeleteTransport)

	// Security state.
	t.Handle(api.Post, "node/vault", m.handleCreateVault)
	t.Handle(api.Post, "node/identity", m.handleCreateIdentity)
	t.Handle(api.Post, "node/identity/actions/show/short", m.handleShowIdentityShort)
	t.Handle(api.Post, "node/identity/actions/show/long", m.handleShowIdentityLong)
	t.Handle(api.Post, "node/credentials/actions/get", m.handleGetCredential)
	t.Handle(api.Post, "node/credentials/actions/present", m.handlePresentCredential)

	// Secure channels.
	t.Handle(api.Get, "node/secure_channel", m.handleListSecureChannels)
	t.Handle(api.Post, "node/secure_channel", m.handleCreateSecureChannel)
	t.Handle(api.Delete, "node/secure_channel", m.handleDeleteSecureChannel)
	t.Handle(api.Get, "node/show_secure_channel", m.handleShowSecureChannel)
	t.Handle(api.Get, "node/secure_channel_listener", m.handleListChannelListeners)
	t.Handle(api.Post, "node/secure_channel_listener", m.handleCreateChannelListener)

	// Services.
	t.Handle(api.Get, "node/services", m.handleListServices)
	t.Handle(api.Post, "node/services/vault", m.startService(services.VaultService, "vault"))
	t.Handle(api.Post, "node/services/identity", m.startService(services.IdentityService, "identity"))
	t.Handle(api.Post, "node/services/authenticated", m.startService(services.AuthenticatedService, "authenticated"))
	t.Handle(api.Post, "node/services/uppercase", m.startService(services.UppercaseService, "uppercase"))
	t.Handle(api.Post, "node/services/echo", m.startService(services.EchoService, "echo"))
	t.Handle(api.Post, "node/services/authenticator", m.startService(services.AuthenticatorService, "authenticator"))
	t.Handle(api.Post, "node/services/verifier", m.startService(services.VerifierService, "verifier"))
	t.Handle(api.Post, "node/services/credentials", m.startService(services.CredentialService, "credentials"))

	// Forwarders and portals.
	t.Handle(api.Get, "node/forwarder", m.handleListForwarders)
	t.Handle(api.Post, "node/forwarder", m.handleCreateForwarder)
	t.Handle(api.Get, "node/inlet", m.handleListInlets)
	t.Handle(api.Post, "node/inlet", m.handleCreateInlet)
	t.Handle(api.Delete, "node/inlet/*", m.handleDeleteInlet)
	t.Handle(api.Get, "node/outlet", m.handleListOutlets)
	t.Handle(api.Post, "node/outlet", m.handleCreateOutlet)
	t.Handle(api.Delete, "node/outlet/*", m.handleDeleteOutlet)
	t.Handle(api.Get, "node/portal", m.handleListPortals)

	// Orchestrator surface, proxied upstream as-is.
	proxied := []string{
		"v0/spaces", "v0/spaces/*",
		"v0/projects", "v0/projects/*", "v0/projects/*/*",
		"v0/project-enrollers", "v0/project-enrollers/*", "v0/project-enrollers/*/*",
		"subscription", "subscription/*", "subscription/*/*",
		"v0/enroll", "v0/enroll/*",
	}
	for _, pattern := range proxied {
		for _, method := range []api.Method{api.Get, api.Post, api.Put, api.Delete} {
			t.Handle(method, pattern, m.handleCloudProxy)
		}
	}

	t.Handle(api.Post, "v0/message", m.handleSendMessage)
}
