package node

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"lattice"
	"lattice/api"
	"lattice/authstore"
	"lattice/identity"
	"lattice/runtime"
	"lattice/transport/tcp"
	"lattice/vault"
)

const (
	// WorkerAddress is where the manager listens for management
	// requests on its node's runtime.
	WorkerAddress runtime.Address = "nodemanager"

	defaultVaultFile   = "vault.json"
	defaultStorageFile = "authenticated_storage.lmdb"
)

// trustState orders the manager's security posture. Each level
// strictly requires the previous one, so an identity can never exist
// without a vault and a trust context never without an identity.
type trustState uint8

const (
	trustBare trustState = iota
	trustVaulted
	trustIdentified
	trustConfigured
)

// IdentityOverride seeds a node with an identity exported from
// elsewhere, together with the vault file holding its signing key.
type IdentityOverride struct {
	Identity  []byte
	VaultPath string
}

// AuthorityConfig is one trusted authority: its exported identity and
// the address it can be reached at.
type AuthorityConfig struct {
	Identity []byte `yaml:"identity"`
	Address  string `yaml:"address"`
}

// AuthoritiesConfig is the trust context handed to a node at creation.
type AuthoritiesConfig struct {
	Authorities []AuthorityConfig `yaml:"authorities"`
}

// AuthorityInfo is a resolved authority with its verified public
// identity.
type AuthorityInfo struct {
	Identity identity.Public
	Address  string
}

// Authorities is an immutable set of resolved authorities.
type Authorities struct {
	infos []AuthorityInfo
}

func (a *Authorities) List() []AuthorityInfo {
	out := make([]AuthorityInfo, len(a.infos))
	copy(out, a.infos)
	return out
}

func (a *Authorities) PublicIdentities() []identity.Public {
	out := make([]identity.Public, 0, len(a.infos))
	for _, info := range a.infos {
		out = append(out, info.Identity)
	}
	return out
}

// Options configures Create.
type Options struct {
	// Name identifies the node in status reports and logs.
	Name string
	// Dir is the node's state directory. Config, vault and
	// attribute storage live under it unless overridden.
	Dir string

	// APITransport describes the listener the management API is
	// served over. It is recorded before any persisted transports
	// so status reports always include it.
	APITransport lattice.Transport

	// Driver dials and accepts raw TCP for this node's runtime.
	Driver *tcp.Transport
	// Runtime hosts the manager and every worker it starts.
	Runtime *runtime.Node

	IdentityOverride *IdentityOverride

	// SkipDefaults leaves the node bare: no default services, no
	// vault or identity until explicitly created.
	SkipDefaults bool

	// EnableCredentialChecks requires a full trust context at
	// creation time.
	EnableCredentialChecks bool

	Authorities *AuthoritiesConfig
	ProjectID   []byte

	// ControllerRoute, when set, is where orchestrator-bound
	// requests are proxied.
	ControllerRoute []string
}

// Manager owns a node's security state, transports, channels, portals
// and forwarders, and serves the management request surface. All
// mutation happens on the manager's worker goroutine, so its fields
// need no locking.
type Manager struct {
	name string
	dir  string

	config   *Config
	registry *Registry

	rt     *runtime.Node
	driver *tcp.Transport
	rtctx  *runtime.Context

	apiTransportAlias string
	transports        map[string]lattice.Transport

	trust       trustState
	vault       *vault.Vault
	identity    *identity.Identity
	authorities *Authorities
	projectID   []byte
	credential  *identity.Credential

	authStore *authstore.Store

	skipDefaults           bool
	enableCredentialChecks bool
	controllerRoute        []string

	routes api.Table
	tracer trace.Tracer
}

// Create builds a node manager, restoring any persisted state from the
// node directory. The returned manager is not yet started; register it
// on the runtime at WorkerAddress to serve requests.
func Create(ctx context.Context, opts Options) (*Manager, error) {
	if opts.Name == "" || opts.Dir == "" {
		return nil, lattice.Invalidf("node name and directory are required")
	}
	if opts.Runtime == nil || opts.Driver == nil {
		return nil, lattice.Invalidf("runtime and transport driver are required")
	}

	m := &Manager{
		name:                   opts.Name,
		dir:                    opts.Dir,
		registry:               NewRegistry(),
		rt:                     opts.Runtime,
		driver:                 opts.Driver,
		transports:             make(map[string]lattice.Transport),
		skipDefaults:           opts.SkipDefaults,
		enableCredentialChecks: opts.EnableCredentialChecks,
		projectID:              opts.ProjectID,
		controllerRoute:        opts.ControllerRoute,
		tracer:                 otel.Tracer("lattice/node"),
	}

	// The API transport is recorded first under a fresh alias so it
	// is always present in transport listings.
	m.apiTransportAlias = string(runtime.RandomAddress())
	m.transports[m.apiTransportAlias] = opts.APITransport

	cfg, err := LoadConfig(opts.Dir)
	if err != nil {
		return nil, err
	}
	m.config = cfg

	if err := m.openStorage(); err != nil {
		return nil, err
	}

	if err := m.applyIdentityOverride(opts.IdentityOverride); err != nil {
		return nil, err
	}

	state := m.config.Read()
	if state.VaultPath != "" {
		v, err := vault.Open(state.VaultPath)
		if err != nil {
			return nil, fmt.Errorf("open vault: %w", err)
		}
		if err := m.setVault(v); err != nil {
			return nil, err
		}
	}
	if len(state.Identity) > 0 && m.vault != nil {
		ident, err := identity.Import(state.Identity, m.vault)
		if err != nil {
			return nil, fmt.Errorf("import identity: %w", err)
		}
		if err := m.setIdentity(ident); err != nil {
			return nil, err
		}
	}

	if opts.EnableCredentialChecks && (opts.Authorities == nil || len(opts.ProjectID) == 0) {
		return nil, lattice.Invalidf("credential checks require authorities and a project id")
	}

	if !opts.SkipDefaults {
		if err := m.createDefaults(); err != nil {
			return nil, err
		}
		if opts.Authorities != nil {
			if err := m.configureAuthorities(opts.Authorities); err != nil {
				return nil, err
			}
		}
	}

	m.buildRoutes()
	return m, nil
}

// openStorage resolves the attribute store path, persists it on first
// use and opens the store.
func (m *Manager) openStorage() error {
	state := m.config.Read()
	path := state.AuthenticatedStoragePath
	if path == "" {
		path = filepath.Join(m.dir, defaultStorageFile)
		err := m.config.Update(func(s *configState) {
			s.AuthenticatedStoragePath = path
		})
		if err != nil {
			return err
		}
	}

	store, err := authstore.Open(path)
	if err != nil {
		return fmt.Errorf("open authenticated storage: %w", err)
	}
	m.authStore = store
	return nil
}

// applyIdentityOverride copies the override's vault file into the node
// directory and records the identity, unless the node already has a
// vault of its own.
func (m *Manager) applyIdentityOverride(override *IdentityOverride) error {
	if override == nil {
		return nil
	}
	state := m.config.Read()
	if state.VaultPath != "" {
		return nil
	}

	data, err := os.ReadFile(override.VaultPath)
	if err != nil {
		return fmt.Errorf("read override vault: %w", err)
	}
	dst := filepath.Join(m.dir, defaultVaultFile)
	if err := os.MkdirAll(m.dir, 0o700); err != nil {
		return fmt.Errorf("create node dir: %w", err)
	}
	if err := os.WriteFile(dst, data, 0o600); err != nil {
		return fmt.Errorf("copy override vault: %w", err)
	}

	return m.config.Update(func(s *configState) {
		s.VaultPath = dst
		s.Identity = override.Identity
		s.IdentityWasOverridden = true
	})
}

func (m *Manager) setVault(v *vault.Vault) error {
	if m.trust != trustBare {
		return lattice.Invalidf("vault already exists")
	}
	m.vault = v
	m.trust = trustVaulted
	return nil
}

func (m *Manager) setIdentity(ident *identity.Identity) error {
	if m.trust < trustVaulted {
		return lattice.Invalidf("identity requires a vault")
	}
	if m.trust > trustVaulted {
		return lattice.Invalidf("identity already exists")
	}
	m.identity = ident
	m.trust = trustIdentified
	return nil
}

func (m *Manager) setAuthorities(a *Authorities) error {
	if m.trust < trustIdentified {
		return lattice.Invalidf("trust context requires an identity")
	}
	m.authorities = a
	m.trust = trustConfigured
	return nil
}

// Vault returns the node vault or fails when none exists yet.
func (m *Manager) Vault() (*vault.Vault, error) {
	if m.vault == nil {
		return nil, lattice.NotFoundf("vault does not exist")
	}
	return m.vault, nil
}

// Identity returns the node identity or fails when none exists yet.
func (m *Manager) Identity() (*identity.Identity, error) {
	if m.identity == nil {
		return nil, lattice.NotFoundf("identity does not exist")
	}
	return m.identity, nil
}

// Authorities returns the trust context or fails when none is
// configured.
func (m *Manager) Authorities() (*Authorities, error) {
	if m.authorities == nil {
		return nil, lattice.NotFoundf("authorities do not exist")
	}
	return m.authorities, nil
}

// ProjectID returns the project this node belongs to or fails when the
// node has none.
func (m *Manager) ProjectID() ([]byte, error) {
	if len(m.projectID) == 0 {
		return nil, lattice.NotFoundf("project id does not exist")
	}
	return m.projectID, nil
}

// createDefaults makes sure a vault and identity exist, creating and
// persisting them on first run and reusing them afterwards.
func (m *Manager) createDefaults() error {
	if err := m.ensureVault(); err != nil {
		return err
	}
	return m.ensureIdentity()
}

func (m *Manager) ensureVault() error {
	if m.vault != nil {
		return nil
	}

	state := m.config.Read()
	path := state.VaultPath
	if path == "" {
		path = filepath.Join(m.dir, defaultVaultFile)
	}
	v, err := vault.Open(path)
	if err != nil {
		return fmt.Errorf("open vault: %w", err)
	}
	if err := m.setVault(v); err != nil {
		return err
	}
	if state.VaultPath == "" {
		err := m.config.Update(func(s *configState) { s.VaultPath = path })
		if err != nil {
			return err
		}
	}
	slog.Debug("Opened node vault.", "path", path)
	return nil
}

func (m *Manager) ensureIdentity() error {
	if m.identity != nil {
		return nil
	}
	if m.vault == nil {
		return lattice.Invalidf("identity requires a vault")
	}

	ident, err := identity.Create(m.vault)
	if err != nil {
		return fmt.Errorf("create identity: %w", err)
	}
	if err := m.setIdentity(ident); err != nil {
		return err
	}

	exported, err := ident.Export()
	if err != nil {
		return fmt.Errorf("export identity: %w", err)
	}
	err = m.config.Update(func(s *configState) { s.Identity = exported })
	if err != nil {
		return err
	}
	slog.Info("Created node identity.", "id", ident.ID())
	return nil
}

// configureAuthorities resolves and verifies each configured authority
// identity. Either every authority resolves or the trust context is
// rejected whole.
func (m *Manager) configureAuthorities(cfg *AuthoritiesConfig) error {
	if len(cfg.Authorities) == 0 {
		return lattice.Invalidf("authorities list is empty")
	}

	infos := make([]AuthorityInfo, 0, len(cfg.Authorities))
	for i, ac := range cfg.Authorities {
		pub, err := identity.ImportPublic(ac.Identity, m.vault)
		if err != nil {
			return lattice.Invalidf("authority %d: %v", i, err)
		}
		infos = append(infos, AuthorityInfo{Identity: pub, Address: ac.Address})
	}
	return m.setAuthorities(&Authorities{infos: infos})
}

// Status reports the node's externally visible state.
func (m *Manager) Status() lattice.NodeStatus {
	return lattice.NodeStatus{
		Name:           m.name,
		State:          "Running",
		WorkerCount:    uint32(len(m.rt.Workers())),
		PID:            int32(os.Getpid()),
		TransportCount: uint32(len(m.transports)),
	}
}

// Close releases resources the manager holds outside the runtime.
func (m *Manager) Close() error {
	if m.authStore != nil {
		return m.authStore.Close()
	}
	return nil
}
