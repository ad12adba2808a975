package node

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const configFileName = "config"

// configState is the durable record kept under the node directory.
type configState struct {
	VaultPath                string `json:"vault_path,omitempty"`
	Identity                 []byte `json:"identity,omitempty"`
	AuthenticatedStoragePath string `json:"authenticated_storage_path,omitempty"`
	IdentityWasOverridden    bool   `json:"identity_was_overridden,omitempty"`
}

// Config guards the persisted node configuration. Reads see a
// consistent snapshot; every mutation is flushed to stable storage
// before the writer releases access, so no partially-written state is
// ever observable.
type Config struct {
	path string

	mu    sync.RWMutex
	inner configState
}

// LoadConfig reads <dir>/config, starting empty when the file does not
// exist yet.
func LoadConfig(dir string) (*Config, error) {
	c := &Config{path: filepath.Join(dir, configFileName)}

	data, err := os.ReadFile(c.path)
	if errors.Is(err, os.ErrNotExist) {
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read node config: %w", err)
	}
	if err := json.Unmarshal(data, &c.inner); err != nil {
		return nil, fmt.Errorf("parse node config: %w", err)
	}
	return c, nil
}

// Read returns a snapshot of the current state.
func (c *Config) Read() configState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.inner
}

// Update applies fn to the state and persists the result atomically.
// On persist failure the in-memory state is rolled back.
func (c *Config) Update(fn func(*configState)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev := c.inner
	fn(&c.inner)
	if err := c.persist(); err != nil {
		c.inner = prev
		return err
	}
	return nil
}

// persist writes the state via rename with an fsync, so a crash leaves
// either the old file or the new one. Callers hold c.mu.
func (c *Config) persist() error {
	data, err := json.MarshalIndent(c.inner, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal node config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0o700); err != nil {
		return fmt.Errorf("create node dir: %w", err)
	}

	tmp := c.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("write node config: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("write node config: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("flush node config: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close node config: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("replace node config: %w", err)
	}
	return nil
}
