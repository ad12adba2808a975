// Package vault is the node's key store and signing provider. Keys are
// ed25519 pairs persisted in one file owned by the node, written
// atomically so a reader never observes a torn store.
package vault

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"lattice"
)

// Vault holds signing keys backed by a file store.
type Vault struct {
	path string

	mu   sync.Mutex
	keys map[string]keyRecord
}

type keyRecord struct {
	PrivateKey string `json:"private_key"`
	PublicKey  string `json:"public_key"`
}

type storeFile struct {
	Version int                  `json:"version"`
	Keys    map[string]keyRecord `json:"keys"`
}

// Open loads the vault at path, creating an empty store on first use.
func Open(path string) (*Vault, error) {
	v := &Vault{path: path, keys: make(map[string]keyRecord)}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		if err := v.flush(); err != nil {
			return nil, err
		}
		return v, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read vault: %w", err)
	}

	var f storeFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse vault: %w", err)
	}
	if f.Keys != nil {
		v.keys = f.Keys
	}
	return v, nil
}

// Path returns the location of the backing file.
func (v *Vault) Path() string { return v.path }

// GenerateKey creates and persists a fresh ed25519 keypair, returning
// its key id.
func (v *Vault) GenerateKey() (string, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}
	return v.store(pub, priv)
}

// ImportKey stores an existing private key, returning its key id. The
// id is derived from the public key, so importing the same key twice
// is a no-op returning the same id.
func (v *Vault) ImportKey(priv ed25519.PrivateKey) (string, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return "", lattice.Invalidf("private key has size %d, want %d", len(priv), ed25519.PrivateKeySize)
	}
	pub := priv.Public().(ed25519.PublicKey)
	return v.store(pub, priv)
}

func (v *Vault) store(pub ed25519.PublicKey, priv ed25519.PrivateKey) (string, error) {
	id := KeyID(pub)

	v.mu.Lock()
	defer v.mu.Unlock()
	v.keys[id] = keyRecord{
		PrivateKey: base64.StdEncoding.EncodeToString(priv),
		PublicKey:  base64.StdEncoding.EncodeToString(pub),
	}
	if err := v.flush(); err != nil {
		delete(v.keys, id)
		return "", err
	}
	return id, nil
}

// PublicKey returns the public half of the key named by id.
func (v *Vault) PublicKey(id string) (ed25519.PublicKey, error) {
	v.mu.Lock()
	rec, ok := v.keys[id]
	v.mu.Unlock()
	if !ok {
		return nil, lattice.NotFoundf("no key %q in vault", id)
	}
	pub, err := base64.StdEncoding.DecodeString(rec.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("decode public key: %w", err)
	}
	return ed25519.PublicKey(pub), nil
}

// HasKey reports whether the vault holds the key named by id.
func (v *Vault) HasKey(id string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	_, ok := v.keys[id]
	return ok
}

// Sign signs message with the key named by id.
func (v *Vault) Sign(id string, message []byte) ([]byte, error) {
	v.mu.Lock()
	rec, ok := v.keys[id]
	v.mu.Unlock()
	if !ok {
		return nil, lattice.NotFoundf("no key %q in vault", id)
	}
	priv, err := base64.StdEncoding.DecodeString(rec.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("decode private key: %w", err)
	}
	return ed25519.Sign(ed25519.PrivateKey(priv), message), nil
}

// Verify checks signature over message against pub.
func (v *Vault) Verify(pub ed25519.PublicKey, message, signature []byte) bool {
	return len(pub) == ed25519.PublicKeySize && ed25519.Verify(pub, message, signature)
}

// KeyID derives the stable id of a public key.
func KeyID(pub ed25519.PublicKey) string {
	sum := sha256.Sum256(pub)
	return hex.EncodeToString(sum[:8])
}

// flush writes the store to disk atomically. Callers hold v.mu.
func (v *Vault) flush() error {
	f := storeFile{Version: 1, Keys: v.keys}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal vault: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(v.path), 0o700); err != nil {
		return fmt.Errorf("create vault dir: %w", err)
	}

	tmp := v.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write vault: %w", err)
	}
	if err := os.Rename(tmp, v.path); err != nil {
		return fmt.Errorf("replace vault: %w", err)
	}
	return nil
}
