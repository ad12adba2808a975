// Package identity models verifiable principals: the node's own
// identity, imported public identities of peers and authorities, and
// the credentials authorities issue against a project.
//
// Cryptographic operations are delegated to the vault; this package
// only defines the material's shape and verification rules.
package identity

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"lattice"
	"lattice/vault"

	"github.com/fxamacker/cbor/v2"
)

// signaturePrefix domain-separates identity self-signatures from any
// other use of the same key.
const signaturePrefix = "lattice-identity:"

// Identity is a principal whose private key lives in the local vault.
type Identity struct {
	public Public
	keyID  string
	vault  *vault.Vault
}

// Public is a verified public identity: an identifier bound to the key
// that proves it.
type Public struct {
	ID  string
	Key ed25519.PublicKey
}

// wireIdentity is the exported identity format.
type wireIdentity struct {
	ID        string `cbor:"1,keyasint"`
	PublicKey []byte `cbor:"2,keyasint"`
	Signature []byte `cbor:"3,keyasint"`
}

// Create generates a new identity with a fresh key in v.
func Create(v *vault.Vault) (*Identity, error) {
	keyID, err := v.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("create identity: %w", err)
	}
	pub, err := v.PublicKey(keyID)
	if err != nil {
		return nil, fmt.Errorf("create identity: %w", err)
	}
	return &Identity{
		public: Public{ID: Identifier(pub), Key: pub},
		keyID:  keyID,
		vault:  v,
	}, nil
}

// Import parses exported identity material and binds it to v. The
// material must verify, and v must hold the matching private key;
// importing an identity whose key is absent is an error.
func Import(data []byte, v *vault.Vault) (*Identity, error) {
	pub, err := ImportPublic(data, v)
	if err != nil {
		return nil, err
	}
	keyID := vault.KeyID(pub.Key)
	if !v.HasKey(keyID) {
		return nil, lattice.NotFoundf("vault holds no key for identity %s", pub.ID)
	}
	return &Identity{public: pub, keyID: keyID, vault: v}, nil
}

// ImportPublic parses and verifies exported identity material without
// requiring key possession. Used for peers and authorities.
func ImportPublic(data []byte, v *vault.Vault) (Public, error) {
	var w wireIdentity
	if err := cbor.Unmarshal(data, &w); err != nil {
		return Public{}, lattice.Invalidf("malformed identity material: %v", err)
	}
	if len(w.PublicKey) != ed25519.PublicKeySize {
		return Public{}, lattice.Invalidf("identity public key has size %d", len(w.PublicKey))
	}
	pub := ed25519.PublicKey(bytes.Clone(w.PublicKey))
	if !v.Verify(pub, signedMaterial(pub), w.Signature) {
		return Public{}, lattice.Invalidf("identity %s failed signature verification", w.ID)
	}
	if Identifier(pub) != w.ID {
		return Public{}, lattice.Invalidf("identity id %s does not match its key", w.ID)
	}
	return Public{ID: w.ID, Key: pub}, nil
}

// Export serializes the identity for persistence or transfer. The
// private key stays in the vault.
func (i *Identity) Export() ([]byte, error) {
	sig, err := i.vault.Sign(i.keyID, signedMaterial(i.public.Key))
	if err != nil {
		return nil, fmt.Errorf("export identity: %w", err)
	}
	data, err := cbor.Marshal(wireIdentity{
		ID:        i.public.ID,
		PublicKey: i.public.Key,
		Signature: sig,
	})
	if err != nil {
		return nil, fmt.Errorf("export identity: %w", err)
	}
	return data, nil
}

// ID returns the identity's identifier.
func (i *Identity) ID() string { return i.public.ID }

// Public returns the identity's public half.
func (i *Identity) Public() Public { return i.public }

// Sign signs message with the identity's key.
func (i *Identity) Sign(message []byte) ([]byte, error) {
	return i.vault.Sign(i.keyID, message)
}

// Vault returns the backing vault.
func (i *Identity) Vault() *vault.Vault { return i.vault }

// Identifier derives the stable identifier of a public key.
func Identifier(pub ed25519.PublicKey) string {
	sum := sha256.Sum256(pub)
	return "I" + hex.EncodeToString(sum[:16])
}

func signedMaterial(pub ed25519.PublicKey) []byte {
	return append([]byte(signaturePrefix), pub...)
}

func verify(pub ed25519.PublicKey, message, signature []byte) bool {
	return len(pub) == ed25519.PublicKeySize && ed25519.Verify(pub, message, signature)
}
