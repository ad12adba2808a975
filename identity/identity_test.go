package identity

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"lattice"
	"lattice/vault"
)

func newVault(t *testing.T) *vault.Vault {
	t.Helper()
	v, err := vault.Open(filepath.Join(t.TempDir(), "vault.json"))
	if err != nil {
		t.Fatalf("open vault: %v", err)
	}
	return v
}

func TestCreate_ExportImport(t *testing.T) {
	v := newVault(t)

	id, err := Create(v)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	data, err := id.Export()
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	imported, err := Import(data, v)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if imported.ID() != id.ID() {
		t.Fatalf("imported id = %s, want %s", imported.ID(), id.ID())
	}
}

func TestImport_RequiresVaultKey(t *testing.T) {
	v1 := newVault(t)
	v2 := newVault(t)

	id, err := Create(v1)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	data, err := id.Export()
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	// v2 never held the key; importing the material there must fail.
	if _, err := Import(data, v2); !errors.Is(err, lattice.ErrNotFound) {
		t.Fatalf("Import error = %v, want ErrNotFound", err)
	}

	// The public half is still importable anywhere.
	if _, err := ImportPublic(data, v2); err != nil {
		t.Fatalf("ImportPublic: %v", err)
	}
}

func TestImportPublic_RejectsMalformed(t *testing.T) {
	v := newVault(t)
	if _, err := ImportPublic([]byte("garbage"), v); !errors.Is(err, lattice.ErrInvalid) {
		t.Fatalf("ImportPublic error = %v, want ErrInvalid", err)
	}
}

func TestImportPublic_RejectsTamperedID(t *testing.T) {
	v := newVault(t)
	id, err := Create(v)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	data, err := id.Export()
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	// Flip a byte of the exported material.
	data[len(data)/2] ^= 0xff
	if _, err := ImportPublic(data, v); !errors.Is(err, lattice.ErrInvalid) {
		t.Fatalf("ImportPublic error = %v, want ErrInvalid", err)
	}
}

func TestCredential_IssueVerify(t *testing.T) {
	v := newVault(t)
	authority, err := Create(v)
	if err != nil {
		t.Fatalf("Create authority: %v", err)
	}
	member, err := Create(v)
	if err != nil {
		t.Fatalf("Create member: %v", err)
	}

	cred, err := IssueCredential(authority, member.ID(), []byte("proj"), map[string][]byte{"role": []byte("member")}, time.Hour)
	if err != nil {
		t.Fatalf("IssueCredential: %v", err)
	}

	auths := []Public{authority.Public()}
	if err := VerifyCredential(cred, auths, time.Now()); err != nil {
		t.Fatalf("VerifyCredential: %v", err)
	}

	// Unknown issuer.
	if err := VerifyCredential(cred, []Public{member.Public()}, time.Now()); !errors.Is(err, lattice.ErrInvalid) {
		t.Fatalf("VerifyCredential error = %v, want ErrInvalid", err)
	}

	// Expired.
	if err := VerifyCredential(cred, auths, time.Now().Add(2*time.Hour)); !errors.Is(err, lattice.ErrInvalid) {
		t.Fatalf("VerifyCredential error = %v, want ErrInvalid for expiry", err)
	}

	// Tampered subject.
	forged := *cred
	forged.Subject = "Iforged"
	if err := VerifyCredential(&forged, auths, time.Now()); !errors.Is(err, lattice.ErrInvalid) {
		t.Fatalf("VerifyCredential error = %v, want ErrInvalid for forgery", err)
	}
}

func TestCredential_ManyAttributesVerifyStably(t *testing.T) {
	v := newVault(t)
	authority, err := Create(v)
	if err != nil {
		t.Fatalf("Create authority: %v", err)
	}
	member, err := Create(v)
	if err != nil {
		t.Fatalf("Create member: %v", err)
	}

	attrs := map[string][]byte{
		"project": []byte("proj"),
		"role":    []byte("member"),
		"team":    []byte("core"),
		"region":  []byte("eu"),
		"tier":    []byte("gold"),
		"env":     []byte("prod"),
	}
	cred, err := IssueCredential(authority, member.ID(), []byte("proj"), attrs, time.Hour)
	if err != nil {
		t.Fatalf("IssueCredential: %v", err)
	}

	// The signed payload must not depend on map iteration order.
	auths := []Public{authority.Public()}
	for i := 0; i < 200; i++ {
		if err := VerifyCredential(cred, auths, time.Now()); err != nil {
			t.Fatalf("VerifyCredential (round %d): %v", i, err)
		}
	}
}
