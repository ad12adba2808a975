package authstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"lattice"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "authenticated_storage.lmdb"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPutGetDel(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	if err := s.Put(ctx, "Iabc", "role", []byte("member")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := s.Get(ctx, "Iabc", "role")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "member" {
		t.Fatalf("Get = %q, want %q", got, "member")
	}

	// Overwrite.
	if err := s.Put(ctx, "Iabc", "role", []byte("admin")); err != nil {
		t.Fatalf("Put overwrite: %v", err)
	}
	got, err = s.Get(ctx, "Iabc", "role")
	if err != nil {
		t.Fatalf("Get after overwrite: %v", err)
	}
	if string(got) != "admin" {
		t.Fatalf("Get = %q, want %q", got, "admin")
	}

	if err := s.Del(ctx, "Iabc", "role"); err != nil {
		t.Fatalf("Del: %v", err)
	}
	if _, err := s.Get(ctx, "Iabc", "role"); !errors.Is(err, lattice.ErrNotFound) {
		t.Fatalf("Get after Del = %v, want ErrNotFound", err)
	}
}

func TestList(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	if err := s.Put(ctx, "Iabc", "role", []byte("member")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Put(ctx, "Iabc", "project", []byte("p1")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Put(ctx, "Iother", "role", []byte("guest")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	attrs, err := s.List(ctx, "Iabc")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(attrs) != 2 {
		t.Fatalf("List returned %d attributes, want 2", len(attrs))
	}
	if string(attrs["role"]) != "member" || string(attrs["project"]) != "p1" {
		t.Fatalf("List = %v", attrs)
	}
}

func TestGet_Missing(t *testing.T) {
	s := openStore(t)
	if _, err := s.Get(context.Background(), "Inobody", "role"); !errors.Is(err, lattice.ErrNotFound) {
		t.Fatalf("Get = %v, want ErrNotFound", err)
	}
}
