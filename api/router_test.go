package api

import (
	"context"
	"slices"
	"testing"
)

func named(name string) Handler {
	return func(context.Context, Request, []string) (Response, error) {
		return Response{}, nil
	}
}

func TestLookup_LiteralBeatsCapture(t *testing.T) {
	tbl := &Table{}
	var got string
	tbl.Handle(Get, "v0/spaces/*", func(_ context.Context, _ Request, args []string) (Response, error) {
		got = "capture:" + args[0]
		return Response{}, nil
	})
	tbl.Handle(Get, "v0/spaces/all", func(context.Context, Request, []string) (Response, error) {
		got = "literal"
		return Response{}, nil
	})

	h, _, ok := tbl.Lookup(Get, "v0/spaces/all")
	if !ok {
		t.Fatal("Lookup should match")
	}
	if _, err := h(context.Background(), Request{}, nil); err != nil {
		t.Fatal(err)
	}
	if got != "literal" {
		t.Fatalf("dispatched %q, want literal route", got)
	}

	h, args, ok := tbl.Lookup(Get, "v0/spaces/abc123")
	if !ok {
		t.Fatal("Lookup should match capture route")
	}
	if _, err := h(context.Background(), Request{}, args); err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(args, []string{"abc123"}) {
		t.Fatalf("args = %v, want [abc123]", args)
	}
}

func TestLookup_MethodMismatch(t *testing.T) {
	tbl := &Table{}
	tbl.Handle(Post, "node/vault", named("create"))

	if _, _, ok := tbl.Lookup(Get, "node/vault"); ok {
		t.Fatal("GET should not match a POST route")
	}
}

func TestLookup_TooManySegments(t *testing.T) {
	tbl := &Table{}
	tbl.Handle(Get, "a/b/c/d/e", named("deep"))

	if _, _, ok := tbl.Lookup(Get, "a/b/c/d/e/f"); ok {
		t.Fatal("six segments should never match")
	}
	if _, _, ok := tbl.Lookup(Get, "a/b/c/d/e"); !ok {
		t.Fatal("five segments should match")
	}
}

func TestLookup_LeadingSlashIgnored(t *testing.T) {
	tbl := &Table{}
	tbl.Handle(Get, "node", named("status"))

	if _, _, ok := tbl.Lookup(Get, "/node"); !ok {
		t.Fatal("leading slash should not affect matching")
	}
}

func TestLookup_MultipleCaptures(t *testing.T) {
	tbl := &Table{}
	tbl.Handle(Delete, "v0/projects/*/*", named("del"))

	_, args, ok := tbl.Lookup(Delete, "v0/projects/space1/proj2")
	if !ok {
		t.Fatal("Lookup should match")
	}
	if !slices.Equal(args, []string{"space1", "proj2"}) {
		t.Fatalf("args = %v, want [space1 proj2]", args)
	}
}

func TestLookup_NoMatch(t *testing.T) {
	tbl := &Table{}
	tbl.Handle(Get, "node", named("status"))

	if _, _, ok := tbl.Lookup(Get, "node/missing"); ok {
		t.Fatal("unregistered path should not match")
	}
}
