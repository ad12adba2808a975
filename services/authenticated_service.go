package services

import (
	"context"
	"errors"

	"lattice"
	"lattice/authstore"
	"lattice/runtime"

	"github.com/fxamacker/cbor/v2"
)

// AuthenticatedRequest is the wire request of the authenticated
// attribute service.
type AuthenticatedRequest struct {
	Op       string `cbor:"1,keyasint"`
	Identity string `cbor:"2,keyasint"`
	Attr     string `cbor:"3,keyasint,omitempty"`
	Value    []byte `cbor:"4,keyasint,omitempty"`
}

// AuthenticatedReply is the wire response of the authenticated service.
type AuthenticatedReply struct {
	Error string `cbor:"1,keyasint,omitempty"`
	Value []byte `cbor:"2,keyasint,omitempty"`
	Found bool   `cbor:"3,keyasint,omitempty"`
}

// AuthenticatedWorker serves identity attributes from the node's
// authenticated storage.
type AuthenticatedWorker struct {
	store *authstore.Store
}

// NewAuthenticatedWorker wraps authenticated storage as a worker.
func NewAuthenticatedWorker(s *authstore.Store) *AuthenticatedWorker {
	return &AuthenticatedWorker{store: s}
}

func (w *AuthenticatedWorker) Initialize(*runtime.Context) error { return nil }

func (w *AuthenticatedWorker) Handle(ctx *runtime.Context, msg runtime.Message) error {
	var req AuthenticatedRequest
	if err := cbor.Unmarshal(msg.Payload, &req); err != nil {
		return replyAuthenticated(ctx, msg, AuthenticatedReply{Error: "malformed request"})
	}

	bg := context.Background()
	switch req.Op {
	case "get":
		value, err := w.store.Get(bg, req.Identity, req.Attr)
		if errors.Is(err, lattice.ErrNotFound) {
			return replyAuthenticated(ctx, msg, AuthenticatedReply{Found: false})
		}
		if err != nil {
			return replyAuthenticated(ctx, msg, AuthenticatedReply{Error: err.Error()})
		}
		return replyAuthenticated(ctx, msg, AuthenticatedReply{Value: value, Found: true})
	case "set":
		if err := w.store.Put(bg, req.Identity, req.Attr, req.Value); err != nil {
			return replyAuthenticated(ctx, msg, AuthenticatedReply{Error: err.Error()})
		}
		return replyAuthenticated(ctx, msg, AuthenticatedReply{Found: true})
	case "del":
		if err := w.store.Del(bg, req.Identity, req.Attr); err != nil {
			return replyAuthenticated(ctx, msg, AuthenticatedReply{Error: err.Error()})
		}
		return replyAuthenticated(ctx, msg, AuthenticatedReply{})
	default:
		return replyAuthenticated(ctx, msg, AuthenticatedReply{Error: lattice.Invalidf("unknown op %q", req.Op).Error()})
	}
}

func replyAuthenticated(ctx *runtime.Context, msg runtime.Message, r AuthenticatedReply) error {
	data, err := cbor.Marshal(r)
	if err != nil {
		return err
	}
	return ctx.Reply(msg, data)
}
