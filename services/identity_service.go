package services

import (
	"lattice"
	"lattice/identity"
	"lattice/runtime"

	"github.com/fxamacker/cbor/v2"
)

// IdentityRequest is the wire request served by the identity service.
type IdentityRequest struct {
	Op   string `cbor:"1,keyasint"`
	Data []byte `cbor:"2,keyasint,omitempty"`
}

// IdentityReply is the wire response of the identity service.
type IdentityReply struct {
	Error    string `cbor:"1,keyasint,omitempty"`
	ID       string `cbor:"2,keyasint,omitempty"`
	Identity []byte `cbor:"3,keyasint,omitempty"`
}

// IdentityWorker exposes the node's identity to other workers.
type IdentityWorker struct {
	identity *identity.Identity
}

// NewIdentityWorker wraps an identity as a service worker.
func NewIdentityWorker(id *identity.Identity) *IdentityWorker {
	return &IdentityWorker{identity: id}
}

func (w *IdentityWorker) Initialize(*runtime.Context) error { return nil }

func (w *IdentityWorker) Handle(ctx *runtime.Context, msg runtime.Message) error {
	var req IdentityRequest
	if err := cbor.Unmarshal(msg.Payload, &req); err != nil {
		return replyIdentity(ctx, msg, IdentityReply{Error: "malformed identity request"})
	}

	switch req.Op {
	case "short":
		return replyIdentity(ctx, msg, IdentityReply{ID: w.identity.ID()})
	case "long":
		data, err := w.identity.Export()
		if err != nil {
			return replyIdentity(ctx, msg, IdentityReply{Error: err.Error()})
		}
		return replyIdentity(ctx, msg, IdentityReply{ID: w.identity.ID(), Identity: data})
	case "verify":
		pub, err := identity.ImportPublic(req.Data, w.identity.Vault())
		if err != nil {
			return replyIdentity(ctx, msg, IdentityReply{Error: err.Error()})
		}
		return replyIdentity(ctx, msg, IdentityReply{ID: pub.ID})
	default:
		return replyIdentity(ctx, msg, IdentityReply{Error: lattice.Invalidf("unknown identity op %q", req.Op).Error()})
	}
}

func replyIdentity(ctx *runtime.Context, msg runtime.Message, r IdentityReply) error {
	data, err := cbor.Marshal(r)
	if err != nil {
		return err
	}
	return ctx.Reply(msg, data)
}
