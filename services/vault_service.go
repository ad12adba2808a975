package services

import (
	"lattice"
	"lattice/runtime"
	"lattice/vault"

	"github.com/fxamacker/cbor/v2"
)

// VaultRequest is the wire request served by the vault service.
type VaultRequest struct {
	Op        string `cbor:"1,keyasint"`
	KeyID     string `cbor:"2,keyasint,omitempty"`
	Data      []byte `cbor:"3,keyasint,omitempty"`
	PublicKey []byte `cbor:"4,keyasint,omitempty"`
	Signature []byte `cbor:"5,keyasint,omitempty"`
}

// VaultReply is the wire response of the vault service.
type VaultReply struct {
	Error     string `cbor:"1,keyasint,omitempty"`
	Signature []byte `cbor:"2,keyasint,omitempty"`
	PublicKey []byte `cbor:"3,keyasint,omitempty"`
	Verified  bool   `cbor:"4,keyasint,omitempty"`
}

// VaultWorker exposes the node's vault to other workers by message.
type VaultWorker struct {
	vault *vault.Vault
}

// NewVaultWorker wraps a vault as a service worker.
func NewVaultWorker(v *vault.Vault) *VaultWorker {
	return &VaultWorker{vault: v}
}

func (w *VaultWorker) Initialize(*runtime.Context) error { return nil }

func (w *VaultWorker) Handle(ctx *runtime.Context, msg runtime.Message) error {
	var req VaultRequest
	if err := cbor.Unmarshal(msg.Payload, &req); err != nil {
		return replyVault(ctx, msg, VaultReply{Error: "malformed vault request"})
	}

	switch req.Op {
	case "sign":
		sig, err := w.vault.Sign(req.KeyID, req.Data)
		if err != nil {
			return replyVault(ctx, msg, VaultReply{Error: err.Error()})
		}
		return replyVault(ctx, msg, VaultReply{Signature: sig})
	case "public_key":
		pub, err := w.vault.PublicKey(req.KeyID)
		if err != nil {
			return replyVault(ctx, msg, VaultReply{Error: err.Error()})
		}
		return replyVault(ctx, msg, VaultReply{PublicKey: pub})
	case "verify":
		ok := w.vault.Verify(req.PublicKey, req.Data, req.Signature)
		return replyVault(ctx, msg, VaultReply{Verified: ok})
	default:
		return replyVault(ctx, msg, VaultReply{Error: lattice.Invalidf("unknown vault op %q", req.Op).Error()})
	}
}

func replyVault(ctx *runtime.Context, msg runtime.Message, r VaultReply) error {
	data, err := cbor.Marshal(r)
	if err != nil {
		return err
	}
	return ctx.Reply(msg, data)
}
