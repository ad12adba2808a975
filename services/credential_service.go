package services

import (
	"context"
	"time"

	"lattice"
	"lattice/authstore"
	"lattice/identity"
	"lattice/runtime"

	"github.com/fxamacker/cbor/v2"
)

// credentialTTL bounds how long an issued credential stays valid.
const credentialTTL = 24 * time.Hour

// CredentialRequest is the wire request of the credential services.
type CredentialRequest struct {
	Op         string               `cbor:"1,keyasint"`
	Identity   []byte               `cbor:"2,keyasint,omitempty"`
	Attributes map[string][]byte    `cbor:"3,keyasint,omitempty"`
	Credential *identity.Credential `cbor:"4,keyasint,omitempty"`
}

// CredentialReply is the wire response of the credential services.
type CredentialReply struct {
	Error      string               `cbor:"1,keyasint,omitempty"`
	Credential *identity.Credential `cbor:"2,keyasint,omitempty"`
	Verified   bool                 `cbor:"3,keyasint,omitempty"`
}

// Authenticator issues credentials binding member identities to the
// project it serves. It runs on authority nodes.
type Authenticator struct {
	issuer    *identity.Identity
	projectID []byte
}

// NewAuthenticator builds a credential issuer for a project.
func NewAuthenticator(issuer *identity.Identity, projectID []byte) *Authenticator {
	return &Authenticator{issuer: issuer, projectID: projectID}
}

func (a *Authenticator) Initialize(*runtime.Context) error { return nil }

func (a *Authenticator) Handle(ctx *runtime.Context, msg runtime.Message) error {
	var req CredentialRequest
	if err := cbor.Unmarshal(msg.Payload, &req); err != nil {
		return replyCredential(ctx, msg, CredentialReply{Error: "malformed credential request"})
	}
	if req.Op != "issue" {
		return replyCredential(ctx, msg, CredentialReply{Error: lattice.Invalidf("unknown op %q", req.Op).Error()})
	}

	subject, err := identity.ImportPublic(req.Identity, a.issuer.Vault())
	if err != nil {
		return replyCredential(ctx, msg, CredentialReply{Error: err.Error()})
	}

	// Membership is always attested, alongside whatever the
	// registration carried.
	attrs := make(map[string][]byte, len(req.Attributes)+1)
	for k, v := range req.Attributes {
		attrs[k] = v
	}
	attrs["project"] = a.projectID

	cred, err := identity.IssueCredential(a.issuer, subject.ID, a.projectID, attrs, credentialTTL)
	if err != nil {
		return replyCredential(ctx, msg, CredentialReply{Error: err.Error()})
	}
	return replyCredential(ctx, msg, CredentialReply{Credential: cred})
}

// Verifier checks presented credentials against a fixed authority set.
type Verifier struct {
	authorities []identity.Public
}

// NewVerifier builds a verifier over the given authorities.
func NewVerifier(authorities []identity.Public) *Verifier {
	return &Verifier{authorities: authorities}
}

func (v *Verifier) Initialize(*runtime.Context) error { return nil }

func (v *Verifier) Handle(ctx *runtime.Context, msg runtime.Message) error {
	var req CredentialRequest
	if err := cbor.Unmarshal(msg.Payload, &req); err != nil {
		return replyCredential(ctx, msg, CredentialReply{Error: "malformed credential request"})
	}
	if req.Credential == nil {
		return replyCredential(ctx, msg, CredentialReply{Error: "no credential to verify"})
	}
	if err := identity.VerifyCredential(req.Credential, v.authorities, time.Now()); err != nil {
		return replyCredential(ctx, msg, CredentialReply{Error: err.Error()})
	}
	return replyCredential(ctx, msg, CredentialReply{Verified: true})
}

// CredentialExchange accepts presented credentials, verifies them, and
// records the attested attributes in authenticated storage.
type CredentialExchange struct {
	authorities []identity.Public
	store       *authstore.Store
}

// NewCredentialExchange builds the credential exchange service.
func NewCredentialExchange(authorities []identity.Public, store *authstore.Store) *CredentialExchange {
	return &CredentialExchange{authorities: authorities, store: store}
}

func (c *CredentialExchange) Initialize(*runtime.Context) error { return nil }

func (c *CredentialExchange) Handle(ctx *runtime.Context, msg runtime.Message) error {
	var req CredentialRequest
	if err := cbor.Unmarshal(msg.Payload, &req); err != nil {
		return replyCredential(ctx, msg, CredentialReply{Error: "malformed credential request"})
	}
	if req.Op != "present" || req.Credential == nil {
		return replyCredential(ctx, msg, CredentialReply{Error: "expected a presented credential"})
	}

	cred := req.Credential
	if err := identity.VerifyCredential(cred, c.authorities, time.Now()); err != nil {
		return replyCredential(ctx, msg, CredentialReply{Error: err.Error()})
	}

	bg := context.Background()
	for attr, value := range cred.Attributes {
		if err := c.store.Put(bg, cred.Subject, attr, value); err != nil {
			return replyCredential(ctx, msg, CredentialReply{Error: err.Error()})
		}
	}
	return replyCredential(ctx, msg, CredentialReply{Verified: true})
}

func replyCredential(ctx *runtime.Context, msg runtime.Message, r CredentialReply) error {
	data, err := cbor.Marshal(r)
	if err != nil {
		return err
	}
	return ctx.Reply(msg, data)
}
