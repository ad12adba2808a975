// Package services contains the node's baseline service workers and
// their well-known addresses. Each service is an independent worker;
// starting one at an occupied address is a reported error.
package services

import (
	"strings"

	"lattice/runtime"
)

// Well-known service addresses.
const (
	VaultService          runtime.Address = "vault_service"
	IdentityService       runtime.Address = "identity_service"
	AuthenticatedService  runtime.Address = "authenticated"
	UppercaseService      runtime.Address = "uppercase"
	EchoService           runtime.Address = "echo"
	AuthenticatorService  runtime.Address = "authenticator"
	VerifierService       runtime.Address = "verifier"
	CredentialService     runtime.Address = "credentials"
	ForwardingService     runtime.Address = "forwarding_service"
	SecureChannelListener runtime.Address = "api"
)

// Echo replies with the payload it was sent.
type Echo struct{}

func (Echo) Initialize(*runtime.Context) error { return nil }

func (Echo) Handle(ctx *runtime.Context, msg runtime.Message) error {
	return ctx.Reply(msg, msg.Payload)
}

// Uppercase replies with the upper-cased payload.
type Uppercase struct{}

func (Uppercase) Initialize(*runtime.Context) error { return nil }

func (Uppercase) Handle(ctx *runtime.Context, msg runtime.Message) error {
	return ctx.Reply(msg, []byte(strings.ToUpper(string(msg.Payload))))
}
