package channel

import (
	"context"
	"crypto/rand"
	"fmt"
	"slices"

	"lattice"
	"lattice/identity"
	"lattice/internal/check"
	"lattice/runtime"

	"github.com/flynn/noise"
	"github.com/fxamacker/cbor/v2"
)

// Channel lifecycle states.
const (
	stateInitiating uint8 = iota + 1
	stateAwaitingFinal
	stateEstablished
)

func cipherSuite() noise.CipherSuite {
	return noise.NewCipherSuite(noise.DH25519, noise.CipherChaChaPoly, noise.HashSHA256)
}

// Channel is one end of a secure channel. As a worker it has two
// duties: encrypt local plaintext envelopes toward the peer, and
// decrypt peer ciphertext frames into locally routed messages.
type Channel struct {
	local      *identity.Identity
	authorized []string // responder-side allowlist; empty accepts any peer
	initiator  bool

	static noise.DHKey
	hs     *noise.HandshakeState
	send   *noise.CipherState
	recv   *noise.CipherState

	// route reaches the peer's channel end. For an initiator it starts
	// as the route to the listener and is rewritten once the responder
	// answers from its own address.
	route runtime.Route
	peer  identity.Public
	state uint8

	err  error
	done chan struct{}
}

// CreateInitiator starts an initiating channel worker at addr,
// handshaking toward the listener reachable via route. The returned
// channel may still be initiating; use Await.
func CreateInitiator(n *runtime.Node, addr runtime.Address, route runtime.Route, local *identity.Identity) (*Channel, error) {
	c := &Channel{
		local:     local,
		initiator: true,
		route:     slices.Clone(route),
		state:     stateInitiating,
		done:      make(chan struct{}),
	}
	if err := n.Start(addr, c); err != nil {
		return nil, err
	}
	return c, nil
}

func newResponder(local *identity.Identity, authorized []string) *Channel {
	return &Channel{
		local:      local,
		authorized: slices.Clone(authorized),
		state:      stateAwaitingFinal,
		done:       make(chan struct{}),
	}
}

// Await blocks until the handshake completes, returning the verified
// peer identity. The wait is bounded only by ctx.
func (c *Channel) Await(ctx context.Context) (identity.Public, error) {
	select {
	case <-c.done:
		return c.peer, c.err
	case <-ctx.Done():
		return identity.Public{}, ctx.Err()
	}
}

// Peer returns the verified peer identity; the zero value until
// established.
func (c *Channel) Peer() identity.Public { return c.peer }

func (c *Channel) Initialize(ctx *runtime.Context) error {
	static, err := cipherSuite().GenerateKeypair(rand.Reader)
	if err != nil {
		return fmt.Errorf("generate static key: %w", err)
	}
	c.static = static

	hs, err := noise.NewHandshakeState(noise.Config{
		CipherSuite:   cipherSuite(),
		Pattern:       noise.HandshakeXX,
		Initiator:     c.initiator,
		StaticKeypair: static,
	})
	if err != nil {
		return fmt.Errorf("create handshake state: %w", err)
	}
	c.hs = hs

	if !c.initiator {
		return nil
	}

	// XX message 1: -> e
	msg1, _, _, err := hs.WriteMessage(nil, nil)
	if err != nil {
		return c.fail(ctx, fmt.Errorf("write handshake message 1: %w", err))
	}
	if err := ctx.Send(c.route, encodeFrame(kindHandshake, msg1)); err != nil {
		return c.fail(ctx, fmt.Errorf("send handshake message 1: %w", err))
	}
	return nil
}

func (c *Channel) Handle(ctx *runtime.Context, msg runtime.Message) error {
	switch c.state {
	case stateInitiating:
		return c.handleResponderReply(ctx, msg)
	case stateAwaitingFinal:
		return c.handleHandshake(ctx, msg)
	case stateEstablished:
		return c.handleEstablished(ctx, msg)
	default:
		return lattice.Internalf("channel in unknown state %d", c.state)
	}
}

// handleResponderReply processes XX message 2 (<- e, ee, s, es,
// payload) and answers with message 3 (-> s, se, payload).
func (c *Channel) handleResponderReply(ctx *runtime.Context, msg runtime.Message) error {
	f, ok := decodeFrame(msg.Payload)
	if !ok || f.Kind != kindHandshake {
		return c.fail(ctx, lattice.Invalidf("expected handshake frame while initiating"))
	}

	peerPayload, _, _, err := c.hs.ReadMessage(nil, f.Data)
	if err != nil {
		return c.fail(ctx, lattice.Invalidf("read handshake message 2: %v", err))
	}
	peer, err := c.verifyPeer(peerPayload)
	if err != nil {
		return c.fail(ctx, err)
	}

	local, err := c.localPayload()
	if err != nil {
		return c.fail(ctx, err)
	}
	msg3, sendCS, recvCS, err := c.hs.WriteMessage(nil, local)
	if err != nil {
		return c.fail(ctx, lattice.Invalidf("write handshake message 3: %v", err))
	}

	c.route = slices.Clone(msg.Return)
	if err := ctx.Send(c.route, encodeFrame(kindHandshake, msg3)); err != nil {
		return c.fail(ctx, fmt.Errorf("send handshake message 3: %w", err))
	}

	c.send, c.recv = sendCS, recvCS
	c.establish(peer)
	return nil
}

// handleHandshake is the responder side: the first message is XX
// message 1, the second the final message 3.
func (c *Channel) handleHandshake(ctx *runtime.Context, msg runtime.Message) error {
	f, ok := decodeFrame(msg.Payload)
	if !ok || f.Kind != kindHandshake {
		return c.fail(ctx, lattice.Invalidf("expected handshake frame"))
	}

	if c.route == nil {
		// Message 1.
		if _, _, _, err := c.hs.ReadMessage(nil, f.Data); err != nil {
			return c.fail(ctx, lattice.Invalidf("read handshake message 1: %v", err))
		}
		local, err := c.localPayload()
		if err != nil {
			return c.fail(ctx, err)
		}
		msg2, _, _, err := c.hs.WriteMessage(nil, local)
		if err != nil {
			return c.fail(ctx, lattice.Invalidf("write handshake message 2: %v", err))
		}
		c.route = slices.Clone(msg.Return)
		if err := ctx.Send(c.route, encodeFrame(kindHandshake, msg2)); err != nil {
			return c.fail(ctx, fmt.Errorf("send handshake message 2: %w", err))
		}
		return nil
	}

	// Message 3.
	peerPayload, recvCS, sendCS, err := c.hs.ReadMessage(nil, f.Data)
	if err != nil {
		return c.fail(ctx, lattice.Invalidf("read handshake message 3: %v", err))
	}
	peer, err := c.verifyPeer(peerPayload)
	if err != nil {
		return c.fail(ctx, err)
	}
	if len(c.authorized) > 0 && !slices.Contains(c.authorized, peer.ID) {
		return c.fail(ctx, lattice.Invalidf("peer %s is not an authorized identity", peer.ID))
	}

	c.route = slices.Clone(msg.Return)
	c.send, c.recv = sendCS, recvCS
	c.establish(peer)
	return nil
}

func (c *Channel) handleEstablished(ctx *runtime.Context, msg runtime.Message) error {
	if f, ok := decodeFrame(msg.Payload); ok {
		if f.Kind != kindCiphertext {
			return lattice.Invalidf("unexpected handshake frame on established channel")
		}
		return c.decryptAndRoute(ctx, f.Data)
	}
	return c.encryptAndForward(ctx, msg)
}

// encryptAndForward wraps a local plaintext message and sends it to
// the peer end. The remaining onward route is carried inside the
// ciphertext and resumed on the far node.
func (c *Channel) encryptAndForward(ctx *runtime.Context, msg runtime.Message) error {
	plain, err := cbor.Marshal(envelope{
		Onward:  msg.Onward,
		Return:  msg.Return,
		Payload: msg.Payload,
	})
	if err != nil {
		return fmt.Errorf("encode channel envelope: %w", err)
	}
	ct, err := c.send.Encrypt(nil, nil, plain)
	if err != nil {
		return fmt.Errorf("encrypt channel envelope: %w", err)
	}
	return ctx.Send(c.route, encodeFrame(kindCiphertext, ct))
}

// decryptAndRoute opens a ciphertext frame and resumes routing the
// carried message locally, inserting itself into the return path so
// replies cross back through the channel.
func (c *Channel) decryptAndRoute(ctx *runtime.Context, data []byte) error {
	plain, err := c.recv.Decrypt(nil, nil, data)
	if err != nil {
		return lattice.Invalidf("decrypt channel frame: %v", err)
	}
	var env envelope
	if err := cbor.Unmarshal(plain, &env); err != nil {
		return lattice.Invalidf("decode channel envelope: %v", err)
	}
	return ctx.Node().Route(runtime.Message{
		Onward:  env.Onward,
		Return:  append(runtime.Route{ctx.Address()}, env.Return...),
		Payload: env.Payload,
	})
}

func (c *Channel) localPayload() ([]byte, error) {
	exported, err := c.local.Export()
	if err != nil {
		return nil, err
	}
	sig, err := c.local.Sign(staticSigMaterial(c.static.Public))
	if err != nil {
		return nil, err
	}
	data, err := cbor.Marshal(handshakePayload{Identity: exported, StaticSig: sig})
	if err != nil {
		return nil, fmt.Errorf("encode handshake payload: %w", err)
	}
	return data, nil
}

func (c *Channel) verifyPeer(payload []byte) (identity.Public, error) {
	var p handshakePayload
	if err := cbor.Unmarshal(payload, &p); err != nil {
		return identity.Public{}, lattice.Invalidf("decode handshake payload: %v", err)
	}
	peer, err := identity.ImportPublic(p.Identity, c.local.Vault())
	if err != nil {
		return identity.Public{}, err
	}
	static := c.hs.PeerStatic()
	if !c.local.Vault().Verify(peer.Key, staticSigMaterial(static), p.StaticSig) {
		return identity.Public{}, lattice.Invalidf("peer %s did not prove its static key", peer.ID)
	}
	return peer, nil
}

func (c *Channel) establish(peer identity.Public) {
	check.Assert(c.send != nil && c.recv != nil, "establishing a channel without cipher states")
	c.peer = peer
	c.state = stateEstablished
	close(c.done)
}

func (c *Channel) fail(ctx *runtime.Context, err error) error {
	if c.err == nil && c.state != stateEstablished {
		c.err = err
		close(c.done)
	}
	// A responder is owned by its listener, not a creator that could
	// observe the failure, so it tears itself down.
	if !c.initiator && ctx != nil {
		_ = ctx.Node().Stop(ctx.Address())
	}
	return err
}
