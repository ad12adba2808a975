// Package channel implements authenticated encrypted channels between
// two identities over the node's routing fabric, using the Noise XX
// handshake. Trust in the peer's identity is established by a payload
// signature binding the identity key to the handshake's static key;
// authorization beyond that is deferred to credential exchange.
package channel

import (
	"fmt"

	"lattice/runtime"

	"github.com/fxamacker/cbor/v2"
)

// Frame kinds on the wire between two channel ends.
const (
	kindHandshake uint8 = iota + 1
	kindCiphertext
)

// frame is the unit exchanged between channel ends. It is encoded as a
// two-element array so it cannot be confused with the map-shaped
// plaintext envelopes local workers hand to the channel.
type frame struct {
	_    struct{} `cbor:",toarray"`
	Kind uint8
	Data []byte
}

func encodeFrame(kind uint8, data []byte) []byte {
	buf, err := cbor.Marshal(frame{Kind: kind, Data: data})
	if err != nil {
		// A frame is a fixed shape over opaque bytes; this cannot fail.
		panic(fmt.Sprintf("encode channel frame: %v", err))
	}
	return buf
}

// decodeFrame returns false for payloads that are not channel frames,
// which the channel treats as local plaintext to be encrypted.
func decodeFrame(data []byte) (frame, bool) {
	var f frame
	if err := cbor.Unmarshal(data, &f); err != nil {
		return frame{}, false
	}
	if f.Kind != kindHandshake && f.Kind != kindCiphertext {
		return frame{}, false
	}
	return f, true
}

// envelope is the plaintext carried inside a ciphertext frame: a
// routed message crossing the channel.
type envelope struct {
	Onward  runtime.Route `cbor:"1,keyasint"`
	Return  runtime.Route `cbor:"2,keyasint"`
	Payload []byte        `cbor:"3,keyasint"`
}

// handshakePayload authenticates a handshake: the exported identity and
// its signature over the Noise static key.
type handshakePayload struct {
	Identity  []byte `cbor:"1,keyasint"`
	StaticSig []byte `cbor:"2,keyasint"`
}

// staticSigPrefix domain-separates static-key binding signatures.
const staticSigPrefix = "lattice-noise-static-key:"

func staticSigMaterial(staticKey []byte) []byte {
	return append([]byte(staticSigPrefix), staticKey...)
}
