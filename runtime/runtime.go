// Package runtime is the in-process worker fabric. Every stateful
// component of the node runs as a worker owning one mailbox drained by
// one goroutine, so a worker's state is only ever touched by one
// message at a time and messages from any number of senders are
// observed in FIFO order.
package runtime

import (
	"github.com/google/uuid"
)

// Address names one worker on the local node.
type Address string

// Route is an ordered list of worker addresses a message travels through.
type Route []Address

// RandomAddress returns a fresh opaque worker address.
//
// Uniqueness is best effort: collisions are not checked, the keyspace
// makes them negligible.
func RandomAddress() Address {
	return Address(uuid.NewString())
}

// Message is the unit of delivery between workers. Onward is consumed
// one address per hop; Return is how a reply finds its way back.
type Message struct {
	Onward  Route  `cbor:"1,keyasint"`
	Return  Route  `cbor:"2,keyasint"`
	Payload []byte `cbor:"3,keyasint"`
}

// Worker handles messages delivered to one address.
//
// Initialize runs on the worker's own goroutine before the first
// message; by the time Start returns the address is registered, but
// initialization may still be in flight.
type Worker interface {
	Initialize(ctx *Context) error
	Handle(ctx *Context, msg Message) error
}

// WorkerFunc adapts a function to the Worker interface.
type WorkerFunc func(ctx *Context, msg Message) error

func (f WorkerFunc) Initialize(*Context) error { return nil }

func (f WorkerFunc) Handle(ctx *Context, msg Message) error { return f(ctx, msg) }
