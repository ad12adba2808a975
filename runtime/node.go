package runtime

import (
	"context"
	"log/slog"
	"slices"
	"sort"
	"sync"

	"lattice"
)

// mailboxDepth bounds a worker's queue. A full mailbox makes senders
// wait; messages are never dropped or reordered.
const mailboxDepth = 128

// Node owns the worker registry and routes messages between mailboxes.
type Node struct {
	mu      sync.RWMutex
	workers map[Address]*mailbox
}

type mailbox struct {
	addr Address
	ch   chan Message
	quit chan struct{}
}

// NewNode creates an empty worker registry.
func NewNode() *Node {
	return &Node{workers: make(map[Address]*mailbox)}
}

// Start registers w at addr and begins draining its mailbox. The
// address is registered when Start returns; the worker's Initialize
// may still be running. Starting over an occupied address is an error,
// never a silent replacement.
func (n *Node) Start(addr Address, w Worker) error {
	n.mu.Lock()
	if _, ok := n.workers[addr]; ok {
		n.mu.Unlock()
		return lattice.Invalidf("address %q already in use", addr)
	}
	mb := &mailbox{
		addr: addr,
		ch:   make(chan Message, mailboxDepth),
		quit: make(chan struct{}),
	}
	n.workers[addr] = mb
	n.mu.Unlock()

	go n.run(mb, w)
	return nil
}

func (n *Node) run(mb *mailbox, w Worker) {
	ctx := &Context{node: n, addr: mb.addr}

	if err := w.Initialize(ctx); err != nil {
		slog.Error("Worker initialization failed.", "addr", mb.addr, "err", err)
		_ = n.Stop(mb.addr)
		return
	}

	for {
		select {
		case <-mb.quit:
			return
		case msg := <-mb.ch:
			if err := w.Handle(ctx, msg); err != nil {
				slog.Error("Worker failed to handle message.", "addr", mb.addr, "err", err)
			}
		}
	}
}

// Stop deregisters the worker at addr and stops its mailbox. An
// in-flight message finishes; queued messages are discarded.
func (n *Node) Stop(addr Address) error {
	n.mu.Lock()
	mb, ok := n.workers[addr]
	if ok {
		delete(n.workers, addr)
	}
	n.mu.Unlock()
	if !ok {
		return lattice.NotFoundf("no worker at address %q", addr)
	}
	close(mb.quit)
	return nil
}

// Workers returns the sorted addresses of all registered workers.
func (n *Node) Workers() []Address {
	n.mu.RLock()
	defer n.mu.RUnlock()
	addrs := make([]Address, 0, len(n.workers))
	for a := range n.workers {
		addrs = append(addrs, a)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })
	return addrs
}

// Route delivers msg to the worker named by the head of its onward
// route; the worker observes the remainder of the route. Delivery to a
// full mailbox blocks the sender rather than dropping the message.
func (n *Node) Route(msg Message) error {
	if len(msg.Onward) == 0 {
		return lattice.Invalidf("message has an empty onward route")
	}
	head := msg.Onward[0]

	n.mu.RLock()
	mb, ok := n.workers[head]
	n.mu.RUnlock()
	if !ok {
		return lattice.NotFoundf("no worker at address %q", head)
	}

	next := msg
	next.Onward = slices.Clone(msg.Onward[1:])

	select {
	case mb.ch <- next:
		return nil
	case <-mb.quit:
		return lattice.NotFoundf("worker at address %q stopped", head)
	}
}

// Call sends payload along route from an ephemeral address and waits
// for a single reply. The runtime applies no timeout of its own; bound
// the wait through ctx.
func (n *Node) Call(ctx context.Context, route Route, payload []byte) ([]byte, error) {
	addr := RandomAddress()
	replies := make(chan Message, 1)
	if err := n.Start(addr, WorkerFunc(func(_ *Context, msg Message) error {
		select {
		case replies <- msg:
		default:
		}
		return nil
	})); err != nil {
		return nil, err
	}
	defer func() { _ = n.Stop(addr) }()

	err := n.Route(Message{
		Onward:  slices.Clone(route),
		Return:  Route{addr},
		Payload: payload,
	})
	if err != nil {
		return nil, err
	}

	select {
	case msg := <-replies:
		return msg.Payload, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
