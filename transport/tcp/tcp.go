// Package tcp bridges TCP sockets into the node's routing fabric.
// Frames are length-prefixed CBOR messages; each live connection gets a
// sender worker so local routes can name the remote node, and inbound
// return routes are rewritten to travel back through the same socket.
package tcp

import (
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"

	"lattice"
	"lattice/runtime"

	"github.com/fxamacker/cbor/v2"
)

// maxFrameSize bounds a single wire message to keep a misbehaving peer
// from exhausting memory.
const maxFrameSize = 8 * 1024 * 1024

// Transport owns this node's live TCP bindings.
type Transport struct {
	node *runtime.Node

	mu        sync.Mutex
	listeners map[string]net.Listener
	conns     map[string]*connection
}

type connection struct {
	c      net.Conn
	sender runtime.Address
}

// New creates a transport bound to the given runtime node.
func New(node *runtime.Node) *Transport {
	return &Transport{
		node:      node,
		listeners: make(map[string]net.Listener),
		conns:     make(map[string]*connection),
	}
}

// Listen starts accepting connections on address and returns the bound
// address (useful with port 0).
func (t *Transport) Listen(address string) (string, error) {
	ln, err := net.Listen("tcp", address)
	if err != nil {
		return "", fmt.Errorf("listen tcp %s: %w", address, err)
	}
	bound := ln.Addr().String()

	t.mu.Lock()
	t.listeners[bound] = ln
	t.mu.Unlock()

	go t.acceptLoop(ln)
	return bound, nil
}

func (t *Transport) acceptLoop(ln net.Listener) {
	for {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		if _, err := t.attach(c, c.RemoteAddr().String()); err != nil {
			slog.Error("Failed to attach inbound connection.", "remote", c.RemoteAddr(), "err", err)
			_ = c.Close()
		}
	}
}

// Connect dials address and returns the sender worker address; routes
// beginning with it reach the remote node.
func (t *Transport) Connect(address string) (runtime.Address, error) {
	c, err := net.Dial("tcp", address)
	if err != nil {
		return "", fmt.Errorf("connect tcp %s: %w", address, err)
	}
	return t.attach(c, address)
}

func (t *Transport) attach(c net.Conn, key string) (runtime.Address, error) {
	sender := runtime.RandomAddress()
	conn := &connection{c: c, sender: sender}

	if err := t.node.Start(sender, &senderWorker{conn: c}); err != nil {
		return "", err
	}

	t.mu.Lock()
	t.conns[key] = conn
	t.mu.Unlock()

	go t.readLoop(conn, key)
	return sender, nil
}

func (t *Transport) readLoop(conn *connection, key string) {
	defer func() {
		_ = conn.c.Close()
		_ = t.node.Stop(conn.sender)
		t.mu.Lock()
		delete(t.conns, key)
		t.mu.Unlock()
	}()

	for {
		msg, err := readFrame(conn.c)
		if err != nil {
			if err != io.EOF {
				slog.Debug("Connection read failed.", "remote", key, "err", err)
			}
			return
		}
		// Replies must travel back over this socket.
		msg.Return = append(runtime.Route{conn.sender}, msg.Return...)
		if err := t.node.Route(msg); err != nil {
			slog.Error("Failed to route inbound message.", "remote", key, "err", err)
		}
	}
}

// Disconnect tears down the listener or connection at address. Unknown
// addresses are a NotFound error, never a silent success.
func (t *Transport) Disconnect(address string) error {
	t.mu.Lock()
	if ln, ok := t.listeners[address]; ok {
		delete(t.listeners, address)
		t.mu.Unlock()
		return ln.Close()
	}
	conn, ok := t.conns[address]
	if ok {
		delete(t.conns, address)
	}
	t.mu.Unlock()
	if !ok {
		return lattice.NotFoundf("no tcp binding at %q", address)
	}
	_ = t.node.Stop(conn.sender)
	return conn.c.Close()
}

// Close tears down every live listener and connection.
func (t *Transport) Close() error {
	t.mu.Lock()
	listeners := t.listeners
	conns := t.conns
	t.listeners = make(map[string]net.Listener)
	t.conns = make(map[string]*connection)
	t.mu.Unlock()

	for _, ln := range listeners {
		_ = ln.Close()
	}
	for _, conn := range conns {
		_ = conn.c.Close()
	}
	return nil
}

// senderWorker writes routed messages out over one socket.
type senderWorker struct {
	conn net.Conn
}

func (w *senderWorker) Initialize(*runtime.Context) error { return nil }

func (w *senderWorker) Handle(_ *runtime.Context, msg runtime.Message) error {
	return WriteFrame(w.conn, msg)
}

// WriteFrame writes one length-prefixed message to a socket.
func WriteFrame(w io.Writer, msg runtime.Message) error {
	data, err := cbor.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	var size [4]byte
	binary.BigEndian.PutUint32(size[:], uint32(len(data)))
	if _, err := w.Write(size[:]); err != nil {
		return fmt.Errorf("write frame size: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// ReadFrame reads one length-prefixed message from a socket.
func ReadFrame(r io.Reader) (runtime.Message, error) {
	return readFrame(r)
}

func readFrame(r io.Reader) (runtime.Message, error) {
	var size [4]byte
	if _, err := io.ReadFull(r, size[:]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return runtime.Message{}, io.EOF
		}
		return runtime.Message{}, fmt.Errorf("read frame size: %w", err)
	}
	n := binary.BigEndian.Uint32(size[:])
	if n > maxFrameSize {
		return runtime.Message{}, lattice.Invalidf("frame of %d bytes exceeds limit", n)
	}
	data := make([]byte, n)
	if _, err := io.ReadFull(r, data); err != nil {
		return runtime.Message{}, fmt.Errorf("read frame: %w", err)
	}
	var msg runtime.Message
	if err := cbor.Unmarshal(data, &msg); err != nil {
		return runtime.Message{}, fmt.Errorf("decode frame: %w", err)
	}
	return msg, nil
}
