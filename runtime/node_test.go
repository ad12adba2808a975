package runtime

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"lattice"
)

type echoWorker struct{}

func (echoWorker) Initialize(*Context) error { return nil }

func (echoWorker) Handle(ctx *Context, msg Message) error {
	return ctx.Reply(msg, msg.Payload)
}

func TestStart_OccupiedAddress(t *testing.T) {
	n := NewNode()
	if err := n.Start("a", echoWorker{}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	err := n.Start("a", echoWorker{})
	if err == nil {
		t.Fatal("second Start at same address should fail")
	}
	if !errors.Is(err, lattice.ErrInvalid) {
		t.Fatalf("Start error = %v, want ErrInvalid", err)
	}
}

func TestStop_UnknownAddress(t *testing.T) {
	n := NewNode()
	if err := n.Stop("missing"); !errors.Is(err, lattice.ErrNotFound) {
		t.Fatalf("Stop error = %v, want ErrNotFound", err)
	}
}

func TestCall_RoundTrip(t *testing.T) {
	n := NewNode()
	if err := n.Start("echo", echoWorker{}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got, err := n.Call(ctx, Route{"echo"}, []byte("hello"))
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if string(got) != "hello" {
		t.Fatalf("Call reply = %q, want %q", got, "hello")
	}
}

func TestRoute_UnknownAddress(t *testing.T) {
	n := NewNode()
	err := n.Route(Message{Onward: Route{"missing"}})
	if !errors.Is(err, lattice.ErrNotFound) {
		t.Fatalf("Route error = %v, want ErrNotFound", err)
	}
}

// slowThenFastWorker sleeps on its first message only. If ordering were
// not FIFO the second message would be handled first.
type recordingWorker struct {
	mu    sync.Mutex
	seen  []string
	first bool
	done  chan struct{}
}

func (w *recordingWorker) Initialize(*Context) error { return nil }

func (w *recordingWorker) Handle(_ *Context, msg Message) error {
	if !w.first {
		w.first = true
		time.Sleep(50 * time.Millisecond)
	}
	w.mu.Lock()
	w.seen = append(w.seen, string(msg.Payload))
	if len(w.seen) == 2 {
		close(w.done)
	}
	w.mu.Unlock()
	return nil
}

func TestRoute_FIFOUnderSlowHandler(t *testing.T) {
	n := NewNode()
	w := &recordingWorker{done: make(chan struct{})}
	if err := n.Start("rec", w); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := n.Route(Message{Onward: Route{"rec"}, Payload: []byte("slow")}); err != nil {
		t.Fatalf("Route: %v", err)
	}
	if err := n.Route(Message{Onward: Route{"rec"}, Payload: []byte("fast")}); err != nil {
		t.Fatalf("Route: %v", err)
	}

	select {
	case <-w.done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for both messages")
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.seen[0] != "slow" || w.seen[1] != "fast" {
		t.Fatalf("delivery order = %v, want [slow fast]", w.seen)
	}
}

func TestStop_RemovesFromWorkers(t *testing.T) {
	n := NewNode()
	if err := n.Start("a", echoWorker{}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := n.Stop("a"); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if len(n.Workers()) != 0 {
		t.Fatalf("Workers = %v, want empty", n.Workers())
	}
}
