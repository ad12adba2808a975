package tcp

import (
	"context"
	"errors"
	"testing"
	"time"

	"lattice"
	"lattice/runtime"
)

type echoWorker struct{}

func (echoWorker) Initialize(*runtime.Context) error { return nil }

func (echoWorker) Handle(ctx *runtime.Context, msg runtime.Message) error {
	return ctx.Reply(msg, msg.Payload)
}

func TestConnect_RoundTripBetweenNodes(t *testing.T) {
	server := runtime.NewNode()
	if err := server.Start("echo", echoWorker{}); err != nil {
		t.Fatalf("Start echo: %v", err)
	}
	serverTCP := New(server)
	bound, err := serverTCP.Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer func() { _ = serverTCP.Close() }()

	client := runtime.NewNode()
	clientTCP := New(client)
	defer func() { _ = clientTCP.Close() }()

	sender, err := clientTCP.Connect(bound)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got, err := client.Call(ctx, runtime.Route{sender, "echo"}, []byte("ping"))
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if string(got) != "ping" {
		t.Fatalf("reply = %q, want ping", got)
	}
}

func TestDisconnect_UnknownAddress(t *testing.T) {
	tr := New(runtime.NewNode())
	if err := tr.Disconnect("127.0.0.1:1"); !errors.Is(err, lattice.ErrNotFound) {
		t.Fatalf("Disconnect = %v, want ErrNotFound", err)
	}
}

func TestDisconnect_Listener(t *testing.T) {
	tr := New(runtime.NewNode())
	bound, err := tr.Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	if err := tr.Disconnect(bound); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	// Second teardown of the same address reports NotFound.
	if err := tr.Disconnect(bound); !errors.Is(err, lattice.ErrNotFound) {
		t.Fatalf("second Disconnect = %v, want ErrNotFound", err)
	}
}
