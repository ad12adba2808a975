package portal

import (
	"fmt"
	"net"
	"testing"
	"time"

	"lattice/runtime"
)

// startUpperServer is a plain TCP server that upper-cases what it reads.
func startUpperServer(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				buf := make([]byte, 1024)
				for {
					n, err := c.Read(buf)
					if n > 0 {
						out := make([]byte, n)
						for i, b := range buf[:n] {
							if 'a' <= b && b <= 'z' {
								b -= 'a' - 'A'
							}
							out[i] = b
						}
						if _, err := c.Write(out); err != nil {
							return
						}
					}
					if err != nil {
						return
					}
				}
			}(conn)
		}
	}()
	return ln.Addr().String()
}

func TestInletOutlet_RelayRoundTrip(t *testing.T) {
	target := startUpperServer(t)

	n := runtime.NewNode()
	if err := n.Start("outlet", NewOutlet(target)); err != nil {
		t.Fatalf("start outlet: %v", err)
	}

	in, bound, err := NewInlet(n, "127.0.0.1:0", runtime.Route{"outlet"})
	if err != nil {
		t.Fatalf("NewInlet: %v", err)
	}
	t.Cleanup(func() { _ = in.Close() })

	conn, err := net.Dial("tcp", bound)
	if err != nil {
		t.Fatalf("dial inlet: %v", err)
	}
	defer conn.Close()

	if _, err := fmt.Fprint(conn, "portal"); err != nil {
		t.Fatalf("write: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	buf := make([]byte, 16)
	nr, err := conn.Read(buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(buf[:nr]) != "PORTAL" {
		t.Fatalf("reply = %q, want PORTAL", buf[:nr])
	}
}
