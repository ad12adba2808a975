// Package sdk is the client for a node's management API. It speaks the
// node wire protocol directly over TCP, so it works against any node
// without being part of a runtime itself.
package sdk

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"lattice"
	"lattice/api"
	"lattice/node"
	"lattice/runtime"
	"lattice/transport/tcp"
)

const (
	dialTimeout    = 10 * time.Second
	defaultTimeout = 30 * time.Second

	// clientAddress is the return address requests carry. The node
	// echoes it back on the reply frame.
	clientAddress runtime.Address = "app"
)

// Client is one connection to a node's management API. It is safe for
// concurrent use; requests are serialized over the connection.
type Client struct {
	mu   sync.Mutex
	conn net.Conn
}

// Dial connects to the management API at address.
func Dial(address string) (*Client, error) {
	conn, err := net.DialTimeout("tcp", address, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("dial node api %s: %w", address, err)
	}
	return &Client{conn: conn}, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// Request performs one management round trip. A 200 body is decoded
// into out when out is non-nil; any other status is returned as an
// error carrying the response text.
func (c *Client) Request(ctx context.Context, method api.Method, path string, body, out any) error {
	req, err := api.NewRequest(method, path, body)
	if err != nil {
		return err
	}
	payload, err := api.Encode(req)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	deadline := time.Now().Add(defaultTimeout)
	if d, ok := ctx.Deadline(); ok {
		deadline = d
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		return err
	}

	err = tcp.WriteFrame(c.conn, runtime.Message{
		Onward:  runtime.Route{node.WorkerAddress},
		Return:  runtime.Route{clientAddress},
		Payload: payload,
	})
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}

	// Skip anything that is not our response; replies to earlier
	// requests may still be in flight after a timeout.
	for {
		msg, err := tcp.ReadFrame(c.conn)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}
		res, err := api.DecodeResponse(msg.Payload)
		if err != nil || res.ID != req.ID {
			continue
		}
		return decodeResult(res, out)
	}
}

func decodeResult(res api.Response, out any) error {
	switch res.Status {
	case api.StatusOK:
		if out != nil && res.HasBody {
			return api.DecodeBody(res.Body, out)
		}
		return nil
	case api.StatusNotFound:
		return lattice.NotFoundf("%s", res.Text())
	case api.StatusBadRequest, api.StatusConflict:
		return lattice.Invalidf("%s", res.Text())
	default:
		return lattice.Internalf("%s", res.Text())
	}
}
