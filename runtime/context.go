package runtime

import "slices"

// Context is a worker's handle to the node it runs on.
type Context struct {
	node *Node
	addr Address
}

// Address returns the address the worker is registered at.
func (c *Context) Address() Address { return c.addr }

// Node returns the node the worker runs on.
func (c *Context) Node() *Node { return c.node }

// Send routes payload along route with this worker as the return hop.
func (c *Context) Send(route Route, payload []byte) error {
	return c.node.Route(Message{
		Onward:  slices.Clone(route),
		Return:  Route{c.addr},
		Payload: payload,
	})
}

// Reply routes payload back along the return route of msg.
func (c *Context) Reply(msg Message, payload []byte) error {
	return c.node.Route(Message{
		Onward:  slices.Clone(msg.Return),
		Return:  Route{c.addr},
		Payload: payload,
	})
}

// Forward re-routes msg unchanged along its onward route, prepending
// this worker to the return route so replies travel back through it.
func (c *Context) Forward(msg Message) error {
	out := msg
	out.Return = append(Route{c.addr}, msg.Return...)
	return c.node.Route(out)
}
