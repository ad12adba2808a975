// Package lattice holds the domain types shared across the node: the
// error taxonomy, transport descriptors, and node status.
package lattice

import (
	"errors"
	"fmt"
)

// Error kinds. Every error produced by the node wraps exactly one of
// these, so callers classify with errors.Is instead of string matching.
var (
	// ErrInvalid marks malformed or inconsistent input and configuration.
	ErrInvalid = errors.New("invalid")
	// ErrNotFound marks a missing alias, resource, or identity.
	ErrNotFound = errors.New("not found")
	// ErrInternal marks a collaborator failure.
	ErrInternal = errors.New("internal")
	// ErrApplication wraps miscellaneous external errors.
	ErrApplication = errors.New("application")
)

// Invalidf returns an ErrInvalid-kind error.
func Invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// NotFoundf returns an ErrNotFound-kind error.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// Internalf returns an ErrInternal-kind error.
func Internalf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInternal, fmt.Sprintf(format, args...))
}

// TransportType identifies the transport technology behind a binding.
type TransportType uint8

const (
	TransportTCP TransportType = iota + 1
)

func (t TransportType) String() string {
	switch t {
	case TransportTCP:
		return "tcp"
	default:
		return "unknown"
	}
}

// TransportMode distinguishes listening bindings from outgoing connections.
type TransportMode uint8

const (
	TransportListen TransportMode = iota + 1
	TransportConnect
)

func (m TransportMode) String() string {
	switch m {
	case TransportListen:
		return "listen"
	case TransportConnect:
		return "connect"
	default:
		return "unknown"
	}
}

// Transport describes one live network binding.
type Transport struct {
	Type    TransportType
	Mode    TransportMode
	Address string
}

// NodeStatus is the answer to a node status query.
type NodeStatus struct {
	Name           string `cbor:"1,keyasint"`
	State          string `cbor:"2,keyasint"`
	WorkerCount    uint32 `cbor:"3,keyasint"`
	PID            int32  `cbor:"4,keyasint"`
	TransportCount uint32 `cbor:"5,keyasint"`
}
