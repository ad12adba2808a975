package node

import (
	"lattice"
	"lattice/runtime"
)

// Request and reply bodies for the management surface. Field keys are
// small integers so both sides of the wire stay compact and
// rename-tolerant.

type CreateTransportRequest struct {
	Type    lattice.TransportType `cbor:"1,keyasint"`
	Mode    lattice.TransportMode `cbor:"2,keyasint"`
	Address string                `cbor:"3,keyasint"`
}

type TransportStatus struct {
	Alias   string                `cbor:"1,keyasint"`
	Type    lattice.TransportType `cbor:"2,keyasint"`
	Mode    lattice.TransportMode `cbor:"3,keyasint"`
	Address string                `cbor:"4,keyasint"`
}

type TransportList struct {
	Items []TransportStatus `cbor:"1,keyasint"`
}

type DeleteTransportRequest struct {
	Alias string `cbor:"1,keyasint"`
}

type CreateVaultRequest struct {
	Path string `cbor:"1,keyasint,omitempty"`
}

type CreateIdentityResponse struct {
	ID string `cbor:"1,keyasint"`
}

type ShortIdentityResponse struct {
	ID string `cbor:"1,keyasint"`
}

type LongIdentityResponse struct {
	Identity []byte `cbor:"1,keyasint"`
}

type CreateSecureChannelRequest struct {
	Route                 []string `cbor:"1,keyasint"`
	AuthorizedIdentifiers []string `cbor:"2,keyasint,omitempty"`
}

type CreateSecureChannelResponse struct {
	Addr   string `cbor:"1,keyasint"`
	PeerID string `cbor:"2,keyasint"`
}

type DeleteSecureChannelRequest struct {
	Addr string `cbor:"1,keyasint"`
}

type DeleteSecureChannelResponse struct {
	Addr string `cbor:"1,keyasint"`
}

type ShowSecureChannelRequest struct {
	Addr string `cbor:"1,keyasint"`
}

type SecureChannelStatus struct {
	Addr   string `cbor:"1,keyasint"`
	Route  string `cbor:"2,keyasint"`
	PeerID string `cbor:"3,keyasint"`
}

type SecureChannelList struct {
	Items []SecureChannelStatus `cbor:"1,keyasint"`
}

type CreateSecureChannelListenerRequest struct {
	Addr                  string   `cbor:"1,keyasint"`
	AuthorizedIdentifiers []string `cbor:"2,keyasint,omitempty"`
}

type SecureChannelListenerList struct {
	Addrs []string `cbor:"1,keyasint"`
}

type StartServiceRequest struct {
	Addr string `cbor:"1,keyasint,omitempty"`
}

type ServiceStatus struct {
	Addr string `cbor:"1,keyasint"`
	Kind string `cbor:"2,keyasint"`
}

type ServiceList struct {
	Items []ServiceStatus `cbor:"1,keyasint"`
}

type CreateForwarderRequest struct {
	Route []string `cbor:"1,keyasint"`
}

type ForwarderStatus struct {
	RelayAddr string `cbor:"1,keyasint"`
	Route     string `cbor:"2,keyasint"`
}

type CreateInletRequest struct {
	ListenAddr  string   `cbor:"1,keyasint"`
	OutletRoute []string `cbor:"2,keyasint"`
	Alias       string   `cbor:"3,keyasint,omitempty"`
}

type InletStatus struct {
	Alias      string `cbor:"1,keyasint"`
	ListenAddr string `cbor:"2,keyasint"`
	Route      string `cbor:"3,keyasint"`
}

type InletList struct {
	Items []InletStatus `cbor:"1,keyasint"`
}

type CreateOutletRequest struct {
	TargetAddr string `cbor:"1,keyasint"`
	Alias      string `cbor:"2,keyasint,omitempty"`
}

type OutletStatus struct {
	Alias      string `cbor:"1,keyasint"`
	Addr       string `cbor:"2,keyasint"`
	TargetAddr string `cbor:"3,keyasint"`
}

type OutletList struct {
	Items []OutletStatus `cbor:"1,keyasint"`
}

type GetCredentialRequest struct {
	Route     []string `cbor:"1,keyasint"`
	Overwrite bool     `cbor:"2,keyasint,omitempty"`
}

type PresentCredentialRequest struct {
	Route []string `cbor:"1,keyasint"`
}

type SendMessageRequest struct {
	Route   []string `cbor:"1,keyasint"`
	Message []byte   `cbor:"2,keyasint"`
}

// toRoute converts the wire form of a route into runtime addresses.
func toRoute(hops []string) runtime.Route {
	route := make(runtime.Route, 0, len(hops))
	for _, hop := range hops {
		route = append(route, runtime.Address(hop))
	}
	return route
}

func routeString(hops []string) string {
	s := ""
	for i, hop := range hops {
		if i > 0 {
			s += " => "
		}
		s += hop
	}
	return s
}
