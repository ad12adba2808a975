package node

import (
	"sort"
	"sync"

	"lattice/channel"
	"lattice/portal"
	"lattice/runtime"
)

// SecureChannelInfo records an initiator-side secure channel owned by
// this node.
type SecureChannelInfo struct {
	Addr   runtime.Address
	Route  string
	PeerID string

	ch *channel.Channel
}

// ForwarderInfo records a forwarding relay and the route it replays
// messages onto.
type ForwarderInfo struct {
	RelayAddr string
	Route     string
}

// InletInfo records a TCP inlet and the outlet route it feeds.
type InletInfo struct {
	Alias      string
	ListenAddr string
	Route      string

	inlet *portal.Inlet
}

// OutletInfo records a TCP outlet worker and the target it dials.
type OutletInfo struct {
	Alias      string
	Addr       runtime.Address
	TargetAddr string
}

// Registry tracks every live entity the node manager has started, so
// list and show operations answer from local state instead of probing
// workers.
type Registry struct {
	mu sync.Mutex

	channels   map[string]SecureChannelInfo
	listeners  map[string]struct{}
	forwarders map[string]ForwarderInfo
	inlets     map[string]InletInfo
	outlets    map[string]OutletInfo
	services   map[string]string // worker address -> service kind
}

func NewRegistry() *Registry {
	return &Registry{
		channels:   make(map[string]SecureChannelInfo),
		listeners:  make(map[string]struct{}),
		forwarders: make(map[string]ForwarderInfo),
		inlets:     make(map[string]InletInfo),
		outlets:    make(map[string]OutletInfo),
		services:   make(map[string]string),
	}
}

func (r *Registry) addChannel(info SecureChannelInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.channels[string(info.Addr)] = info
}

func (r *Registry) channel(addr string) (SecureChannelInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	info, ok := r.channels[addr]
	return info, ok
}

func (r *Registry) removeChannel(addr string) (SecureChannelInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	info, ok := r.channels[addr]
	if ok {
		delete(r.channels, addr)
	}
	return info, ok
}

func (r *Registry) listChannels() []SecureChannelInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]SecureChannelInfo, 0, len(r.channels))
	for _, info := range r.channels {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Addr < out[j].Addr })
	return out
}

func (r *Registry) addListener(addr string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners[addr] = struct{}{}
}

func (r *Registry) listListeners() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.listeners))
	for addr := range r.listeners {
		out = append(out, addr)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) addForwarder(info ForwarderInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.forwarders[info.RelayAddr] = info
}

func (r *Registry) listForwarders() []ForwarderInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ForwarderInfo, 0, len(r.forwarders))
	for _, info := range r.forwarders {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RelayAddr < out[j].RelayAddr })
	return out
}

func (r *Registry) addInlet(info InletInfo) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.inlets[info.Alias]; exists {
		return false
	}
	r.inlets[info.Alias] = info
	return true
}

func (r *Registry) removeInlet(alias string) (InletInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	info, ok := r.inlets[alias]
	if ok {
		delete(r.inlets, alias)
	}
	return info, ok
}

func (r *Registry) listInlets() []InletInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]InletInfo, 0, len(r.inlets))
	for _, info := range r.inlets {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Alias < out[j].Alias })
	return out
}

func (r *Registry) addOutlet(info OutletInfo) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.outlets[info.Alias]; exists {
		return false
	}
	r.outlets[info.Alias] = info
	return true
}

func (r *Registry) removeOutlet(alias string) (OutletInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	info, ok := r.outlets[alias]
	if ok {
		delete(r.outlets, alias)
	}
	return info, ok
}

func (r *Registry) listOutlets() []OutletInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]OutletInfo, 0, len(r.outlets))
	for _, info := range r.outlets {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Alias < out[j].Alias })
	return out
}

func (r *Registry) addService(addr, kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.services[addr] = kind
}

func (r *Registry) hasService(addr string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.services[addr]
	return ok
}

func (r *Registry) listServices() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]string, len(r.services))
	for addr, kind := range r.services {
		out[addr] = kind
	}
	return out
}
