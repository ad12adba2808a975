package node

import (
	"context"
	"log/slog"

	"lattice"
	"lattice/api"
	"lattice/portal"
	"lattice/runtime"
)

// handleCreateInlet binds a TCP inlet and wires it to the outlet
// reachable over the request's route. Aliases must be unique among
// inlets.
func (m *Manager) handleCreateInlet(_ context.Context, req api.Request, _ []string) (api.Response, error) {
	var body CreateInletRequest
	if err := api.DecodeBody(req.Body, &body); err != nil {
		return api.Response{}, lattice.Invalidf("%v", err)
	}
	if len(body.OutletRoute) == 0 {
		return api.Response{}, lattice.Invalidf("a route to the outlet is required")
	}

	alias := body.Alias
	if alias == "" {
		alias = string(runtime.RandomAddress())
	}

	inlet, bound, err := portal.NewInlet(m.rt, body.ListenAddr, toRoute(body.OutletRoute))
	if err != nil {
		return api.Response{}, err
	}

	info := InletInfo{
		Alias:      alias,
		ListenAddr: bound,
		Route:      routeString(body.OutletRoute),
		inlet:      inlet,
	}
	if !m.registry.addInlet(info) {
		_ = inlet.Close()
		return api.Error(req.ID, api.StatusConflict, "inlet alias already in use"), nil
	}

	slog.Info("Created inlet.", "alias", alias, "listen", bound)
	return api.OK(req.ID, InletStatus{Alias: alias, ListenAddr: bound, Route: info.Route})
}

func (m *Manager) handleDeleteInlet(_ context.Context, req api.Request, args []string) (api.Response, error) {
	alias := args[0]
	info, ok := m.registry.removeInlet(alias)
	if !ok {
		return api.Response{}, lattice.NotFoundf("inlet %s does not exist", alias)
	}
	if err := info.inlet.Close(); err != nil {
		return api.Response{}, err
	}
	slog.Info("Deleted inlet.", "alias", alias)
	return api.OK(req.ID, nil)
}

func (m *Manager) handleListInlets(_ context.Context, req api.Request, _ []string) (api.Response, error) {
	return api.OK(req.ID, m.inletList())
}

func (m *Manager) inletList() InletList {
	var list InletList
	for _, info := range m.registry.listInlets() {
		list.Items = append(list.Items, InletStatus{
			Alias:      info.Alias,
			ListenAddr: info.ListenAddr,
			Route:      info.Route,
		})
	}
	return list
}

// handleCreateOutlet starts an outlet worker relaying portal traffic to
// a local TCP target.
func (m *Manager) handleCreateOutlet(_ context.Context, req api.Request, _ []string) (api.Response, error) {
	var body CreateOutletRequest
	if err := api.DecodeBody(req.Body, &body); err != nil {
		return api.Response{}, lattice.Invalidf("%v", err)
	}
	if body.TargetAddr == "" {
		return api.Response{}, lattice.Invalidf("a target address is required")
	}

	alias := body.Alias
	if alias == "" {
		alias = string(runtime.RandomAddress())
	}
	addr := runtime.Address(alias)

	if err := m.rt.Start(addr, portal.NewOutlet(body.TargetAddr)); err != nil {
		return api.Response{}, err
	}

	info := OutletInfo{Alias: alias, Addr: addr, TargetAddr: body.TargetAddr}
	if !m.registry.addOutlet(info) {
		_ = m.rt.Stop(addr)
		return api.Error(req.ID, api.StatusConflict, "outlet alias already in use"), nil
	}

	slog.Info("Created outlet.", "alias", alias, "target", body.TargetAddr)
	return api.OK(req.ID, OutletStatus{
		Alias:      alias,
		Addr:       string(addr),
		TargetAddr: body.TargetAddr,
	})
}

func (m *Manager) handleDeleteOutlet(_ context.Context, req api.Request, args []string) (api.Response, error) {
	alias := args[0]
	info, ok := m.registry.removeOutlet(alias)
	if !ok {
		return api.Response{}, lattice.NotFoundf("outlet %s does not exist", alias)
	}
	if err := m.rt.Stop(info.Addr); err != nil {
		return api.Response{}, err
	}
	slog.Info("Deleted outlet.", "alias", alias)
	return api.OK(req.ID, nil)
}

func (m *Manager) handleListOutlets(_ context.Context, req api.Request, _ []string) (api.Response, error) {
	return api.OK(req.ID, m.outletList())
}

func (m *Manager) outletList() OutletList {
	var list OutletList
	for _, info := range m.registry.listOutlets() {
		list.Items = append(list.Items, OutletStatus{
			Alias:      info.Alias,
			Addr:       string(info.Addr),
			TargetAddr: info.TargetAddr,
		})
	}
	return list
}

// handleListPortals reports inlets and outlets together.
func (m *Manager) handleListPortals(_ context.Context, req api.Request, _ []string) (api.Response, error) {
	type portalList struct {
		Inlets  []InletStatus  `cbor:"1,keyasint"`
		Outlets []OutletStatus `cbor:"2,keyasint"`
	}
	return api.OK(req.ID, portalList{
		Inlets:  m.inletList().Items,
		Outlets: m.outletList().Items,
	})
}
