package node

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"lattice"
	"lattice/api"
	"lattice/identity"
	"lattice/runtime"
)

// startNode builds a manager and registers it on its runtime.
func startNode(t *testing.T, opts Options) (*Manager, *runtime.Node) {
	t.Helper()
	m, err := Create(context.Background(), opts)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })
	if err := opts.Runtime.Start(WorkerAddress, m); err != nil {
		t.Fatalf("Start manager: %v", err)
	}
	return m, opts.Runtime
}

// request performs one management round trip, decoding a 200 body into
// out when asked.
func request(t *testing.T, n *runtime.Node, method api.Method, path string, body, out any) api.Response {
	t.Helper()
	req, err := api.NewRequest(method, path, body)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	payload, err := api.Encode(req)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	raw, err := n.Call(ctx, runtime.Route{WorkerAddress}, payload)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}

	res, err := api.DecodeResponse(raw)
	if err != nil {
		t.Fatalf("DecodeResponse: %v", err)
	}
	if res.ID != req.ID {
		t.Fatalf("response id %d does not echo request id %d", res.ID, req.ID)
	}
	if out != nil && res.Status == api.StatusOK && res.HasBody {
		if err := api.DecodeBody(res.Body, out); err != nil {
			t.Fatalf("DecodeBody: %v", err)
		}
	}
	return res
}

func TestNodeStatus(t *testing.T) {
	_, n := startNode(t, testOptions(t))

	var status lattice.NodeStatus
	res := request(t, n, api.Get, "node", nil, &status)
	if res.Status != api.StatusOK {
		t.Fatalf("status = %d", res.Status)
	}
	if status.Name != "test-node" || status.State != "Running" {
		t.Fatalf("status = %+v", status)
	}
	if status.PID <= 0 || status.WorkerCount == 0 || status.TransportCount == 0 {
		t.Fatalf("status = %+v", status)
	}
}

func TestUnknownEndpointIsRejected(t *testing.T) {
	_, n := startNode(t, testOptions(t))

	res := request(t, n, api.Get, "node/bogus", nil, nil)
	if res.Status != api.StatusBadRequest {
		t.Fatalf("status = %d, want 400", res.Status)
	}
	if got := res.Text(); got != "Invalid endpoint: node/bogus" {
		t.Fatalf("body = %q", got)
	}
}

func TestUndecodableRequestGetsNoReply(t *testing.T) {
	_, n := startNode(t, testOptions(t))

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	_, err := n.Call(ctx, runtime.Route{WorkerAddress}, []byte("\xff\xff not an envelope"))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
}

func TestTransportListenerLifecycle(t *testing.T) {
	_, n := startNode(t, testOptions(t))

	var created TransportStatus
	res := request(t, n, api.Post, "node/tcp/listener", CreateTransportRequest{
		Type:    lattice.TransportTCP,
		Mode:    lattice.TransportListen,
		Address: "127.0.0.1:0",
	}, &created)
	if res.Status != api.StatusOK || created.Address == "" {
		t.Fatalf("create listener: status %d, %+v", res.Status, created)
	}

	var list TransportList
	request(t, n, api.Get, "node/tcp/listener", nil, &list)
	if len(list.Items) != 2 { // the api transport plus the new one
		t.Fatalf("listeners = %+v", list.Items)
	}

	res = request(t, n, api.Delete, "node/tcp/listener", DeleteTransportRequest{Alias: created.Alias}, nil)
	if res.Status != api.StatusOK {
		t.Fatalf("delete: status = %d", res.Status)
	}
	res = request(t, n, api.Delete, "node/tcp/listener", DeleteTransportRequest{Alias: created.Alias}, nil)
	if res.Status != api.StatusNotFound {
		t.Fatalf("second delete: status = %d, want 404", res.Status)
	}
}

func TestAPITransportCannotBeDeleted(t *testing.T) {
	m, n := startNode(t, testOptions(t))

	res := request(t, n, api.Delete, "node/tcp/listener",
		DeleteTransportRequest{Alias: m.apiTransportAlias}, nil)
	if res.Status != api.StatusBadRequest {
		t.Fatalf("status = %d, want 400", res.Status)
	}
}

func TestVaultAndIdentityConflictOnDefaultNode(t *testing.T) {
	m, n := startNode(t, testOptions(t))

	if res := request(t, n, api.Post, "node/vault", nil, nil); res.Status != api.StatusConflict {
		t.Fatalf("vault create: status = %d, want 409", res.Status)
	}
	if res := request(t, n, api.Post, "node/identity", nil, nil); res.Status != api.StatusConflict {
		t.Fatalf("identity create: status = %d, want 409", res.Status)
	}

	ident, err := m.Identity()
	if err != nil {
		t.Fatalf("Identity: %v", err)
	}
	var short ShortIdentityResponse
	request(t, n, api.Post, "node/identity/actions/show/short", nil, &short)
	if short.ID != ident.ID() {
		t.Fatalf("short id = %s, want %s", short.ID, ident.ID())
	}
}

func TestBareNodeVaultIdentityFlow(t *testing.T) {
	opts := testOptions(t)
	opts.SkipDefaults = true
	m, n := startNode(t, opts)

	if res := request(t, n, api.Post, "node/identity", nil, nil); res.Status != api.StatusNotFound {
		t.Fatalf("identity before vault: status = %d, want 404", res.Status)
	}
	if res := request(t, n, api.Post, "node/vault", nil, nil); res.Status != api.StatusOK {
		t.Fatalf("vault create: status = %d", res.Status)
	}

	var created CreateIdentityResponse
	if res := request(t, n, api.Post, "node/identity", nil, &created); res.Status != api.StatusOK {
		t.Fatalf("identity create: status = %d", res.Status)
	}
	if created.ID == "" {
		t.Fatal("identity create returned empty id")
	}

	var long LongIdentityResponse
	request(t, n, api.Post, "node/identity/actions/show/long", nil, &long)
	v, err := m.Vault()
	if err != nil {
		t.Fatalf("Vault: %v", err)
	}
	pub, err := identity.ImportPublic(long.Identity, v)
	if err != nil {
		t.Fatalf("exported identity does not verify: %v", err)
	}
	if pub.ID != created.ID {
		t.Fatalf("exported id = %s, want %s", pub.ID, created.ID)
	}
}

func TestSecureChannelAcrossNodes(t *testing.T) {
	serverOpts := testOptions(t)
	server, _ := startNode(t, serverOpts)
	bound, err := serverOpts.Driver.Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}

	clientOpts := testOptions(t)
	_, client := startNode(t, clientOpts)

	var conn TransportStatus
	res := request(t, client, api.Post, "node/tcp/connection", CreateTransportRequest{
		Type:    lattice.TransportTCP,
		Mode:    lattice.TransportConnect,
		Address: bound,
	}, &conn)
	if res.Status != api.StatusOK {
		t.Fatalf("connect: status = %d", res.Status)
	}

	serverIdent, err := server.Identity()
	if err != nil {
		t.Fatalf("server Identity: %v", err)
	}

	var ch CreateSecureChannelResponse
	res = request(t, client, api.Post, "node/secure_channel", CreateSecureChannelRequest{
		Route: []string{conn.Alias, "api"},
	}, &ch)
	if res.Status != api.StatusOK {
		t.Fatalf("create channel: status = %d, body %q", res.Status, res.Text())
	}
	if ch.PeerID != serverIdent.ID() {
		t.Fatalf("peer = %s, want %s", ch.PeerID, serverIdent.ID())
	}

	// Traffic through the channel reaches the server's workers.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	reply, err := client.Call(ctx, runtime.Route{runtime.Address(ch.Addr), "uppercase"}, []byte("hello"))
	if err != nil {
		t.Fatalf("call through channel: %v", err)
	}
	if string(reply) != "HELLO" {
		t.Fatalf("reply = %q", reply)
	}

	var shown SecureChannelStatus
	request(t, client, api.Get, "node/show_secure_channel", ShowSecureChannelRequest{Addr: ch.Addr}, &shown)
	if shown.PeerID != serverIdent.ID() {
		t.Fatalf("shown = %+v", shown)
	}

	var list SecureChannelList
	request(t, client, api.Get, "node/secure_channel", nil, &list)
	if len(list.Items) != 1 {
		t.Fatalf("channels = %+v", list.Items)
	}

	res = request(t, client, api.Delete, "node/secure_channel", DeleteSecureChannelRequest{Addr: ch.Addr}, nil)
	if res.Status != api.StatusOK {
		t.Fatalf("delete channel: status = %d", res.Status)
	}
	request(t, client, api.Get, "node/secure_channel", nil, &list)
	if len(list.Items) != 0 {
		t.Fatalf("channels after delete = %+v", list.Items)
	}
}

func TestForwarderRelaysTraffic(t *testing.T) {
	_, n := startNode(t, testOptions(t))

	var fwd ForwarderStatus
	res := request(t, n, api.Post, "node/forwarder", CreateForwarderRequest{
		Route: []string{"forwarding_service"},
	}, &fwd)
	if res.Status != api.StatusOK || fwd.RelayAddr == "" {
		t.Fatalf("create forwarder: status %d, %+v", res.Status, fwd)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	reply, err := n.Call(ctx, runtime.Route{runtime.Address(fwd.RelayAddr), "echo"}, []byte("ping"))
	if err != nil {
		t.Fatalf("call through relay: %v", err)
	}
	if string(reply) != "ping" {
		t.Fatalf("reply = %q", reply)
	}
}

func TestStartService(t *testing.T) {
	_, n := startNode(t, testOptions(t))

	// The default address is already taken by the default services.
	res := request(t, n, api.Post, "node/services/uppercase", nil, nil)
	if res.Status != api.StatusBadRequest {
		t.Fatalf("duplicate service: status = %d, want 400", res.Status)
	}

	var started ServiceStatus
	res = request(t, n, api.Post, "node/services/uppercase", StartServiceRequest{Addr: "uppercase2"}, &started)
	if res.Status != api.StatusOK || started.Addr != "uppercase2" {
		t.Fatalf("start service: status %d, %+v", res.Status, started)
	}

	var list ServiceList
	request(t, n, api.Get, "node/services", nil, &list)
	found := false
	for _, s := range list.Items {
		if s.Addr == "uppercase2" && s.Kind == "uppercase" {
			found = true
		}
	}
	if !found {
		t.Fatalf("services = %+v", list.Items)
	}
}

func TestCloudProxy(t *testing.T) {
	opts := testOptions(t)
	opts.ControllerRoute = []string{"controller"}
	_, n := startNode(t, opts)

	// Fake controller answering every request with "pong".
	err := n.Start("controller", runtime.WorkerFunc(func(ctx *runtime.Context, msg runtime.Message) error {
		req, err := api.DecodeRequest(msg.Payload)
		if err != nil {
			return err
		}
		res, err := api.OK(req.ID, "pong")
		if err != nil {
			return err
		}
		payload, err := api.Encode(res)
		if err != nil {
			return err
		}
		return ctx.Reply(msg, payload)
	}))
	if err != nil {
		t.Fatalf("start fake controller: %v", err)
	}

	// Subscription paths are served without the v0 prefix.
	paths := []string{
		"v0/spaces",
		"v0/projects/proj/enrollments",
		"subscription",
		"subscription/sub1",
		"subscription/sub1/contact_info",
	}
	for _, path := range paths {
		var body string
		res := request(t, n, api.Get, path, nil, &body)
		if res.Status != api.StatusOK || body != "pong" {
			t.Fatalf("proxy %s: status %d, body %q", path, res.Status, body)
		}
	}
}

func TestCloudProxyWithoutControllerRoute(t *testing.T) {
	_, n := startNode(t, testOptions(t))

	res := request(t, n, api.Get, "v0/projects", nil, nil)
	if res.Status != api.StatusBadRequest {
		t.Fatalf("status = %d, want 400", res.Status)
	}
}

func TestPresentCredentialRequiresAuthorities(t *testing.T) {
	_, n := startNode(t, testOptions(t))

	// Presenting must fail on the missing trust context, not on the
	// missing cached credential.
	res := request(t, n, api.Post, "node/credentials/actions/present", PresentCredentialRequest{
		Route: []string{"credentials"},
	}, nil)
	if res.Status != api.StatusNotFound {
		t.Fatalf("status = %d, want 404", res.Status)
	}
	if got := res.Text(); !strings.Contains(got, "authorities") {
		t.Fatalf("body = %q", got)
	}
}

func TestSendMessage(t *testing.T) {
	_, n := startNode(t, testOptions(t))

	var reply []byte
	res := request(t, n, api.Post, "v0/message", SendMessageRequest{
		Route:   []string{"echo"},
		Message: []byte("ping"),
	}, &reply)
	if res.Status != api.StatusOK || string(reply) != "ping" {
		t.Fatalf("send message: status %d, reply %q", res.Status, reply)
	}
}

func TestPortalThroughAPI(t *testing.T) {
	_, n := startNode(t, testOptions(t))

	// Plain TCP echo backend.
	backend, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("backend listen: %v", err)
	}
	defer backend.Close()
	go func() {
		for {
			c, err := backend.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				_, _ = io.Copy(c, c)
			}(c)
		}
	}()

	var outlet OutletStatus
	res := request(t, n, api.Post, "node/outlet", CreateOutletRequest{
		TargetAddr: backend.Addr().String(),
		Alias:      "backend-out",
	}, &outlet)
	if res.Status != api.StatusOK {
		t.Fatalf("create outlet: status = %d", res.Status)
	}

	var inlet InletStatus
	res = request(t, n, api.Post, "node/inlet", CreateInletRequest{
		ListenAddr:  "127.0.0.1:0",
		OutletRoute: []string{outlet.Addr},
		Alias:       "backend-in",
	}, &inlet)
	if res.Status != api.StatusOK {
		t.Fatalf("create inlet: status = %d", res.Status)
	}

	conn, err := net.Dial("tcp", inlet.ListenAddr)
	if err != nil {
		t.Fatalf("dial inlet: %v", err)
	}
	defer conn.Close()
	if _, err := conn.Write([]byte("through the portal")); err != nil {
		t.Fatalf("write: %v", err)
	}
	buf := make([]byte, 64)
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	nr, err := conn.Read(buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got := string(buf[:nr]); got != "through the portal" {
		t.Fatalf("echoed = %q", got)
	}

	res = request(t, n, api.Delete, "node/inlet/backend-in", nil, nil)
	if res.Status != api.StatusOK {
		t.Fatalf("delete inlet: status = %d", res.Status)
	}
	res = request(t, n, api.Delete, "node/outlet/backend-out", nil, nil)
	if res.Status != api.StatusOK {
		t.Fatalf("delete outlet: status = %d", res.Status)
	}
	res = request(t, n, api.Delete, "node/outlet/backend-out", nil, nil)
	if res.Status != api.StatusNotFound {
		t.Fatalf("second delete: status = %d, want 404", res.Status)
	}
}

func TestCredentialFlowThroughAPI(t *testing.T) {
	// Authority node issuing credentials for the project.
	authorityOpts := testOptions(t)
	authorityOpts.ProjectID = []byte("project-1")
	authority, authorityRT := startNode(t, authorityOpts)
	authIdent, err := authority.Identity()
	if err != nil {
		t.Fatalf("authority Identity: %v", err)
	}
	exported, err := authIdent.Export()
	if err != nil {
		t.Fatalf("authority Export: %v", err)
	}

	res := request(t, authorityRT, api.Post, "node/services/authenticator", nil, nil)
	if res.Status != api.StatusOK {
		t.Fatalf("start authenticator: status = %d, body %q", res.Status, res.Text())
	}

	// Member node trusting the authority. Same runtime keeps the
	// test to one process: the member reaches the authenticator by
	// its worker address.
	memberOpts := testOptions(t)
	memberOpts.Runtime = authorityRT
	memberOpts.Driver = authorityOpts.Driver
	memberOpts.SkipDefaults = true
	member, err := Create(context.Background(), memberOpts)
	if err != nil {
		t.Fatalf("Create member: %v", err)
	}
	t.Cleanup(func() { _ = member.Close() })
	if err := member.createDefaults(); err != nil {
		t.Fatalf("member defaults: %v", err)
	}
	err = member.configureAuthorities(&AuthoritiesConfig{Authorities: []AuthorityConfig{
		{Identity: exported, Address: "local"},
	}})
	if err != nil {
		t.Fatalf("member authorities: %v", err)
	}
	if err := authorityRT.Start("member-manager", member); err != nil {
		t.Fatalf("start member manager: %v", err)
	}

	memberReq := func(method api.Method, path string, body, out any) api.Response {
		t.Helper()
		req, err := api.NewRequest(method, path, body)
		if err != nil {
			t.Fatalf("NewRequest: %v", err)
		}
		payload, err := api.Encode(req)
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		raw, err := authorityRT.Call(ctx, runtime.Route{"member-manager"}, payload)
		if err != nil {
			t.Fatalf("%s %s: %v", method, path, err)
		}
		r, err := api.DecodeResponse(raw)
		if err != nil {
			t.Fatalf("DecodeResponse: %v", err)
		}
		if out != nil && r.Status == api.StatusOK && r.HasBody {
			if err := api.DecodeBody(r.Body, out); err != nil {
				t.Fatalf("DecodeBody: %v", err)
			}
		}
		return r
	}

	var cred identity.Credential
	res = memberReq(api.Post, "node/credentials/actions/get", GetCredentialRequest{
		Route: []string{"authenticator"},
	}, &cred)
	if res.Status != api.StatusOK {
		t.Fatalf("get credential: status = %d, body %q", res.Status, res.Text())
	}
	memberIdent, err := member.Identity()
	if err != nil {
		t.Fatalf("member Identity: %v", err)
	}
	if cred.Subject != memberIdent.ID() || cred.Issuer != authIdent.ID() {
		t.Fatalf("credential = %+v", cred)
	}

	// The authority trusts itself, so its credential exchange
	// accepts the member's credential.
	res = request(t, authorityRT, api.Post, "node/services/credentials", nil, nil)
	if res.Status == api.StatusOK {
		t.Fatal("credentials service started without authorities")
	}
	err = authority.configureAuthorities(&AuthoritiesConfig{Authorities: []AuthorityConfig{
		{Identity: exported, Address: "local"},
	}})
	if err != nil {
		t.Fatalf("authority authorities: %v", err)
	}
	res = request(t, authorityRT, api.Post, "node/services/credentials", nil, nil)
	if res.Status != api.StatusOK {
		t.Fatalf("start credentials service: status = %d, body %q", res.Status, res.Text())
	}

	res = memberReq(api.Post, "node/credentials/actions/present", PresentCredentialRequest{
		Route: []string{"credentials"},
	}, nil)
	if res.Status != api.StatusOK {
		t.Fatalf("present credential: status = %d, body %q", res.Status, res.Text())
	}

	// Presentation recorded the attested attributes server-side.
	stored, err := authority.authStore.List(context.Background(), memberIdent.ID())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(stored) == 0 {
		t.Fatal("no attributes recorded after presentation")
	}
}
