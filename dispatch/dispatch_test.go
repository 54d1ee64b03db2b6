package dispatch

import (
	"errors"
	"fmt"
	"net"
	"testing"

	"go.akely.io/pubaddr/config"
	"go.akely.io/pubaddr/migrate"
)

// fakeKernel is a stateful stand-in for the kernel's address and filter
// state, so dispatcher tests can run whole event sequences end to end.
type fakeKernel struct {
	bound   map[string]string // address -> interface
	prefix  map[string]int
	blocked map[string]bool // "iface addr"

	failRemove bool
}

func newFakeKernel() *fakeKernel {
	return &fakeKernel{
		bound:   make(map[string]string),
		prefix:  make(map[string]int),
		blocked: make(map[string]bool),
	}
}

func (k *fakeKernel) AddAddress(iface string, ip net.IP, prefixLen int) error {
	k.bound[ip.String()] = iface
	k.prefix[ip.String()] = prefixLen
	return nil
}

func (k *fakeKernel) RemoveAddress(iface string, ip net.IP, prefixLen int) error {
	if k.failRemove {
		return errors.New("injected remove failure")
	}
	if k.bound[ip.String()] != iface {
		return errors.New("cannot assign requested address")
	}
	delete(k.bound, ip.String())
	delete(k.prefix, ip.String())
	return nil
}

func (k *fakeKernel) ResolveBinding(ip net.IP) (string, int, error) {
	iface, ok := k.bound[ip.String()]
	if !ok {
		return "", 0, errors.New("not bound")
	}
	return iface, k.prefix[ip.String()], nil
}

func (k *fakeKernel) FlushRouteCache(ip net.IP) error { return nil }

func (k *fakeKernel) Block(iface string, ip net.IP) error {
	k.blocked[iface+" "+ip.String()] = true
	return nil
}

func (k *fakeKernel) Unblock(iface string, ip net.IP) error {
	delete(k.blocked, iface+" "+ip.String())
	return nil
}

func (k *fakeKernel) anyBlocked() bool { return len(k.blocked) != 0 }

func (k *fakeKernel) Kill(iface string, ip net.IP) error { return nil }

func (k *fakeKernel) Tickle(ip net.IP) error { return nil }

func (k *fakeKernel) AnnounceAddressMove(ip net.IP, iface string) error { return nil }

type staticProber map[string]bool

func (p staticProber) LinkUp(iface string) (bool, error) { return p[iface], nil }

type countingReporter int

func (r *countingReporter) ReportInterfaceLink(iface string, up bool) error {
	*r++
	return nil
}

type fakeNode struct {
	calls   []string
	initErr error
}

func (n *fakeNode) Init(cfg *config.Config) error {
	n.calls = append(n.calls, "init")
	return n.initErr
}

func (n *fakeNode) Shutdown(cfg *config.Config) {
	n.calls = append(n.calls, "shutdown")
}

func testConfig(partialOnline bool) *config.Config {
	return &config.Config{
		Addresses: []config.PublicAddress{
			{IP: net.ParseIP("10.0.0.5"), PrefixLen: 24, Interface: "eth0"},
			{IP: net.ParseIP("10.0.1.5"), PrefixLen: 24, Interface: "eth1"},
		},
		Options: config.Options{PartialOnline: partialOnline, ARPFilter: true},
	}
}

func newTestDispatcher(cfg *config.Config, k *fakeKernel, p staticProber) (*Dispatcher, *fakeNode, *countingReporter) {
	node := &fakeNode{}
	var reports countingReporter
	d := &Dispatcher{
		Config:   cfg,
		Engine:   &migrate.Engine{Addrs: k, Filter: k, Conns: k, Peers: k},
		Prober:   p,
		Reporter: &reports,
		Node:     node,
	}
	return d, node, &reports
}

func TestDispatch_noConfig(t *testing.T) {
	d := &Dispatcher{Config: nil}

	for _, event := range []string{"init", "startup", "shutdown", "monitor", "takeip", "releaseip", "updateip"} {
		if code := d.Dispatch(event, nil); code != ExitOK {
			t.Errorf("Dispatch(%q) without config = %d; want %d", event, code, ExitOK)
		}
	}
}

func TestDispatch_unknownEvent(t *testing.T) {
	d, _, _ := newTestDispatcher(testConfig(false), newFakeKernel(), nil)

	if code := d.Dispatch("reticulate", nil); code != ExitFailure {
		t.Errorf("Dispatch(reticulate) = %d; want %d", code, ExitFailure)
	}
}

func TestDispatch_arity(t *testing.T) {
	d, _, _ := newTestDispatcher(testConfig(false), newFakeKernel(), staticProber{})

	for _, tc := range []struct {
		event string
		args  []string
	}{
		{"takeip", []string{"eth0", "10.0.0.5"}},
		{"releaseip", []string{"eth0", "10.0.0.5", "24", "extra"}},
		{"updateip", []string{"eth0", "eth1", "10.0.0.5"}},
		{"monitor", []string{"eth0"}},
		{"init", []string{"now"}},
	} {
		if code := d.Dispatch(tc.event, tc.args); code != ExitFailure {
			t.Errorf("Dispatch(%q, %v) = %d; want %d", tc.event, tc.args, code, ExitFailure)
		}
	}
}

func TestDispatch_malformedAddress(t *testing.T) {
	d, _, _ := newTestDispatcher(testConfig(false), newFakeKernel(), nil)

	for _, args := range [][]string{
		{"eth0", "not-an-ip", "24"},
		{"eth0", "10.0.0.5", "abc"},
		{"eth0", "10.0.0.5", "33"},
		{"eth0", "10.0.0.5", "-1"},
	} {
		if code := d.Dispatch("takeip", args); code != ExitFailure {
			t.Errorf("Dispatch(takeip, %v) = %d; want %d", args, code, ExitFailure)
		}
	}
}

func TestDispatch_v6PrefixLength(t *testing.T) {
	d, _, _ := newTestDispatcher(testConfig(false), newFakeKernel(), nil)

	if code := d.Dispatch("takeip", []string{"eth0", "2001:db8::5", "64"}); code != ExitOK {
		t.Errorf("Dispatch(takeip, 2001:db8::5/64) = %d; want %d", code, ExitOK)
	}
}

func TestDispatch_monitorPolicy(t *testing.T) {
	mixed := staticProber{"eth0": true, "eth1": false}

	for _, tc := range []struct {
		name          string
		partialOnline bool
		want          int
	}{
		{"strict", false, ExitFailure},
		{"partialOnline", true, ExitOK},
	} {
		t.Run(tc.name, func(t *testing.T) {
			d, _, reports := newTestDispatcher(testConfig(tc.partialOnline), newFakeKernel(), mixed)

			if code := d.Dispatch("monitor", nil); code != tc.want {
				t.Errorf("Dispatch(monitor) = %d; want %d", code, tc.want)
			}
			if *reports != 2 {
				t.Errorf("expected 2 link reports; got %d", *reports)
			}
		})
	}
}

func TestDispatch_startupRunsMonitor(t *testing.T) {
	d, _, reports := newTestDispatcher(
		testConfig(false), newFakeKernel(), staticProber{"eth0": true, "eth1": true})

	if code := d.Dispatch("startup", nil); code != ExitOK {
		t.Errorf("Dispatch(startup) = %d; want %d", code, ExitOK)
	}
	if *reports != 2 {
		t.Errorf("expected 2 link reports; got %d", *reports)
	}
}

func TestDispatch_initAndShutdown(t *testing.T) {
	d, node, _ := newTestDispatcher(testConfig(false), newFakeKernel(), nil)

	if code := d.Dispatch("init", nil); code != ExitOK {
		t.Errorf("Dispatch(init) = %d; want %d", code, ExitOK)
	}
	if code := d.Dispatch("shutdown", nil); code != ExitOK {
		t.Errorf("Dispatch(shutdown) = %d; want %d", code, ExitOK)
	}
	if got := fmt.Sprint(node.calls); got != "[init shutdown]" {
		t.Errorf("got lifecycle calls %v", node.calls)
	}
}

func TestDispatch_initFailureIsFatal(t *testing.T) {
	d, node, _ := newTestDispatcher(testConfig(false), newFakeKernel(), nil)
	node.initErr = errors.New("kernel lacks promote_secondaries")

	if code := d.Dispatch("init", nil); code != ExitFailure {
		t.Errorf("Dispatch(init) = %d; want %d", code, ExitFailure)
	}
}

// A full takeover/release round trip, then a release forced to fail at
// address removal: the address must end up still present and reachable.
func TestDispatch_takeReleaseScenario(t *testing.T) {
	k := newFakeKernel()
	d, _, _ := newTestDispatcher(testConfig(false), k, nil)

	if code := d.Dispatch("takeip", []string{"eth0", "10.0.0.5", "24"}); code != ExitOK {
		t.Fatalf("Dispatch(takeip) = %d; want %d", code, ExitOK)
	}
	if k.bound["10.0.0.5"] != "eth0" {
		t.Fatalf("expected 10.0.0.5 bound to eth0; got %q", k.bound["10.0.0.5"])
	}

	if code := d.Dispatch("releaseip", []string{"eth0", "10.0.0.5", "24"}); code != ExitOK {
		t.Fatalf("Dispatch(releaseip) = %d; want %d", code, ExitOK)
	}
	if _, ok := k.bound["10.0.0.5"]; ok {
		t.Errorf("expected 10.0.0.5 released; still bound")
	}
	if k.anyBlocked() {
		t.Errorf("expected no drop rules left; got %v", k.blocked)
	}

	// Take it back and force the next release to fail mid-way.
	if code := d.Dispatch("takeip", []string{"eth0", "10.0.0.5", "24"}); code != ExitOK {
		t.Fatalf("Dispatch(takeip) = %d; want %d", code, ExitOK)
	}
	k.failRemove = true
	if code := d.Dispatch("releaseip", []string{"eth0", "10.0.0.5", "24"}); code != ExitFailure {
		t.Fatalf("Dispatch(releaseip) with failing remove = %d; want %d", code, ExitFailure)
	}
	if k.bound["10.0.0.5"] != "eth0" {
		t.Errorf("expected 10.0.0.5 still bound to eth0 after failed release")
	}
	if k.anyBlocked() {
		t.Errorf("expected address reachable after failed release; got blocks %v", k.blocked)
	}
}

// Releasing an address that was never taken exits nonzero but leaves no
// stale drop rule behind.
func TestDispatch_releaseAbsentAddress(t *testing.T) {
	k := newFakeKernel()
	d, _, _ := newTestDispatcher(testConfig(false), k, nil)

	if code := d.Dispatch("releaseip", []string{"eth0", "10.0.0.5", "24"}); code != ExitFailure {
		t.Errorf("Dispatch(releaseip) = %d; want %d", code, ExitFailure)
	}
	if k.anyBlocked() {
		t.Errorf("expected no drop rules left; got %v", k.blocked)
	}
}

func TestDispatch_updateMovesAddress(t *testing.T) {
	k := newFakeKernel()
	d, _, _ := newTestDispatcher(testConfig(false), k, nil)

	if code := d.Dispatch("takeip", []string{"eth0", "10.0.0.5", "24"}); code != ExitOK {
		t.Fatalf("Dispatch(takeip) = %d; want %d", code, ExitOK)
	}
	if code := d.Dispatch("updateip", []string{"eth0", "eth1", "10.0.0.5", "24"}); code != ExitOK {
		t.Fatalf("Dispatch(updateip) = %d; want %d", code, ExitOK)
	}
	if k.bound["10.0.0.5"] != "eth1" {
		t.Errorf("expected 10.0.0.5 on eth1; got %q", k.bound["10.0.0.5"])
	}
	if k.anyBlocked() {
		t.Errorf("expected no drop rules left; got %v", k.blocked)
	}
}
