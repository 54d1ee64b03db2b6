// Package lifecycle handles node startup and shutdown for public
// addressing: kernel hardening on init and the idempotent drop of every
// configured address, which both cleans up after an ungraceful previous
// termination and quiesces the node on the way down.
package lifecycle

import (
	"fmt"
	"net"
	"os"

	"go.akely.io/pubaddr/config"
	"go.akely.io/pubaddr/log"
)

const (
	arpFilterSysctl          = "/proc/sys/net/ipv4/conf/all/arp_filter"
	promoteSecondariesSysctl = "/proc/sys/net/ipv4/conf/all/promote_secondaries"
)

// AddressConfig is the slice of the configuration service lifecycle needs.
type AddressConfig interface {
	RemoveAddress(iface string, ip net.IP, prefixLen int) error
	ResolveBinding(ip net.IP) (iface string, prefixLen int, err error)
}

type Node struct {
	Addrs AddressConfig

	// Overridable for tests; defaults write /proc/sys.
	writeSysctl func(path string) error
}

func NewNode(addrs AddressConfig) *Node {
	return &Node{Addrs: addrs, writeSysctl: writeSysctl}
}

// Init prepares the kernel for hosting public addresses and drops any
// configured address a previous unclean run may have left behind. The
// promote_secondaries requirement is hard: without it, removing a primary
// address silently takes its secondaries with it, which breaks the
// release guarantees.
func (n *Node) Init(cfg *config.Config) error {
	if cfg.Options.ARPFilter {
		if err := n.writeSysctl(arpFilterSysctl); err != nil {
			if os.IsNotExist(err) {
				log.Infof("lifecycle: arp_filter not supported by this kernel")
			} else {
				log.Warningf("lifecycle: could not enable arp_filter: %v", err)
			}
		}
	}

	if err := n.writeSysctl(promoteSecondariesSysctl); err != nil {
		return fmt.Errorf("lifecycle: kernel lacks promote_secondaries, refusing to manage public addresses: %w", err)
	}

	n.DropAll(cfg)
	return nil
}

// Shutdown drops every configured public address from every interface.
func (n *Node) Shutdown(cfg *config.Config) {
	n.DropAll(cfg)
}

// DropAll removes every configured public address from whichever
// interface the kernel has it bound to. Addresses that are not bound
// anywhere are skipped; removal failures are logged and the pass
// continues, since a partial cleanup is still better than none.
func (n *Node) DropAll(cfg *config.Config) {
	for _, a := range cfg.Addresses {
		iface, prefixLen, err := n.Addrs.ResolveBinding(a.IP)
		if err != nil {
			log.V(2).Infof("lifecycle: %v not bound locally: %v", a.IP, err)
			continue
		}
		if err := n.Addrs.RemoveAddress(iface, a.IP, prefixLen); err != nil {
			log.Warningf("lifecycle: could not drop %v from %q: %v", a.IP, iface, err)
			continue
		}
		log.Infof("lifecycle: dropped %v/%d from %q", a.IP, prefixLen, iface)
	}
}

func writeSysctl(path string) error {
	return os.WriteFile(path, []byte("1\n"), 0644)
}
