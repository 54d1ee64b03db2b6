// Package cluster is the agent's channel back to the cluster membership
// layer: per-interface link verdicts go through the cluster control
// utility, and address moves are announced to peers at the link layer.
package cluster

import (
	"flag"
	"fmt"
	"net"
	"os/exec"

	"go.akely.io/pubaddr/log"
)

var ctlBin = flag.String("cluster.bin", "/usr/local/bin/clusterctl", "Path to the cluster control utility")

type Ctl struct{}

// ReportInterfaceLink tells the membership layer whether iface currently
// has link. The membership layer keys failover decisions off these
// per-interface reports.
func (Ctl) ReportInterfaceLink(iface string, up bool) error {
	state := "down"
	if up {
		state = "up"
	}
	log.V(2).Infof("cluster: setifacelink %s %s", iface, state)
	if err := exec.Command(*ctlBin, "setifacelink", iface, state).Run(); err != nil {
		return fmt.Errorf("cluster: setifacelink %s %s: %w", iface, state, err)
	}
	return nil
}

// AnnounceAddressMove broadcasts ip's new link-layer binding on iface so
// peers refresh their neighbor caches instead of timing them out.
func (Ctl) AnnounceAddressMove(ip net.IP, iface string) error {
	ifi, err := net.InterfaceByName(iface)
	if err != nil {
		return fmt.Errorf("cluster: could not get interface %q: %w", iface, err)
	}
	if ip.To4() == nil {
		return announceNA(ip, ifi)
	}
	return announceARP(ip, ifi)
}
