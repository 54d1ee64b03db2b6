package health

import (
	"fmt"
	"net"

	"github.com/safchain/ethtool"
	"github.com/vishvananda/netlink"
)

// NetlinkProber reads link status from the kernel. Operstate answers for
// most drivers; the ones that never report it get asked over ethtool.
type NetlinkProber struct{}

func (NetlinkProber) LinkUp(iface string) (bool, error) {
	l, err := netlink.LinkByName(iface)
	if err != nil {
		return false, fmt.Errorf("health: failed to get link %q: %w", iface, err)
	}

	attrs := l.Attrs()
	if attrs.Flags&net.FlagUp == 0 {
		return false, nil
	}
	switch attrs.OperState {
	case netlink.OperUp:
		return true, nil
	case netlink.OperDown, netlink.OperLowerLayerDown, netlink.OperNotPresent:
		return false, nil
	}

	return ethtoolLinkUp(iface)
}

func ethtoolLinkUp(iface string) (bool, error) {
	e, err := ethtool.NewEthtool()
	if err != nil {
		return false, fmt.Errorf("health: could not open ethtool: %w", err)
	}
	defer e.Close()

	state, err := e.LinkState(iface)
	if err != nil {
		return false, fmt.Errorf("health: ethtool link state of %q: %w", iface, err)
	}
	return state != 0, nil
}
