package cluster

import (
	"fmt"
	"net"
	"net/netip"

	"github.com/mdlayher/arp"
	"github.com/mdlayher/ndp"
)

var broadcastHWAddr = net.HardwareAddr{255, 255, 255, 255, 255, 255}

// Sends out a gratuitous ARP to speed up failover resolution.
func announceARP(ip net.IP, ifi *net.Interface) error {
	addr, ok := netip.AddrFromSlice(ip.To4())
	if !ok {
		return fmt.Errorf("cluster: bad IPv4 address %v", ip)
	}

	c, err := arp.Dial(ifi)
	if err != nil {
		return fmt.Errorf("cluster: could not get ARP conn: %w", err)
	}
	defer c.Close()

	// A gratuitous ARP is a request for our own address, sourced from the
	// interface that now owns it.
	p, err := arp.NewPacket(
		arp.OperationRequest, ifi.HardwareAddr, addr, broadcastHWAddr, addr)
	if err != nil {
		return fmt.Errorf("cluster: could not construct gratuitous ARP request: %w", err)
	}
	if err := c.WriteTo(p, broadcastHWAddr); err != nil {
		return fmt.Errorf("cluster: could not write gratuitous ARP request: %w", err)
	}
	return nil
}

// The IPv6 equivalent: an unsolicited neighbor advertisement to all nodes
// with the override flag, carrying the new target link-layer address.
func announceNA(ip net.IP, ifi *net.Interface) error {
	addr, ok := netip.AddrFromSlice(ip.To16())
	if !ok {
		return fmt.Errorf("cluster: bad IPv6 address %v", ip)
	}

	c, _, err := ndp.Listen(ifi, ndp.LinkLocal)
	if err != nil {
		return fmt.Errorf("cluster: could not get NDP conn: %w", err)
	}
	defer c.Close()

	m := &ndp.NeighborAdvertisement{
		Override:      true,
		TargetAddress: addr,
		Options: []ndp.Option{
			&ndp.LinkLayerAddress{
				Direction: ndp.Target,
				Addr:      ifi.HardwareAddr,
			},
		},
	}
	allNodes := netip.MustParseAddr("ff02::1")
	if err := c.WriteTo(m, nil, allNodes); err != nil {
		return fmt.Errorf("cluster: could not write neighbor advertisement: %w", err)
	}
	return nil
}
