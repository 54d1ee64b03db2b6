// Package netcfg applies public address changes to the kernel. It is the
// only place addresses are added to or removed from interfaces; nothing
// here caches kernel state beyond a single call.
package netcfg

import (
	"errors"
	"fmt"
	"net"
	"syscall"

	"github.com/vishvananda/netlink"
	"github.com/vishvananda/netlink/nl"
	"golang.org/x/sys/unix"
)

// ErrNotFound reports that an address is not bound to any local interface.
var ErrNotFound = errors.New("netcfg: address not bound")

type Netlink struct{}

func (Netlink) AddAddress(iface string, ip net.IP, prefixLen int) error {
	l, err := netlink.LinkByName(iface)
	if err != nil {
		return fmt.Errorf("netcfg: failed to get link %q: %w", iface, err)
	}
	a, err := netlink.ParseAddr(fmt.Sprintf("%v/%d", ip, prefixLen))
	if err != nil {
		return fmt.Errorf("netcfg: bad address %v/%d: %w", ip, prefixLen, err)
	}
	err = netlink.AddrAdd(l, a)
	// EEXIST is ok: a crashed prior run may have gotten this far already.
	if errno, ok := err.(syscall.Errno); ok && errno == unix.EEXIST {
		return nil
	}
	if err != nil {
		return fmt.Errorf(
			"netcfg: could not add %v/%d to %q: %w", ip, prefixLen, iface, err)
	}
	return nil
}

func (Netlink) RemoveAddress(iface string, ip net.IP, prefixLen int) error {
	l, err := netlink.LinkByName(iface)
	if err != nil {
		return fmt.Errorf("netcfg: failed to get link %q: %w", iface, err)
	}
	a, err := netlink.ParseAddr(fmt.Sprintf("%v/%d", ip, prefixLen))
	if err != nil {
		return fmt.Errorf("netcfg: bad address %v/%d: %w", ip, prefixLen, err)
	}
	if err := netlink.AddrDel(l, a); err != nil {
		return fmt.Errorf(
			"netcfg: could not delete %v/%d from %q: %w", ip, prefixLen, iface, err)
	}
	return nil
}

// ResolveBinding scans every link for ip and returns the interface and
// prefix length the kernel actually has it bound with.
func (Netlink) ResolveBinding(ip net.IP) (iface string, prefixLen int, err error) {
	links, err := netlink.LinkList()
	if err != nil {
		return "", 0, fmt.Errorf("netcfg: failed to list links: %w", err)
	}
	for _, l := range links {
		addrs, err := netlink.AddrList(l, family(ip))
		if err != nil {
			continue
		}
		for _, a := range addrs {
			if a.IP.Equal(ip) {
				ones, _ := a.Mask.Size()
				return l.Attrs().Name, ones, nil
			}
		}
	}
	return "", 0, ErrNotFound
}

func family(ip net.IP) int {
	if ip.To4() == nil {
		return nl.FAMILY_V6
	}
	return nl.FAMILY_V4
}
