package netcfg

import (
	"flag"
	"fmt"
	"net"
	"os/exec"

	"go.akely.io/pubaddr/log"
)

var ipBin = flag.String("ip.bin", "/sbin/ip", "Path to iproute2 ip binary")

// FlushRouteCache drops cached routing decisions for ip's address family
// so a just-moved address takes effect immediately.
func (Netlink) FlushRouteCache(ip net.IP) error {
	args := []string{"route", "flush", "cache"}
	if ip.To4() == nil {
		args = append([]string{"-6"}, args...)
	}
	log.V(3).Infof("netcfg: %s %v", *ipBin, args)
	if err := exec.Command(*ipBin, args...).Run(); err != nil {
		return fmt.Errorf("netcfg: route cache flush failed: %w", err)
	}
	return nil
}
