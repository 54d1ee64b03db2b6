// Package fw blocks and unblocks inbound traffic to a public address on a
// specific interface. Rules are plain iptables rule strings applied with
// the system binary; every mutation is delete-before-insert so a rule left
// behind by a crashed prior run never doubles up.
package fw

import (
	"flag"
	"fmt"
	"net"
	"os/exec"

	"github.com/google/shlex"

	"go.akely.io/pubaddr/log"
)

var (
	iptablesBin  = flag.String("iptables.bin", "/sbin/iptables", "Path to iptables binary")
	ip6tablesBin = flag.String("ip6tables.bin", "/sbin/ip6tables", "Path to ip6tables binary")
)

// A rule in iptables argument syntax.
type Rule string

// Hard cap on the unblock drain loop. A crashed prior run leaves at most
// one extra copy of the rule, so hitting this means something else owns
// the chain.
const maxStackedRules = 16

type IPTables struct{}

// Block drops all new inbound traffic to ip arriving on iface. Inserting
// twice would stack rules, so any stale copy is deleted first.
func (IPTables) Block(iface string, ip net.IP) error {
	run(binFor(ip), dropRule("-D", iface, ip)) // stale rule cleanup, may fail
	if err := run(binFor(ip), dropRule("-I", iface, ip)); err != nil {
		return fmt.Errorf("fw: could not block %v on %q: %w", ip, iface, err)
	}
	return nil
}

// Unblock removes every copy of the drop rule for ip on iface. Removing a
// rule that is not present is not an error.
func (IPTables) Unblock(iface string, ip net.IP) error {
	for i := 0; i < maxStackedRules; i++ {
		if run(binFor(ip), dropRule("-D", iface, ip)) != nil {
			return nil
		}
	}
	return fmt.Errorf("fw: drop rule for %v on %q will not drain", ip, iface)
}

func dropRule(action, iface string, ip net.IP) Rule {
	return Rule(fmt.Sprintf("%s INPUT -i %s -d %v -j DROP", action, iface, ip))
}

func binFor(ip net.IP) string {
	if ip.To4() == nil {
		return *ip6tablesBin
	}
	return *iptablesBin
}

var run = runRule

func runRule(bin string, r Rule) error {
	log.V(3).Infof("fw: %s %s", bin, r)
	args, err := shlex.Split(string(r))
	if err != nil {
		return err
	}
	return exec.Command(bin, args...).Run()
}
