// Package conn reaps and recovers client connections around an address
// move. Killing removes tracked flows so clients of a released address do
// not hang on dead kernel state; tickling sends a bogus ACK to every
// tracked peer so endpoints retransmit whatever was dropped during the
// transition.
package conn

import (
	"fmt"
	"net"
	"net/netip"

	"github.com/ti-mo/conntrack"
	"golang.org/x/sync/errgroup"

	"go.akely.io/pubaddr/log"
)

const protoTCP = 6

type Conntrack struct{}

// Kill deletes every tracked flow involving ip. Individual delete failures
// are logged and skipped; the flow table is shared and another event may
// have raced us to the entry.
func (Conntrack) Kill(iface string, ip net.IP) error {
	target, err := toNetip(ip)
	if err != nil {
		return err
	}

	c, err := conntrack.Dial(nil)
	if err != nil {
		return fmt.Errorf("conn: could not open conntrack: %w", err)
	}
	defer c.Close()

	flows, err := c.Dump(nil)
	if err != nil {
		return fmt.Errorf("conn: could not dump flows: %w", err)
	}

	killed := 0
	for _, f := range flows {
		if f.TupleOrig.IP.SourceAddress.Unmap() != target &&
			f.TupleOrig.IP.DestinationAddress.Unmap() != target {
			continue
		}
		if err := c.Delete(f); err != nil {
			log.Warningf("conn: could not delete flow %v: %v", f.TupleOrig, err)
			continue
		}
		killed++
	}
	log.V(1).Infof("conn: killed %d flows for %v on %q", killed, ip, iface)
	return nil
}

// Tickle sends a zero-sequence ACK to the peer of every tracked TCP flow
// terminating at ip. The peer answers with a correct ACK, which both
// refreshes any state the network lost and prompts retransmission.
func (Conntrack) Tickle(ip net.IP) error {
	target, err := toNetip(ip)
	if err != nil {
		return err
	}

	c, err := conntrack.Dial(nil)
	if err != nil {
		return fmt.Errorf("conn: could not open conntrack: %w", err)
	}
	defer c.Close()

	flows, err := c.Dump(nil)
	if err != nil {
		return fmt.Errorf("conn: could not dump flows: %w", err)
	}

	var eg errgroup.Group
	for _, f := range flows {
		if f.TupleOrig.Proto.Protocol != protoTCP {
			continue
		}
		if f.TupleOrig.IP.DestinationAddress.Unmap() != target {
			continue
		}
		src := f.TupleOrig.IP.DestinationAddress.Unmap()
		srcPort := f.TupleOrig.Proto.DestinationPort
		dst := f.TupleOrig.IP.SourceAddress.Unmap()
		dstPort := f.TupleOrig.Proto.SourcePort
		eg.Go(func() error {
			return sendTickleACK(src, srcPort, dst, dstPort)
		})
	}
	return eg.Wait()
}

func toNetip(ip net.IP) (netip.Addr, error) {
	a, ok := netip.AddrFromSlice(ip)
	if !ok {
		return netip.Addr{}, fmt.Errorf("conn: bad address %v", ip)
	}
	return a.Unmap(), nil
}
