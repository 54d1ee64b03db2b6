// Package migrate moves public addresses onto, off of, and between local
// interfaces. Each operation is an ordered sequence over the packet
// filter and the kernel address configuration, arranged so that a failure
// at any step leaves the address either fully present and reachable or
// fully absent, never half-migrated. Safety against concurrent events on
// other nodes comes from ordering and idempotence, not locking: traffic
// is blocked before any destructive step and unblocked only after the
// change is durable.
package migrate

import (
	"net"

	"go.akely.io/pubaddr/log"
)

// AddressConfig is the kernel-facing address configuration service.
type AddressConfig interface {
	AddAddress(iface string, ip net.IP, prefixLen int) error
	RemoveAddress(iface string, ip net.IP, prefixLen int) error
	ResolveBinding(ip net.IP) (iface string, prefixLen int, err error)
	FlushRouteCache(ip net.IP) error
}

// PacketFilter blocks and unblocks inbound traffic to an address on an
// interface. Both operations are idempotent.
type PacketFilter interface {
	Block(iface string, ip net.IP) error
	Unblock(iface string, ip net.IP) error
}

// ConnLifecycle reaps and recovers client connections for an address.
type ConnLifecycle interface {
	Kill(iface string, ip net.IP) error
	Tickle(ip net.IP) error
}

// Announcer pushes a new address-to-interface binding out to peers.
type Announcer interface {
	AnnounceAddressMove(ip net.IP, iface string) error
}

// Stage identifies the step at which a migration failed.
type Stage int

const (
	StageNone Stage = iota
	StageBlock
	StageConfigureAdd
	StageConfigureRemove
)

func (s Stage) String() string {
	switch s {
	case StageNone:
		return "none"
	case StageBlock:
		return "block"
	case StageConfigureAdd:
		return "configure-add"
	case StageConfigureRemove:
		return "configure-remove"
	default:
		return "unknown"
	}
}

// Result is the outcome of one address-mutation event.
type Result struct {
	Succeeded bool
	Failure   Stage
}

func success() Result {
	return Result{Succeeded: true, Failure: StageNone}
}

func failed(s Stage) Result {
	return Result{Failure: s}
}

type Engine struct {
	Addrs  AddressConfig
	Filter PacketFilter
	Conns  ConnLifecycle
	Peers  Announcer
}

// Take brings ip up on iface. On success the address is reachable and
// unblocked; on configure failure it is left absent and unblocked.
func (e *Engine) Take(iface string, ip net.IP, prefixLen int) Result {
	if err := e.Addrs.AddAddress(iface, ip, prefixLen); err != nil {
		log.Errorf("migrate: takeover of %v/%d on %q failed: %v", ip, prefixLen, iface, err)
		return failed(StageConfigureAdd)
	}

	// A release that crashed between blocking and unblocking leaves a
	// stale drop rule behind; clear it unconditionally.
	if err := e.Filter.Unblock(iface, ip); err != nil {
		log.Warningf("migrate: could not unblock %v on %q: %v", ip, iface, err)
	}

	e.flushRoutes(ip)
	return success()
}

// Release takes ip down on iface. New inbound traffic is stopped before
// the address is severed, and lingering connections are reaped so clients
// of stateful protocols do not hang on kernel state that now references a
// foreign address. On configure failure the address remains present and
// reachable.
func (e *Engine) Release(iface string, ip net.IP, prefixLen int) Result {
	return e.withBlocked(iface, ip, func() Result {
		if err := e.Conns.Kill(iface, ip); err != nil {
			log.Warningf("migrate: could not kill connections for %v: %v", ip, err)
		}
		if err := e.Addrs.RemoveAddress(iface, ip, prefixLen); err != nil {
			log.Errorf("migrate: release of %v/%d on %q failed: %v", ip, prefixLen, iface, err)
			return failed(StageConfigureRemove)
		}
		return success()
	}, func() {
		e.flushRoutes(ip)
	})
}

// Update relocates ip from oldIface to newIface on this node, without a
// window where the address is admitting traffic on both interfaces or
// bound to neither. On add failure the address remains solely on the old
// interface, unblocked.
func (e *Engine) Update(oldIface, newIface string, ip net.IP, prefixLen int) Result {
	// The kernel, not the event, is the authority on where the address
	// currently lives; removal works against the resolved binding.
	curIface, curPrefixLen := oldIface, prefixLen
	iface, prefix, err := e.Addrs.ResolveBinding(ip)
	switch {
	case err != nil:
		log.Warningf(
			"migrate: could not resolve current binding of %v (using %q/%d): %v",
			ip, oldIface, prefixLen, err)
	case iface != oldIface || prefix != prefixLen:
		log.Warningf(
			"migrate: %v reported on %q/%d but bound to %q/%d",
			ip, oldIface, prefixLen, iface, prefix)
		curIface, curPrefixLen = iface, prefix
	default:
		curIface, curPrefixLen = iface, prefix
	}

	// The comparison stays on the event's interfaces: a cluster that asks
	// for a move within one interface asked for nothing.
	if oldIface == newIface {
		log.Infof("migrate: redundant update of %v on %q", ip, oldIface)
		return success()
	}

	return e.withBlocked(curIface, ip, func() Result {
		// Both removals are best effort: a crashed prior update can leave
		// the address on either side.
		if err := e.Addrs.RemoveAddress(curIface, ip, curPrefixLen); err != nil {
			log.Warningf("migrate: could not remove %v from %q: %v", ip, curIface, err)
		}
		if err := e.Addrs.RemoveAddress(newIface, ip, prefixLen); err != nil {
			log.V(2).Infof("migrate: no stale %v on %q to remove: %v", ip, newIface, err)
		}

		if err := e.Addrs.AddAddress(newIface, ip, prefixLen); err != nil {
			log.Errorf("migrate: could not add %v/%d to %q: %v", ip, prefixLen, newIface, err)
			return failed(StageConfigureAdd)
		}
		return success()
	}, func() {
		e.flushRoutes(ip)

		if err := e.Peers.AnnounceAddressMove(ip, newIface); err != nil {
			log.Warningf("migrate: could not announce %v on %q: %v", ip, newIface, err)
		}
		// Prompt peers to retransmit anything dropped during the move.
		if err := e.Conns.Tickle(ip); err != nil {
			log.Warningf("migrate: could not tickle connections for %v: %v", ip, err)
		}
	})
}

// withBlocked runs mutate with inbound traffic to ip on iface blocked and
// lifts the block on every exit path, success or failure. onSuccess runs
// after the block is lifted, so announcements and tickles always see the
// final reachable state.
func (e *Engine) withBlocked(iface string, ip net.IP, mutate func() Result, onSuccess func()) Result {
	if err := e.Filter.Block(iface, ip); err != nil {
		log.Errorf("migrate: could not block %v on %q: %v", ip, iface, err)
		return failed(StageBlock)
	}

	res := mutate()

	if err := e.Filter.Unblock(iface, ip); err != nil {
		log.Warningf("migrate: could not unblock %v on %q: %v", ip, iface, err)
	}
	if res.Succeeded && onSuccess != nil {
		onSuccess()
	}
	return res
}

func (e *Engine) flushRoutes(ip net.IP) {
	if err := e.Addrs.FlushRouteCache(ip); err != nil {
		log.Warningf("migrate: could not flush route cache: %v", err)
	}
}
