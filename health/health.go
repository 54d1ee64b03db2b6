// Package health converts per-interface link status into the single
// up/down verdict reported to the cluster membership layer.
package health

import (
	"go.akely.io/pubaddr/log"
)

// Prober answers whether a single interface currently has link.
type Prober interface {
	LinkUp(iface string) (bool, error)
}

// LinkReporter is the slice of the cluster control service the monitor
// needs: one link verdict per interface.
type LinkReporter interface {
	ReportInterfaceLink(iface string, up bool) error
}

type LinkState struct {
	Name string
	Up   bool
}

type AggregateHealth struct {
	AnyUp   bool
	AnyDown bool
	Up      bool
}

// Evaluate probes every interface and records an individual verdict for
// each. It never short-circuits: downstream consumers key off the
// per-interface states, not only the aggregate. An interface that cannot
// be probed at all counts as down.
func Evaluate(p Prober, ifaces []string) []LinkState {
	states := make([]LinkState, 0, len(ifaces))
	for _, name := range ifaces {
		up, err := p.LinkUp(name)
		if err != nil {
			log.Warningf("health: could not probe %q (treating as down): %v", name, err)
			up = false
		}
		states = append(states, LinkState{Name: name, Up: up})
	}
	return states
}

// Aggregate folds the individual verdicts into one. A mix of up and down
// interfaces counts as up only under the partial-online policy.
func Aggregate(states []LinkState, partialOnline bool) AggregateHealth {
	var h AggregateHealth
	for _, s := range states {
		if s.Up {
			h.AnyUp = true
		} else {
			h.AnyDown = true
		}
	}
	switch {
	case !h.AnyDown:
		h.Up = true
	case !h.AnyUp:
		h.Up = false
	default:
		h.Up = partialOnline
	}
	return h
}

// Report sends every individual verdict to the membership layer. The
// notification is best effort; a failed report must not abort the rest of
// the pass.
func Report(r LinkReporter, states []LinkState) {
	for _, s := range states {
		if err := r.ReportInterfaceLink(s.Name, s.Up); err != nil {
			log.Warningf("health: could not report link state of %q: %v", s.Name, err)
		}
	}
}

// Monitor runs one full monitor cycle and returns the aggregate verdict.
func Monitor(p Prober, r LinkReporter, ifaces []string, partialOnline bool) AggregateHealth {
	states := Evaluate(p, ifaces)
	Report(r, states)
	return Aggregate(states, partialOnline)
}
