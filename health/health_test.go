package health

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

type fakeProber struct {
	up  map[string]bool
	err map[string]error
}

func (p fakeProber) LinkUp(iface string) (bool, error) {
	if err := p.err[iface]; err != nil {
		return false, err
	}
	return p.up[iface], nil
}

type fakeReporter struct {
	reports []string
	err     error
}

func (r *fakeReporter) ReportInterfaceLink(iface string, up bool) error {
	state := "down"
	if up {
		state = "up"
	}
	r.reports = append(r.reports, fmt.Sprintf("%s=%s", iface, state))
	return r.err
}

// Every configured interface gets probed and reported individually, even
// once an earlier interface has already decided the aggregate outcome.
func TestMonitor_reportsEveryInterface(t *testing.T) {
	p := fakeProber{up: map[string]bool{"eth0": false, "eth1": true, "eth2": false}}
	r := &fakeReporter{}

	Monitor(p, r, []string{"eth0", "eth1", "eth2"}, false)

	want := "eth0=down eth1=up eth2=down"
	if got := strings.Join(r.reports, " "); got != want {
		t.Errorf("got reports %q; want %q", got, want)
	}
}

func TestMonitor_reportErrorsSwallowed(t *testing.T) {
	p := fakeProber{up: map[string]bool{"eth0": true, "eth1": true}}
	r := &fakeReporter{err: errors.New("cluster daemon unreachable")}

	h := Monitor(p, r, []string{"eth0", "eth1"}, false)

	if len(r.reports) != 2 {
		t.Errorf("expected 2 reports; got %d", len(r.reports))
	}
	if !h.Up {
		t.Errorf("expected aggregate up; got %+v", h)
	}
}

func TestEvaluate_probeErrorCountsDown(t *testing.T) {
	p := fakeProber{
		up:  map[string]bool{"eth0": true},
		err: map[string]error{"eth1": errors.New("no such device")},
	}

	states := Evaluate(p, []string{"eth0", "eth1"})

	if len(states) != 2 {
		t.Fatalf("expected 2 states; got %d", len(states))
	}
	if !states[0].Up || states[1].Up {
		t.Errorf("got states %+v; want eth0 up, eth1 down", states)
	}
}

func TestAggregate(t *testing.T) {
	up := LinkState{Name: "up", Up: true}
	down := LinkState{Name: "down", Up: false}

	for _, tc := range []struct {
		name          string
		states        []LinkState
		partialOnline bool
		want          bool
	}{
		{"allUp", []LinkState{up, up}, false, true},
		{"allDown", []LinkState{down, down}, true, false},
		{"mixedStrict", []LinkState{up, down}, false, false},
		{"mixedPartialOnline", []LinkState{up, down}, true, true},
		{"noInterfaces", nil, false, true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			h := Aggregate(tc.states, tc.partialOnline)
			if h.Up != tc.want {
				t.Errorf("Aggregate(%v, %v).Up = %v; want %v",
					tc.states, tc.partialOnline, h.Up, tc.want)
			}
		})
	}
}

func TestAggregate_flags(t *testing.T) {
	h := Aggregate([]LinkState{{Name: "a", Up: true}, {Name: "b", Up: false}}, true)
	if !h.AnyUp || !h.AnyDown {
		t.Errorf("expected both AnyUp and AnyDown; got %+v", h)
	}
}
