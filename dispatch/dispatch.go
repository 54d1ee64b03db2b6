// Package dispatch maps a control-plane event and its positional
// arguments onto the migration engine, the health monitor, or the
// lifecycle handlers, and folds the outcome into a process exit status
// for the cluster control layer to consume.
package dispatch

import (
	"fmt"
	"net"
	"strconv"

	"go.akely.io/pubaddr/config"
	"go.akely.io/pubaddr/health"
	"go.akely.io/pubaddr/log"
	"go.akely.io/pubaddr/migrate"
)

const (
	ExitOK      = 0
	ExitFailure = 1
)

// Lifecycle is the bootstrap/teardown handler behind init and shutdown.
type Lifecycle interface {
	Init(cfg *config.Config) error
	Shutdown(cfg *config.Config)
}

type Dispatcher struct {
	// Nil when public addressing is not configured on this node.
	Config *config.Config

	Engine   *migrate.Engine
	Prober   health.Prober
	Reporter health.LinkReporter
	Node     Lifecycle
}

// Dispatch runs one event and returns its exit status. Malformed
// arguments are a configuration error, not a retryable condition: the
// event fails immediately without touching any kernel state.
func (d *Dispatcher) Dispatch(event string, args []string) int {
	if d.Config == nil {
		if event == "init" {
			log.Infof("public addressing not configured, nothing to initialize")
		} else {
			log.V(1).Infof("public addressing not configured, ignoring %q", event)
		}
		return ExitOK
	}

	switch event {
	case "init":
		if !wantArgs(event, args, 0) {
			return ExitFailure
		}
		if err := d.Node.Init(d.Config); err != nil {
			log.Errorf("init failed: %v", err)
			return ExitFailure
		}
		return ExitOK

	case "shutdown":
		if !wantArgs(event, args, 0) {
			return ExitFailure
		}
		d.Node.Shutdown(d.Config)
		return ExitOK

	case "monitor", "startup":
		if !wantArgs(event, args, 0) {
			return ExitFailure
		}
		h := health.Monitor(
			d.Prober, d.Reporter,
			d.Config.Interfaces(), d.Config.Options.PartialOnline)
		if !h.Up {
			return ExitFailure
		}
		return ExitOK

	case "takeip":
		if !wantArgs(event, args, 3) {
			return ExitFailure
		}
		iface := args[0]
		ip, prefixLen, ok := parseAddr(args[1], args[2])
		if !ok {
			return ExitFailure
		}
		return exitFor(d.Engine.Take(iface, ip, prefixLen))

	case "releaseip":
		if !wantArgs(event, args, 3) {
			return ExitFailure
		}
		iface := args[0]
		ip, prefixLen, ok := parseAddr(args[1], args[2])
		if !ok {
			return ExitFailure
		}
		return exitFor(d.Engine.Release(iface, ip, prefixLen))

	case "updateip":
		if !wantArgs(event, args, 4) {
			return ExitFailure
		}
		oldIface, newIface := args[0], args[1]
		ip, prefixLen, ok := parseAddr(args[2], args[3])
		if !ok {
			return ExitFailure
		}
		return exitFor(d.Engine.Update(oldIface, newIface, ip, prefixLen))

	default:
		log.Errorf("unknown event %q", event)
		return ExitFailure
	}
}

func exitFor(res migrate.Result) int {
	if !res.Succeeded {
		log.Errorf("migration failed at stage %v", res.Failure)
		return ExitFailure
	}
	return ExitOK
}

func wantArgs(event string, args []string, n int) bool {
	if len(args) != n {
		log.Errorf("%s takes %d arguments, got %d: %v", event, n, len(args), args)
		return false
	}
	return true
}

func parseAddr(ipStr, prefixStr string) (net.IP, int, bool) {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		log.Errorf("bad address %q", ipStr)
		return nil, 0, false
	}
	prefixLen, err := strconv.Atoi(prefixStr)
	if err != nil {
		log.Errorf("bad prefix length %q: %v", prefixStr, err)
		return nil, 0, false
	}
	if err := checkPrefixLen(ip, prefixLen); err != nil {
		log.Error(err)
		return nil, 0, false
	}
	return ip, prefixLen, true
}

func checkPrefixLen(ip net.IP, prefixLen int) error {
	max := 32
	if ip.To4() == nil {
		max = 128
	}
	if prefixLen < 0 || prefixLen > max {
		return fmt.Errorf("prefix length %d out of range for %v", prefixLen, ip)
	}
	return nil
}
