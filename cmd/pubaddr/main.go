// pubaddr is the per-node public address agent. The cluster's event layer
// invokes it as `pubaddr <event> [args...]` for init, startup, shutdown,
// takeip, releaseip, updateip and monitor; the exit status is the success
// signal for that event.
package main

import (
	"flag"
	"os"
	"time"

	"go.akely.io/pubaddr/cluster"
	"go.akely.io/pubaddr/config"
	"go.akely.io/pubaddr/conn"
	"go.akely.io/pubaddr/dispatch"
	"go.akely.io/pubaddr/fw"
	"go.akely.io/pubaddr/health"
	"go.akely.io/pubaddr/lifecycle"
	"go.akely.io/pubaddr/log"
	"go.akely.io/pubaddr/metrics"
	"go.akely.io/pubaddr/migrate"
	"go.akely.io/pubaddr/netcfg"
)

func main() {
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		log.Fatal("usage: pubaddr <event> [args...]")
	}
	event, eventArgs := args[0], args[1:]

	cfg, err := config.Load(*addressFile)
	if err != nil {
		log.Fatalf("error loading address configuration: %v", err)
	}

	nl := netcfg.Netlink{}
	ctl := cluster.Ctl{}
	d := &dispatch.Dispatcher{
		Config: cfg,
		Engine: &migrate.Engine{
			Addrs:  nl,
			Filter: fw.IPTables{},
			Conns:  conn.Conntrack{},
			Peers:  ctl,
		},
		Prober:   health.NetlinkProber{},
		Reporter: ctl,
		Node:     lifecycle.NewNode(nl),
	}

	start := time.Now()
	code := d.Dispatch(event, eventArgs)
	metrics.Observe(event, code, time.Since(start))
	metrics.Flush()

	log.V(1).Infof("%s: exit %d", event, code)
	os.Exit(code)
}
