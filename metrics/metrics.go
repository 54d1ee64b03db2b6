// Package metrics counts event outcomes. Every event runs in its own
// short-lived process, so instead of serving a scrape endpoint the
// counters are flushed to a node-exporter textfile when one is
// configured.
package metrics

import (
	"flag"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"go.akely.io/pubaddr/log"
)

var textfile = flag.String(
	"metrics.textfile", "",
	"If set, write event metrics to this node-exporter textfile (e.g. /var/lib/node_exporter/textfile/pubaddr.prom)")

var (
	eventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pubaddr_events_total",
		Help: "Events handled, by event name and outcome.",
	}, []string{
		"event",
		"outcome",
	})
	eventDuration = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "pubaddr_last_event_duration_seconds",
		Help: "Duration of the most recent event, by event name.",
	}, []string{
		"event",
	})
)

func init() {
	prometheus.MustRegister(eventsTotal)
	prometheus.MustRegister(eventDuration)
}

func Observe(event string, exitCode int, d time.Duration) {
	outcome := "success"
	if exitCode != 0 {
		outcome = "failure"
	}
	eventsTotal.WithLabelValues(event, outcome).Inc()
	eventDuration.WithLabelValues(event).Set(d.Seconds())
}

// Flush writes the registry to the configured textfile. Metrics are a
// side channel; failing to write them never fails the event.
func Flush() {
	if *textfile == "" {
		return
	}
	if err := prometheus.WriteToTextfile(*textfile, prometheus.DefaultGatherer); err != nil {
		log.Warningf("metrics: could not write %q: %v", *textfile, err)
	}
}
