// Package metrics mirrors scheduler queue depths and topic tree size into
// Prometheus gauges, served by cmd/eventctl serve on the address set by
// REACTOR_METRICS_ADDR.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	PureQueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "reactor_pure_queue_depth",
		Help: "Number of tasks currently waiting in the pure queue.",
	})

	MutationQueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "reactor_mutation_queue_depth",
		Help: "Number of tasks currently waiting in the mutation queue.",
	})

	ListenerQueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "reactor_listener_queue_depth",
		Help: "Number of tasks currently waiting in the listener queue.",
	})

	TopicNodesTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "reactor_topic_nodes_total",
		Help: "Number of key-path nodes in the topic tree, including the root and intermediate nodes.",
	})

	BridgeClientsConnected = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "reactor_bridge_clients_connected",
		Help: "Number of WebSocket clients currently connected to the topic bridge.",
	})

	BridgeFramesSentTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reactor_bridge_frames_sent_total",
		Help: "Total number of JSON emission frames written to bridge clients.",
	})
)

func init() {
	prometheus.MustRegister(
		PureQueueDepth,
		MutationQueueDepth,
		ListenerQueueDepth,
		TopicNodesTotal,
		BridgeClientsConnected,
		BridgeFramesSentTotal,
	)
}

// Handler returns the HTTP handler that serves the registered gauges and
// counters in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// QueueDepths is the subset of reactor.QueueDepths this package needs;
// defined locally so metrics never imports the root reactor package.
type QueueDepths struct {
	Pure     int
	Mutation int
	Listener int
}

// ObserveQueueDepths mirrors a scheduler's introspected queue depths into
// the corresponding gauges. Callers typically wire this through
// (*reactor.Scheduler).SetObserver.
func ObserveQueueDepths(d QueueDepths) {
	PureQueueDepth.Set(float64(d.Pure))
	MutationQueueDepth.Set(float64(d.Mutation))
	ListenerQueueDepth.Set(float64(d.Listener))
}

// ObserveTopicNodeCount mirrors a topic tree's current node count.
func ObserveTopicNodeCount(n int) {
	TopicNodesTotal.Set(float64(n))
}
