// Package metrics exports launch counters to prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "binfmt"

// Collector holds launch metrics. A nil *Collector discards everything.
type Collector struct {
	launches  *prometheus.CounterVec
	failures  *prometheus.CounterVec
	argBytes  prometheus.Counter
	unloads   prometheus.Counter
	registry  prometheus.Registerer
}

// New creates and registers the launch metrics on reg
func New(reg prometheus.Registerer) *Collector {
	c := &Collector{
		launches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exec_total",
			Help:      "Launch requests by outcome (ok, degraded, failed).",
		}, []string{"result"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exec_failures_total",
			Help:      "Launch failures by the stage that failed.",
		}, []string{"stage"}),
		argBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "argv_copied_bytes_total",
			Help:      "Bytes of argument buffers allocated for isolated tasks.",
		}),
		unloads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exit_unloads_total",
			Help:      "Images unloaded automatically when their task exited.",
		}),
		registry: reg,
	}
	reg.MustRegister(c.launches, c.failures, c.argBytes, c.unloads)
	return c
}

// WatchTasks exports the value returned by running as the running task gauge
func (c *Collector) WatchTasks(running func() int) {
	if c == nil {
		return
	}
	c.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "tasks_running",
		Help:      "Tasks started and not yet exited.",
	}, func() float64 { return float64(running()) }))
}

// WatchMemory exports the value returned by inUse as the allocated bytes gauge
func (c *Collector) WatchMemory(inUse func() uint64) {
	if c == nil {
		return
	}
	c.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "memory_in_use_bytes",
		Help:      "Bytes allocated to launch records and argument buffers.",
	}, func() float64 { return float64(inUse()) }))
}

// Succeeded records a launch with automatic cleanup in place (if supported)
func (c *Collector) Succeeded() {
	if c == nil {
		return
	}
	c.launches.WithLabelValues("ok").Inc()
}

// Degraded records a launch whose task runs without cleanup on exit
func (c *Collector) Degraded() {
	if c == nil {
		return
	}
	c.launches.WithLabelValues("degraded").Inc()
}

// Failed records a launch aborted at stage
func (c *Collector) Failed(stage string) {
	if c == nil {
		return
	}
	c.launches.WithLabelValues("failed").Inc()
	c.failures.WithLabelValues(stage).Inc()
}

// ArgsCopied records size of an argument buffer
func (c *Collector) ArgsCopied(n int) {
	if c == nil {
		return
	}
	c.argBytes.Add(float64(n))
}

// Unloaded records an unload triggered by task exit
func (c *Collector) Unloaded() {
	if c == nil {
		return
	}
	c.unloads.Inc()
}
