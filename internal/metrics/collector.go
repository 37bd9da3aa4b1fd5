package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "netctl"

// Collector owns a private registry with the netctl metrics.
type Collector struct {
	registry *prometheus.Registry

	interfaces  prometheus.Gauge
	dhcpTotal   *prometheus.CounterVec
	dhcpPolls   *prometheus.CounterVec
	dhcpWait    *prometheus.HistogramVec
	staticTotal *prometheus.CounterVec
	settings    *prometheus.CounterVec
}

// NewCollector registers the netctl metrics plus the Go and process
// collectors on a fresh registry.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		interfaces: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "registered_interfaces",
			Help:      "Number of interfaces in the route registry.",
		}),
		dhcpTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dhcp",
			Name:      "requests_total",
			Help:      "DHCP acquisitions by mode and outcome.",
		}, []string{"interface", "mode", "outcome"}),
		dhcpPolls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dhcp",
			Name:      "polls_total",
			Help:      "Supplied-address polls made while waiting for a lease.",
		}, []string{"interface"}),
		dhcpWait: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "dhcp",
			Name:      "wait_seconds",
			Help:      "Time from DHCP request to bound or timeout.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 4, 6, 8, 10},
		}, []string{"interface", "outcome"}),
		staticTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "static",
			Name:      "requests_total",
			Help:      "Static configurations by outcome.",
		}, []string{"interface", "outcome"}),
		settings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settings_changes_total",
			Help:      "Accepted and rejected global setting writes.",
		}, []string{"setting", "outcome"}),
	}

	c.registry.MustRegister(
		c.interfaces,
		c.dhcpTotal,
		c.dhcpPolls,
		c.dhcpWait,
		c.staticTotal,
		c.settings,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// ObserveDHCP records one DHCP acquisition.
func (c *Collector) ObserveDHCP(iface, mode, outcome string, polls int, waited time.Duration) {
	c.dhcpTotal.WithLabelValues(iface, mode, outcome).Inc()
	c.dhcpPolls.WithLabelValues(iface).Add(float64(polls))
	c.dhcpWait.WithLabelValues(iface, outcome).Observe(waited.Seconds())
}

// ObserveStatic records one static configuration.
func (c *Collector) ObserveStatic(iface, outcome string) {
	c.staticTotal.WithLabelValues(iface, outcome).Inc()
}

// ObserveSetting records a country or hostname write.
func (c *Collector) ObserveSetting(setting string, ok bool) {
	outcome := "accepted"
	if !ok {
		outcome = "rejected"
	}
	c.settings.WithLabelValues(setting, outcome).Inc()
}

// SetInterfaces sets the registered-interface gauge.
func (c *Collector) SetInterfaces(n int) {
	c.interfaces.Set(float64(n))
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
