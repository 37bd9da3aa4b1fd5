// Package metrics exposes netctl measurements in Prometheus format.
package metrics
