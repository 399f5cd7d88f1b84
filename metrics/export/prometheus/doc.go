// Package prometheus exposes authcore engine metrics to Prometheus.
//
// [NewCollector] adapts an engine snapshot to a prometheus.Collector and
// [Handler] serves it from a private registry, so nothing is registered
// globally. Counters are named authcore_*_total; the latency histogram is
// authcore_validate_latency_seconds.
package prometheus
