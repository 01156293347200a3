// Package prometheus exports authsession metrics through
// prometheus/client_golang.
//
// [PrometheusExporter] implements prometheus.Collector; register it with
// your own registry or mount [PrometheusExporter.Handler]. Counters are
// named authsession_*_total and the single histogram is
// authsession_validate_latency_seconds.
package prometheus
