// Package prometheus renders phoneverify engine metrics in the Prometheus text
// exposition format. It writes text directly and registers nothing globally;
// callers mount Exporter.Handler on their own mux.
package prometheus
