// Package metrics defines the Recorder interface and its Prometheus-backed
// implementation. The watchdog and the session gateway adapter emit gauges
// and counters through a Recorder; the gateway mounts the registry handler
// at the configured metrics path.
package metrics
