// Package guard provides an atomic in-flight set for collapsing duplicate
// concurrent operations, keyed by an arbitrary string (tenant id in practice).
package guard
