// Package metrics provides internal Prometheus metrics collection for the
// workflow engine and the equilibrium selector.
// This package is internal and should not be imported by external projects.
package metrics
