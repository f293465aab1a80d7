// Package control
// Author: momentics <momentics@gmail.com>
//
// Process-wide configuration, runtime metrics, and debug introspection for
// the reactor and its worker pool.
//
// Configuration is read once, from the environment and an optional TOML
// file, when the first reactor is created. Metrics are lock-free counters
// keyed by name; probes are named callbacks evaluated on demand.
//
// This package is cross-platform and build-tag-partitioned as needed.
package control
