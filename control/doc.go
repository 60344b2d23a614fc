// Package control
// Author: momentics <momentics@gmail.com>
//
// Configuration, runtime metrics and debug introspection for the message
// server.
//
// Provides concurrent-safe primitives:
//   - YAML configuration with defaults, validation and live reload
//   - Counters and gauges
//   - Named debug probes, including platform probes
package control
