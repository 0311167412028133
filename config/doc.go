// Package config loads the orchestration core's configuration. Values are
// layered: built-in defaults, then an optional YAML file, then environment
// variable overrides with the LOOM_ prefix.
package config
