// Package config loads the iotdash service configuration.
//
// Values are layered in this order: built-in defaults, an optional YAML file,
// IOTDASH_* environment variables and finally command line flags applied by the
// caller. The merged result is checked by Validate before use.
package config
