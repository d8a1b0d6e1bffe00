// Package config loads the service configuration from YAML or JSON, overlays
// PETNOTIFY_* environment variables and hot-reloads the file with fsnotify.
//
// Decoding is strict: unknown keys are rejected for both formats.
package config
