// Package startup handles application boot: configuration loading via
// viper (config.yaml plus PHOTOFLOW_* environment overrides), directory
// validation, build information, and the sectioned startup log that
// makes container logs readable at a glance.
package startup
