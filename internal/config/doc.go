// Package config holds the sitedigest configuration: defaults, validation,
// the optional .sitedigest YAML file with per-host overrides, and XDG paths.
package config
