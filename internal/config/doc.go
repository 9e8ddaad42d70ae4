// Package config loads and validates cfgsnap's own configuration.
//
// Configuration comes from, in order of precedence: CFGSNAP_* environment
// variables, a config.yaml in the current directory, and a config.yaml under
// the XDG config home (~/.config/cfgsnap/ on Linux). All fields have
// defaults, so running with no config file at all is fully supported.
//
// Note that this package configures the tool itself; the configuration
// files the tool snapshots and restores are arbitrary and never flow
// through here.
package config
