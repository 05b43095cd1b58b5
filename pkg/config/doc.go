// Package config provides configuration loading, validation, defaulting, and
// hot-reloading for the superpose service.
//
// Configuration is read from a YAML file and may be overridden by environment
// variables following the SUPERPOSE_SECTION_FIELD naming convention. Defaults
// are applied before the file is parsed so that absent fields, including
// booleans that default to true, keep their documented defaults.
//
// When Watch is enabled, a Watcher reloads the file on change and hands the
// validated result to the caller, which decides which tunables take effect
// without a restart (resolution thresholds and the compliance fail-open
// policy); structural settings such as the listen address and store backend
// require a restart.
//
// The baseline key used for entanglement tags is never part of the
// configuration file; only its source (environment or secrets directory) is
// configured here.
package config
