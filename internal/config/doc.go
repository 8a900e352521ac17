// SPDX-License-Identifier: MPL-2.0

// Package config loads ntcomp settings with Viper, using CUE as the file format.
//
// The file is config.cue in the platform configuration directory
// ($XDG_CONFIG_HOME/ntcomp, ~/Library/Application Support/ntcomp or
// %APPDATA%\ntcomp), or the path given with --config. It is validated
// against the embedded #Config schema (config_schema.cue). NTCOMP_*
// environment variables override file values, for example
// NTCOMP_DOWNLOAD_CONCURRENCY=4.
package config
