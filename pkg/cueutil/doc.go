// SPDX-License-Identifier: MPL-2.0

// Package cueutil validates user-supplied CUE documents against an embedded
// schema and decodes the result.
//
//	//go:embed config_schema.cue
//	var schema []byte
//
//	res, err := cueutil.ParseAndDecode[map[string]any](schema, data, "#Config",
//	    cueutil.WithFilename(path), cueutil.WithConcrete(false))
//
// Errors carry the file name and a JSON-style path to the offending field,
// for example `config.cue: download.concurrency: invalid value 0`.
package cueutil
