// Package config loads Renovate configuration documents.
//
// A source (JSON, JSON5, YAML, TOML, or a JavaScript module exporting an object
// literal) is parsed into an ordered list of key/value pairs, duplicate keys
// are resolved with a last-declaration-wins policy, credential references are
// resolved from the environment, and every option is checked against the
// supported schema. The result is an immutable Document.
package config
