// Package constants centralizes defaults shared across the CLI and API.
//
// Timeouts, admission ceilings and payload limits live here so cmd/ and
// internal/ agree on them without importing each other.
package constants
