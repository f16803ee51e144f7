// Package facematch compares face signatures.
// Everything in this package is pure computation: no I/O, no logging, no shared state,
// so the same code serves the submission pipeline, probe-only searches and the CLI.
package facematch
