// Package work provides work unit implementations.
//
// The simulated work unit is the default when no external worker is
// wired in; it sleeps and fails at a configurable rate, which is enough
// to exercise retries, skips and the event stream end to end.
package work
