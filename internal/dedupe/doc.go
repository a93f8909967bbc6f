// Package dedupe tracks in-flight requests so the gateway processes at
// most one request per admission key at a time. Keys are released when a
// request reaches a terminal outcome; a janitor reaps leaked entries.
package dedupe
