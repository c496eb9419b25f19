// Package detect holds the signal detectors that analyze a rendered page
// artifact and propose search pattern candidates. Detectors are read-only
// over the artifact, never communicate with each other, and treat
// malformed input as a valid "no signal" outcome.
package detect
