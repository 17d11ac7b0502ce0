// Package artifact contains core domain types for cluster bootstrap artifacts.
//
// It defines the Artifact value (a keyring or config file with its runtime
// path), the resolver that builds the effective artifact set for one run, and
// the per-artifact sync Status lifecycle.
package artifact
