// Package config defines the settings of an artifact sync run and provides
// helpers to load, validate and save them in YAML format.
//
// The Config type holds the cluster identity (fsid, cluster name), the
// staging tree root and the wait/copy tuning knobs.
package config
