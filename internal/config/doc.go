// Package config defines provisioning settings used by the labsetup binary
// and provides helpers to load, validate and save them in YAML format.
//
// The Config type describes the target environment, its dependency manifest
// and channels, the dataset location, and self-update settings. Every field
// has a built-in default so the tool works with no settings file at all.
package config
