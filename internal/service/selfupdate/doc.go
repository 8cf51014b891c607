// Package selfupdate replaces the labsetup binary with the release published
// in the configured update folder.
//
// A YAML manifest names the release version, the artifact filename and its
// sha512 checksum; the binary is only applied after checksum verification.
package selfupdate
