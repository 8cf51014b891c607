// Package receipt implements persistence for provisioning run records.
//
// A Receipt captures who ran the bootstrap, which environment it produced,
// the manifest checksum, per-step outcomes and the dataset transfer summary.
// The FileRepository stores and loads it as JSON on disk and exposes a
// Repository interface that the bootstrap service depends on.
package receipt
