// Package dataset fetches the exercise data from cloud object storage.
//
// The Downloader recursively copies every object under a bucket prefix into
// a local directory, preserving the remote folder structure. Requests are
// unsigned by default, matching the publicly readable course bucket; static
// credentials can be configured for private mirrors.
package dataset
