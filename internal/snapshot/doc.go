// Package snapshot loads one platform's channel snapshot: HTTP fetch of
// repodata.json.zst (or the uncompressed sibling), zstd decompression and
// JSON decoding into a repodata.Tree.
//
// Load never returns an error. Any fetch, decompress or parse failure, and a
// fetch that outlives the configured timeout, produces a Result in the
// Unavailable state carrying the cause; the audit treats that platform as
// contributing zero records.
//
// Authentication (bearer token, basic auth) is handled by authRoundTripper in
// loader.go; the client is built once in New and shared by all platforms.
package snapshot
