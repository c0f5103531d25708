// Package download implements resumable, verified HTTP file downloads.
//
// A Manager downloads one URL to one destination file, resuming from a
// ".part" sibling via Range requests, verifying content hashes, and
// retrying transient failures with exponential backoff. Rate-limit
// responses are honored via Retry-After. A bulk helper fans independent
// downloads out over a bounded worker pool.
//
// # Failure classes
//
// Each attempt classifies the response: 404/410 are terminal, 416 discards
// the local partial and retries fresh, 429 carries the server's requested
// delay, 5xx and transport errors back off and retry. A checksum mismatch
// after promotion deletes the destination and retries. The final Result
// carries the last error once the attempt budget is exhausted; no failure
// escapes as a panic.
package download
