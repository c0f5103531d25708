// Package httpcache provides a file-based TTL cache for API responses and a
// small retry helper for transient HTTP failures.
//
// The cache is an explicit object with an injected directory and lifetime;
// nothing in this package holds process-wide state. Multiple instances may
// share a directory because entries are written as whole files.
package httpcache
