// Package cfapi is a typed client for the CurseForge REST API.
//
// The client authenticates with an x-api-key header, decodes the standard
// {"data": ...} response envelope, retries transient failures with
// exponential backoff, and optionally caches GET responses through an
// injected httpcache.Cache.
//
// The installer consumes only the narrow FileService interface, which
// Client implements: resolving a direct download URL and fetching file
// metadata for a (project, file) pair.
package cfapi
