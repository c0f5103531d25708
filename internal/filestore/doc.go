// Package filestore provides the on-disk building blocks for verified downloads.
//
// Everything here operates on a local filesystem: atomic writes through a
// sibling temp file, digest computation and comparison, bounded-retry
// removal, filename inference from transport metadata, and the ".part"
// path convention used for resumable downloads.
//
// # Atomicity
//
// AtomicWrite stages content in a temp file created in the destination
// directory, fsyncs it, then renames it onto the destination. A reader of
// the destination path sees either the previous content or the complete new
// content, never a partial write. PromotePart gives the same guarantee when
// promoting an existing ".part" file.
package filestore
