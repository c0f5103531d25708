// Package manifest loads modpack manifests from JSON documents or
// packed archives and normalizes them into a single in-memory shape.
//
// A manifest names the pack and lists the remote files it consists of.
// Archives may additionally carry an overrides tree, arbitrary files
// merged verbatim into the install root after downloads complete; the
// loader extracts that tree to a temporary directory and reports its
// location alongside the parsed manifest.
package manifest
