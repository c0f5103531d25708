// Package installer turns a modpack manifest into verified files inside
// a game instance.
//
// An install run walks a fixed sequence of phases: plan the downloads,
// optionally back up the instance, fetch every planned file through a
// bounded worker pool, merge the pack's overrides tree, and roll the
// instance back from the backup when a required file could not be
// installed. The run produces a Report describing what happened to each
// file and whether the instance is in a usable state.
package installer
