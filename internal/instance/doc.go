// Package instance models the on-disk layout of a game instance: the
// root directory plus the standard subdirectories files are installed
// into, with helpers for locating, backing up and removing instances.
package instance
