// Package workspace manages the run's staging directory: a scratch area that
// artifacts are copied into before shipping, so transfers never read from a
// build output tree the next target is about to overwrite.
//
// The directory lives on /dev/shm when available and is owned by one run:
// Create removes leftovers of an earlier run and Cleanup removes it at the end.
package workspace
