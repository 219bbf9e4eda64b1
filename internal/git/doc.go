// Package git reads the revision a source tree is checked out at, so a run
// can record exactly what it built.
package git
