// Package destination decides where a run ships its artifacts: a remote host
// reached over ssh/rsync, a local mirror directory, or both.
package destination

import (
	"path"
	"path/filepath"
	"strings"
)

// Kind identifies a destination type. At most one of each exists per run.
type Kind string

const (
	KindRemote Kind = "remote"
	KindLocal  Kind = "local"
)

// Destination is one place artifacts are shipped to. Path is the run's base
// directory once Set.Activate has applied the workflow layout.
type Destination struct {
	Kind Kind
	Host string
	User string
	Port string
	Path string
}

// Name is the label used in logs and metrics.
func (d *Destination) Name() string { return string(d.Kind) }

// Dir returns the destination directory for subdir (empty for the base directory).
func (d *Destination) Dir(subdir string) string {
	if subdir == "" {
		return d.Path
	}
	if d.Kind == KindRemote {
		return path.Join(d.Path, subdir)
	}
	return filepath.Join(d.Path, subdir)
}

// Address is what the transfer tool receives as its target. It always ends in
// a slash so a single file lands inside the directory.
func (d *Destination) Address(subdir string) string {
	dir := strings.TrimSuffix(d.Dir(subdir), "/") + "/"
	if d.Kind == KindRemote {
		return d.Login() + ":" + dir
	}
	return dir
}

// Login is user@host for remote destinations.
func (d *Destination) Login() string {
	return d.User + "@" + d.Host
}

func (d *Destination) String() string {
	return d.Name() + " " + d.Address("")
}
