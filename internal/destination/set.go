package destination

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/nightlybuilder/internal/command"
	"git.home.luguber.info/inful/nightlybuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/nightlybuilder/internal/logfields"
)

// ErrAllDestinationsFailed is returned when setup leaves nothing active.
var ErrAllDestinationsFailed = errors.DestinationError("nowhere to put builds").Fatal().Build()

// Set is the group of destinations that survived setup. The rest of the
// pipeline iterates over Active() instead of branching per kind.
type Set struct {
	active      []*Destination
	provisioner *Provisioner
}

// Activate moves every resolved destination to its run layout (base path
// joined with layout, e.g. the nightly date) and creates that directory. A
// destination whose directory cannot be created is dropped for the rest of
// the run; losing all of them is fatal.
func Activate(ctx context.Context, res Resolution, layout string, p *Provisioner) (*Set, error) {
	set := &Set{provisioner: p}
	for _, d := range res.Active() {
		d.Path = d.Dir(layout)
		if err := p.EnsureDir(ctx, d, ""); err != nil {
			code, _ := command.ExitCode(err)
			slog.Error("Failed to create destination directory, deactivating",
				logfields.Destination(d.Name()),
				logfields.Path(d.Path),
				logfields.ExitCode(code),
				logfields.Error(err))
			continue
		}
		slog.Info("Destination active", logfields.Destination(d.Name()), logfields.Address(d.Address("")))
		set.active = append(set.active, d)
	}
	if len(set.active) == 0 {
		return nil, ErrAllDestinationsFailed
	}
	return set, nil
}

// Active returns the destinations in use for this run.
func (s *Set) Active() []*Destination {
	return append([]*Destination(nil), s.active...)
}

// Has reports whether a destination of kind survived setup.
func (s *Set) Has(kind Kind) bool {
	for _, d := range s.active {
		if d.Kind == kind {
			return true
		}
	}
	return false
}

// Provisioner exposes the directory creator for per-target subdirectories.
func (s *Set) Provisioner() *Provisioner { return s.provisioner }
