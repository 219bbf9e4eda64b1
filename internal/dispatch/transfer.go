package dispatch

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"git.home.luguber.info/inful/nightlybuilder/internal/command"
	"git.home.luguber.info/inful/nightlybuilder/internal/destination"
)

// Transfer copies one local file into a destination directory.
type Transfer interface {
	Send(ctx context.Context, src string, d *destination.Destination, subdir string) error
}

// Rsync transfers with the rsync tool. Remote destinations on a non-default
// port get an explicit ssh transport.
type Rsync struct {
	Runner command.Runner
	Rsync  string
	SSH    string
}

func (r *Rsync) Send(ctx context.Context, src string, d *destination.Destination, subdir string) error {
	args := []string{"-a"}
	if d.Kind == destination.KindRemote && d.Port != "" {
		args = append(args, "-e", strings.Join(append([]string{r.SSH}, destination.SSHPortArgs(d.Port)...), " "))
	}
	args = append(args, src, d.Address(subdir))

	var stderr bytes.Buffer
	err := r.Runner.Run(ctx, command.Spec{Path: r.Rsync, Args: args, Stderr: &stderr})
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%w: %s", err, msg)
		}
	}
	return err
}
