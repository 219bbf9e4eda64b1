package destination

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"git.home.luguber.info/inful/nightlybuilder/internal/command"
)

// Provisioner creates destination directories: over ssh for the remote host,
// directly on disk for the local mirror.
type Provisioner struct {
	Runner command.Runner
	SSH    string
}

// EnsureDir makes sure d.Dir(subdir) exists.
func (p *Provisioner) EnsureDir(ctx context.Context, d *Destination, subdir string) error {
	dir := d.Dir(subdir)
	if d.Kind == KindLocal {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create mirror dir %s: %w", dir, err)
		}
		return nil
	}

	var stderr bytes.Buffer
	spec := command.Spec{
		Path:   p.SSH,
		Args:   append(SSHPortArgs(d.Port), d.Login(), remoteMkdir(dir)),
		Stderr: &stderr,
	}
	if err := p.Runner.Run(ctx, spec); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%w: %s", err, msg)
		}
		return err
	}
	return nil
}

// SSHPortArgs returns the ssh flag selecting a non-default port.
func SSHPortArgs(port string) []string {
	if port == "" {
		return nil
	}
	return []string{"-p", port}
}

func remoteMkdir(dir string) string {
	q := shellQuote(dir)
	return "test -d " + q + " || mkdir -p " + q
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
