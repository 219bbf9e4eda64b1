// Package codename maps a build target to the codename declared in its
// device configuration. The release workflow ships each target under a
// destination subdirectory named after it.
package codename

import (
	"bufio"
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"git.home.luguber.info/inful/nightlybuilder/internal/config"
)

// ErrNotFound means no device directory for the target declared a codename.
var ErrNotFound = stderrors.New("codename not found")

// Resolver searches a device tree such as <source>/device/<vendor>/<target>/ev.mk.
type Resolver struct {
	// Root is the device tree.
	Root string
	// File is the make fragment holding the declaration.
	File string
	// Key is the variable name carrying the codename.
	Key string

	decl *regexp.Regexp
}

// NewResolver builds a Resolver rooted at sourcePath using the product settings.
func NewResolver(sourcePath string, product config.ProductConfig) *Resolver {
	return &Resolver{
		Root: filepath.Join(sourcePath, product.DeviceDir),
		File: product.CodenameFile,
		Key:  product.CodenameKey,
		decl: regexp.MustCompile(`^\s*` + regexp.QuoteMeta(product.CodenameKey) + `\s*[:?]?=\s*(\S+)`),
	}
}

// Resolve walks the device tree for directories named target and reads the
// codename from each one's make fragment. When several declarations are found
// the last one in walk order wins.
func (r *Resolver) Resolve(target string) (string, error) {
	var codename string
	err := filepath.WalkDir(r.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == r.Root {
				return err
			}
			return nil
		}
		if !d.IsDir() || path == r.Root || d.Name() != target {
			return nil
		}
		name, err := r.readDecl(filepath.Join(path, r.File))
		if err != nil {
			if stderrors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if name != "" {
			codename = name
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("search %s for %s: %w", r.Root, target, err)
	}
	if codename == "" {
		return "", fmt.Errorf("%w for target %s under %s", ErrNotFound, target, r.Root)
	}
	return codename, nil
}

func (r *Resolver) readDecl(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	var value string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if !strings.Contains(line, r.Key) {
			continue
		}
		if m := r.decl.FindStringSubmatch(line); m != nil {
			value = m[1]
		}
	}
	return value, sc.Err()
}
