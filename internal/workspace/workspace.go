package workspace

import (
	"crypto/md5" //nolint:gosec // md5sum is the published manifest checksum
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/nightlybuilder/internal/logfields"
)

// SharedMemory is preferred as staging base when present.
const SharedMemory = "/dev/shm"

// Manager handles one run's staging directory.
type Manager struct {
	baseDir string
	name    string
	path    string
}

// NewManager creates a manager for baseDir/name. An empty baseDir selects
// DefaultBase().
func NewManager(baseDir, name string) *Manager {
	if baseDir == "" {
		baseDir = DefaultBase()
	}
	return &Manager{baseDir: baseDir, name: name}
}

// DefaultBase returns /dev/shm when it is a directory, else the temp dir.
func DefaultBase() string {
	if fi, err := os.Stat(SharedMemory); err == nil && fi.IsDir() {
		return SharedMemory
	}
	return os.TempDir()
}

// Create makes an empty staging directory.
func (m *Manager) Create() error {
	dir := filepath.Join(m.baseDir, m.name)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to clear stale staging directory: %w", err)
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}
	m.path = dir
	slog.Debug("Created staging directory", logfields.Path(dir))
	return nil
}

// GetPath returns the staging directory, empty before Create.
func (m *Manager) GetPath() string {
	return m.path
}

// File returns the path of name inside the staging directory.
func (m *Manager) File(name string) string {
	return filepath.Join(m.path, name)
}

// Cleanup removes the staging directory.
func (m *Manager) Cleanup() error {
	if m.path == "" {
		return nil
	}
	if err := os.RemoveAll(m.path); err != nil {
		return fmt.Errorf("failed to cleanup staging directory: %w", err)
	}
	slog.Debug("Cleaned up staging directory", logfields.Path(m.path))
	m.path = ""
	return nil
}

// Staged is a file copied into the staging directory. Size and MD5 describe
// the staged bytes.
type Staged struct {
	Path string
	Name string
	Size int64
	MD5  string
}

// Stage copies src into the owner's subdirectory of the staging area,
// hashing while copying. Files with the same name from different owners do
// not collide.
func (m *Manager) Stage(owner, src string) (Staged, error) {
	if m.path == "" {
		return Staged{}, fmt.Errorf("staging directory not created")
	}
	if owner == "" || owner != filepath.Base(owner) || owner == "." || owner == ".." {
		return Staged{}, fmt.Errorf("invalid staging owner %q", owner)
	}
	in, err := os.Open(src)
	if err != nil {
		return Staged{}, err
	}
	defer func() { _ = in.Close() }()

	dir := m.File(owner)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return Staged{}, fmt.Errorf("create staging subdirectory: %w", err)
	}
	name := filepath.Base(src)
	dst := filepath.Join(dir, name)
	out, err := os.Create(dst)
	if err != nil {
		return Staged{}, err
	}

	h := md5.New() //nolint:gosec
	n, err := io.Copy(io.MultiWriter(out, h), in)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return Staged{}, fmt.Errorf("stage %s: %w", name, err)
	}
	return Staged{Path: dst, Name: name, Size: n, MD5: hex.EncodeToString(h.Sum(nil))}, nil
}
