package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Well-known file names inside a workspace.
const (
	DatasetFile       = "dataset.csv"
	RequestFile       = "input"
	ResponseFile      = "output"
	RequestTokenFile  = "input.token"
	ResponseTokenFile = "output.token"
)

// DirPermission is the mode for created workspace directories.
const DirPermission = 0o755

// Workspace is the filesystem exchange point between host and sandbox.
type Workspace struct {
	root  string
	owned bool
}

// Create allocates a fresh exclusively-owned workspace under base, or under
// the system temp directory when base is empty.
func Create(base string) (*Workspace, error) {
	if base == "" {
		base = os.TempDir()
	}

	// Container runtimes reject relative bind-mount sources.
	root, err := filepath.Abs(filepath.Join(base, "databox-ws-"+uuid.NewString()))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve workspace path: %w", err)
	}
	if err := os.MkdirAll(root, DirPermission); err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}

	return &Workspace{root: root, owned: true}, nil
}

// Open wraps a pre-provisioned data directory. The directory must already
// exist and is not owned: Destroy leaves it in place.
func Open(dir string) (*Workspace, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("data directory not usable: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("data directory %s is not a directory", dir)
	}

	return &Workspace{root: dir, owned: false}, nil
}

// Root returns the workspace directory path.
func (w *Workspace) Root() string { return w.root }

// Owned reports whether Destroy will remove the directory.
func (w *Workspace) Owned() bool { return w.owned }

// DatasetPath is the staged dataset snapshot location.
func (w *Workspace) DatasetPath() string { return filepath.Join(w.root, DatasetFile) }

// RequestPath is the pending request file location.
func (w *Workspace) RequestPath() string { return filepath.Join(w.root, RequestFile) }

// ResponsePath is the pending response file location.
func (w *Workspace) ResponsePath() string { return filepath.Join(w.root, ResponseFile) }

// RequestTokenPath is the fencing token published alongside a request.
func (w *Workspace) RequestTokenPath() string { return filepath.Join(w.root, RequestTokenFile) }

// ResponseTokenPath is the fencing token echoed alongside a response.
func (w *Workspace) ResponseTokenPath() string { return filepath.Join(w.root, ResponseTokenFile) }

// ClearPending removes any leftover request or response file, along with
// their fencing tokens. Missing files are not an error.
func (w *Workspace) ClearPending() error {
	var errs []error
	for _, path := range []string{w.RequestPath(), w.ResponsePath(), w.RequestTokenPath(), w.ResponseTokenPath()} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Destroy removes the workspace recursively when it is owned. For opened
// directories it only clears the pending exchange files.
func (w *Workspace) Destroy() error {
	if !w.owned {
		return w.ClearPending()
	}
	return os.RemoveAll(w.root)
}
