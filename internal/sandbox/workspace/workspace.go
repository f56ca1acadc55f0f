// Package workspace manages the ephemeral filesystem footprint of one request.
package workspace

import (
	"os"
	"path/filepath"

	appErr "cppexec/pkg/errors"

	"github.com/google/uuid"
)

const dirPrefix = "cpp-exec-"

// Workspace is the exclusively-owned path set of one in-flight request.
// It must never be referenced after Release.
type Workspace struct {
	RootDir    string
	SourcePath string
	BinaryPath string
	StdinPath  string
	StdoutPath string
	StderrPath string
}

// Manager allocates and releases workspaces under a shared root directory.
type Manager struct {
	root string
}

// NewManager creates a manager rooted at dir, falling back to the system temp
// directory when dir is empty.
func NewManager(dir string) *Manager {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "cppexec")
	}
	return &Manager{root: dir}
}

// Allocate creates a fresh workspace directory. Directory names are random
// UUIDs, so concurrent requests in the same process or in cooperating
// processes sharing the root never collide.
func (m *Manager) Allocate() (Workspace, error) {
	if err := os.MkdirAll(m.root, 0755); err != nil {
		return Workspace{}, appErr.Wrapf(err, appErr.WorkspaceError, "create workspace root %s: %v", m.root, err)
	}

	dir := filepath.Join(m.root, dirPrefix+uuid.New().String())
	if err := os.Mkdir(dir, 0755); err != nil {
		return Workspace{}, appErr.Wrapf(err, appErr.WorkspaceError, "create workspace dir %s: %v", dir, err)
	}

	return Workspace{
		RootDir:    dir,
		SourcePath: filepath.Join(dir, "main.cpp"),
		BinaryPath: filepath.Join(dir, "main"),
		StdinPath:  filepath.Join(dir, "input.txt"),
		StdoutPath: filepath.Join(dir, "output.log"),
		StderrPath: filepath.Join(dir, "runtime.log"),
	}, nil
}

// Release removes the workspace directory and everything in it. Releasing an
// already-released or zero workspace is a no-op, so callers can defer it
// unconditionally on every exit path.
func (m *Manager) Release(ws Workspace) {
	if ws.RootDir == "" {
		return
	}
	_ = os.RemoveAll(ws.RootDir)
}
