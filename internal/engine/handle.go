package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// Handle is the database engine's virtual file system. Files registered here
// are placed in the staging directory. Decoders must be given Path(name):
// the engine resolves bare names against the working directory before its
// file search path.
type Handle struct {
	dir   string
	owned bool

	mu    sync.Mutex
	files map[string]string
}

func newHandle(dir string, owned bool) *Handle {
	return &Handle{
		dir:   dir,
		owned: owned,
		files: make(map[string]string),
	}
}

// Dir returns the staging directory.
func (h *Handle) Dir() string { return h.dir }

// Path returns the absolute staged location of name.
func (h *Handle) Path(name string) string {
	p := filepath.Join(h.dir, name)
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

// RegisterFileHandle exposes an existing file under name without copying it.
func (h *Handle) RegisterFileHandle(name, path string) error {
	if err := validateFileName(name); err != nil {
		return err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	if _, err := os.Stat(abs); err != nil {
		return fmt.Errorf("failed to register file handle %s: %w", name, err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	target := filepath.Join(h.dir, name)
	if err := removeIfExists(target); err != nil {
		return err
	}
	if err := os.Symlink(abs, target); err != nil {
		return fmt.Errorf("failed to register file handle %s: %w", name, err)
	}
	h.files[name] = target
	return nil
}

// RegisterFileBuffer writes data into the staging directory under name.
func (h *Handle) RegisterFileBuffer(name string, data []byte) error {
	if err := validateFileName(name); err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	target := filepath.Join(h.dir, name)
	if err := removeIfExists(target); err != nil {
		return err
	}
	if err := os.WriteFile(target, data, 0o600); err != nil {
		return fmt.Errorf("failed to register file buffer %s: %w", name, err)
	}
	h.files[name] = target
	return nil
}

// DropFile removes a registered file. Unknown names are ignored.
func (h *Handle) DropFile(name string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	target, ok := h.files[name]
	if !ok {
		return nil
	}
	delete(h.files, name)
	return removeIfExists(target)
}

// Files returns the registered file names, sorted.
func (h *Handle) Files() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	names := make([]string, 0, len(h.files))
	for name := range h.files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// close removes the staging directory when the handle created it.
func (h *Handle) close() error {
	if !h.owned {
		h.mu.Lock()
		defer h.mu.Unlock()
		for name, target := range h.files {
			_ = removeIfExists(target)
			delete(h.files, name)
		}
		return nil
	}
	return os.RemoveAll(h.dir)
}

func validateFileName(name string) error {
	if name == "" || name == "." || name == ".." || filepath.Base(name) != name {
		return fmt.Errorf("invalid file name %q", name)
	}
	return nil
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
