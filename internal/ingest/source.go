package ingest

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// File is something that can be ingested.
type File interface {
	// Name is the file name the decoder and table name are derived from.
	Name() string
	// Open returns the file contents.
	Open() (io.ReadCloser, error)
}

// LocalFile is a file on disk. It can be registered without copying.
type LocalFile struct {
	path string
	name string
}

// FromPath returns a File for a path on disk.
func FromPath(path string) *LocalFile {
	return &LocalFile{path: path, name: filepath.Base(path)}
}

// Name returns the base name.
func (f *LocalFile) Name() string { return f.name }

// Path returns the on-disk path.
func (f *LocalFile) Path() string { return f.path }

// Open opens the file.
func (f *LocalFile) Open() (io.ReadCloser, error) {
	return os.Open(f.path)
}

// BufferFile is an in-memory file, such as an upload or a remote download.
type BufferFile struct {
	name   string
	data   []byte
	source string
}

// FromBytes returns a File holding data under name.
func FromBytes(name string, data []byte) *BufferFile {
	return &BufferFile{name: name, data: data, source: "upload"}
}

// Name returns the file name.
func (f *BufferFile) Name() string { return f.name }

// Bytes returns the contents.
func (f *BufferFile) Bytes() []byte { return f.data }

// Open returns a reader over the contents.
func (f *BufferFile) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(f.data)), nil
}

// pathed is implemented by files that live on local disk.
type pathed interface {
	Path() string
}

// sourced is implemented by files that know where they came from.
type sourced interface {
	Source() string
}

// Source reports where the buffer came from.
func (f *BufferFile) Source() string { return f.source }

// Source reports where the file came from.
func (f *LocalFile) Source() string { return "file" }

func sourceOf(f File) string {
	if s, ok := f.(sourced); ok {
		return s.Source()
	}
	return "file"
}

func readAll(f File) ([]byte, error) {
	if b, ok := f.(*BufferFile); ok {
		return b.data, nil
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", f.Name(), err)
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", f.Name(), err)
	}
	return data, nil
}
