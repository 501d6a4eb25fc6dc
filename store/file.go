package store

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
)

var _ Backend = (*FileBackend)(nil)

// FileBackend persists the payload in a single file, created with 0600 since
// it holds credentials. Writes go through a temp file and rename so a crash
// never leaves a half-written record behind.
type FileBackend struct {
	mu   sync.Mutex
	path string
}

// NewFileBackend creates a backend storing its payload at path. Parent
// directories are created on demand.
func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path}
}

func (f *FileBackend) Load() ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "[FileBackend.Load]")
	}
	return data, true, nil
}

func (f *FileBackend) Save(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return errors.Wrap(err, "[FileBackend.Save] creating directory")
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".tmp-*")
	if err != nil {
		return errors.Wrap(err, "[FileBackend.Save] creating temp file")
	}
	tmpName := tmp.Name()
	discard := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}

	if err := tmp.Chmod(0o600); err != nil {
		discard()
		return errors.Wrap(err, "[FileBackend.Save] chmod")
	}
	if _, err := tmp.Write(data); err != nil {
		discard()
		return errors.Wrap(err, "[FileBackend.Save] writing")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return errors.Wrap(err, "[FileBackend.Save] closing")
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		_ = os.Remove(tmpName)
		return errors.Wrap(err, "[FileBackend.Save] renaming")
	}
	return nil
}

func (f *FileBackend) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "[FileBackend.Clear]")
	}
	return nil
}
