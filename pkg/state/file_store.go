package state

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileStore writes one <name>.json file per snapshot under Dir. Saves
// replace the file atomically. The ETag is the sha256 of the file bytes.
type FileStore[T any] struct {
	Dir string

	mu sync.Mutex
}

func NewFileStore[T any](dir string) *FileStore[T] {
	return &FileStore[T]{Dir: dir}
}

// Path returns the file backing ref.
func (s *FileStore[T]) Path(ref Ref) (string, error) {
	key, err := ref.Identifier()
	if err != nil {
		return "", err
	}
	return filepath.Join(s.Dir, key+".json"), nil
}

func (s *FileStore[T]) Load(ctx context.Context, ref Ref) (T, Meta, bool, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, Meta{}, false, err
	}
	path, err := s.Path(ref)
	if err != nil {
		return zero, Meta{}, false, err
	}
	payload, info, err := readFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return zero, Meta{}, false, nil
	}
	if err != nil {
		return zero, Meta{}, false, fmt.Errorf("state: read %s: %w", path, err)
	}
	snapshot, err := decode[T](payload)
	if err != nil {
		return zero, Meta{}, false, fmt.Errorf("%w (%s)", err, path)
	}
	return snapshot, Meta{ETag: etagOf(payload), UpdatedAt: info.ModTime().UTC()}, true, nil
}

func (s *FileStore[T]) Save(ctx context.Context, ref Ref, snapshot T, meta Meta) (Meta, error) {
	if err := ctx.Err(); err != nil {
		return Meta{}, err
	}
	path, err := s.Path(ref)
	if err != nil {
		return Meta{}, err
	}
	payload, err := encode(snapshot)
	if err != nil {
		return Meta{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if meta.ETag != "" {
		current, _, err := readFile(path)
		exists := err == nil
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Meta{}, fmt.Errorf("state: read %s: %w", path, err)
		}
		if err := checkETag(meta.ETag, etagOf(current), exists); err != nil {
			return Meta{}, err
		}
	}
	if err := writeFileAtomic(path, payload); err != nil {
		return Meta{}, err
	}
	return meta.stamped(payload, time.Now()), nil
}

func readFile(path string) ([]byte, fs.FileInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, nil, err
	}
	payload := make([]byte, info.Size())
	if _, err := io.ReadFull(f, payload); err != nil {
		return nil, nil, err
	}
	return payload, info, nil
}

func writeFileAtomic(path string, payload []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("state: create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("state: create temp file: %w", err)
	}
	cleanup := func() { _ = os.Remove(tmp.Name()) }
	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("state: write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("state: sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("state: close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		cleanup()
		return fmt.Errorf("state: rename %s: %w", path, err)
	}
	return nil
}
