package draft

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"
)

// FileKV keeps one JSON file per namespace under a directory.
type FileKV struct {
	dir string
	mu  sync.Mutex
}

func NewFileKV(dir string) (*FileKV, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create draft directory: %w", err)
	}
	return &FileKV{dir: dir}, nil
}

func (f *FileKV) path(namespace string) string {
	return filepath.Join(f.dir, url.PathEscape(namespace)+".json")
}

func (f *FileKV) read(namespace string) (map[string]string, error) {
	payload, err := os.ReadFile(f.path(namespace))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("read draft file: %w", err)
	}
	values := map[string]string{}
	if err := json.Unmarshal(payload, &values); err != nil {
		// a damaged file reads as empty, the next save rewrites it
		return map[string]string{}, nil
	}
	return values, nil
}

func (f *FileKV) Get(_ context.Context, namespace, key string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	values, err := f.read(namespace)
	if err != nil {
		return nil, false, err
	}
	v, ok := values[key]
	if !ok {
		return nil, false, nil
	}
	return []byte(v), true, nil
}

func (f *FileKV) SetMany(_ context.Context, namespace string, values map[string][]byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	current, err := f.read(namespace)
	if err != nil {
		return err
	}
	for k, v := range values {
		current[k] = string(v)
	}
	payload, err := json.Marshal(current)
	if err != nil {
		return fmt.Errorf("marshal draft file: %w", err)
	}
	tmp := f.path(namespace) + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return fmt.Errorf("write draft file: %w", err)
	}
	if err := os.Rename(tmp, f.path(namespace)); err != nil {
		return fmt.Errorf("replace draft file: %w", err)
	}
	return nil
}
