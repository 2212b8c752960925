package prefs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/afnaayusuf/kintsugi/pkg/log"
)

var _ Store = (*FileStore)(nil)

// FileStore keeps preferences in a YAML (or any viper-supported) file.
type FileStore struct {
	path string

	mu sync.RWMutex
	v  *viper.Viper
}

// NewFileStore loads path if it exists. A missing file is created on the
// first Set. The file extension selects the format.
func NewFileStore(path string) (*FileStore, error) {
	if filepath.Ext(path) == "" {
		return nil, fmt.Errorf("preferences file %q has no extension", path)
	}
	s := &FileStore{path: path}
	v, err := s.load()
	if err != nil {
		return nil, err
	}
	s.v = v
	return s, nil
}

func (s *FileStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.v.IsSet(key) {
		return "", false, nil
	}
	return s.v.GetString(key), true, nil
}

func (s *FileStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create preferences directory: %w", err)
	}
	s.v.Set(key, value)
	if err := s.v.WriteConfigAs(s.path); err != nil {
		return fmt.Errorf("failed to write preferences file %s: %w", s.path, err)
	}
	return nil
}

// Watch reloads the file whenever it changes on disk until ctx is done.
// onChange, if not nil, is called after every successful reload.
func (s *FileStore) Watch(ctx context.Context, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Watch the directory so editors that replace the file are seen too.
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	target := filepath.Clean(s.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target || !event.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			log.Info("Preferences file changed", "file", event.Name, "op", event.Op.String())
			if err := s.reload(); err != nil {
				log.Error(err, "Failed to reload preferences file", "file", s.path)
				continue
			}
			if onChange != nil {
				onChange()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Error(err, "Preferences watcher error")
		}
	}
}

func (s *FileStore) reload() error {
	v, err := s.load()
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.v = v
	s.mu.Unlock()
	return nil
}

func (s *FileStore) load() (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigFile(s.path)

	if err := v.ReadInConfig(); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return v, nil
		}
		return nil, fmt.Errorf("failed to read preferences file %s: %w", s.path, err)
	}
	return v, nil
}
