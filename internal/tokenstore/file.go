// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/google/renameio/v2"
	xglog "github.com/kenttv99/MM-sub001/internal/log"
	"github.com/rs/zerolog"
)

// File stores tokens in a single JSON document. Every write replaces the file
// atomically, so concurrent readers in other processes never see a partial
// document.
type File struct {
	path   string
	logger zerolog.Logger

	mu sync.Mutex
	// seen is the document as last written by this store or last reported
	// by Watch. Watch diffs against it so the store's own writes stay quiet.
	seen map[string]string
}

// NewFile returns a store backed by path. The parent directory is created
// on first write.
func NewFile(path string) *File {
	return &File{path: filepath.Clean(path), logger: xglog.WithComponent("tokenstore")}
}

// Path returns the backing file.
func (f *File) Path() string { return f.path }

func (f *File) read() (map[string]string, error) {
	// #nosec G304 -- path is operator configuration
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read token file: %w", err)
	}
	out := map[string]string{}
	if len(data) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode token file: %w", err)
	}
	return out, nil
}

func (f *File) write(m map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("create token dir: %w", err)
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode token file: %w", err)
	}

	pendingFile, err := renameio.NewPendingFile(f.path, renameio.WithPermissions(0o600))
	if err != nil {
		return fmt.Errorf("create pending token file: %w", err)
	}
	defer func() {
		if err := pendingFile.Cleanup(); err != nil {
			f.logger.Debug().Err(err).Msg("cleanup pending token file")
		}
	}()
	if _, err := pendingFile.Write(data); err != nil {
		return fmt.Errorf("write token file: %w", err)
	}
	if err := pendingFile.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace token file: %w", err)
	}
	f.seen = maps.Clone(m)
	return nil
}

func (f *File) Get(key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, err := f.read()
	if err != nil {
		return "", err
	}
	v, ok := m[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (f *File) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, err := f.read()
	if err != nil {
		return err
	}
	if cur, ok := m[key]; ok && cur == value {
		return nil
	}
	m[key] = value
	return f.write(m)
}

func (f *File) Delete(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, err := f.read()
	if err != nil {
		return err
	}
	if _, ok := m[key]; !ok {
		return nil
	}
	delete(m, key)
	return f.write(m)
}

// observe rereads the file and returns what changed since seen. An
// unreadable file reports nothing and keeps the old baseline.
func (f *File) observe() []Change {
	f.mu.Lock()
	defer f.mu.Unlock()
	next, err := f.read()
	if err != nil {
		f.logger.Warn().Err(err).Str("path", f.path).Msg("token file unreadable")
		return nil
	}
	changes := diff(f.seen, next)
	f.seen = next
	return changes
}

// Watch reports key changes made to the file by other writers, such as a
// second process sharing the file. Writes made through this store are not
// reported. The channel is closed when ctx ends.
func (f *File) Watch(ctx context.Context) (<-chan Change, error) {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create token dir: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	// The file itself is replaced on every write, so watch its directory.
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watch token dir: %w", err)
	}

	out := make(chan Change, 16)
	_ = f.observe()
	go func() {
		defer close(out)
		defer func() { _ = watcher.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != f.path {
					continue
				}
				for _, c := range f.observe() {
					select {
					case out <- c:
					case <-ctx.Done():
						return
					}
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				f.logger.Error().Err(err).Str(xglog.FieldEvent, "tokenstore.watch_error").Msg("token watcher error")
			}
		}
	}()
	return out, nil
}

func diff(prev, next map[string]string) []Change {
	var out []Change
	for k, v := range next {
		if old, ok := prev[k]; !ok || old != v {
			out = append(out, Change{Key: k, Present: true})
		}
	}
	for k := range prev {
		if _, ok := next[k]; !ok {
			out = append(out, Change{Key: k, Present: false})
		}
	}
	return out
}

var _ Store = (*File)(nil)
