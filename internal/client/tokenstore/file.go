package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"chitchat/internal/pkg/logx"
)

const (
	fileMode = 0o600
	dirMode  = 0o700
)

// File stores the token in a single file readable only by its owner. Every chitchat
// process pointed at the same path shares the token.
type File struct {
	path string
}

// NewFile returns a File store at path. The file and its directory are created on first Set.
func NewFile(path string) *File {
	return &File{path: filepath.Clean(path)}
}

// Path returns the token file location.
func (f *File) Path() string {
	return f.path
}

// Get implements Store. Unreadable or missing files count as no token.
func (f *File) Get() (string, bool) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logx.Warn("Failed to read token file", "path", f.path, "error", err.Error())
		}
		return "", false
	}

	token := strings.TrimSpace(string(data))
	return token, token != ""
}

// Set implements Store. The token is written to a temporary file and renamed into place,
// so readers in other processes never observe a partial token.
func (f *File) Set(token string) error {
	if token == "" {
		if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove token file: %w", err)
		}
		return nil
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return fmt.Errorf("create token directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.path)+".*")
	if err != nil {
		return fmt.Errorf("create temp token file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := tmp.Chmod(fileMode); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod token file: %w", err)
	}

	if _, err := tmp.WriteString(token); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write token file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close token file: %w", err)
	}

	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("rename token file: %w", err)
	}

	return nil
}

// Watch implements Watcher using fsnotify on the parent directory, which survives the
// file being replaced or removed.
func (f *File) Watch(ctx context.Context) (<-chan struct{}, error) {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return nil, fmt.Errorf("create token directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	ch := make(chan struct{}, 1)
	go f.processEvents(ctx, watcher, ch)

	return ch, nil
}

func (f *File) processEvents(ctx context.Context, watcher *fsnotify.Watcher, ch chan struct{}) {
	defer close(ch)
	defer func() { _ = watcher.Close() }()

	const relevant = fsnotify.Create | fsnotify.Write | fsnotify.Remove | fsnotify.Rename

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}

			if filepath.Clean(event.Name) != f.path || event.Op&relevant == 0 {
				continue
			}

			notify(ch)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logx.Warn("Token watcher error", "path", f.path, "error", err.Error())
		}
	}
}
