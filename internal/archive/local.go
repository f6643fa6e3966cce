package archive

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Local writes uploads beneath a directory on disk.
type Local struct {
	dir string
}

// NewLocal creates dir if needed and returns a Local archive rooted there.
func NewLocal(dir string) (*Local, error) {
	if dir == "" {
		return nil, fmt.Errorf("archive: local directory must not be empty")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("archive: resolve %s: %w", dir, err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("archive: create %s: %w", abs, err)
	}
	return &Local{dir: abs}, nil
}

// Put implements Archive. The location is a file:// URL.
func (l *Local) Put(ctx context.Context, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	rel := filepath.FromSlash(objectName(name, time.Now()))
	full := filepath.Join(l.dir, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		return "", fmt.Errorf("archive: create directory: %w", err)
	}

	// Write to a temp file and rename so readers never see a partial file.
	tmp := full + ".tmp"
	if err := os.WriteFile(tmp, data, 0o640); err != nil {
		return "", fmt.Errorf("archive: write %s: %w", name, err)
	}
	if err := os.Rename(tmp, full); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("archive: rename %s: %w", name, err)
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(full)}).String(), nil
}

// Delete implements Archive. Only file:// locations inside the archive
// directory are accepted.
func (l *Local) Delete(ctx context.Context, location string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	u, err := url.Parse(location)
	if err != nil || u.Scheme != "file" {
		return fmt.Errorf("archive: %q is not a file location", location)
	}
	full := filepath.Clean(filepath.FromSlash(u.Path))
	if !strings.HasPrefix(full, l.dir+string(filepath.Separator)) {
		return fmt.Errorf("archive: %q is outside %s", location, l.dir)
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("archive: delete %s: %w", full, err)
	}
	return nil
}
