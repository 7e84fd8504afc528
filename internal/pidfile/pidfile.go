// Package pidfile records the pid of the running guardian.
package pidfile

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/afero"
)

// DefaultName is the file name used inside the state directory.
const DefaultName = "guardian.pid"

// ErrInvalid is returned when the file does not hold a positive pid.
var ErrInvalid = errors.New("invalid pid file")

// File is a pid file at a fixed path on a filesystem.
type File struct {
	fs   afero.Fs
	path string
}

// New returns the pid file DefaultName inside dir on fsys. A nil fsys
// uses the operating system.
func New(fsys afero.Fs, dir string) *File {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	return &File{fs: fsys, path: filepath.Join(dir, DefaultName)}
}

// Path returns the location of the file.
func (f *File) Path() string { return f.path }

// Write stores pid, creating the state directory if needed.
func (f *File) Write(pid int) error {
	if pid <= 0 {
		return fmt.Errorf("%w: pid %d", ErrInvalid, pid)
	}
	if err := f.fs.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return err
	}
	return afero.WriteFile(f.fs, f.path, []byte(strconv.Itoa(pid)), 0o644)
}

// Read returns the stored pid. A missing file yields an error satisfying
// errors.Is(err, fs.ErrNotExist).
func (f *File) Read() (int, error) {
	data, err := afero.ReadFile(f.fs, f.path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if pid <= 0 {
		return 0, fmt.Errorf("%w: pid %d", ErrInvalid, pid)
	}
	return pid, nil
}

// Remove deletes the file. A missing file is not an error.
func (f *File) Remove() error {
	err := f.fs.Remove(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
