package pid

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/DevSistemasCod/multiplos-graficos-websocket/internal/errors"
)

const fileName = "sensordash.pid"

// File guards against two dashboards running on the same host.
type File struct {
	path string
}

// New returns a pid file in dir, or in the system temp directory when dir
// is empty.
func New(dir string) *File {
	if dir == "" {
		dir = os.TempDir()
	}

	return &File{path: filepath.Join(dir, fileName)}
}

func (f *File) Path() string {
	return f.path
}

// Write records the current process ID. It fails with ErrAlreadyRunning
// when the file names another live process; stale files are replaced.
func (f *File) Write() error {
	errFactory := errors.New()
	self := os.Getpid()

	if data, err := os.ReadFile(f.path); err == nil {
		if other, err := strconv.Atoi(strings.TrimSpace(string(data))); err == nil && other != self && alive(other) {
			return errFactory.WithData(errors.ErrAlreadyRunning, struct {
				PID  int
				Path string
			}{other, f.path})
		}
	} else if !os.IsNotExist(err) {
		return errFactory.Wrap(errors.ErrInternal, err)
	}

	if err := os.WriteFile(f.path, []byte(strconv.Itoa(self)), 0o600); err != nil {
		return errFactory.Wrap(errors.ErrInternal, err)
	}

	return nil
}

// Remove deletes the pid file. A missing file is not an error.
func (f *File) Remove() error {
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return errors.New().Wrap(errors.ErrInternal, err)
	}

	return nil
}

func alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	return process.Signal(syscall.Signal(0)) == nil
}
