package writefs

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"xorkevin.dev/kerrors"
)

type (
	// FS is a file system that output files may be created in
	FS interface {
		Create(name string) (io.WriteCloser, error)
	}

	// OS implements FS with the os file system rooted at Base
	OS struct {
		Base string
	}
)

func NewOS(base string) *OS {
	return &OS{
		Base: base,
	}
}

// Create truncates or creates the file name, making parent directories as
// needed. name must be a valid [fs.ValidPath] relative to Base.
func (o *OS) Create(name string) (io.WriteCloser, error) {
	if !fs.ValidPath(name) {
		return nil, kerrors.WithMsg(fs.ErrInvalid, fmt.Sprintf("Invalid path %s", name))
	}
	path := filepath.Join(o.Base, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, kerrors.WithMsg(err, "Failed to mkdir")
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, kerrors.WithMsg(err, "Invalid file")
	}
	return f, nil
}

// WriteFile creates name in fsys and writes src to it
func WriteFile(fsys FS, name string, src io.WriterTo) (retErr error) {
	f, err := fsys.Create(name)
	if err != nil {
		return kerrors.WithMsg(err, fmt.Sprintf("Failed to create %s", name))
	}
	defer func() {
		if err := f.Close(); err != nil {
			retErr = errors.Join(retErr, kerrors.WithMsg(err, fmt.Sprintf("Failed to close %s", name)))
		}
	}()
	if _, err := src.WriteTo(f); err != nil {
		return kerrors.WithMsg(err, fmt.Sprintf("Failed to write %s", name))
	}
	return nil
}
