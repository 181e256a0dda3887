// Package fileio reads and atomically writes whole files.
package fileio

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/ncw/directio"
	"xorkevin.dev/kerrors"
)

var (
	// ErrIO is returned when a file cannot be read or written
	ErrIO errIO
	// ErrNotExist is returned when a file does not exist
	ErrNotExist errNotExist
)

type (
	errIO       struct{}
	errNotExist struct{}
)

func (e errIO) Error() string {
	return "IO error"
}

func (e errNotExist) Error() string {
	return "File does not exist"
}

const (
	// number of aligned blocks read per direct read call
	directReadBlocks = 256
)

func ioErr(err error, msg string) error {
	if errors.Is(err, fs.ErrNotExist) {
		return kerrors.WithKind(kerrors.WithKind(err, ErrNotExist, msg), ErrIO, msg)
	}
	return kerrors.WithKind(err, ErrIO, msg)
}

// ReadFile reads a whole file
//
// When direct is set the file is read with O_DIRECT (F_NOCACHE on darwin),
// bypassing the page cache so that the bytes on the device are verified.
// Filesystems that reject direct IO fall back to buffered reads.
func ReadFile(name string, direct bool) ([]byte, error) {
	if direct {
		b, err := readDirect(name)
		if err == nil {
			return b, nil
		}
		if errors.Is(err, ErrNotExist) {
			return nil, err
		}
	}
	b, err := os.ReadFile(name)
	if err != nil {
		return nil, ioErr(err, "Failed reading file")
	}
	return b, nil
}

func readDirect(name string) (_ []byte, retErr error) {
	f, err := directio.OpenFile(name, os.O_RDONLY, 0)
	if err != nil {
		return nil, ioErr(err, "Failed opening file for direct io")
	}
	defer func() {
		if err := f.Close(); err != nil {
			retErr = errors.Join(retErr, ioErr(err, "Failed to close file"))
		}
	}()
	info, err := f.Stat()
	if err != nil {
		return nil, ioErr(err, "Failed to stat file")
	}
	size := info.Size()
	res := make([]byte, 0, size)
	block := directio.AlignedBlock(directio.BlockSize * directReadBlocks)
	for {
		n, err := io.ReadFull(f, block)
		res = append(res, block[:n]...)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return nil, ioErr(err, "Failed reading file")
		}
	}
	return res, nil
}

// ReadFileFS reads a whole file from a filesystem
func ReadFileFS(fsys fs.FS, name string) ([]byte, error) {
	b, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, ioErr(err, "Failed reading file")
	}
	return b, nil
}

// Exists reports whether a regular file exists
func Exists(name string) (bool, error) {
	info, err := os.Stat(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, ioErr(err, "Failed to stat file")
	}
	return info.Mode().IsRegular(), nil
}

// WriteFile atomically replaces name with data
func WriteFile(name string, data []byte, perm fs.FileMode) error {
	return WriteFrom(name, writerFunc(func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	}), perm)
}

type (
	// Source writes file contents
	Source interface {
		WriteTo(w io.Writer) (int64, error)
	}

	writerFunc func(w io.Writer) error
)

func (f writerFunc) WriteTo(w io.Writer) (int64, error) {
	cw := &countWriter{w: w}
	err := f(cw)
	return cw.n, err
}

type (
	countWriter struct {
		w io.Writer
		n int64
	}
)

func (w *countWriter) Write(p []byte) (int, error) {
	n, err := w.w.Write(p)
	w.n += int64(n)
	return n, err
}

// WriteFrom atomically replaces name with the contents written by src
//
// Contents are written to a temporary file in the same directory which is
// synced and renamed over name, so readers observe either the old or the new
// file.
func WriteFrom(name string, src Source, perm fs.FileMode) (retErr error) {
	dir := filepath.Dir(name)
	if err := os.MkdirAll(dir, 0o777); err != nil {
		return ioErr(err, "Failed creating directory")
	}
	tmpName := filepath.Join(dir, "."+filepath.Base(name)+"."+uuid.NewString()+".tmp")
	f, err := os.OpenFile(tmpName, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return ioErr(err, "Failed creating temp file")
	}
	renamed := false
	closed := false
	defer func() {
		if !closed {
			if err := f.Close(); err != nil {
				retErr = errors.Join(retErr, ioErr(err, "Failed to close temp file"))
			}
		}
		if !renamed {
			if err := os.Remove(tmpName); err != nil && !errors.Is(err, fs.ErrNotExist) {
				retErr = errors.Join(retErr, ioErr(err, "Failed to remove temp file"))
			}
		}
	}()
	if _, err := src.WriteTo(f); err != nil {
		return ioErr(err, "Failed writing temp file")
	}
	if err := f.Sync(); err != nil {
		return ioErr(err, "Failed syncing temp file")
	}
	closed = true
	if err := f.Close(); err != nil {
		return ioErr(err, "Failed closing temp file")
	}
	if err := os.Rename(tmpName, name); err != nil {
		return ioErr(err, "Failed renaming temp file")
	}
	renamed = true
	return nil
}
