// Package fileutil holds small filesystem helpers shared by acquisition and
// export.
package fileutil

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ErrCopyMismatch reports a copy whose size or digest differs from the source.
var ErrCopyMismatch = errors.New("copy verification failed")

// CopyFile copies src to dst, creating dst's directory, and checks that the
// byte count and SHA-256 of what was written match what was read. A
// mismatching dst is removed.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	read, wrote := sha256.New(), sha256.New()
	n, copyErr := io.Copy(io.MultiWriter(out, wrote), io.TeeReader(in, read))
	if closeErr := out.Close(); copyErr == nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		return copyErr
	}

	switch {
	case n != info.Size():
		err = fmt.Errorf("%w: source %d bytes, copied %d", ErrCopyMismatch, info.Size(), n)
	case string(read.Sum(nil)) != string(wrote.Sum(nil)):
		err = fmt.Errorf("%w: digest differs", ErrCopyMismatch)
	}
	if err != nil {
		_ = os.Remove(dst)
	}
	return err
}

// WriteFileAtomic writes data to a hidden temp file beside path and renames
// it into place, so readers see either the old file or the complete new one.
func WriteFileAtomic(path string, data []byte, mode os.FileMode) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("ensure directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Chmod(mode); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}
