package upload

import (
	"context"
	"io"
	"os"
	"path/filepath"
)

// FileStore keeps uploaded files. Put takes ownership of the staged file at
// src and returns where the file now lives.
type FileStore interface {
	Put(ctx context.Context, name, src string) (string, error)
}

// LocalStore moves files into a directory on local, usually ephemeral, disk.
type LocalStore struct {
	Dir string
}

func (s LocalStore) Put(ctx context.Context, name, src string) (string, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", err
	}
	dst := filepath.Join(s.Dir, name)
	if err := os.Rename(src, dst); err == nil {
		return dst, nil
	}
	// Rename fails across filesystems; fall back to a copy.
	if err := copyFile(src, dst); err != nil {
		return "", err
	}
	_ = os.Remove(src)
	return dst, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	return out.Close()
}
