package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// DiskStore keeps blobs as flat files inside a single root directory. Every
// name is resolved against the root and must stay strictly inside it.
type DiskStore struct {
	root string
}

func NewDiskStore(root string) (*DiskStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve uploads root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("create uploads root: %w", err)
	}
	return &DiskStore{root: abs}, nil
}

// resolve joins name onto the root and rejects anything that escapes it.
func (s *DiskStore) resolve(name string) (string, error) {
	if name == "" || strings.ContainsRune(name, 0) {
		return "", fmt.Errorf("storage: invalid blob name %q", name)
	}
	full := filepath.Join(s.root, name)
	if !strings.HasPrefix(full, s.root+string(os.PathSeparator)) {
		return "", fmt.Errorf("storage: blob name %q escapes the store root", name)
	}
	return full, nil
}

func (s *DiskStore) Create(_ context.Context, name string) (io.WriteCloser, error) {
	full, err := s.resolve(name)
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o640)
	if err != nil {
		return nil, fmt.Errorf("create blob %s: %w", name, err)
	}
	return f, nil
}

func (s *DiskStore) Open(_ context.Context, name string) (io.ReadCloser, error) {
	full, err := s.resolve(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if os.IsNotExist(err) {
		return nil, ErrBlobNotFound
	} else if err != nil {
		return nil, fmt.Errorf("open blob %s: %w", name, err)
	}
	return f, nil
}

func (s *DiskStore) Copy(ctx context.Context, src, dst string) error {
	in, err := s.Open(ctx, src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := s.Create(ctx, dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy blob %s -> %s: %w", src, dst, err)
	}
	return out.Close()
}

func (s *DiskStore) Rename(_ context.Context, src, dst string) error {
	from, err := s.resolve(src)
	if err != nil {
		return err
	}
	to, err := s.resolve(dst)
	if err != nil {
		return err
	}
	if err := os.Rename(from, to); err != nil {
		return fmt.Errorf("rename blob %s -> %s: %w", src, dst, err)
	}
	return nil
}

func (s *DiskStore) Delete(_ context.Context, name string) error {
	full, err := s.resolve(name)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete blob %s: %w", name, err)
	}
	return nil
}

func (s *DiskStore) Exists(_ context.Context, name string) (bool, error) {
	full, err := s.resolve(name)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(full); os.IsNotExist(err) {
		return false, nil
	} else if err != nil {
		return false, fmt.Errorf("stat blob %s: %w", name, err)
	}
	return true, nil
}
