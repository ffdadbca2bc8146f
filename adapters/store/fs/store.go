package storefs

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/goliatone/go-vault-export/vault"
)

// Store writes notes as files under a vault root directory. Folders map
// to directories and notes to UTF-8 text files. Writes are atomic: a
// temp file in the target directory renamed into place.
type Store struct {
	Root string
	// DirMode and FileMode default to 0o755 and 0o644.
	DirMode  os.FileMode
	FileMode os.FileMode
}

var _ vault.Store = (*Store)(nil)

// NewStore creates a filesystem-backed note store rooted at the vault
// path.
func NewStore(root string) *Store {
	return &Store{Root: root}
}

// EnsureContainer creates the folder directory when missing.
func (s *Store) EnsureContainer(ctx context.Context, container string) error {
	_ = ctx
	if err := s.check(); err != nil {
		return err
	}
	dir, err := s.resolvePath(container)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, s.dirMode()); err != nil {
		return vault.NewError(vault.KindStorage, fmt.Sprintf("failed to create folder %q", container), err)
	}
	return nil
}

// Exists reports whether a note file is present.
func (s *Store) Exists(ctx context.Context, container, name string) (bool, error) {
	_ = ctx
	if err := s.check(); err != nil {
		return false, err
	}
	target, err := s.resolvePath(container, name)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(target)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, vault.NewError(vault.KindStorage, fmt.Sprintf("failed to check %q", name), err)
	}
	return !info.IsDir(), nil
}

// Create writes a new note, creating the parent folder when missing.
func (s *Store) Create(ctx context.Context, container, name string, content []byte) error {
	_ = ctx
	return s.write(container, name, content)
}

// Update replaces a note's content, creating the parent folder when
// missing.
func (s *Store) Update(ctx context.Context, container, name string, content []byte) error {
	_ = ctx
	return s.write(container, name, content)
}

// Read returns a note's content.
func (s *Store) Read(ctx context.Context, container, name string) ([]byte, error) {
	_ = ctx
	if err := s.check(); err != nil {
		return nil, err
	}
	target, err := s.resolvePath(container, name)
	if err != nil {
		return nil, err
	}
	content, err := os.ReadFile(target)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, vault.NewError(vault.KindNotFound, fmt.Sprintf("note %q not found", name), err)
		}
		return nil, vault.NewError(vault.KindStorage, fmt.Sprintf("failed to read %q", name), err)
	}
	return content, nil
}

func (s *Store) write(container, name string, content []byte) error {
	if err := s.check(); err != nil {
		return err
	}
	if name == "" {
		return vault.NewError(vault.KindValidation, "note name is required", nil)
	}
	target, err := s.resolvePath(container, name)
	if err != nil {
		return err
	}

	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, s.dirMode()); err != nil {
		return vault.NewError(vault.KindStorage, fmt.Sprintf("failed to create folder %q", container), err)
	}

	tmp, err := os.CreateTemp(dir, ".note-*")
	if err != nil {
		return vault.NewError(vault.KindStorage, fmt.Sprintf("failed to stage %q", name), err)
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()

	if _, err := tmp.Write(content); err != nil {
		return vault.NewError(vault.KindStorage, fmt.Sprintf("failed to write %q", name), err)
	}
	if err := tmp.Sync(); err != nil {
		return vault.NewError(vault.KindStorage, fmt.Sprintf("failed to flush %q", name), err)
	}
	if err := tmp.Close(); err != nil {
		return vault.NewError(vault.KindStorage, fmt.Sprintf("failed to close %q", name), err)
	}
	if err := os.Chmod(tmp.Name(), s.fileMode()); err != nil {
		return vault.NewError(vault.KindStorage, fmt.Sprintf("failed to chmod %q", name), err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return vault.NewError(vault.KindStorage, fmt.Sprintf("failed to place %q", name), err)
	}
	return nil
}

func (s *Store) check() error {
	if s == nil {
		return vault.NewError(vault.KindInternal, "store is nil", nil)
	}
	if s.Root == "" {
		return vault.NewError(vault.KindValidation, "store root is required", nil)
	}
	return nil
}

// resolvePath joins path parts under the root, rejecting anything that
// escapes it.
func (s *Store) resolvePath(parts ...string) (string, error) {
	clean := path.Clean("/" + strings.Join(parts, "/"))
	rel := strings.TrimPrefix(clean, "/")
	if rel == "" || rel == "." {
		return "", vault.NewError(vault.KindValidation, "folder is required", nil)
	}

	root, err := filepath.Abs(s.Root)
	if err != nil {
		return "", vault.NewError(vault.KindStorage, "failed to resolve store root", err)
	}
	target := filepath.Join(root, filepath.FromSlash(rel))
	if !strings.HasPrefix(target, root+string(os.PathSeparator)) && target != root {
		return "", vault.NewError(vault.KindValidation, "path escapes the vault root", nil)
	}
	return target, nil
}

func (s *Store) dirMode() os.FileMode {
	if s.DirMode != 0 {
		return s.DirMode
	}
	return 0o755
}

func (s *Store) fileMode() os.FileMode {
	if s.FileMode != 0 {
		return s.FileMode
	}
	return 0o644
}
