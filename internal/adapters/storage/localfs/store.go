// Package localfs stores artifacts as files in one local directory.
package localfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/hylla/arkiv/internal/app"
	"github.com/hylla/arkiv/internal/domain"
	"github.com/spf13/afero"
)

// StoreName identifies the local store in run reports and API filters.
const StoreName = "local"

// Store implements app.ArtifactStore on an afero filesystem. Artifact creation
// time is the file modification time.
type Store struct {
	fs  afero.Fs
	dir string
}

// New creates the store and its directory. A nil fs selects the OS filesystem.
func New(fsys afero.Fs, dir string) (*Store, error) {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("local store directory is required")
	}
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create backup dir: %w", err)
	}
	return &Store{fs: fsys, dir: dir}, nil
}

// Name returns StoreName.
func (s *Store) Name() string { return StoreName }

// Dir returns the backing directory.
func (s *Store) Dir() string { return s.dir }

// Write creates name exclusively; an existing file is never overwritten.
func (s *Store) Write(ctx context.Context, name string, data []byte, format domain.Format) (domain.ArtifactRef, error) {
	if err := ctx.Err(); err != nil {
		return domain.ArtifactRef{}, err
	}
	path, err := s.path(name)
	if err != nil {
		return domain.ArtifactRef{}, err
	}
	f, err := s.fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return domain.ArtifactRef{}, fmt.Errorf("%w: %s", app.ErrArtifactExists, name)
		}
		return domain.ArtifactRef{}, fmt.Errorf("create artifact %s: %w", name, err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = s.fs.Remove(path)
		return domain.ArtifactRef{}, fmt.Errorf("write artifact %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		_ = s.fs.Remove(path)
		return domain.ArtifactRef{}, fmt.Errorf("close artifact %s: %w", name, err)
	}
	info, err := s.fs.Stat(path)
	if err != nil {
		return domain.ArtifactRef{}, fmt.Errorf("stat artifact %s: %w", name, err)
	}
	ref := s.ref(info)
	ref.Format = format
	return ref, nil
}

// List returns artifacts whose file name starts with prefix, sorted by name.
func (s *Store) List(ctx context.Context, prefix string) ([]domain.ArtifactRef, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []domain.ArtifactRef{}, nil
		}
		return nil, fmt.Errorf("read backup dir: %w", err)
	}
	out := make([]domain.ArtifactRef, 0, len(entries))
	for _, info := range entries {
		if !info.Mode().IsRegular() || !strings.HasPrefix(info.Name(), prefix) {
			continue
		}
		out = append(out, s.ref(info))
	}
	slices.SortFunc(out, func(a, b domain.ArtifactRef) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

// Delete removes one artifact file.
func (s *Store) Delete(ctx context.Context, ref domain.ArtifactRef) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.path(ref.Name)
	if err != nil {
		return err
	}
	if err := s.fs.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: artifact %s", app.ErrNotFound, ref.Name)
		}
		return fmt.Errorf("delete artifact %s: %w", ref.Name, err)
	}
	return nil
}

// Open returns a reader over one artifact.
func (s *Store) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.path(name)
	if err != nil {
		return nil, err
	}
	f, err := s.fs.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: artifact %s", app.ErrNotFound, name)
		}
		return nil, fmt.Errorf("open artifact %s: %w", name, err)
	}
	return f, nil
}

// path resolves name inside the store directory, rejecting anything that
// would escape it.
func (s *Store) path(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." || filepath.Base(name) != name || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidArtifactName, name)
	}
	return filepath.Join(s.dir, name), nil
}

func (s *Store) ref(info fs.FileInfo) domain.ArtifactRef {
	format, _ := domain.FormatForExt(filepath.Ext(info.Name()))
	return domain.ArtifactRef{
		ID:        info.Name(),
		Name:      info.Name(),
		Format:    format,
		Store:     StoreName,
		CreatedAt: info.ModTime().UTC(),
		Size:      info.Size(),
		Location:  filepath.Join(s.dir, info.Name()),
	}
}
