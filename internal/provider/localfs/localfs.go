// Package localfs is the native-filesystem provider: the one backend
// required regardless of configuration, rooted at a base directory and
// backed by afero.Fs so it can be faked with an in-memory filesystem in
// tests.
package localfs

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/meshfs/meshfs/internal/provider"
)

// Provider implements provider.Provider over an afero.Fs rooted at Base.
// Object ids are provider-relative slash-separated paths from Base, so
// "" (provider.Root()) denotes Base itself.
type Provider struct {
	fs   afero.Fs
	base string
}

// New returns a localfs provider rooted at base, backed by fs. Pass
// afero.NewOsFs() for the real filesystem or afero.NewMemMapFs() in tests.
func New(fsys afero.Fs, base string) *Provider {
	return &Provider{fs: fsys, base: base}
}

func (p *Provider) resolve(id provider.ObjectID) string {
	if id.Value == "" {
		return p.base
	}
	return filepath.Join(p.base, filepath.FromSlash(id.Value))
}

func idFor(relPath string, dir bool) provider.ObjectID {
	return provider.ObjectID{Value: filepath.ToSlash(relPath), Dir: dir}
}

func (p *Provider) childID(parent provider.ObjectID, name string) provider.ObjectID {
	if parent.Value == "" {
		return provider.ObjectID{Value: name}
	}
	return provider.ObjectID{Value: parent.Value + "/" + name}
}

func (p *Provider) ReadDirectory(_ context.Context, dir provider.ObjectID) ([]provider.Entry, error) {
	path := p.resolve(dir)
	infos, err := afero.ReadDir(p.fs, path)
	if err != nil {
		return nil, err
	}

	entries := make([]provider.Entry, 0, len(infos))
	for _, info := range infos {
		rel := info.Name()
		if dir.Value != "" {
			rel = dir.Value + "/" + info.Name()
		}
		entries = append(entries, provider.Entry{
			ID:   idFor(rel, info.IsDir()),
			Name: info.Name(),
		})
	}
	return entries, nil
}

func (p *Provider) ReadFile(_ context.Context, id provider.ObjectID) ([]byte, error) {
	return afero.ReadFile(p.fs, p.resolve(id))
}

func (p *Provider) WriteFile(_ context.Context, id provider.ObjectID, data []byte) error {
	return afero.WriteFile(p.fs, p.resolve(id), data, 0o644)
}

func (p *Provider) Create(_ context.Context, parent provider.ObjectID, name string, dir bool) (provider.ObjectID, error) {
	path := filepath.Join(p.resolve(parent), name)

	if dir {
		if err := p.fs.MkdirAll(path, 0o755); err != nil {
			return provider.ObjectID{}, err
		}
	} else {
		f, err := p.fs.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err != nil {
			return provider.ObjectID{}, err
		}
		if err := f.Close(); err != nil {
			return provider.ObjectID{}, err
		}
	}

	id := p.childID(parent, name)
	id.Dir = dir
	return id, nil
}

// CreateLink creates a symlink at parent/name pointing at target's
// provider-relative path. afero's symlink support requires the underlying
// Fs to implement afero.Linker (the OS filesystem does); MemMapFs does not,
// which is acceptable since tests exercise create_link against a real
// temp-dir OsFs fixture instead.
func (p *Provider) CreateLink(_ context.Context, parent provider.ObjectID, name string, target provider.ObjectID) (provider.ObjectID, error) {
	linker, ok := p.fs.(afero.Linker)
	if !ok {
		return provider.ObjectID{}, fs.ErrInvalid
	}

	linkPath := filepath.Join(p.resolve(parent), name)
	targetPath := p.resolve(target)
	if err := linker.SymlinkIfPossible(targetPath, linkPath); err != nil {
		return provider.ObjectID{}, err
	}

	return p.childID(parent, name), nil
}

func (p *Provider) ReadLink(_ context.Context, id provider.ObjectID) (provider.ObjectID, error) {
	reader, ok := p.fs.(afero.LinkReader)
	if !ok {
		return provider.ObjectID{}, fs.ErrInvalid
	}

	target, err := reader.ReadlinkIfPossible(p.resolve(id))
	if err != nil {
		return provider.ObjectID{}, err
	}

	rel, err := filepath.Rel(p.base, target)
	if err != nil {
		rel = target
	}

	info, statErr := p.fs.Stat(target)
	dir := statErr == nil && info.IsDir()
	return idFor(rel, dir), nil
}

func (p *Provider) Rename(_ context.Context, id provider.ObjectID, newName string) (provider.ObjectID, error) {
	oldPath := p.resolve(id)
	parentRel := filepath.ToSlash(filepath.Dir(id.Value))
	if parentRel == "." {
		parentRel = ""
	}
	newRel := newName
	if parentRel != "" {
		newRel = parentRel + "/" + newName
	}

	newPath := filepath.Join(p.base, filepath.FromSlash(newRel))
	if err := p.fs.Rename(oldPath, newPath); err != nil {
		return provider.ObjectID{}, err
	}
	return idFor(newRel, id.Dir), nil
}

func (p *Provider) MoveTo(_ context.Context, id provider.ObjectID, newParent provider.ObjectID) (provider.ObjectID, error) {
	name := filepath.Base(id.Value)
	newRel := name
	if newParent.Value != "" {
		newRel = newParent.Value + "/" + name
	}

	oldPath := p.resolve(id)
	newPath := filepath.Join(p.base, filepath.FromSlash(newRel))
	if err := p.fs.Rename(oldPath, newPath); err != nil {
		return provider.ObjectID{}, err
	}
	return idFor(newRel, id.Dir), nil
}

func (p *Provider) Delete(_ context.Context, id provider.ObjectID) error {
	path := p.resolve(id)
	if id.Dir {
		return p.fs.RemoveAll(path)
	}
	return p.fs.Remove(path)
}

func (p *Provider) GetMetadata(_ context.Context, id provider.ObjectID) (provider.Metadata, error) {
	info, err := p.fs.Stat(p.resolve(id))
	if err != nil {
		return provider.Metadata{}, err
	}

	return provider.Metadata{
		Size:  uint64(info.Size()),
		Mtime: info.ModTime(),
		Ctime: info.ModTime(),
		Atime: info.ModTime(),
		Perm:  uint16(info.Mode().Perm()),
	}, nil
}
