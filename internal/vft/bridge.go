package vft

import (
	"context"

	"github.com/meshfs/meshfs/internal/provider"
	"github.com/meshfs/meshfs/internal/vfterr"
)

// Bridge turns the synchronous, serialized kernel callbacks the op handlers
// receive into completed provider calls. Providers here are ordinary
// blocking Go functions taking a context, so unlike a single-threaded
// per-call executor there is no runtime to spin up; the bridge's job is
// narrower: resolve a node's provider once, make exactly the one call the
// handler needs, and wrap the result in the shared error taxonomy. Its
// methods never accept a held lock, which is what enforces the "no
// provider call while holding the tree lock" rule structurally rather than
// by convention.
type Bridge struct {
	providers *provider.Registry
}

func NewBridge(providers *provider.Registry) *Bridge {
	return &Bridge{providers: providers}
}

func (b *Bridge) resolve(providerID provider.ID) (provider.Provider, error) {
	p, err := b.providers.Get(providerID)
	if err != nil {
		return nil, vfterr.Provider("resolve provider", err)
	}
	return p, nil
}

func (b *Bridge) ReadFile(ctx context.Context, providerID provider.ID, id provider.ObjectID) ([]byte, error) {
	p, err := b.resolve(providerID)
	if err != nil {
		return nil, err
	}
	data, err := p.ReadFile(ctx, id)
	if err != nil {
		return nil, vfterr.Provider("read_file", err)
	}
	return data, nil
}

func (b *Bridge) WriteFile(ctx context.Context, providerID provider.ID, id provider.ObjectID, data []byte) error {
	p, err := b.resolve(providerID)
	if err != nil {
		return err
	}
	if err := p.WriteFile(ctx, id, data); err != nil {
		return vfterr.Provider("write_file", err)
	}
	return nil
}

func (b *Bridge) Create(ctx context.Context, providerID provider.ID, parent provider.ObjectID, name string, dir bool) (provider.ObjectID, error) {
	p, err := b.resolve(providerID)
	if err != nil {
		return provider.ObjectID{}, err
	}
	id, err := p.Create(ctx, parent, name, dir)
	if err != nil {
		return provider.ObjectID{}, vfterr.Provider("create", err)
	}
	return id, nil
}

func (b *Bridge) CreateLink(ctx context.Context, providerID provider.ID, parent provider.ObjectID, name string, target provider.ObjectID) (provider.ObjectID, error) {
	p, err := b.resolve(providerID)
	if err != nil {
		return provider.ObjectID{}, err
	}
	id, err := p.CreateLink(ctx, parent, name, target)
	if err != nil {
		return provider.ObjectID{}, vfterr.Provider("create_link", err)
	}
	return id, nil
}

func (b *Bridge) ReadLink(ctx context.Context, providerID provider.ID, id provider.ObjectID) (provider.ObjectID, error) {
	p, err := b.resolve(providerID)
	if err != nil {
		return provider.ObjectID{}, err
	}
	target, err := p.ReadLink(ctx, id)
	if err != nil {
		return provider.ObjectID{}, vfterr.Provider("read_link", err)
	}
	return target, nil
}

func (b *Bridge) Rename(ctx context.Context, providerID provider.ID, id provider.ObjectID, newName string) (provider.ObjectID, error) {
	p, err := b.resolve(providerID)
	if err != nil {
		return provider.ObjectID{}, err
	}
	newID, err := p.Rename(ctx, id, newName)
	if err != nil {
		return provider.ObjectID{}, vfterr.Provider("rename", err)
	}
	return newID, nil
}

func (b *Bridge) MoveTo(ctx context.Context, providerID provider.ID, id provider.ObjectID, newParent provider.ObjectID) (provider.ObjectID, error) {
	p, err := b.resolve(providerID)
	if err != nil {
		return provider.ObjectID{}, err
	}
	newID, err := p.MoveTo(ctx, id, newParent)
	if err != nil {
		return provider.ObjectID{}, vfterr.Provider("move_to", err)
	}
	return newID, nil
}

func (b *Bridge) Delete(ctx context.Context, providerID provider.ID, id provider.ObjectID) error {
	p, err := b.resolve(providerID)
	if err != nil {
		return err
	}
	if err := p.Delete(ctx, id); err != nil {
		return vfterr.Provider("delete", err)
	}
	return nil
}

func (b *Bridge) GetMetadata(ctx context.Context, providerID provider.ID, id provider.ObjectID) (provider.Metadata, error) {
	p, err := b.resolve(providerID)
	if err != nil {
		return provider.Metadata{}, err
	}
	md, err := p.GetMetadata(ctx, id)
	if err != nil {
		return provider.Metadata{}, vfterr.Provider("get_metadata", err)
	}
	return md, nil
}
