// Package provider declares the capability interface each backend (a cloud
// drive, an object store, a native filesystem, ...) must satisfy, and the
// registry the startup glue uses to resolve a ProviderID to a handle. The
// interface is the full extent of what this module knows about any given
// backend; concrete providers live in sibling packages (internal/provider/
// localfs is the one required by spec, internal/provider/fakeprovider is an
// in-memory test double).
package provider

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// ID names a configured provider, e.g. "Local files" or "gdrive". It doubles
// as the name of the provider's root directory under the synthetic root.
type ID string

// ObjectID is an opaque, provider-scoped identifier for one object. It
// carries a directory flag because providers do not uniformly expose a
// separate stat call cheap enough to use just to tell files from
// directories during a listing.
type ObjectID struct {
	Value string
	Dir   bool
}

// Root is the identifier of a provider's own root directory.
func Root() ObjectID { return ObjectID{Value: "", Dir: true} }

func (o ObjectID) IsDirectory() bool { return o.Dir }

func (o ObjectID) String() string { return o.Value }

// Metadata is the provider-agnostic attribute projection a Node caches
// after its first GetMetadata call.
type Metadata struct {
	Size   uint64
	Atime  time.Time
	Mtime  time.Time
	Ctime  time.Time
	Crtime time.Time
	Perm   uint16
	Uid    uint32
	Gid    uint32
}

// Entry is one child returned by ReadDirectory, in provider order.
type Entry struct {
	ID   ObjectID
	Name string
}

// Provider is the async capability interface every backend exposes. All
// calls take a context for request-scoped cancellation/tracing even though,
// per the design notes, the kernel bridge above never cancels one: providers
// used over a real network still want it.
type Provider interface {
	ReadDirectory(ctx context.Context, dir ObjectID) ([]Entry, error)
	ReadFile(ctx context.Context, id ObjectID) ([]byte, error)
	WriteFile(ctx context.Context, id ObjectID, data []byte) error
	Create(ctx context.Context, parent ObjectID, name string, dir bool) (ObjectID, error)
	CreateLink(ctx context.Context, parent ObjectID, name string, target ObjectID) (ObjectID, error)
	ReadLink(ctx context.Context, id ObjectID) (ObjectID, error)
	Rename(ctx context.Context, id ObjectID, newName string) (ObjectID, error)
	MoveTo(ctx context.Context, id ObjectID, newParent ObjectID) (ObjectID, error)
	Delete(ctx context.Context, id ObjectID) error
	GetMetadata(ctx context.Context, id ObjectID) (Metadata, error)
}

// Registry resolves a provider id to its handle. It is populated once at
// startup from on-disk credential files (out of scope here) and is
// read-only for the remainder of the process lifetime, so no lock is needed
// past construction.
type Registry struct {
	mu        sync.RWMutex
	providers map[ID]Provider
	order     []ID
}

func NewRegistry() *Registry {
	return &Registry{providers: make(map[ID]Provider)}
}

// Register adds a provider under id, preserving registration order for
// Tree construction (spec: "one per registered provider, in registration
// order").
func (r *Registry) Register(id ID, p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[id]; !exists {
		r.order = append(r.order, id)
	}
	r.providers[id] = p
}

// Get returns the provider for id, or an error if none is registered.
func (r *Registry) Get(id ID) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[id]
	if !ok {
		return nil, fmt.Errorf("provider %q not registered", id)
	}
	return p, nil
}

// IDs returns provider ids in registration order.
func (r *Registry) IDs() []ID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]ID, len(r.order))
	copy(ids, r.order)
	return ids
}

// SortedIDs returns provider ids in lexical order. Bootstrap does not use
// it; it always uses IDs() (registration order).
func (r *Registry) SortedIDs() []ID {
	ids := r.IDs()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
