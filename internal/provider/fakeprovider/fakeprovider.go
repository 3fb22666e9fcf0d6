// Package fakeprovider is an in-memory provider.Provider used by
// internal/vft's tests: it lets them drive reconcile, single-flight, and
// rename/move behavior without touching a real filesystem.
package fakeprovider

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/meshfs/meshfs/internal/provider"
	"github.com/meshfs/meshfs/internal/vfterr"
)

type object struct {
	id       provider.ObjectID
	name     string
	parent   provider.ObjectID
	data     []byte
	linkedTo provider.ObjectID
	isLink   bool
}

// Provider is a goroutine-safe in-memory filesystem keyed by synthetic
// uuids, with an optional injected delay on ReadDirectory so tests can
// observe the Hydrator's Loading/coalescing window.
type Provider struct {
	mu      sync.Mutex
	objects map[string]*object
	root    provider.ObjectID

	// ReadDirectoryDelay, if nonzero, is slept at the start of every
	// ReadDirectory call.
	ReadDirectoryDelay time.Duration

	// readDirCalls counts ReadDirectory invocations, for tests asserting
	// single-flight coalescing made exactly one provider call.
	readDirCalls int
}

func New() *Provider {
	root := provider.Root()
	p := &Provider{
		objects: make(map[string]*object),
		root:    root,
	}
	p.objects[root.Value] = &object{id: root, name: "", isLink: false}
	return p
}

// ReadDirectoryCallCount returns how many times ReadDirectory has been
// invoked so far.
func (p *Provider) ReadDirectoryCallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.readDirCalls
}

func (p *Provider) ReadDirectory(ctx context.Context, dir provider.ObjectID) ([]provider.Entry, error) {
	if p.ReadDirectoryDelay > 0 {
		select {
		case <-time.After(p.ReadDirectoryDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.readDirCalls++

	var entries []provider.Entry
	for _, o := range p.objects {
		if o.parent == dir && o.id != dir {
			entries = append(entries, provider.Entry{ID: o.id, Name: o.name})
		}
	}
	return entries, nil
}

func (p *Provider) ReadFile(_ context.Context, id provider.ObjectID) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	o, ok := p.objects[id.Value]
	if !ok {
		return nil, vfterr.NotFound("no object %v", id)
	}
	out := make([]byte, len(o.data))
	copy(out, o.data)
	return out, nil
}

func (p *Provider) WriteFile(_ context.Context, id provider.ObjectID, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	o, ok := p.objects[id.Value]
	if !ok {
		return vfterr.NotFound("no object %v", id)
	}
	o.data = data
	return nil
}

func (p *Provider) Create(_ context.Context, parent provider.ObjectID, name string, dir bool) (provider.ObjectID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := provider.ObjectID{Value: uuid.NewString(), Dir: dir}
	p.objects[id.Value] = &object{id: id, name: name, parent: parent}
	return id, nil
}

func (p *Provider) CreateLink(_ context.Context, parent provider.ObjectID, name string, target provider.ObjectID) (provider.ObjectID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := provider.ObjectID{Value: uuid.NewString(), Dir: false}
	p.objects[id.Value] = &object{id: id, name: name, parent: parent, isLink: true, linkedTo: target}
	return id, nil
}

func (p *Provider) ReadLink(_ context.Context, id provider.ObjectID) (provider.ObjectID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	o, ok := p.objects[id.Value]
	if !ok || !o.isLink {
		return provider.ObjectID{}, vfterr.NotFound("no link %v", id)
	}
	return o.linkedTo, nil
}

func (p *Provider) Rename(_ context.Context, id provider.ObjectID, newName string) (provider.ObjectID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	o, ok := p.objects[id.Value]
	if !ok {
		return provider.ObjectID{}, vfterr.NotFound("no object %v", id)
	}
	o.name = newName
	return o.id, nil
}

func (p *Provider) MoveTo(_ context.Context, id provider.ObjectID, newParent provider.ObjectID) (provider.ObjectID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	o, ok := p.objects[id.Value]
	if !ok {
		return provider.ObjectID{}, vfterr.NotFound("no object %v", id)
	}
	o.parent = newParent
	return o.id, nil
}

func (p *Provider) Delete(_ context.Context, id provider.ObjectID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.objects[id.Value]; !ok {
		return vfterr.NotFound("no object %v", id)
	}
	delete(p.objects, id.Value)
	return nil
}

func (p *Provider) GetMetadata(_ context.Context, id provider.ObjectID) (provider.Metadata, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	o, ok := p.objects[id.Value]
	if !ok {
		return provider.Metadata{}, vfterr.NotFound("no object %v", id)
	}
	return provider.Metadata{Size: uint64(len(o.data))}, nil
}
