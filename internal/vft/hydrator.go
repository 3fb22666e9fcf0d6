package vft

import (
	"context"
	"time"

	"github.com/meshfs/meshfs/internal/provider"
	"github.com/meshfs/meshfs/internal/vfterr"
)

// pollInterval is the granularity at which a caller that finds a directory
// already Loading re-checks content_state, standing in for a per-node
// condition variable.
const pollInterval = 100 * time.Millisecond

// Hydrator lazily materializes a directory node's children against its
// provider, with TTL-bounded freshness and single-flight coalescing of
// concurrent callers racing to fetch the same directory.
type Hydrator struct {
	tree      *Tree
	providers *provider.Registry
}

func NewHydrator(tree *Tree, providers *provider.Registry) *Hydrator {
	return &Hydrator{tree: tree, providers: providers}
}

// GetChildren returns dir's current children, fetching or refreshing from
// the provider as needed. It is the sole entry point op handlers use to
// read a directory's contents (readdir, lookup-miss retry, symlink target
// resolution). The state check and the transition into Loading happen
// under one node-lock acquisition (enterLoading), so concurrent callers
// racing on the same stale directory coalesce into a single provider call:
// exactly one wins and loads, the rest fall through to awaitLoading.
func (h *Hydrator) GetChildren(ctx context.Context, dir *Node) ([]*Node, error) {
	if !dir.ObjectID().IsDirectory() {
		return nil, nil
	}
	if dir.Inode == RootInode {
		// The synthetic root's children are the provider roots seeded by
		// NewTree; there is no provider to list it from.
		return dir.ChildrenSnapshot(), nil
	}

	won, from := dir.enterLoading(h.tree.Clock().Now())
	if !won {
		if from == Loading {
			return h.awaitLoading(ctx, dir)
		}
		return dir.ChildrenSnapshot(), nil
	}

	if from == DeepReady {
		return h.refresh(ctx, dir)
	}
	return h.coldLoad(ctx, dir)
}

// coldLoad performs the node's first-ever directory read. The caller has
// already won the transition into Loading via enterLoading.
func (h *Hydrator) coldLoad(ctx context.Context, dir *Node) ([]*Node, error) {
	entries, err := h.readDirectory(ctx, dir)
	if err != nil {
		dir.abortLoading(ShallowReady)
		return nil, err
	}

	// Children created locally (mknod/mkdir/symlink) before the first
	// listing are already indexed; keep those nodes instead of duplicating.
	byName := make(map[string]*Node)
	for _, c := range dir.ChildrenSnapshot() {
		byName[c.Name()] = c
	}
	var kept []*Node
	fresh := make([]*provider.Entry, 0, len(entries))
	for i := range entries {
		if old, ok := byName[entries[i].Name]; ok && old.ObjectID() == entries[i].ID {
			kept = append(kept, old)
			continue
		}
		fresh = append(fresh, &entries[i])
	}

	children, err := h.tree.InsertReconciled(dir, kept, fresh, dir.ProviderID)
	if err != nil {
		dir.abortLoading(ShallowReady)
		return nil, err
	}

	dir.finishLoading(children, h.tree.Clock().Now())
	return children, nil
}

// awaitLoading blocks until another caller's concurrent fetch of the same
// directory leaves Loading, then returns the result it produced. This is
// the single-flight coalescing guarantee: only the caller that first
// observed ShallowReady/expired-DeepReady actually calls the provider.
func (h *Hydrator) awaitLoading(ctx context.Context, dir *Node) ([]*Node, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			state, _ := dir.ContentState()
			if state != Loading {
				return dir.ChildrenSnapshot(), nil
			}
		}
	}
}

// refresh re-reads an expired DeepReady directory and reconciles the
// result against the existing children: entries the provider still
// returns are retained, new ones are inserted, ones no longer returned are
// dropped. On a name collision between a retained and a newly-returned
// entry, the provider's most recent response wins. The caller has already
// won the transition into Loading via enterLoading.
func (h *Hydrator) refresh(ctx context.Context, dir *Node) ([]*Node, error) {
	entries, err := h.readDirectory(ctx, dir)
	if err != nil {
		dir.abortLoading(DeepReady)
		return nil, err
	}

	existing := dir.ChildrenSnapshot()
	byName := make(map[string]*Node, len(existing))
	for _, c := range existing {
		byName[c.Name()] = c
	}

	var kept []*Node
	var fresh []*provider.Entry
	for _, e := range entries {
		if old, ok := byName[e.Name]; ok && old.ObjectID() == e.ID {
			// Still the same object; retain the existing node so its
			// inode and any cached metadata survive the refresh.
			kept = append(kept, old)
		} else {
			// Either unseen before, or the name now points at a
			// different object id: the provider's latest response
			// wins, so treat it as fresh and let the stale node (if
			// any) be evicted below.
			fresh = append(fresh, &e)
		}
	}

	keptSet := make(map[*Node]bool, len(kept))
	for _, k := range kept {
		keptSet[k] = true
	}
	var evicted []*Node
	for _, c := range existing {
		if !keptSet[c] {
			evicted = append(evicted, c)
		}
	}
	// Evict before inserting, so a fresh entry that reuses a stale node's
	// name does not collide with it.
	if len(evicted) > 0 {
		h.tree.Evict(evicted)
	}

	children, err := h.tree.InsertReconciled(dir, kept, fresh, dir.ProviderID)
	if err != nil {
		// Leave the node retryable rather than stuck in Loading.
		dir.abortLoading(DeepReady)
		return nil, err
	}

	dir.finishLoading(children, h.tree.Clock().Now())
	return children, nil
}

// readDirectory makes the single directory-listing provider call itself,
// not through Bridge (which has no listing method), and wraps a failure as
// a Provider error the same way Bridge does.
func (h *Hydrator) readDirectory(ctx context.Context, dir *Node) ([]provider.Entry, error) {
	p, err := h.providers.Get(dir.ProviderID)
	if err != nil {
		return nil, vfterr.Provider("read_directory", err)
	}

	entries, err := p.ReadDirectory(ctx, dir.ObjectID())
	if err != nil {
		return nil, vfterr.Provider("read_directory", err)
	}
	return entries, nil
}
