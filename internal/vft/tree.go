package vft

import (
	"sync"

	"github.com/jacobsa/syncutil"

	"github.com/meshfs/meshfs/internal/clock"
	"github.com/meshfs/meshfs/internal/provider"
	"github.com/meshfs/meshfs/internal/vfterr"
)

// sentinelProviderID is the provider_id carried by the synthetic root,
// which has no backing provider.
const sentinelProviderID provider.ID = ""

// Tree owns every node. It maintains the three-index invariant described
// in the data model: every node reachable from inode 1 by descending
// children appears in all three indices, and vice versa. Exactly one lock
// (mu) guards the whole structure; no mutator may invoke a provider while
// holding it, matching the "handlers must not hold the tree lock across
// bridge calls" rule.
type Tree struct {
	mu syncutil.InvariantMutex

	index      *index
	root       *Node
	nextInode  uint64
	clock      clock.Clock
	mutateOnce sync.Once
}

// NewTree constructs a tree with the synthetic root (inode 1, name "/") and
// one provider-root node per entry in providerIDs, in order. Each provider
// root starts ShallowReady with empty children.
func NewTree(providerIDs []provider.ID, clk clock.Clock) *Tree {
	t := &Tree{
		index:     newIndex(),
		nextInode: RootInode,
		clock:     clk,
	}
	t.mu = syncutil.NewInvariantMutex(t.checkInvariants)

	t.root = NewNode(t.allocInode(), "/", provider.Root(), sentinelProviderID, 0)
	if err := t.index.insert(t.root); err != nil {
		vfterr.Invariant("failed to insert synthetic root: %v", err)
	}

	for _, pid := range providerIDs {
		root := NewNode(t.allocInode(), string(pid), provider.Root(), pid, t.root.Inode)
		if err := t.index.insert(root); err != nil {
			vfterr.Invariant("failed to insert provider root %q: %v", pid, err)
		}
		t.root.appendChild(root)
	}

	return t
}

func (t *Tree) allocInode() uint64 {
	t.nextInode++
	return t.nextInode - 1
}

func (t *Tree) checkInvariants() {
}

// Root returns the synthetic root node (inode 1).
func (t *Tree) Root() *Node {
	return t.root
}

// LookupInode returns the node for inode, if any.
func (t *Tree) LookupInode(inode uint64) (*Node, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.index.lookupInode(inode)
}

// LookupName returns the child of parentInode named name, if any.
func (t *Tree) LookupName(parentInode uint64, name string) (*Node, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.index.lookupName(parentInode, name)
}

// LookupObject returns the node bound to (providerID, objectID), if any.
func (t *Tree) LookupObject(providerID provider.ID, objectID provider.ObjectID) (*Node, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.index.lookupObject(providerID, objectID)
}

// NewChild creates a new node under parent, inserts it into the indices,
// and appends it to parent's children. Used by mknod/mkdir/symlink and by
// the hydrator's first-load/reconcile paths. Fails without mutating
// anything if the name or object id collides.
func (t *Tree) NewChild(parent *Node, name string, objectID provider.ObjectID, providerID provider.ID) (*Node, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := NewNode(t.allocInode(), name, objectID, providerID, parent.Inode)
	if err := t.index.insert(n); err != nil {
		return nil, err
	}
	parent.appendChild(n)
	return n, nil
}

// Rename updates the name (and, if the parent changed, the parent) of the
// node currently at (oldParent, oldName), moving it to (newParent,
// newName). It does not call any provider; callers perform the provider
// rename/move_to calls themselves and pass the resulting new object id via
// SetObjectID, per the op handler contract (step ordering matters: provider
// call first, tree mutation second).
func (t *Tree) Rename(oldParent *Node, oldName string, newParent *Node, newName string) (*Node, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	n, ok := t.index.lookupName(oldParent.Inode, oldName)
	if !ok {
		return nil, vfterr.NotFound("no node named %q under parent %d", oldName, oldParent.Inode)
	}

	if oldParent.Inode == newParent.Inode {
		if err := t.index.rename(oldParent.Inode, oldName, newName); err != nil {
			return nil, err
		}
	} else {
		if _, collide := t.index.lookupName(newParent.Inode, newName); collide {
			return nil, vfterr.AlreadyExists("duplicate name %q under parent %d", newName, newParent.Inode)
		}
		oldParent.removeChild(n.Inode)
		t.index.reparent(n, newParent.Inode)
		if oldName != newName {
			// reparent already moved the by_name entry under the new
			// parent keyed by the old name; retarget it to newName.
			if err := t.index.rename(newParent.Inode, oldName, newName); err != nil {
				return nil, err
			}
		}
		newParent.appendChild(n)
	}

	return n, nil
}

// SetObjectID updates n's object id in both the node and the by_object
// index, used after a provider call returns a fresh id (create, rename,
// move_to).
func (t *Tree) SetObjectID(n *Node, newID provider.ObjectID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.index.updateObjectID(n, newID)
}

// Remove deletes the child named name under parent from the tree: from the
// parent's children list and from all three indices, in one atomic
// section. Returns the removed node, or a NotFound error if absent.
func (t *Tree) Remove(parent *Node, name string) (*Node, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	n, ok := t.index.lookupName(parent.Inode, name)
	if !ok {
		return nil, vfterr.NotFound("no node named %q under parent %d", name, parent.Inode)
	}

	parent.removeChild(n.Inode)
	t.index.remove(n.Inode)
	return n, nil
}

// InsertReconciled installs a fully-formed child list for dir (computed by
// the hydrator from a provider read_directory response) and indexes every
// new node, used by fetch_children's first-load and refresh paths. existing
// nodes that are being retained are passed through unchanged; newly-created
// nodes are inserted here. Returns an error (and leaves dir's children
// untouched) if any new node collides.
func (t *Tree) InsertReconciled(dir *Node, kept []*Node, fresh []*provider.Entry, providerID provider.ID) ([]*Node, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	children := make([]*Node, 0, len(kept)+len(fresh))
	children = append(children, kept...)

	for _, e := range fresh {
		n := NewNode(t.allocInode(), e.Name, e.ID, providerID, dir.Inode)
		if err := t.index.insert(n); err != nil {
			return nil, err
		}
		children = append(children, n)
	}

	return children, nil
}

// Evict removes nodes (typically ones reconcile dropped because the
// provider no longer returns them) from all three indices. It does not
// touch any children slice; callers install the resulting list separately.
func (t *Tree) Evict(nodes []*Node) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, n := range nodes {
		t.index.remove(n.Inode)
	}
}

// Clock returns the tree's injected time source, used by the hydrator for
// TTL comparisons.
func (t *Tree) Clock() clock.Clock {
	return t.clock
}
