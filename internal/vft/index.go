package vft

import (
	"github.com/meshfs/meshfs/internal/provider"
	"github.com/meshfs/meshfs/internal/vfterr"
)

// nameKey is the by_name index key: a node's name is only unique among
// siblings of the same parent.
type nameKey struct {
	parentInode uint64
	name        string
}

// objectKey is the by_object index key.
type objectKey struct {
	providerID provider.ID
	objectID   provider.ObjectID
}

// index is the three bidirectional lookup maps (by_inode, by_name,
// by_object) that must stay mutually consistent with the tree's children
// lists. It holds no lock of its own: callers (the Tree) serialize access
// under the tree lock.
type index struct {
	byInode  map[uint64]*Node
	byName   map[nameKey]*Node
	byObject map[objectKey]*Node
}

func newIndex() *index {
	return &index{
		byInode:  make(map[uint64]*Node),
		byName:   make(map[nameKey]*Node),
		byObject: make(map[objectKey]*Node),
	}
}

// insert adds n to all three indices. It fails with an AlreadyExists error
// (duplicate name or duplicate object), leaving the index untouched on any
// failure.
func (ix *index) insert(n *Node) error {
	nk := nameKey{parentInode: n.ParentInode(), name: n.Name()}
	if _, exists := ix.byName[nk]; exists {
		return vfterr.AlreadyExists("duplicate name %q under parent %d", n.Name(), n.ParentInode())
	}

	ok := objectKey{providerID: n.ProviderID, objectID: n.ObjectID()}
	if _, exists := ix.byObject[ok]; exists {
		return vfterr.AlreadyExists("duplicate object %v for provider %q", n.ObjectID(), n.ProviderID)
	}

	ix.byInode[n.Inode] = n
	ix.byName[nk] = n
	ix.byObject[ok] = n
	return nil
}

// remove deletes inode's node from all three indices. Idempotent: removing
// an absent inode is a no-op and returns nil. Otherwise returns the removed
// node.
func (ix *index) remove(inode uint64) *Node {
	n, ok := ix.byInode[inode]
	if !ok {
		return nil
	}

	delete(ix.byInode, inode)
	delete(ix.byName, nameKey{parentInode: n.ParentInode(), name: n.Name()})
	delete(ix.byObject, objectKey{providerID: n.ProviderID, objectID: n.ObjectID()})
	return n
}

// rename updates the name index and the node's own name field under the
// same critical section. Fails with AlreadyExists if newName is already
// taken under parentInode.
func (ix *index) rename(parentInode uint64, oldName, newName string) error {
	oldKey := nameKey{parentInode: parentInode, name: oldName}
	n, ok := ix.byName[oldKey]
	if !ok {
		return vfterr.NotFound("no node named %q under parent %d", oldName, parentInode)
	}

	if oldName != newName {
		newKey := nameKey{parentInode: parentInode, name: newName}
		if _, exists := ix.byName[newKey]; exists {
			return vfterr.AlreadyExists("duplicate name %q under parent %d", newName, parentInode)
		}
		delete(ix.byName, oldKey)
		n.setName(newName)
		ix.byName[newKey] = n
	}
	return nil
}

// reparent moves n's by_name entry from its old parent to newParentInode,
// used by cross-parent rename alongside rename() for the name change.
func (ix *index) reparent(n *Node, newParentInode uint64) {
	oldKey := nameKey{parentInode: n.ParentInode(), name: n.Name()}
	delete(ix.byName, oldKey)
	n.setParentInode(newParentInode)
	ix.byName[nameKey{parentInode: newParentInode, name: n.Name()}] = n
}

// updateObjectID moves n's by_object entry to a new id, used after a
// provider call returns a fresh object id (create, rename, move_to).
func (ix *index) updateObjectID(n *Node, newID provider.ObjectID) {
	delete(ix.byObject, objectKey{providerID: n.ProviderID, objectID: n.ObjectID()})
	n.setObjectID(newID)
	ix.byObject[objectKey{providerID: n.ProviderID, objectID: newID}] = n
}

func (ix *index) lookupInode(inode uint64) (*Node, bool) {
	n, ok := ix.byInode[inode]
	return n, ok
}

func (ix *index) lookupName(parentInode uint64, name string) (*Node, bool) {
	n, ok := ix.byName[nameKey{parentInode: parentInode, name: name}]
	return n, ok
}

func (ix *index) lookupObject(providerID provider.ID, objectID provider.ObjectID) (*Node, bool) {
	n, ok := ix.byObject[objectKey{providerID: providerID, objectID: objectID}]
	return n, ok
}
