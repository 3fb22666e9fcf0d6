// Package vft implements the virtual filesystem tree: the concurrent,
// lazily-hydrated, multi-rooted tree that maps local inode numbers to
// provider-scoped object identifiers and serves POSIX directory semantics
// over providers that don't natively offer them.
package vft

import (
	"time"

	"github.com/jacobsa/syncutil"

	"github.com/meshfs/meshfs/internal/provider"
)

// ContentState is the hydration state of a node's children list, not of its
// bytes.
type ContentState int

const (
	ShallowReady ContentState = iota
	Loading
	DeepReady
)

func (s ContentState) String() string {
	switch s {
	case ShallowReady:
		return "ShallowReady"
	case Loading:
		return "Loading"
	case DeepReady:
		return "DeepReady"
	default:
		return "unknown"
	}
}

// ChildTTL is how long a DeepReady children list is trusted before the next
// get_children call forces a refresh.
const ChildTTL = 1 * time.Second

// RootInode is the synthetic root's fixed inode number.
const RootInode = 1

// Node represents one filesystem entity: the synthetic root, a provider
// root, or an object belonging to a provider. Every field below mu is
// guarded by it; callers never retain a Node reference across a provider
// call (see bridge.go).
type Node struct {
	mu syncutil.InvariantMutex

	// Immutable for the node's lifetime.
	Inode      uint64
	ProviderID provider.ID

	// Guarded by mu.
	name         string
	objectID     provider.ObjectID
	metadata     *provider.Metadata
	contentState ContentState
	expireAt     time.Time
	children     []*Node
	parentInode  uint64
}

// NewNode constructs a node in ShallowReady state with no metadata and no
// children.
func NewNode(inode uint64, name string, objectID provider.ObjectID, providerID provider.ID, parentInode uint64) *Node {
	n := &Node{
		Inode:        inode,
		ProviderID:   providerID,
		name:         name,
		objectID:     objectID,
		contentState: ShallowReady,
		parentInode:  parentInode,
	}
	n.mu = syncutil.NewInvariantMutex(n.checkInvariants)
	return n
}

// checkInvariants is the InvariantMutex callback. There is little to assert
// at the single-node level beyond what the type system already guarantees;
// kept as a named hook so future per-node invariants have a home, matching
// the teacher's checkInvariants convention.
func (n *Node) checkInvariants() {
}

func (n *Node) Lock()   { n.mu.Lock() }
func (n *Node) Unlock() { n.mu.Unlock() }

// Name returns the node's current sibling-unique name.
func (n *Node) Name() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.name
}

// setName is called only by the Tree under the tree lock, as part of a
// rename.
func (n *Node) setName(name string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.name = name
}

// ObjectID returns the node's current provider-scoped identifier.
func (n *Node) ObjectID() provider.ObjectID {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.objectID
}

func (n *Node) setObjectID(id provider.ObjectID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.objectID = id
}

// ParentInode returns the back-reference used to compose provider paths and
// for removal.
func (n *Node) ParentInode() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.parentInode
}

func (n *Node) setParentInode(p uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.parentInode = p
}

// Metadata returns the cached metadata projection, or nil if get_metadata
// has never been called for this node.
func (n *Node) Metadata() *provider.Metadata {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.metadata == nil {
		return nil
	}
	m := *n.metadata
	return &m
}

// SetMetadata overwrites the cached metadata projection wholesale, used
// after a fresh get_metadata call.
func (n *Node) SetMetadata(m provider.Metadata) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.metadata = &m
}

// OverlayMetadata applies fn to the current (or zero-value, if absent)
// metadata and stores the result, used by setattr to overlay only the
// fields the caller supplied.
func (n *Node) OverlayMetadata(fn func(provider.Metadata) provider.Metadata) {
	n.mu.Lock()
	defer n.mu.Unlock()
	var cur provider.Metadata
	if n.metadata != nil {
		cur = *n.metadata
	}
	next := fn(cur)
	n.metadata = &next
}

// ContentState returns the node's current children-hydration state and
// expiry deadline.
func (n *Node) ContentState() (ContentState, time.Time) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.contentState, n.expireAt
}

// enterLoading atomically decides whether the caller should (re)fetch the
// node's children: it inspects content_state and expireAt under the same
// lock it uses to transition to Loading, so two racing callers can never
// both win. won is false if another caller already holds Loading, or if
// the cached DeepReady list has not expired yet; from is the state the
// winner is loading from (ShallowReady for a cold load, DeepReady for a
// refresh).
func (n *Node) enterLoading(now time.Time) (won bool, from ContentState) {
	n.mu.Lock()
	defer n.mu.Unlock()

	switch n.contentState {
	case Loading:
		return false, Loading
	case DeepReady:
		if n.expireAt.After(now) {
			return false, DeepReady
		}
	}

	from = n.contentState
	n.contentState = Loading
	return true, from
}

// finishLoading transitions Loading -> DeepReady, installs the children
// snapshot, and sets the next expiry.
func (n *Node) finishLoading(children []*Node, now time.Time) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.children = children
	n.contentState = DeepReady
	n.expireAt = now.Add(ChildTTL)
}

// abortLoading transitions Loading back to entryState (never leaves a node
// stuck in Loading after a provider failure), per the hydrator's failure
// handling contract.
func (n *Node) abortLoading(entryState ContentState) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.contentState = entryState
}

// ChildrenSnapshot returns a copy of the current children slice, safe for
// the caller to range over without holding any lock.
func (n *Node) ChildrenSnapshot() []*Node {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]*Node, len(n.children))
	copy(out, n.children)
	return out
}

func (n *Node) appendChild(c *Node) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.children = append(n.children, c)
}

func (n *Node) removeChild(inode uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i, c := range n.children {
		if c.Inode == inode {
			n.children = append(n.children[:i], n.children[i+1:]...)
			return
		}
	}
}

// InvalidateChildren resets the node to ShallowReady with no children,
// used by rename since the descendants' identities may have changed under
// the provider's path scheme.
func (n *Node) InvalidateChildren() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.children = nil
	n.contentState = ShallowReady
	n.expireAt = time.Time{}
}
