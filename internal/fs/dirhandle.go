package fs

import (
	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/fuseutil"

	"github.com/meshfs/meshfs/internal/vft"
)

// dirHandle serves one open directory's readdir stream from a snapshot
// captured once (at the first ReadDir call) and served by offset until
// exhausted, mirroring the teacher's dirHandle design adapted from a GCS
// continuation token to the hydrator's children snapshot.
type dirHandle struct {
	node     *vft.Node
	root     bool
	entries  []fuseutil.Dirent
	captured bool
}

func newDirHandle(node *vft.Node, root bool) *dirHandle {
	return &dirHandle{node: node, root: root}
}

// capture builds the full entry list for this directory exactly once. The
// synthetic root (root == true) lists only provider roots, with no "."/"..",
// per spec. Every other directory gets "." and ".." synthesized ahead of
// its hydrated children, both carrying the directory's own parent inode
// (mirroring original_source's dir.rs, which gives "." and ".." the same
// inode value rather than resolving "." to the directory's own inode).
func (h *dirHandle) capture(children []*vft.Node) {
	if h.captured {
		return
	}
	h.captured = true

	if h.root {
		for _, c := range children {
			h.entries = append(h.entries, fuseutil.Dirent{
				Offset: fuseops.DirOffset(len(h.entries) + 1),
				Inode:  fuseops.InodeID(c.Inode),
				Name:   c.Name(),
				Type:   fuseutil.DT_Directory,
			})
		}
		return
	}

	parent := fuseops.InodeID(h.node.ParentInode())
	h.entries = append(h.entries,
		fuseutil.Dirent{Offset: 1, Inode: parent, Name: ".", Type: fuseutil.DT_Directory},
		fuseutil.Dirent{Offset: 2, Inode: parent, Name: "..", Type: fuseutil.DT_Directory},
	)

	for i, c := range children {
		typ := fuseutil.DT_File
		if c.ObjectID().IsDirectory() {
			typ = fuseutil.DT_Directory
		}
		h.entries = append(h.entries, fuseutil.Dirent{
			Offset: fuseops.DirOffset(3 + i),
			Inode:  fuseops.InodeID(c.Inode),
			Name:   c.Name(),
			Type:   typ,
		})
	}
}

// readInto fills op.Dst starting at op.Offset, following fuseutil.Dirent
// convention (WriteDirent appends until it would overflow the buffer).
func (h *dirHandle) readInto(op *fuseops.ReadDirOp) {
	for i := int(op.Offset); i < len(h.entries); i++ {
		n := fuseutil.WriteDirent(op.Dst[op.BytesRead:], h.entries[i])
		if n == 0 {
			break
		}
		op.BytesRead += n
	}
}
