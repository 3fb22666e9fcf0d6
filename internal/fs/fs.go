// Package fs adapts the virtual filesystem tree to jacobsa/fuse's
// fuseutil.FileSystem callback interface: one method per kernel op,
// grounded 1:1 on the teacher's fileSystem methods in its fs/fs.go.
package fs

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/jacobsa/fuse"
	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/fuseutil"
	"github.com/sirupsen/logrus"

	"github.com/meshfs/meshfs/internal/provider"
	"github.com/meshfs/meshfs/internal/vft"
	"github.com/meshfs/meshfs/internal/vfterr"
)

// attrTTL is the TTL handed back to the kernel alongside lookup/getattr
// results, per spec ("return the node's metadata projection with TTL = 1s").
const attrTTL = 1 * time.Second

// ServerConfig bundles what NewServer needs: the wired vft.System plus the
// local file-mode/ownership defaults applied to nodes that have no cached
// provider metadata yet.
type ServerConfig struct {
	System   *vft.System
	FileMode os.FileMode
	DirMode  os.FileMode
	Uid      uint32
	Gid      uint32
	Log      *logrus.Entry
}

// NewServer builds a fuse.Server front-ending the given vft.System.
func NewServer(cfg *ServerConfig) (fuse.Server, error) {
	fs := &fileSystem{
		sys:      cfg.System,
		fileMode: cfg.FileMode,
		dirMode:  cfg.DirMode,
		uid:      cfg.Uid,
		gid:      cfg.Gid,
		log:      cfg.Log,

		dirHandles:  make(map[fuseops.HandleID]*dirHandle),
		fileHandles: make(map[fuseops.HandleID]struct{}),
	}
	return fuseutil.NewFileSystemServer(fs), nil
}

type fileSystem struct {
	fuseutil.NotImplementedFileSystem

	sys      *vft.System
	fileMode os.FileMode
	dirMode  os.FileMode
	uid      uint32
	gid      uint32
	log      *logrus.Entry

	mu          sync.Mutex
	nextHandle  fuseops.HandleID
	dirHandles  map[fuseops.HandleID]*dirHandle
	fileHandles map[fuseops.HandleID]struct{}
}

func (fs *fileSystem) logf(op string, format string, args ...any) {
	if fs.log == nil {
		return
	}
	fs.log.WithField("op", op).Debugf(format, args...)
}

// attributes projects a node's cached metadata (or this mount's configured
// defaults, if the node has never been stat'd) into fuseops.InodeAttributes.
func (fs *fileSystem) attributes(n *vft.Node) fuseops.InodeAttributes {
	mode := fs.fileMode
	nlink := uint64(1)
	if n.ObjectID().IsDirectory() {
		mode = os.ModeDir | fs.dirMode
		nlink = uint64(len(n.ChildrenSnapshot()))
	}

	attrs := fuseops.InodeAttributes{
		Nlink: nlink,
		Mode:  mode,
		Uid:   fs.uid,
		Gid:   fs.gid,
	}

	if md := n.Metadata(); md != nil {
		attrs.Size = md.Size
		attrs.Atime = md.Atime
		attrs.Mtime = md.Mtime
		attrs.Ctime = md.Ctime
		attrs.Crtime = md.Crtime
		if md.Perm != 0 {
			attrs.Mode = (mode &^ os.ModePerm) | os.FileMode(md.Perm)
		}
		if md.Uid != 0 {
			attrs.Uid = md.Uid
		}
		if md.Gid != 0 {
			attrs.Gid = md.Gid
		}
	}

	return attrs
}

func (fs *fileSystem) allocHandle() fuseops.HandleID {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	h := fs.nextHandle
	fs.nextHandle++
	return h
}

func toErrno(err error) error {
	switch {
	case err == nil:
		return nil
	case vfterr.IsNotFound(err):
		return fuse.ENOENT
	case vfterr.IsAlreadyExists(err):
		return fuse.EEXIST
	case vfterr.IsNotDirectory(err):
		return fuse.ENOTDIR
	default:
		// Provider failures are reported as ENOENT, a coarse mapping
		// the design notes accept as a known limitation.
		return fuse.ENOENT
	}
}

func (fs *fileSystem) StatFS(ctx context.Context, op *fuseops.StatFSOp) error {
	op.BlockSize = 4096
	op.IoSize = 4096
	return nil
}

// LookUpInode implements lookup(parent_inode, name): consult the index, and
// if the name is missing, hydrate the parent once and retry.
func (fs *fileSystem) LookUpInode(ctx context.Context, op *fuseops.LookUpInodeOp) error {
	fs.logf("lookup", "parent=%d name=%q", op.Parent, op.Name)

	parent, ok := fs.sys.Tree.LookupInode(uint64(op.Parent))
	if !ok {
		return fuse.ENOENT
	}

	child, ok := fs.sys.Tree.LookupName(parent.Inode, op.Name)
	if !ok {
		if _, err := fs.sys.Hydrator.GetChildren(ctx, parent); err != nil {
			return toErrno(err)
		}
		child, ok = fs.sys.Tree.LookupName(parent.Inode, op.Name)
		if !ok {
			return fuse.ENOENT
		}
	}

	op.Entry.Child = fuseops.InodeID(child.Inode)
	op.Entry.Attributes = fs.attributes(child)
	op.Entry.AttributesExpiration = time.Now().Add(attrTTL)
	op.Entry.EntryExpiration = time.Now().Add(attrTTL)
	return nil
}

// GetInodeAttributes implements getattr(inode): refreshes metadata from the
// provider (except for the synthetic root, which has fixed attributes).
func (fs *fileSystem) GetInodeAttributes(ctx context.Context, op *fuseops.GetInodeAttributesOp) error {
	n, ok := fs.sys.Tree.LookupInode(uint64(op.Inode))
	if !ok {
		return fuse.ENOENT
	}

	if n.Inode == vft.RootInode {
		op.Attributes = fuseops.InodeAttributes{
			Nlink: uint64(len(n.ChildrenSnapshot())),
			Mode:  os.ModeDir | fs.dirMode,
			Uid:   fs.uid,
			Gid:   fs.gid,
		}
		op.AttributesExpiration = time.Now().Add(attrTTL)
		return nil
	}

	md, err := fs.sys.Bridge.GetMetadata(ctx, n.ProviderID, n.ObjectID())
	if err != nil {
		return toErrno(err)
	}
	n.SetMetadata(md)

	op.Attributes = fs.attributes(n)
	op.AttributesExpiration = time.Now().Add(attrTTL)
	return nil
}

// SetInodeAttributes implements setattr: overlay the fields the kernel
// supplied onto the node's local metadata. Not pushed to the provider,
// since providers do not uniformly support attribute writes.
func (fs *fileSystem) SetInodeAttributes(ctx context.Context, op *fuseops.SetInodeAttributesOp) error {
	n, ok := fs.sys.Tree.LookupInode(uint64(op.Inode))
	if !ok {
		return fuse.ENOENT
	}

	n.OverlayMetadata(func(md provider.Metadata) provider.Metadata {
		if op.Size != nil {
			md.Size = *op.Size
		}
		if op.Mode != nil {
			md.Perm = uint16(op.Mode.Perm())
		}
		if op.Atime != nil {
			md.Atime = *op.Atime
		}
		if op.Mtime != nil {
			md.Mtime = *op.Mtime
		}
		return md
	})

	op.Attributes = fs.attributes(n)
	op.AttributesExpiration = time.Now().Add(attrTTL)
	return nil
}

func (fs *fileSystem) ForgetInode(ctx context.Context, op *fuseops.ForgetInodeOp) error {
	return nil
}

func (fs *fileSystem) MkDir(ctx context.Context, op *fuseops.MkDirOp) error {
	return fs.create(ctx, op.Parent, op.Name, true, &op.Entry)
}

func (fs *fileSystem) CreateFile(ctx context.Context, op *fuseops.CreateFileOp) error {
	if err := fs.create(ctx, op.Parent, op.Name, false, &op.Entry); err != nil {
		return err
	}
	op.Handle = fs.allocHandle()
	fs.mu.Lock()
	fs.fileHandles[op.Handle] = struct{}{}
	fs.mu.Unlock()
	return nil
}

// create implements mknod/mkdir: compose the object id via the provider's
// create call, then insert the resulting node into the tree.
func (fs *fileSystem) create(ctx context.Context, parentID fuseops.InodeID, name string, dir bool, entry *fuseops.ChildInodeEntry) error {
	fs.logf("create", "parent=%d name=%q dir=%v", parentID, name, dir)

	parent, ok := fs.sys.Tree.LookupInode(uint64(parentID))
	if !ok {
		return fuse.ENOENT
	}

	if _, exists := fs.sys.Tree.LookupName(parent.Inode, name); exists {
		return fuse.EEXIST
	}

	id, err := fs.sys.Bridge.Create(ctx, parent.ProviderID, parent.ObjectID(), name, dir)
	if err != nil {
		return toErrno(err)
	}

	child, err := fs.sys.Tree.NewChild(parent, name, id, parent.ProviderID)
	if err != nil {
		return toErrno(err)
	}

	entry.Child = fuseops.InodeID(child.Inode)
	entry.Attributes = fs.attributes(child)
	entry.AttributesExpiration = time.Now().Add(attrTTL)
	entry.EntryExpiration = time.Now().Add(attrTTL)
	return nil
}

// CreateSymlink implements symlink(parent, name, target_path): resolve
// target_path within the tree, then ask the provider to create the link.
func (fs *fileSystem) CreateSymlink(ctx context.Context, op *fuseops.CreateSymlinkOp) error {
	fs.logf("symlink", "parent=%d name=%q target=%q", op.Parent, op.Name, op.Target)

	parent, ok := fs.sys.Tree.LookupInode(uint64(op.Parent))
	if !ok {
		return fuse.ENOENT
	}

	target, err := fs.resolvePath(ctx, op.Target)
	if err != nil {
		return toErrno(err)
	}

	id, err := fs.sys.Bridge.CreateLink(ctx, parent.ProviderID, parent.ObjectID(), op.Name, target.ObjectID())
	if err != nil {
		return toErrno(err)
	}

	child, err := fs.sys.Tree.NewChild(parent, op.Name, id, parent.ProviderID)
	if err != nil {
		return toErrno(err)
	}

	op.Entry.Child = fuseops.InodeID(child.Inode)
	op.Entry.Attributes = fs.attributes(child)
	op.Entry.AttributesExpiration = time.Now().Add(attrTTL)
	op.Entry.EntryExpiration = time.Now().Add(attrTTL)
	return nil
}

// resolvePath walks target_path within the VFT, re-rooting an absolute
// path at the synthetic root and hydrating missing parents on demand.
func (fs *fileSystem) resolvePath(ctx context.Context, target string) (*vft.Node, error) {
	cur := fs.sys.Tree.Root()

	var components []string
	start := 0
	for i, c := range target {
		if c == '/' {
			if i > start {
				components = append(components, target[start:i])
			}
			start = i + 1
		}
	}
	if start < len(target) {
		components = append(components, target[start:])
	}

	for _, name := range components {
		if !cur.ObjectID().IsDirectory() {
			return nil, vfterr.NotDirectory("%q is not a directory", cur.Name())
		}

		child, ok := fs.sys.Tree.LookupName(cur.Inode, name)
		if !ok {
			if _, err := fs.sys.Hydrator.GetChildren(ctx, cur); err != nil {
				return nil, err
			}
			child, ok = fs.sys.Tree.LookupName(cur.Inode, name)
			if !ok {
				return nil, vfterr.NotFound("no entry named %q", name)
			}
		}
		cur = child
	}

	return cur, nil
}

// ReadSymlink implements readlink: file targets return their bytes,
// directory targets return the rendered path, per the dual-content design
// decision.
func (fs *fileSystem) ReadSymlink(ctx context.Context, op *fuseops.ReadSymlinkOp) error {
	n, ok := fs.sys.Tree.LookupInode(uint64(op.Inode))
	if !ok {
		return fuse.ENOENT
	}

	targetID, err := fs.sys.Bridge.ReadLink(ctx, n.ProviderID, n.ObjectID())
	if err != nil {
		return toErrno(err)
	}

	if targetID.IsDirectory() {
		op.Target = targetID.String()
		return nil
	}

	data, err := fs.sys.Bridge.ReadFile(ctx, n.ProviderID, targetID)
	if err != nil {
		return toErrno(err)
	}
	op.Target = string(data)
	return nil
}

// Rename implements rename(old_parent, old_name, new_parent, new_name).
func (fs *fileSystem) Rename(ctx context.Context, op *fuseops.RenameOp) error {
	fs.logf("rename", "old=%d/%q new=%d/%q", op.OldParent, op.OldName, op.NewParent, op.NewName)

	oldParent, ok := fs.sys.Tree.LookupInode(uint64(op.OldParent))
	if !ok {
		return fuse.ENOENT
	}
	newParent, ok := fs.sys.Tree.LookupInode(uint64(op.NewParent))
	if !ok {
		return fuse.ENOENT
	}

	n, ok := fs.sys.Tree.LookupName(oldParent.Inode, op.OldName)
	if !ok {
		return fuse.ENOENT
	}

	newID := n.ObjectID()
	var err error
	if op.OldName != op.NewName {
		newID, err = fs.sys.Bridge.Rename(ctx, n.ProviderID, newID, op.NewName)
		if err != nil {
			return toErrno(err)
		}
	}
	if oldParent.Inode != newParent.Inode {
		newID, err = fs.sys.Bridge.MoveTo(ctx, n.ProviderID, newID, newParent.ObjectID())
		if err != nil {
			return toErrno(err)
		}
	}

	if _, err := fs.sys.Tree.Rename(oldParent, op.OldName, newParent, op.NewName); err != nil {
		return toErrno(err)
	}

	fs.sys.Tree.Evict(n.ChildrenSnapshot())
	n.InvalidateChildren()
	fs.sys.Tree.SetObjectID(n, newID)
	return nil
}

// RmDir implements rmdir(parent, name).
func (fs *fileSystem) RmDir(ctx context.Context, op *fuseops.RmDirOp) error {
	return fs.unlink(ctx, op.Parent, op.Name)
}

// Unlink implements unlink(parent, name).
func (fs *fileSystem) Unlink(ctx context.Context, op *fuseops.UnlinkOp) error {
	return fs.unlink(ctx, op.Parent, op.Name)
}

func (fs *fileSystem) unlink(ctx context.Context, parentID fuseops.InodeID, name string) error {
	fs.logf("unlink", "parent=%d name=%q", parentID, name)

	parent, ok := fs.sys.Tree.LookupInode(uint64(parentID))
	if !ok {
		return fuse.ENOENT
	}

	n, ok := fs.sys.Tree.LookupName(parent.Inode, name)
	if !ok {
		return fuse.ENOENT
	}

	if err := fs.sys.Bridge.Delete(ctx, n.ProviderID, n.ObjectID()); err != nil {
		return toErrno(err)
	}

	if _, err := fs.sys.Tree.Remove(parent, name); err != nil {
		return toErrno(err)
	}
	return nil
}

func (fs *fileSystem) OpenDir(ctx context.Context, op *fuseops.OpenDirOp) error {
	n, ok := fs.sys.Tree.LookupInode(uint64(op.Inode))
	if !ok {
		return fuse.ENOENT
	}

	h := fs.allocHandle()
	fs.mu.Lock()
	fs.dirHandles[h] = newDirHandle(n, n.Inode == vft.RootInode)
	fs.mu.Unlock()

	op.Handle = h
	return nil
}

func (fs *fileSystem) ReadDir(ctx context.Context, op *fuseops.ReadDirOp) error {
	fs.mu.Lock()
	dh := fs.dirHandles[op.Handle]
	fs.mu.Unlock()
	if dh == nil {
		return fuse.EIO
	}

	if !dh.captured {
		children, err := fs.sys.Hydrator.GetChildren(ctx, dh.node)
		if err != nil {
			return toErrno(err)
		}
		dh.capture(children)
	}

	dh.readInto(op)
	return nil
}

func (fs *fileSystem) ReleaseDirHandle(ctx context.Context, op *fuseops.ReleaseDirHandleOp) error {
	fs.mu.Lock()
	delete(fs.dirHandles, op.Handle)
	fs.mu.Unlock()
	return nil
}

func (fs *fileSystem) OpenFile(ctx context.Context, op *fuseops.OpenFileOp) error {
	if _, ok := fs.sys.Tree.LookupInode(uint64(op.Inode)); !ok {
		return fuse.ENOENT
	}
	op.Handle = fs.allocHandle()
	fs.mu.Lock()
	fs.fileHandles[op.Handle] = struct{}{}
	fs.mu.Unlock()
	return nil
}

// ReadFile implements read(inode, offset, size).
func (fs *fileSystem) ReadFile(ctx context.Context, op *fuseops.ReadFileOp) error {
	n, ok := fs.sys.Tree.LookupInode(uint64(op.Inode))
	if !ok {
		return fuse.ENOENT
	}

	data, err := fs.sys.Bridge.ReadFile(ctx, n.ProviderID, n.ObjectID())
	if err != nil {
		return toErrno(err)
	}

	if op.Offset >= int64(len(data)) {
		op.BytesRead = 0
		return nil
	}

	end := op.Offset + int64(len(op.Dst))
	if end > int64(len(data)) {
		end = int64(len(data))
	}
	op.BytesRead = copy(op.Dst, data[op.Offset:end])
	return nil
}

// WriteFile implements write(inode, offset, data): splice data at offset,
// truncating the tail when offset+len(data) < size, overwriting wholly
// when offset == 0. This is a known limitation, not a streaming write: the
// whole file is read, spliced, and written back on every call.
func (fs *fileSystem) WriteFile(ctx context.Context, op *fuseops.WriteFileOp) error {
	n, ok := fs.sys.Tree.LookupInode(uint64(op.Inode))
	if !ok {
		return fuse.ENOENT
	}

	var current []byte
	if op.Offset > 0 {
		var err error
		current, err = fs.sys.Bridge.ReadFile(ctx, n.ProviderID, n.ObjectID())
		if err != nil {
			return toErrno(err)
		}
	}

	end := op.Offset + int64(len(op.Data))
	buf := make([]byte, end)
	copy(buf, current)
	copy(buf[op.Offset:], op.Data)

	if err := fs.sys.Bridge.WriteFile(ctx, n.ProviderID, n.ObjectID(), buf); err != nil {
		return toErrno(err)
	}

	n.OverlayMetadata(func(md provider.Metadata) provider.Metadata {
		md.Size = uint64(len(buf))
		return md
	})
	return nil
}

func (fs *fileSystem) SyncFile(ctx context.Context, op *fuseops.SyncFileOp) error {
	return nil
}

func (fs *fileSystem) FlushFile(ctx context.Context, op *fuseops.FlushFileOp) error {
	return nil
}

func (fs *fileSystem) ReleaseFileHandle(ctx context.Context, op *fuseops.ReleaseFileHandleOp) error {
	fs.mu.Lock()
	delete(fs.fileHandles, op.Handle)
	fs.mu.Unlock()
	return nil
}

func (fs *fileSystem) Destroy() {
}
