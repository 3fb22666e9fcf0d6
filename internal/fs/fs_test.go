package fs

import (
	"context"
	"testing"
	"time"

	"github.com/jacobsa/fuse/fuseops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshfs/meshfs/internal/clock"
	"github.com/meshfs/meshfs/internal/provider"
	"github.com/meshfs/meshfs/internal/provider/fakeprovider"
	"github.com/meshfs/meshfs/internal/vft"
)

const testProviderID provider.ID = "fake"

// newTestFileSystem constructs the fileSystem directly (bypassing
// fuseutil.NewFileSystemServer, which only wraps it for the kernel RPC
// loop) so tests can call its op-handler methods inline.
func newTestFileSystem(t *testing.T) (*fileSystem, *vft.System, *fakeprovider.Provider) {
	t.Helper()

	registry := provider.NewRegistry()
	fp := fakeprovider.New()
	registry.Register(testProviderID, fp)

	clk := clock.NewSimulatedClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	sys := vft.Bootstrap(registry, clk)

	fsys := &fileSystem{
		sys:         sys,
		fileMode:    0o644,
		dirMode:     0o755,
		uid:         1000,
		gid:         1000,
		dirHandles:  make(map[fuseops.HandleID]*dirHandle),
		fileHandles: make(map[fuseops.HandleID]struct{}),
	}

	return fsys, sys, fp
}

func TestFileSystemCreateFileAndLookUp(t *testing.T) {
	fsys, sys, _ := newTestFileSystem(t)
	ctx := context.Background()

	root, ok := sys.Tree.LookupName(sys.Tree.Root().Inode, string(testProviderID))
	require.True(t, ok)

	createOp := &fuseops.CreateFileOp{Parent: fuseops.InodeID(root.Inode), Name: "hello.txt"}
	require.NoError(t, fsys.CreateFile(ctx, createOp))
	assert.NotZero(t, createOp.Entry.Child)

	lookupOp := &fuseops.LookUpInodeOp{Parent: fuseops.InodeID(root.Inode), Name: "hello.txt"}
	require.NoError(t, fsys.LookUpInode(ctx, lookupOp))
	assert.Equal(t, createOp.Entry.Child, lookupOp.Entry.Child)
}

func TestFileSystemWriteThenReadFile(t *testing.T) {
	fsys, sys, _ := newTestFileSystem(t)
	ctx := context.Background()

	root, _ := sys.Tree.LookupName(sys.Tree.Root().Inode, string(testProviderID))
	createOp := &fuseops.CreateFileOp{Parent: fuseops.InodeID(root.Inode), Name: "data.bin"}
	require.NoError(t, fsys.CreateFile(ctx, createOp))

	writeOp := &fuseops.WriteFileOp{Inode: createOp.Entry.Child, Offset: 0, Data: []byte("payload")}
	require.NoError(t, fsys.WriteFile(ctx, writeOp))

	dst := make([]byte, 32)
	readOp := &fuseops.ReadFileOp{Inode: createOp.Entry.Child, Offset: 0, Dst: dst}
	require.NoError(t, fsys.ReadFile(ctx, readOp))
	assert.Equal(t, "payload", string(dst[:readOp.BytesRead]))
}

func TestFileSystemMkDirAndReadDir(t *testing.T) {
	fsys, sys, _ := newTestFileSystem(t)
	ctx := context.Background()

	root, _ := sys.Tree.LookupName(sys.Tree.Root().Inode, string(testProviderID))
	mkdirOp := &fuseops.MkDirOp{Parent: fuseops.InodeID(root.Inode), Name: "sub"}
	require.NoError(t, fsys.MkDir(ctx, mkdirOp))

	openOp := &fuseops.OpenDirOp{Inode: fuseops.InodeID(root.Inode)}
	require.NoError(t, fsys.OpenDir(ctx, openOp))

	readOp := &fuseops.ReadDirOp{Handle: openOp.Handle, Offset: 0, Dst: make([]byte, 4096)}
	require.NoError(t, fsys.ReadDir(ctx, readOp))
	assert.Greater(t, readOp.BytesRead, 0)
}

func TestFileSystemUnlink(t *testing.T) {
	fsys, sys, _ := newTestFileSystem(t)
	ctx := context.Background()

	root, _ := sys.Tree.LookupName(sys.Tree.Root().Inode, string(testProviderID))
	createOp := &fuseops.CreateFileOp{Parent: fuseops.InodeID(root.Inode), Name: "doomed.txt"}
	require.NoError(t, fsys.CreateFile(ctx, createOp))

	unlinkOp := &fuseops.UnlinkOp{Parent: fuseops.InodeID(root.Inode), Name: "doomed.txt"}
	require.NoError(t, fsys.Unlink(ctx, unlinkOp))

	lookupOp := &fuseops.LookUpInodeOp{Parent: fuseops.InodeID(root.Inode), Name: "doomed.txt"}
	err := fsys.LookUpInode(ctx, lookupOp)
	assert.Error(t, err)
}

func TestFileSystemRenameSameParent(t *testing.T) {
	fsys, sys, _ := newTestFileSystem(t)
	ctx := context.Background()

	root, _ := sys.Tree.LookupName(sys.Tree.Root().Inode, string(testProviderID))
	createOp := &fuseops.CreateFileOp{Parent: fuseops.InodeID(root.Inode), Name: "a.txt"}
	require.NoError(t, fsys.CreateFile(ctx, createOp))

	renameOp := &fuseops.RenameOp{
		OldParent: fuseops.InodeID(root.Inode), OldName: "a.txt",
		NewParent: fuseops.InodeID(root.Inode), NewName: "b.txt",
	}
	require.NoError(t, fsys.Rename(ctx, renameOp))

	lookupOp := &fuseops.LookUpInodeOp{Parent: fuseops.InodeID(root.Inode), Name: "b.txt"}
	require.NoError(t, fsys.LookUpInode(ctx, lookupOp))
	assert.Equal(t, createOp.Entry.Child, lookupOp.Entry.Child)
}
