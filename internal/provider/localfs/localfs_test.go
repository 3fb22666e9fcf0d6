package localfs

import (
	"context"
	"os"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshfs/meshfs/internal/provider"
)

func newMemProvider() *Provider {
	return New(afero.NewMemMapFs(), "/base")
}

func TestLocalfsCreateAndReadDirectory(t *testing.T) {
	p := newMemProvider()
	ctx := context.Background()

	_, err := p.Create(ctx, provider.Root(), "dir", true)
	require.NoError(t, err)
	fileID, err := p.Create(ctx, provider.Root(), "a.txt", false)
	require.NoError(t, err)
	assert.False(t, fileID.Dir)
	assert.Equal(t, "a.txt", fileID.Value)

	entries, err := p.ReadDirectory(ctx, provider.Root())
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	names := map[string]bool{}
	for _, e := range entries {
		names[e.Name] = true
	}
	assert.True(t, names["dir"])
	assert.True(t, names["a.txt"])
}

func TestLocalfsNestedReadDirectory(t *testing.T) {
	p := newMemProvider()
	ctx := context.Background()

	dirID, err := p.Create(ctx, provider.Root(), "sub", true)
	require.NoError(t, err)
	_, err = p.Create(ctx, dirID, "nested.txt", false)
	require.NoError(t, err)

	entries, err := p.ReadDirectory(ctx, dirID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "nested.txt", entries[0].Name)
	assert.Equal(t, "sub/nested.txt", entries[0].ID.Value)
}

func TestLocalfsWriteAndReadFile(t *testing.T) {
	p := newMemProvider()
	ctx := context.Background()

	id, err := p.Create(ctx, provider.Root(), "f.txt", false)
	require.NoError(t, err)

	require.NoError(t, p.WriteFile(ctx, id, []byte("hello")))

	data, err := p.ReadFile(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestLocalfsCreateExistingFails(t *testing.T) {
	p := newMemProvider()
	ctx := context.Background()

	_, err := p.Create(ctx, provider.Root(), "dup.txt", false)
	require.NoError(t, err)

	_, err = p.Create(ctx, provider.Root(), "dup.txt", false)
	assert.Error(t, err)
}

func TestLocalfsRename(t *testing.T) {
	p := newMemProvider()
	ctx := context.Background()

	id, err := p.Create(ctx, provider.Root(), "old.txt", false)
	require.NoError(t, err)
	require.NoError(t, p.WriteFile(ctx, id, []byte("content")))

	newID, err := p.Rename(ctx, id, "new.txt")
	require.NoError(t, err)
	assert.Equal(t, "new.txt", newID.Value)

	data, err := p.ReadFile(ctx, newID)
	require.NoError(t, err)
	assert.Equal(t, "content", string(data))
}

func TestLocalfsMoveTo(t *testing.T) {
	p := newMemProvider()
	ctx := context.Background()

	dirID, err := p.Create(ctx, provider.Root(), "dest", true)
	require.NoError(t, err)
	fileID, err := p.Create(ctx, provider.Root(), "f.txt", false)
	require.NoError(t, err)

	newID, err := p.MoveTo(ctx, fileID, dirID)
	require.NoError(t, err)
	assert.Equal(t, "dest/f.txt", newID.Value)

	entries, err := p.ReadDirectory(ctx, dirID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "f.txt", entries[0].Name)
}

func TestLocalfsDelete(t *testing.T) {
	p := newMemProvider()
	ctx := context.Background()

	id, err := p.Create(ctx, provider.Root(), "gone.txt", false)
	require.NoError(t, err)

	require.NoError(t, p.Delete(ctx, id))

	_, err = p.ReadFile(ctx, id)
	assert.Error(t, err)
}

func TestLocalfsGetMetadata(t *testing.T) {
	p := newMemProvider()
	ctx := context.Background()

	id, err := p.Create(ctx, provider.Root(), "f.txt", false)
	require.NoError(t, err)
	require.NoError(t, p.WriteFile(ctx, id, []byte("12345")))

	meta, err := p.GetMetadata(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), meta.Size)
}

// MemMapFs doesn't implement afero.Linker/afero.LinkReader, so symlink
// behavior is exercised against a real temp-dir OsFs instead.
func TestLocalfsCreateAndReadLink(t *testing.T) {
	dir := t.TempDir()
	p := New(afero.NewOsFs(), dir)
	ctx := context.Background()

	targetID, err := p.Create(ctx, provider.Root(), "target.txt", false)
	require.NoError(t, err)
	require.NoError(t, p.WriteFile(ctx, targetID, []byte("payload")))

	linkID, err := p.CreateLink(ctx, provider.Root(), "link.txt", targetID)
	require.NoError(t, err)
	assert.Equal(t, "link.txt", linkID.Value)

	resolved, err := p.ReadLink(ctx, linkID)
	require.NoError(t, err)
	assert.Equal(t, "target.txt", resolved.Value)
	assert.False(t, resolved.Dir)

	_, err = os.Lstat(dir + "/link.txt")
	require.NoError(t, err)
}
