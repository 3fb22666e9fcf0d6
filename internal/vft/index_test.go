package vft

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshfs/meshfs/internal/provider"
	"github.com/meshfs/meshfs/internal/vfterr"
)

func TestIndexInsertDuplicateName(t *testing.T) {
	ix := newIndex()
	a := NewNode(2, "foo", provider.ObjectID{Value: "a"}, "p", 1)
	b := NewNode(3, "foo", provider.ObjectID{Value: "b"}, "p", 1)

	require.NoError(t, ix.insert(a))
	err := ix.insert(b)
	require.Error(t, err)
	assert.True(t, vfterr.IsAlreadyExists(err))

	_, ok := ix.lookupInode(3)
	assert.False(t, ok, "failed insert must not leave a partial entry")
}

func TestIndexInsertDuplicateObject(t *testing.T) {
	ix := newIndex()
	a := NewNode(2, "foo", provider.ObjectID{Value: "same"}, "p", 1)
	b := NewNode(3, "bar", provider.ObjectID{Value: "same"}, "p", 1)

	require.NoError(t, ix.insert(a))
	err := ix.insert(b)
	require.Error(t, err)
	assert.True(t, vfterr.IsAlreadyExists(err))
}

func TestIndexRemoveIsIdempotent(t *testing.T) {
	ix := newIndex()
	a := NewNode(2, "foo", provider.ObjectID{Value: "a"}, "p", 1)
	require.NoError(t, ix.insert(a))

	removed := ix.remove(2)
	assert.Equal(t, a, removed)

	assert.Nil(t, ix.remove(2))
	_, ok := ix.lookupName(1, "foo")
	assert.False(t, ok)
}

func TestIndexRename(t *testing.T) {
	ix := newIndex()
	a := NewNode(2, "foo", provider.ObjectID{Value: "a"}, "p", 1)
	require.NoError(t, ix.insert(a))

	require.NoError(t, ix.rename(1, "foo", "bar"))
	assert.Equal(t, "bar", a.Name())

	_, ok := ix.lookupName(1, "foo")
	assert.False(t, ok)
	n, ok := ix.lookupName(1, "bar")
	assert.True(t, ok)
	assert.Equal(t, a, n)
}

func TestIndexRenameCollision(t *testing.T) {
	ix := newIndex()
	a := NewNode(2, "foo", provider.ObjectID{Value: "a"}, "p", 1)
	b := NewNode(3, "bar", provider.ObjectID{Value: "b"}, "p", 1)
	require.NoError(t, ix.insert(a))
	require.NoError(t, ix.insert(b))

	err := ix.rename(1, "foo", "bar")
	require.Error(t, err)
	assert.True(t, vfterr.IsAlreadyExists(err))
	assert.Equal(t, "foo", a.Name(), "failed rename must leave the name unchanged")
}

func TestIndexReparent(t *testing.T) {
	ix := newIndex()
	a := NewNode(2, "foo", provider.ObjectID{Value: "a"}, "p", 1)
	require.NoError(t, ix.insert(a))

	ix.reparent(a, 9)
	assert.Equal(t, uint64(9), a.ParentInode())

	_, ok := ix.lookupName(1, "foo")
	assert.False(t, ok)
	n, ok := ix.lookupName(9, "foo")
	assert.True(t, ok)
	assert.Equal(t, a, n)
}

func TestIndexUpdateObjectID(t *testing.T) {
	ix := newIndex()
	a := NewNode(2, "foo", provider.ObjectID{Value: "a"}, "p", 1)
	require.NoError(t, ix.insert(a))

	ix.updateObjectID(a, provider.ObjectID{Value: "a2"})
	assert.Equal(t, provider.ObjectID{Value: "a2"}, a.ObjectID())

	_, ok := ix.lookupObject("p", provider.ObjectID{Value: "a"})
	assert.False(t, ok)
	n, ok := ix.lookupObject("p", provider.ObjectID{Value: "a2"})
	assert.True(t, ok)
	assert.Equal(t, a, n)
}
