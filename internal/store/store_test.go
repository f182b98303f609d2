package store

import (
	"testing"

	"github.com/bisondb/bison/internal/bisonerr"
	"github.com/bisondb/bison/internal/document"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertCreatesCollectionImplicitly(t *testing.T) {
	t.Parallel()

	s := New(nil)
	s.Insert("t", document.NewObjectFromPairs("a", int64(1)))

	docs, err := s.Documents("t")
	require.NoError(t, err)
	assert.Len(t, docs, 1)
	assert.True(t, s.Exists("t"))
}

func TestDocumentsOnMissingCollectionIsNoSuchCollection(t *testing.T) {
	t.Parallel()

	s := New(nil)

	_, err := s.Documents("ghost")
	require.Error(t, err)

	kind, ok := bisonerr.Of(err)
	require.True(t, ok)
	assert.Equal(t, bisonerr.NoSuchCollection, kind)
}

func TestCreateCollectionIsIdempotent(t *testing.T) {
	t.Parallel()

	s := New(nil)
	s.Insert("t", document.NewObjectFromPairs("a", int64(1)))

	s.CreateCollection("t")

	docs, err := s.Documents("t")
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestInsertionOrderPreserved(t *testing.T) {
	t.Parallel()

	s := New(nil)

	s.Insert("test", document.NewObjectFromPairs("a", int64(10), "b", int64(200)))

	more := make([]*document.Object, 0, 10)
	for i := int64(0); i < 10; i++ {
		more = append(more, document.NewObjectFromPairs("a", i, "b", i+10))
	}

	s.InsertMany("test", more)

	docs, err := s.Documents("test")
	require.NoError(t, err)
	require.Len(t, docs, 11)

	v, _ := docs[0].Get("a")
	assert.Equal(t, int64(10), v)

	v, _ = docs[1].Get("a")
	assert.Equal(t, int64(0), v)
}

func TestDropCollectionReportsExistence(t *testing.T) {
	t.Parallel()

	s := New(nil)
	s.Insert("t", document.NewObjectFromPairs("a", int64(1)))

	assert.True(t, s.DropCollection("t"))
	assert.False(t, s.Exists("t"))
	assert.False(t, s.DropCollection("t"))
}

func TestDropAllClearsEverything(t *testing.T) {
	t.Parallel()

	s := New(nil)
	s.Insert("a", document.NewObjectFromPairs("x", int64(1)))
	s.Insert("b", document.NewObjectFromPairs("x", int64(1)))

	s.DropAll()

	assert.Empty(t, s.Collections())
}

func TestInsertMarksDirty(t *testing.T) {
	t.Parallel()

	s := New(nil)
	s.Insert("t", document.NewObjectFromPairs("a", int64(1)))

	assert.Contains(t, s.DirtyCollections(), "t")

	s.ClearDirty("t")
	assert.NotContains(t, s.DirtyCollections(), "t")

	s.MarkDirty("t")
	assert.Contains(t, s.DirtyCollections(), "t")
}

func TestNewFromLoadedDocsStartsClean(t *testing.T) {
	t.Parallel()

	s := New(map[string][]*document.Object{
		"t": {document.NewObjectFromPairs("a", int64(1))},
	})

	assert.Empty(t, s.DirtyCollections())
	docs, err := s.Documents("t")
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestCollectionsOrderIsCreationOrder(t *testing.T) {
	t.Parallel()

	s := New(nil)
	s.CreateCollection("zebra")
	s.CreateCollection("apple")

	assert.Equal(t, []string{"zebra", "apple"}, s.Collections())
}
