package engine

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/bisondb/bison/internal/bisonerr"
	"github.com/bisondb/bison/internal/document"
	"github.com/bisondb/bison/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func obj(pairs ...any) *document.Object {
	return document.NewObjectFromPairs(pairs...)
}

func openEngine(t *testing.T) (*Engine, string) {
	t.Helper()

	root := t.TempDir()

	e, err := Open(root, "")
	require.NoError(t, err)

	t.Cleanup(func() { _ = e.Close() })

	return e, root
}

// Scenario 1 from spec §8.
func TestInsertAndInsertManyCountAllDocuments(t *testing.T) {
	t.Parallel()

	e, _ := openEngine(t)
	ctx := context.Background()

	e.Insert(ctx, "test", obj("a", int64(10), "b", int64(200)))

	docs := make([]*document.Object, 0, 10)
	for i := int64(0); i < 10; i++ {
		docs = append(docs, obj("a", i, "b", i+10))
	}

	e.InsertMany(ctx, "test", docs)

	result, err := e.Find(ctx, "test", nil)
	require.NoError(t, err)
	assert.Len(t, result, 11)
}

// Scenario 2 from spec §8.
func TestFindGreaterThan(t *testing.T) {
	t.Parallel()

	e, _ := openEngine(t)
	ctx := context.Background()

	e.Insert(ctx, "t", obj("a", int64(20)))
	e.Insert(ctx, "t", obj("a", int64(100)))
	e.Insert(ctx, "t", obj("a", int64(101)))

	result, err := e.Find(ctx, "t", obj("a", obj("$gt", int64(100))))
	require.NoError(t, err)
	require.Len(t, result, 1)

	v, _ := result[0].Get("a")
	assert.Equal(t, int64(101), v)
}

// Scenario 4 from spec §8: $inc then $dec restores the leaf.
func TestUpdateIncDecNestedLeaf(t *testing.T) {
	t.Parallel()

	e, _ := openEngine(t)
	ctx := context.Background()

	e.Insert(ctx, "t", obj("a", obj("myobj", int64(20)), "b", int64(20), "c", obj("d", int64(100))))

	_, err := e.Update(ctx, "t", obj("c", obj("d", obj("$inc", ""))), nil, false)
	require.NoError(t, err)

	docs, err := e.Find(ctx, "t", nil)
	require.NoError(t, err)

	v, _ := document.Get(docs[0], document.ParsePath("c.d"))
	assert.Equal(t, int64(101), v)

	_, err = e.Update(ctx, "t", obj("c", obj("d", obj("$dec", ""))), nil, false)
	require.NoError(t, err)

	docs, err = e.Find(ctx, "t", nil)
	require.NoError(t, err)

	v, _ = document.Get(docs[0], document.ParsePath("c.d"))
	assert.Equal(t, int64(100), v)
}

// Scenario 5 from spec §8: $delete then persist round-trip.
func TestUpdateDeleteThenWriteAllThenReopen(t *testing.T) {
	t.Parallel()

	e, root := openEngine(t)
	ctx := context.Background()

	e.Insert(ctx, "t", obj("b", int64(20)))

	_, err := e.Update(ctx, "t", obj("b", obj("$delete", "")), nil, false)
	require.NoError(t, err)

	require.NoError(t, e.WriteAll(ctx))
	require.NoError(t, e.Close())

	e2, err := Open(root, "")
	require.NoError(t, err)
	defer e2.Close()

	docs, err := e2.Find(ctx, "t", nil)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.False(t, docs[0].Has("b"))
}

// Scenario 6 from spec §8: invalid query, state unchanged.
func TestFindInvalidQueryLeavesStateUnchanged(t *testing.T) {
	t.Parallel()

	e, _ := openEngine(t)
	ctx := context.Background()

	e.Insert(ctx, "t", obj("a", int64(10)))

	_, err := e.Find(ctx, "t", obj("a", obj("$gt", false)))
	require.Error(t, err)

	kind, ok := bisonerr.Of(err)
	require.True(t, ok)
	assert.Equal(t, bisonerr.InvalidQuery, kind)

	docs, err := e.Find(ctx, "t", nil)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestFindMissingCollectionIsNoSuchCollection(t *testing.T) {
	t.Parallel()

	e, _ := openEngine(t)

	_, err := e.Find(context.Background(), "ghost", nil)
	require.Error(t, err)

	kind, ok := bisonerr.Of(err)
	require.True(t, ok)
	assert.Equal(t, bisonerr.NoSuchCollection, kind)
}

func TestCacheSoundnessAfterMutation(t *testing.T) {
	t.Parallel()

	e, _ := openEngine(t)
	ctx := context.Background()

	e.Insert(ctx, "t", obj("a", int64(1)))

	first, err := e.Find(ctx, "t", obj("a", int64(1)))
	require.NoError(t, err)
	require.Len(t, first, 1)

	e.Insert(ctx, "t", obj("a", int64(1)))

	second, err := e.Find(ctx, "t", obj("a", int64(1)))
	require.NoError(t, err)
	assert.Len(t, second, 2)
}

func TestFindResultsAreDeepCopiedNotSharedWithEngineState(t *testing.T) {
	t.Parallel()

	e, _ := openEngine(t)
	ctx := context.Background()

	e.Insert(ctx, "t", obj("a", int64(1)))

	result, err := e.Find(ctx, "t", nil)
	require.NoError(t, err)

	result[0].Set("a", int64(999))

	again, err := e.Find(ctx, "t", nil)
	require.NoError(t, err)

	v, _ := again[0].Get("a")
	assert.Equal(t, int64(1), v)
}

func TestRoundTripPersistence(t *testing.T) {
	t.Parallel()

	e, root := openEngine(t)
	ctx := context.Background()

	e.Insert(ctx, "people", obj("name", "ann", "address", obj("city", "Berlin", "zip", "10115")))
	e.Insert(ctx, "people", obj("name", "bob"))

	require.NoError(t, e.WriteAll(ctx))
	require.NoError(t, e.Close())

	e2, err := Open(root, "")
	require.NoError(t, err)
	defer e2.Close()

	docs, err := e2.Find(ctx, "people", nil)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, []string{"name", "address"}, docs[0].Keys())
}

func TestDropCollectionRemovesFileAndCacheEntries(t *testing.T) {
	t.Parallel()

	e, root := openEngine(t)
	ctx := context.Background()

	e.Insert(ctx, "t", obj("a", int64(1)))
	require.NoError(t, e.Write(ctx, "t"))

	// populate the cache so the drop has an entry to invalidate.
	_, err := e.Find(ctx, "t", nil)
	require.NoError(t, err)

	require.NoError(t, e.DropCollection(ctx, "t"))

	_, err = e.Find(ctx, "t", nil)
	require.Error(t, err)

	_, statErr := os.Stat(filepath.Join(root, "t.json"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestUpdateReturnsOnlyMutatedDocumentsByDefault(t *testing.T) {
	t.Parallel()

	e, _ := openEngine(t)
	ctx := context.Background()

	e.Insert(ctx, "t", obj("name", "alice", "n", int64(1)))
	e.Insert(ctx, "t", obj("name", "bob", "n", int64(1)))

	result, err := e.Update(ctx, "t", obj("n", obj("$inc", "")), obj("name", "alice"), false)
	require.NoError(t, err)
	require.Len(t, result.Mutated, 1)
	assert.Nil(t, result.Snapshot)

	v, _ := result.Mutated[0].Get("n")
	assert.Equal(t, int64(2), v)
}

func TestUpdateWithSnapshotReturnsFullCollection(t *testing.T) {
	t.Parallel()

	e, _ := openEngine(t)
	ctx := context.Background()

	e.Insert(ctx, "t", obj("name", "alice", "n", int64(1)))
	e.Insert(ctx, "t", obj("name", "bob", "n", int64(1)))

	result, err := e.Update(ctx, "t", obj("n", obj("$inc", "")), obj("name", "alice"), true)
	require.NoError(t, err)
	require.Len(t, result.Mutated, 1)
	require.Len(t, result.Snapshot, 2)
}

func TestWriteWithCacheDisabledClearsOtherCollectionsToo(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	ctx := context.Background()

	e, err := Open(root, "", WithCacheEnabled(false))
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })

	e.Insert(ctx, "a", obj("x", int64(1)))
	e.Insert(ctx, "b", obj("x", int64(1)))

	_, err = e.Find(ctx, "a", nil)
	require.NoError(t, err)
	_, err = e.Find(ctx, "b", nil)
	require.NoError(t, err)

	_, missesBefore := e.cache.Stats()

	_, err = e.Find(ctx, "b", nil)
	require.NoError(t, err)

	hitsAfterRepeat, missesAfterRepeat := e.cache.Stats()
	assert.Equal(t, missesBefore, missesAfterRepeat, "repeated find should still hit before any write")
	assert.Positive(t, hitsAfterRepeat)

	require.NoError(t, e.Write(ctx, "a"))

	_, missesBeforeFind := e.cache.Stats()

	_, err = e.Find(ctx, "b", nil)
	require.NoError(t, err)

	_, missesAfterFind := e.cache.Stats()
	assert.Greater(t, missesAfterFind, missesBeforeFind,
		"write with cache disabled should clear the whole cache, not just collection a")
}

func TestWriteWithCacheEnabledLeavesOtherCollectionsCached(t *testing.T) {
	t.Parallel()

	e, _ := openEngine(t)
	ctx := context.Background()

	e.Insert(ctx, "a", obj("x", int64(1)))
	e.Insert(ctx, "b", obj("x", int64(1)))

	_, err := e.Find(ctx, "a", nil)
	require.NoError(t, err)
	_, err = e.Find(ctx, "b", nil)
	require.NoError(t, err)

	require.NoError(t, e.Write(ctx, "a"))

	_, missesBeforeFind := e.cache.Stats()

	_, err = e.Find(ctx, "b", nil)
	require.NoError(t, err)

	_, missesAfterFind := e.cache.Stats()
	assert.Equal(t, missesBeforeFind, missesAfterFind,
		"write with cache enabled should leave other collections' cache entries in place")
}

func TestRecentLogsReturnsFalseWithoutRecentHandler(t *testing.T) {
	t.Parallel()

	e, _ := openEngine(t)

	_, ok := e.RecentLogs()
	assert.False(t, ok)
}

func TestRecentLogsSurfacesRetainedRecords(t *testing.T) {
	t.Parallel()

	root := t.TempDir()

	var buf bytes.Buffer
	h := logging.NewHandler(&buf, &logging.NewHandlerOpts{Base: "text", Level: slog.LevelDebug, RecentEntriesSize: 4})
	logger := slog.New(h)

	e, err := Open(root, "", WithLogger(logger))
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })

	e.Insert(context.Background(), "t", obj("a", int64(1)))
	require.NoError(t, e.Write(context.Background(), "t"))

	records, ok := e.RecentLogs()
	require.True(t, ok)
	assert.NotEmpty(t, records)
}

func TestClearCacheIsObservationallyANoop(t *testing.T) {
	t.Parallel()

	e, _ := openEngine(t)
	ctx := context.Background()

	e.Insert(ctx, "t", obj("a", int64(1)))

	before, err := e.Find(ctx, "t", nil)
	require.NoError(t, err)

	e.ClearCache(ctx)

	after, err := e.Find(ctx, "t", nil)
	require.NoError(t, err)

	assert.Equal(t, before, after)
}
