package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/bisondb/bison/internal/bisonerr"
	"github.com/bisondb/bison/internal/document"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenMissingDirectoryIsNotFatal(t *testing.T) {
	t.Parallel()

	root := filepath.Join(t.TempDir(), "does-not-exist-yet")

	b, collections, err := Open(root, "", nil)
	require.NoError(t, err)
	assert.Empty(t, collections)

	require.NoError(t, b.Close())
}

func TestFlushThenOpenRoundTrips(t *testing.T) {
	t.Parallel()

	root := t.TempDir()

	b, _, err := Open(root, "", nil)
	require.NoError(t, err)

	docs := []*document.Object{
		document.NewObjectFromPairs("a", int64(1)),
		document.NewObjectFromPairs("a", int64(2)),
	}

	require.NoError(t, b.Flush("widgets", docs))
	require.NoError(t, b.Close())

	b2, collections, err := Open(root, "", nil)
	require.NoError(t, err)
	defer b2.Close()

	require.Contains(t, collections, "widgets")
	require.Len(t, collections["widgets"], 2)

	v, _ := collections["widgets"][0].Get("a")
	assert.Equal(t, int64(1), v)

	v, _ = collections["widgets"][1].Get("a")
	assert.Equal(t, int64(2), v)
}

func TestFlushIsAtomicNoTempFileLeftBehind(t *testing.T) {
	t.Parallel()

	root := t.TempDir()

	b, _, err := Open(root, "", nil)
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, b.Flush("t", []*document.Object{document.NewObjectFromPairs("a", int64(1))}))

	entries, err := os.ReadDir(root)
	require.NoError(t, err)

	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp-")
	}

	_, err = os.Stat(filepath.Join(root, "t.json"))
	assert.NoError(t, err)
}

func TestDropRemovesFile(t *testing.T) {
	t.Parallel()

	root := t.TempDir()

	b, _, err := Open(root, "", nil)
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, b.Flush("t", []*document.Object{document.NewObjectFromPairs("a", int64(1))}))
	require.NoError(t, b.Drop("t"))

	_, err = os.Stat(filepath.Join(root, "t.json"))
	assert.True(t, os.IsNotExist(err))
}

func TestDropMissingFileIsNotAnError(t *testing.T) {
	t.Parallel()

	root := t.TempDir()

	b, _, err := Open(root, "", nil)
	require.NoError(t, err)
	defer b.Close()

	assert.NoError(t, b.Drop("never-existed"))
}

func TestDropAllRemovesEveryFileButKeepsDirectory(t *testing.T) {
	t.Parallel()

	root := t.TempDir()

	b, _, err := Open(root, "", nil)
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, b.Flush("a", nil))
	require.NoError(t, b.Flush("b", nil))

	require.NoError(t, b.DropAll())

	entries, err := os.ReadDir(root)
	require.NoError(t, err)

	for _, e := range entries {
		assert.NotEqual(t, lockName, e.Name())
		assert.False(t, filepath.Ext(e.Name()) == ".json")
	}
}

// Open Question (d): a collection file may itself be a source-document
// object, its top-level keys becoming collections.
func TestOpenSourceDocumentFileShape(t *testing.T) {
	t.Parallel()

	root := t.TempDir()

	data, err := document.Marshal(document.NewObjectFromPairs(
		"people", document.NewArray(document.NewObjectFromPairs("name", "ann")),
		"pets", document.NewArray(document.NewObjectFromPairs("name", "rex")),
	))
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(root, "seed.json"), data, 0o644))

	_, collections, err := Open(root, "", nil)
	require.NoError(t, err)

	require.Contains(t, collections, "people")
	require.Contains(t, collections, "pets")
}

func TestOpenSourceDocumentParamOverridesOnConflict(t *testing.T) {
	t.Parallel()

	root := t.TempDir()

	arrData, err := document.Marshal(document.NewArray(document.NewObjectFromPairs("a", int64(1))))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(root, "people.json"), arrData, 0o644))

	sourceDir := t.TempDir()
	sourcePath := filepath.Join(sourceDir, "seed.json")

	sourceData, err := document.Marshal(document.NewObjectFromPairs(
		"people", document.NewArray(document.NewObjectFromPairs("a", int64(99))),
	))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(sourcePath, sourceData, 0o644))

	_, collections, err := Open(root, sourcePath, nil)
	require.NoError(t, err)

	require.Len(t, collections["people"], 1)
	v, _ := collections["people"][0].Get("a")
	assert.Equal(t, int64(99), v)
}

func TestSecondOpenOnSameDirectoryFails(t *testing.T) {
	t.Parallel()

	root := t.TempDir()

	b1, _, err := Open(root, "", nil)
	require.NoError(t, err)
	defer b1.Close()

	require.NoError(t, b1.Flush("t", nil)) // ensures root exists & is locked

	_, _, err = Open(root, "", nil)
	require.Error(t, err)

	kind, ok := bisonerr.Of(err)
	require.True(t, ok)
	assert.Equal(t, bisonerr.IoError, kind)
}

func TestOpenMalformedJSONIsParseError(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "broken.json"), []byte("{not json"), 0o644))

	_, _, err := Open(root, "", nil)
	require.Error(t, err)

	kind, ok := bisonerr.Of(err)
	require.True(t, ok)
	assert.Equal(t, bisonerr.ParseError, kind)
}
