// Package storage implements the file-backed persistence layer (spec §4.2):
// one JSON file per collection under a root directory, loaded eagerly on
// open and rewritten atomically on flush.
package storage

import (
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"github.com/bisondb/bison/internal/bisonerr"
	"github.com/bisondb/bison/internal/document"
)

const (
	fileSuffix = ".json"
	lockName   = ".bison.lock"
)

// Backend owns one root directory, holding an exclusive advisory lock on it
// for its lifetime (spec §5: "the directory on disk is exclusively owned by
// one database instance").
type Backend struct {
	root     string
	lockFile *os.File
	log      *slog.Logger
}

// Open acquires exclusive ownership of root (creating nothing yet if root
// doesn't exist — a missing directory is not fatal, spec §4.2) and loads
// every "*.json" file already present, plus sourceDocument if non-empty.
//
// Each loaded file may itself be a bare JSON array (the ordinary case: the
// collection named by the file's stem) or a JSON object, whose top-level
// keys become/overwrite collections by name (spec §9 Open Question (d),
// grounded on original_source's test_find_on_existing_db). sourceDocument,
// when given, is loaded the same way and always wins on name conflicts.
func Open(root string, sourceDocument string, log *slog.Logger) (*Backend, map[string][]*document.Object, error) {
	if log == nil {
		log = slog.Default()
	}

	b := &Backend{root: root, log: log}

	collections := make(map[string][]*document.Object)

	info, err := os.Stat(root)
	switch {
	case os.IsNotExist(err):
		log.Debug("storage root does not exist yet", "root", root)
		return b, collections, nil
	case err != nil:
		return nil, nil, bisonerr.Wrap(bisonerr.IoError, err, "stat %q", root)
	case !info.IsDir():
		return nil, nil, bisonerr.New(bisonerr.IoError, "%q is not a directory", root)
	}

	if err := b.lock(); err != nil {
		return nil, nil, err
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		b.unlock()
		return nil, nil, bisonerr.Wrap(bisonerr.IoError, err, "read dir %q", root)
	}

	names := make([]string, 0, len(entries))

	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), fileSuffix) || e.Name() == lockName {
			continue
		}

		names = append(names, e.Name())
	}

	sort.Strings(names)

	for _, name := range names {
		stem := strings.TrimSuffix(name, fileSuffix)

		if err := b.loadFile(filepath.Join(root, name), stem, collections); err != nil {
			b.unlock()
			return nil, nil, err
		}
	}

	if sourceDocument != "" {
		if err := b.loadFile(sourceDocument, "", collections); err != nil {
			b.unlock()
			return nil, nil, err
		}
	}

	return b, collections, nil
}

// loadFile decodes the JSON value in path and merges it into collections.
// stem names the collection when the file decodes as a bare array; it is
// ignored (and may be empty, as for an explicit source document) when the
// file decodes as a source-document object.
func (b *Backend) loadFile(path string, stem string, collections map[string][]*document.Object) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return bisonerr.Wrap(bisonerr.IoError, err, "read %q", path)
	}

	v, err := document.Unmarshal(data)
	if err != nil {
		return bisonerr.Wrap(bisonerr.ParseError, err, "parse %q", path)
	}

	switch t := v.(type) {
	case *document.Array:
		if stem == "" {
			return bisonerr.New(bisonerr.ParseError, "%q: expected a source document object, got an array", path)
		}

		collections[stem] = arrayToDocs(t)

	case *document.Object:
		var rangeErr error

		t.Range(func(key string, val document.Value) bool {
			arr, ok := val.(*document.Array)
			if !ok {
				rangeErr = bisonerr.New(bisonerr.ParseError,
					"%q: top-level key %q must hold an array of documents", path, key)
				return false
			}

			collections[key] = arrayToDocs(arr)

			return true
		})

		if rangeErr != nil {
			return rangeErr
		}

	default:
		return bisonerr.New(bisonerr.ParseError, "%q: expected a JSON array or object at the top level", path)
	}

	return nil
}

func arrayToDocs(arr *document.Array) []*document.Object {
	docs := make([]*document.Object, 0, arr.Len())

	arr.Range(func(_ int, v document.Value) bool {
		if obj, ok := v.(*document.Object); ok {
			docs = append(docs, obj)
		}

		return true
	})

	return docs
}

// Flush writes docs for collection name to "<root>/<name>.json", atomically
// (temp file in the same directory, then rename).
func (b *Backend) Flush(name string, docs []*document.Object) error {
	if err := os.MkdirAll(b.root, 0o755); err != nil {
		return bisonerr.Wrap(bisonerr.IoError, err, "mkdir %q", b.root)
	}

	if b.lockFile == nil {
		if err := b.lock(); err != nil {
			return err
		}
	}

	arr := document.NewArray()
	for _, d := range docs {
		arr.Append(d)
	}

	data, err := document.Marshal(arr)
	if err != nil {
		return bisonerr.Wrap(bisonerr.IoError, err, "marshal collection %q", name)
	}

	final := filepath.Join(b.root, name+fileSuffix)
	tmp := filepath.Join(b.root, name+fileSuffix+".tmp-"+uuid.NewString())

	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return bisonerr.Wrap(bisonerr.IoError, err, "write %q", tmp)
	}

	if err := os.Rename(tmp, final); err != nil {
		return bisonerr.Wrap(bisonerr.IoError, err, "rename %q to %q", tmp, final)
	}

	b.log.Debug("flushed collection", "collection", name, "documents", len(docs))

	return nil
}

// Drop deletes "<root>/<name>.json" if present. A missing file is not an
// error.
func (b *Backend) Drop(name string) error {
	path := filepath.Join(b.root, name+fileSuffix)

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return bisonerr.Wrap(bisonerr.IoError, err, "remove %q", path)
	}

	return nil
}

// DropAll deletes every "*.json" file under root, leaving the directory
// itself in place.
func (b *Backend) DropAll() error {
	entries, err := os.ReadDir(b.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}

		return bisonerr.Wrap(bisonerr.IoError, err, "read dir %q", b.root)
	}

	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), fileSuffix) || e.Name() == lockName {
			continue
		}

		if err := os.Remove(filepath.Join(b.root, e.Name())); err != nil {
			return bisonerr.Wrap(bisonerr.IoError, err, "remove %q", e.Name())
		}
	}

	return nil
}

// Close releases the directory lock, if one is held.
func (b *Backend) Close() error {
	return b.unlock()
}

// lock acquires a non-blocking exclusive flock on a sentinel file inside
// root, so a second Backend instance pointed at the same directory fails
// fast instead of silently corrupting state (spec §5).
func (b *Backend) lock() error {
	if b.lockFile != nil {
		return nil
	}

	if err := os.MkdirAll(b.root, 0o755); err != nil {
		return bisonerr.Wrap(bisonerr.IoError, err, "mkdir %q", b.root)
	}

	path := filepath.Join(b.root, lockName)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return bisonerr.Wrap(bisonerr.IoError, err, "open lock file %q", path)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		return bisonerr.Wrap(bisonerr.IoError, err, "directory %q is already owned by another instance", b.root)
	}

	b.lockFile = f

	return nil
}

func (b *Backend) unlock() error {
	if b.lockFile == nil {
		return nil
	}

	err := unix.Flock(int(b.lockFile.Fd()), unix.LOCK_UN)
	closeErr := b.lockFile.Close()
	b.lockFile = nil

	if err != nil {
		return bisonerr.Wrap(bisonerr.IoError, err, "unlock directory %q", b.root)
	}

	if closeErr != nil {
		return bisonerr.Wrap(bisonerr.IoError, closeErr, "close lock file for %q", b.root)
	}

	return nil
}
