// Package engine implements the facade (spec §4.7) composing the storage
// backend, the collection store, the query and update interpreters, and
// the result cache into the public verbs listed in spec §6.
package engine

import (
	"context"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/bisondb/bison/internal/bisonerr"
	"github.com/bisondb/bison/internal/cache"
	"github.com/bisondb/bison/internal/document"
	"github.com/bisondb/bison/internal/logging"
	"github.com/bisondb/bison/internal/query"
	"github.com/bisondb/bison/internal/storage"
	"github.com/bisondb/bison/internal/store"
	"github.com/bisondb/bison/internal/update"
)

// Engine is the public entry point: open one against a root directory and
// call its verbs. Every exported method is safe to call concurrently — the
// source system has no concurrency model of its own (spec §5), so Engine
// wraps every verb in a single mutex rather than leaving callers to
// synchronize it themselves.
type Engine struct {
	mu sync.Mutex

	backend *storage.Backend
	store   *store.Store
	cache   *cache.Cache

	log    *slog.Logger
	tracer trace.Tracer

	// cacheEnabled is a debugging knob (internal/config's CacheEnabled):
	// spec §4.6 assumes the result cache is always present, so disabling
	// it doesn't bypass reads — it just clears the cache wholesale after
	// every Write/WriteAll instead of leaving stale-but-invalidated
	// entries for other collections sitting around between writes.
	cacheEnabled bool

	verbCalls *prometheus.CounterVec
}

// Option configures Open.
type Option func(*Engine)

// WithLogger sets the logger every verb logs through. The default is
// slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithTracer sets the OpenTelemetry tracer spans are recorded against. The
// default is otel.Tracer("github.com/bisondb/bison").
func WithTracer(tracer trace.Tracer) Option {
	return func(e *Engine) { e.tracer = tracer }
}

// WithCacheEnabled sets the cache-enabled debugging knob (default true).
// See the cacheEnabled field comment.
func WithCacheEnabled(enabled bool) Option {
	return func(e *Engine) { e.cacheEnabled = enabled }
}

// Open opens (or creates, on first write) a database rooted at root,
// optionally seeded from sourceDocument (spec §6 constructor). It acquires
// exclusive ownership of root for the Engine's lifetime; call Close to
// release it.
func Open(root string, sourceDocument string, opts ...Option) (*Engine, error) {
	e := &Engine{
		log:          slog.Default(),
		tracer:       otel.Tracer("github.com/bisondb/bison"),
		cache:        cache.New(),
		cacheEnabled: true,
		verbCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bison",
			Name:      "verb_calls_total",
			Help:      "Number of engine verb invocations by verb and outcome.",
		}, []string{"verb", "outcome"}),
	}

	for _, opt := range opts {
		opt(e)
	}

	backend, docs, err := storage.Open(root, sourceDocument, e.log)
	if err != nil {
		return nil, err
	}

	e.backend = backend
	e.store = store.New(docs)

	return e, nil
}

// Close releases the Engine's hold on its root directory. It does not
// flush pending changes; call WriteAll first if that's wanted.
func (e *Engine) Close() error {
	return e.backend.Close()
}

func (e *Engine) span(ctx context.Context, verb string) (context.Context, trace.Span) {
	return e.tracer.Start(ctx, "bison."+verb, trace.WithAttributes(attribute.String("bison.verb", verb)))
}

func (e *Engine) finish(span trace.Span, verb string, err error) {
	outcome := "ok"

	if err != nil {
		outcome = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	e.verbCalls.WithLabelValues(verb, outcome).Inc()
	span.End()
}

// Collections returns every collection name, in creation order.
func (e *Engine) Collections(ctx context.Context) []string {
	_, span := e.span(ctx, "collections")

	e.mu.Lock()
	defer e.mu.Unlock()

	names := e.store.Collections()

	e.finish(span, "collections", nil)

	return names
}

// CreateCollection idempotently creates collection name.
func (e *Engine) CreateCollection(ctx context.Context, name string) {
	_, span := e.span(ctx, "create_collection")

	e.mu.Lock()
	defer e.mu.Unlock()

	e.store.CreateCollection(name)

	e.finish(span, "create_collection", nil)
}

// DropCollection removes collection name from the store and deletes its
// backing file, clearing any cache entries for it.
func (e *Engine) DropCollection(ctx context.Context, name string) error {
	_, span := e.span(ctx, "drop_collection")

	e.mu.Lock()
	defer e.mu.Unlock()

	e.store.DropCollection(name)
	e.cache.InvalidateCollection(name)

	err := e.backend.Drop(name)
	e.finish(span, "drop_collection", err)

	return err
}

// DropAll empties the store and deletes every file under root.
func (e *Engine) DropAll(ctx context.Context) error {
	_, span := e.span(ctx, "drop_all")

	e.mu.Lock()
	defer e.mu.Unlock()

	err := e.backend.DropAll()
	e.store.DropAll()
	e.cache.Clear()

	e.finish(span, "drop_all", err)

	return err
}

// Insert appends doc to collection name, creating it if absent.
func (e *Engine) Insert(ctx context.Context, name string, doc *document.Object) {
	e.InsertMany(ctx, name, []*document.Object{doc})
}

// InsertMany appends docs, in order, to collection name, creating it if
// absent.
func (e *Engine) InsertMany(ctx context.Context, name string, docs []*document.Object) {
	_, span := e.span(ctx, "insert_many")
	span.SetAttributes(attribute.Int("bison.document_count", len(docs)))

	e.mu.Lock()
	defer e.mu.Unlock()

	e.store.InsertMany(name, docs)
	e.cache.InvalidateCollection(name)

	e.finish(span, "insert_many", nil)
}

// InsertManyFromDocument loads a JSON array of documents from path and
// inserts them into collection name, in file order.
func (e *Engine) InsertManyFromDocument(ctx context.Context, name string, path string) error {
	_, span := e.span(ctx, "insert_many_from_document")

	data, err := readFile(path)
	if err != nil {
		e.finish(span, "insert_many_from_document", err)
		return err
	}

	arr, err := document.UnmarshalArray(data)
	if err != nil {
		err = bisonerr.Wrap(bisonerr.ParseError, err, "parse %q", path)
		e.finish(span, "insert_many_from_document", err)

		return err
	}

	docs := make([]*document.Object, 0, arr.Len())

	arr.Range(func(_ int, v document.Value) bool {
		if obj, ok := v.(*document.Object); ok {
			docs = append(docs, obj)
		}

		return true
	})

	e.mu.Lock()
	e.store.InsertMany(name, docs)
	e.cache.InvalidateCollection(name)
	e.mu.Unlock()

	e.finish(span, "insert_many_from_document", nil)

	return nil
}

// Find evaluates filter against collection name and returns the matching
// documents, in insertion order, deep-copied so callers can mutate them
// freely without affecting engine state (spec §5's deep-copy policy,
// applied consistently to Find and Update). A nil filter matches every
// document.
func (e *Engine) Find(ctx context.Context, name string, filter *document.Object) ([]*document.Object, error) {
	_, span := e.span(ctx, "find")

	e.mu.Lock()
	defer e.mu.Unlock()

	if filter == nil {
		filter = document.NewObject(0)
	}

	if cached, ok := e.cache.Get(name, filter); ok {
		e.finish(span, "find", nil)
		return deepCopyAll(cached), nil
	}

	docs, err := e.store.Documents(name)
	if err != nil {
		e.finish(span, "find", err)
		return nil, err
	}

	result, err := query.Find(docs, filter)
	if err != nil {
		e.finish(span, "find", err)
		return nil, err
	}

	e.cache.Put(name, filter, result)
	e.finish(span, "find", nil)

	return deepCopyAll(result), nil
}

// UpdateResult is the value returned by Update: the documents that were
// actually mutated, and — when requested — the full post-update
// collection snapshot (spec §4.5's return_result flag).
type UpdateResult struct {
	Mutated  []*document.Object
	Snapshot []*document.Object
}

// Update applies expr to every document in collection name matching
// filter (every document, if filter is nil), returning the documents that
// were actually changed and, if returnSnapshot is set, the full
// collection afterward. The collection is marked dirty and its cache
// entries invalidated regardless of whether anything matched (spec
// §4.5's "side effects").
func (e *Engine) Update(
	ctx context.Context,
	name string,
	expr *document.Object,
	filter *document.Object,
	returnSnapshot bool,
) (*UpdateResult, error) {
	_, span := e.span(ctx, "update")

	e.mu.Lock()
	defer e.mu.Unlock()

	docs, err := e.store.Documents(name)
	if err != nil {
		e.finish(span, "update", err)
		return nil, err
	}

	if filter != nil {
		if err := query.Validate(filter); err != nil {
			e.finish(span, "update", err)
			return nil, err
		}
	}

	matchFn := func(doc *document.Object) bool {
		if filter == nil {
			return true
		}

		return query.Match(doc, filter)
	}

	// Apply to copies first, so an update that fails part-way (e.g. $inc on
	// a non-numeric leaf of a later document) returns its error with the
	// collection and the cache untouched.
	if _, err := update.ApplyAll(deepCopyAll(docs), expr, matchFn); err != nil {
		e.finish(span, "update", err)
		return nil, err
	}

	mutated, err := update.ApplyAll(docs, expr, matchFn)
	if err != nil {
		e.finish(span, "update", err)
		return nil, err
	}

	e.store.MarkDirty(name)
	e.cache.InvalidateCollection(name)

	result := &UpdateResult{Mutated: deepCopyAll(mutated)}
	if returnSnapshot {
		result.Snapshot = deepCopyAll(docs)
	}

	e.finish(span, "update", nil)

	return result, nil
}

// Write persists one collection to disk and clears its dirty flag.
func (e *Engine) Write(ctx context.Context, name string) error {
	_, span := e.span(ctx, "write")

	e.mu.Lock()
	defer e.mu.Unlock()

	docs, err := e.store.Documents(name)
	if err != nil {
		e.finish(span, "write", err)
		return err
	}

	if err := e.backend.Flush(name, docs); err != nil {
		e.finish(span, "write", err)
		return err
	}

	e.store.ClearDirty(name)

	if !e.cacheEnabled {
		e.cache.Clear()
	}

	e.finish(span, "write", nil)

	return nil
}

// WriteAll persists every dirty collection, leaving dirty flags set for
// any that fail so a retry can pick up where it left off (spec §4.2
// "flush errors... leave the dirty flag set").
func (e *Engine) WriteAll(ctx context.Context) error {
	_, span := e.span(ctx, "write_all")

	e.mu.Lock()
	defer e.mu.Unlock()

	var firstErr error

	for _, name := range e.store.DirtyCollections() {
		docs, err := e.store.Documents(name)
		if err != nil {
			continue
		}

		if err := e.backend.Flush(name, docs); err != nil {
			if firstErr == nil {
				firstErr = err
			}

			continue
		}

		e.store.ClearDirty(name)
	}

	if !e.cacheEnabled {
		e.cache.Clear()
	}

	e.finish(span, "write_all", firstErr)

	return firstErr
}

// RecentLogs returns the records retained by the logger's recent-records
// buffer, oldest first, and false if the Engine wasn't opened with a logger
// built via logging.NewHandler's RecentEntriesSize option.
func (e *Engine) RecentLogs() ([]slog.Record, bool) {
	return logging.Recent(e.log.Handler())
}

// ClearCache empties the result cache wholesale.
func (e *Engine) ClearCache(ctx context.Context) {
	_, span := e.span(ctx, "clear_cache")

	e.mu.Lock()
	defer e.mu.Unlock()

	e.cache.Clear()

	e.finish(span, "clear_cache", nil)
}

func deepCopyAll(docs []*document.Object) []*document.Object {
	out := make([]*document.Object, len(docs))
	for i, d := range docs {
		out[i] = d.DeepCopy()
	}

	return out
}
