package store

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/curia-rag/curia/internal/errors"
)

// DBFileName is the SQLite database inside the db directory.
const DBFileName = "curia.db"

// rebuildBatch bounds how many vectors are buffered while rebuilding the graph.
const rebuildBatch = 256

// Options configures a Collection.
type Options struct {
	// Dir is the db directory holding the database and graph files.
	Dir string

	// Name is the collection name; several collections can share one Dir.
	Name string

	Graph  GraphConfig
	Logger *slog.Logger
}

// Collection is the VectorStore used by curia: records are durable in SQLite
// and mirrored into an HNSW graph persisted as <name>.hnsw.
type Collection struct {
	mu     sync.RWMutex
	name   string
	dir    string
	db     *RecordDB
	graph  *Graph
	cfg    GraphConfig
	logger *slog.Logger

	loaded bool
	count  int
}

var _ VectorStore = (*Collection)(nil)

// Open opens the collection in opts.Dir. The graph is read lazily on first use.
func Open(opts Options) (*Collection, error) {
	if opts.Name == "" {
		return nil, errors.ValidationError("collection name is required", nil)
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}

	dbPath := ""
	if opts.Dir != "" {
		dbPath = filepath.Join(opts.Dir, DBFileName)
	}
	db, err := OpenRecordDB(dbPath)
	if err != nil {
		return nil, errors.New(errors.ErrCodeCorruptIndex, "cannot open record store", err).
			WithDetail("path", dbPath)
	}

	return &Collection{
		name:   opts.Name,
		dir:    opts.Dir,
		db:     db,
		graph:  NewGraph(opts.Graph),
		cfg:    opts.Graph,
		logger: opts.Logger,
	}, nil
}

// Name returns the collection name.
func (c *Collection) Name() string {
	return c.name
}

// GraphPath returns where Persist writes the graph, empty for in-memory collections.
func (c *Collection) GraphPath() string {
	if c.dir == "" {
		return ""
	}
	return filepath.Join(c.dir, c.name+".hnsw")
}

// Upsert writes records to SQLite in one transaction and then mirrors them into the graph.
func (c *Collection) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := c.ensureLoaded(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	dims := c.graph.Dimensions()
	if dims == 0 {
		dims = len(records[0].Vector)
	}
	ids := make([]string, len(records))
	vectors := make([][]float32, len(records))
	for i, r := range records {
		if len(r.Vector) != dims {
			return dimensionError(dims, len(r.Vector))
		}
		ids[i] = r.ID
		vectors[i] = r.Vector
	}

	if err := c.db.Upsert(ctx, c.name, records); err != nil {
		return errors.New(errors.ErrCodeStoreWrite, "failed to write records", err).
			WithDetail("collection", c.name)
	}
	if err := c.graph.Add(ids, vectors); err != nil {
		return err
	}
	return c.refreshCounters(ctx)
}

// DeleteBySource removes the records of one document from SQLite and the graph.
func (c *Collection) DeleteBySource(ctx context.Context, source string) (int, error) {
	if err := c.ensureLoaded(ctx); err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	ids, err := c.db.DeleteBySource(ctx, c.name, source)
	if err != nil {
		return 0, errors.New(errors.ErrCodeStoreWrite, "failed to delete records", err).
			WithDetail("collection", c.name).
			WithDetail("source", source)
	}
	if len(ids) == 0 {
		return 0, nil
	}
	c.graph.Delete(ids)
	if err := c.refreshCounters(ctx); err != nil {
		return 0, err
	}
	c.logger.Debug("store_source_deleted",
		slog.String("collection", c.name),
		slog.String("source", source),
		slog.Int("records", len(ids)))
	return len(ids), nil
}

// refreshCounters must be called with mu held after a write.
func (c *Collection) refreshCounters(ctx context.Context) error {
	n, err := c.db.Count(ctx, c.name)
	if err != nil {
		return errors.New(errors.ErrCodeStoreWrite, "failed to count records", err)
	}
	rev, err := c.db.Revision(ctx, c.name)
	if err != nil {
		return errors.New(errors.ErrCodeStoreWrite, "failed to read store revision", err)
	}
	c.count = n
	c.graph.SetRevision(rev)
	return nil
}

// Search returns the k nearest records to query, highest score first.
func (c *Collection) Search(ctx context.Context, query []float32, k int) ([]Hit, error) {
	if err := c.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	neighbors, err := c.graph.Search(query, k)
	if err != nil {
		return nil, err
	}
	if len(neighbors) == 0 {
		return []Hit{}, nil
	}

	ids := make([]string, len(neighbors))
	for i, n := range neighbors {
		ids[i] = n.ID
	}
	records, err := c.db.Get(ctx, c.name, ids)
	if err != nil {
		return nil, errors.New(errors.ErrCodeFileRead, "failed to read records", err)
	}

	hits := make([]Hit, 0, len(neighbors))
	for _, n := range neighbors {
		rec, ok := records[n.ID]
		if !ok {
			c.logger.Warn("store_record_missing",
				slog.String("collection", c.name),
				slog.String("id", n.ID))
			continue
		}
		hits = append(hits, Hit{Record: rec, Distance: n.Distance, Score: n.Score})
	}

	slices.SortStableFunc(hits, func(a, b Hit) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return 0
		}
	})
	return hits, nil
}

// Count returns the number of stored records.
func (c *Collection) Count() int {
	if err := c.ensureLoaded(context.Background()); err != nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.count
}

// Load reads the persisted graph. When the graph file is missing, unreadable,
// or was saved at another SQLite revision, the graph is rebuilt from the
// stored vectors.
func (c *Collection) Load(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.load(ctx)
}

func (c *Collection) ensureLoaded(ctx context.Context) error {
	c.mu.RLock()
	loaded := c.loaded
	c.mu.RUnlock()
	if loaded {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loaded {
		return nil
	}
	return c.load(ctx)
}

func (c *Collection) load(ctx context.Context) error {
	count, err := c.db.Count(ctx, c.name)
	if err != nil {
		return errors.New(errors.ErrCodeCorruptIndex, "cannot read record store", err)
	}
	revision, err := c.db.Revision(ctx, c.name)
	if err != nil {
		return errors.New(errors.ErrCodeCorruptIndex, "cannot read record store", err)
	}

	path := c.GraphPath()
	if path != "" {
		if _, statErr := os.Stat(path); statErr == nil {
			graph := NewGraph(c.cfg)
			loadErr := graph.Load(path)
			switch {
			case loadErr != nil:
				c.logger.Warn("store_graph_unreadable",
					slog.String("path", path),
					slog.String("error", loadErr.Error()))
			case graph.Len() != count || graph.Revision() != revision:
				c.logger.Warn("store_graph_stale",
					slog.String("path", path),
					slog.Int("graph", graph.Len()),
					slog.Int("records", count),
					slog.Int64("graph_revision", graph.Revision()),
					slog.Int64("revision", revision))
			default:
				c.swapGraph(graph)
				c.count = count
				c.loaded = true
				c.logger.Debug("store_graph_loaded",
					slog.String("collection", c.name),
					slog.Int("records", count))
				return nil
			}
			_ = graph.Close()
		}
	}

	graph, err := c.rebuild(ctx)
	if err != nil {
		return errors.New(errors.ErrCodeCorruptIndex, "cannot rebuild vector graph", err).
			WithDetail("collection", c.name)
	}
	graph.SetRevision(revision)
	c.swapGraph(graph)
	c.count = count
	c.loaded = true
	if count > 0 {
		c.logger.Info("store_graph_rebuilt",
			slog.String("collection", c.name),
			slog.Int("records", count))
	}
	return nil
}

func (c *Collection) rebuild(ctx context.Context) (*Graph, error) {
	cfg := c.cfg
	dims, err := c.db.Dimensions(ctx, c.name)
	if err != nil {
		return nil, err
	}
	cfg.Dimensions = dims
	graph := NewGraph(cfg)

	ids := make([]string, 0, rebuildBatch)
	vectors := make([][]float32, 0, rebuildBatch)
	flush := func() error {
		if err := graph.Add(ids, vectors); err != nil {
			return err
		}
		ids, vectors = ids[:0], vectors[:0]
		return nil
	}

	err = c.db.Each(ctx, c.name, func(r Record) error {
		ids = append(ids, r.ID)
		vectors = append(vectors, r.Vector)
		if len(ids) == rebuildBatch {
			return flush()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return graph, nil
}

func (c *Collection) swapGraph(g *Graph) {
	if c.graph != nil {
		_ = c.graph.Close()
	}
	c.graph = g
}

// Persist saves the graph next to the database and checkpoints the WAL.
func (c *Collection) Persist(ctx context.Context) error {
	if err := c.ensureLoaded(ctx); err != nil {
		return err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if path := c.GraphPath(); path != "" {
		if err := c.graph.Save(path); err != nil {
			return errors.New(errors.ErrCodeStoreWrite, "failed to persist vector graph", err).
				WithDetail("path", path)
		}
	}
	if err := c.db.Checkpoint(ctx); err != nil {
		return errors.New(errors.ErrCodeStoreWrite, "failed to checkpoint record store", err)
	}
	return nil
}

// Close releases the graph and the database.
func (c *Collection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.graph != nil {
		_ = c.graph.Close()
	}
	if err := c.db.Close(); err != nil {
		return fmt.Errorf("close record store: %w", err)
	}
	return nil
}
