package store

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/coder/hnsw"
	"github.com/google/renameio"
)

// Graph is an in-memory HNSW index over string IDs, backed by coder/hnsw.
type Graph struct {
	mu     sync.RWMutex
	graph  *hnsw.Graph[uint64]
	config GraphConfig

	// ID mapping (string <-> uint64)
	idMap   map[string]uint64
	keyMap  map[uint64]string
	nextKey uint64

	// revision is the record store revision the graph mirrors.
	revision int64

	closed bool
}

// Neighbor is a graph search result.
type Neighbor struct {
	ID       string
	Distance float32
	Score    float32
}

// graphMetadata stores ID mappings for persistence. GraphSum is the sha256
// of the graph file it was written with, so a graph and a .meta from
// different saves are never paired.
type graphMetadata struct {
	IDMap    map[string]uint64
	NextKey  uint64
	Config   GraphConfig
	Revision int64
	GraphSum string
}

// NewGraph creates an empty cosine-distance graph.
func NewGraph(cfg GraphConfig) *Graph {
	defaults := DefaultGraphConfig()
	if cfg.M == 0 {
		cfg.M = defaults.M
	}
	if cfg.EfSearch == 0 {
		cfg.EfSearch = defaults.EfSearch
	}

	return &Graph{
		graph:  newHNSW(cfg),
		config: cfg,
		idMap:  make(map[string]uint64),
		keyMap: make(map[uint64]string),
	}
}

func newHNSW(cfg GraphConfig) *hnsw.Graph[uint64] {
	g := hnsw.NewGraph[uint64]()
	g.Distance = hnsw.CosineDistance
	g.M = cfg.M
	g.EfSearch = cfg.EfSearch
	g.Ml = 0.25
	return g
}

// Dimensions returns the vector length, or 0 before the first insert.
func (g *Graph) Dimensions() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.config.Dimensions
}

// Revision returns the record store revision last recorded with SetRevision or Load.
func (g *Graph) Revision() int64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.revision
}

// SetRevision records which record store revision the graph now mirrors.
func (g *Graph) SetRevision(rev int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.revision = rev
}

// Add inserts vectors with their IDs. An existing ID is replaced.
func (g *Graph) Add(ids []string, vectors [][]float32) error {
	if len(ids) == 0 {
		return nil
	}
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch: %d vs %d", len(ids), len(vectors))
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return fmt.Errorf("graph is closed")
	}

	dims := g.config.Dimensions
	if dims == 0 {
		dims = len(vectors[0])
	}
	for _, v := range vectors {
		if len(v) != dims {
			return dimensionError(dims, len(v))
		}
	}
	g.config.Dimensions = dims

	for i, id := range ids {
		// Replaced nodes stay in the graph as orphans; coder/hnsw misbehaves
		// when the last node is deleted.
		if existingKey, exists := g.idMap[id]; exists {
			delete(g.keyMap, existingKey)
			delete(g.idMap, id)
		}

		key := g.nextKey
		g.nextKey++

		vec := make([]float32, len(vectors[i]))
		copy(vec, vectors[i])
		normalizeVectorInPlace(vec)

		g.graph.Add(hnsw.MakeNode(key, vec))
		g.idMap[id] = key
		g.keyMap[key] = id
	}

	return nil
}

// Search finds the k nearest live vectors to query.
func (g *Graph) Search(query []float32, k int) ([]Neighbor, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.closed {
		return nil, fmt.Errorf("graph is closed")
	}
	if k <= 0 || len(g.idMap) == 0 {
		return []Neighbor{}, nil
	}
	if len(query) != g.config.Dimensions {
		return nil, dimensionError(g.config.Dimensions, len(query))
	}

	normalized := make([]float32, len(query))
	copy(normalized, query)
	normalizeVectorInPlace(normalized)

	// Orphans can occupy result slots, so widen the search by their number.
	want := min(k+g.graph.Len()-len(g.idMap), g.graph.Len())
	nodes := g.graph.Search(normalized, want)

	results := make([]Neighbor, 0, k)
	for _, node := range nodes {
		id, exists := g.keyMap[node.Key]
		if !exists {
			continue
		}
		distance := g.graph.Distance(normalized, node.Value)
		results = append(results, Neighbor{
			ID:       id,
			Distance: distance,
			Score:    distanceToScore(distance),
		})
		if len(results) == k {
			break
		}
	}

	return results, nil
}

// Delete removes vectors by ID (lazily).
func (g *Graph) Delete(ids []string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, id := range ids {
		if key, exists := g.idMap[id]; exists {
			delete(g.keyMap, key)
			delete(g.idMap, id)
		}
	}
}

// Contains checks if ID exists.
func (g *Graph) Contains(id string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, exists := g.idMap[id]
	return exists
}

// Len returns the number of live vectors.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.idMap)
}

// GraphStats counts live and orphaned nodes.
type GraphStats struct {
	ValidIDs   int
	GraphNodes int
	Orphans    int
}

// Stats returns node counts including lazily deleted nodes.
func (g *Graph) Stats() GraphStats {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.closed {
		return GraphStats{}
	}
	nodes := g.graph.Len()
	return GraphStats{
		ValidIDs:   len(g.idMap),
		GraphNodes: nodes,
		Orphans:    nodes - len(g.idMap),
	}
}

// Save writes the graph to path and the ID mappings to path+".meta", each
// through a temp file and rename. The .meta is replaced last and carries the
// graph file's checksum, so a crash between the two renames is detected by
// Load.
func (g *Graph) Save(path string) error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.closed {
		return fmt.Errorf("graph is closed")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	pending, err := renameio.TempFile(dir, path)
	if err != nil {
		return fmt.Errorf("failed to create index file: %w", err)
	}
	defer func() { _ = pending.Cleanup() }()

	sum := sha256.New()
	w := bufio.NewWriter(io.MultiWriter(pending, sum))
	if err := g.graph.Export(w); err != nil {
		return fmt.Errorf("failed to export graph: %w", err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to write index file: %w", err)
	}

	var meta bytes.Buffer
	if err := gob.NewEncoder(&meta).Encode(graphMetadata{
		IDMap:    g.idMap,
		NextKey:  g.nextKey,
		Config:   g.config,
		Revision: g.revision,
		GraphSum: hex.EncodeToString(sum.Sum(nil)),
	}); err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("failed to replace index file: %w", err)
	}
	if err := renameio.WriteFile(path+".meta", meta.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to save metadata: %w", err)
	}
	return nil
}

// Load replaces the graph contents with the files written by Save.
func (g *Graph) Load(path string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return fmt.Errorf("graph is closed")
	}

	meta, err := readGraphMetadata(path + ".meta")
	if err != nil {
		return fmt.Errorf("failed to load metadata: %w", err)
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open index file: %w", err)
	}
	defer func() { _ = file.Close() }()

	sum := sha256.New()
	src := io.TeeReader(file, sum)
	graph := newHNSW(meta.Config)
	// coder/hnsw Import requires an io.ByteReader
	if err := graph.Import(bufio.NewReader(src)); err != nil {
		return fmt.Errorf("failed to import graph: %w", err)
	}
	if _, err := io.Copy(io.Discard, src); err != nil {
		return fmt.Errorf("failed to read index file: %w", err)
	}
	if got := hex.EncodeToString(sum.Sum(nil)); got != meta.GraphSum {
		return fmt.Errorf("index file does not match its metadata (checksum %s, want %s)", got, meta.GraphSum)
	}

	g.graph = graph
	g.config = meta.Config
	g.idMap = meta.IDMap
	g.nextKey = meta.NextKey
	g.revision = meta.Revision
	g.keyMap = make(map[uint64]string, len(meta.IDMap))
	for id, key := range g.idMap {
		g.keyMap[key] = id
	}
	return nil
}

func readGraphMetadata(path string) (graphMetadata, error) {
	var meta graphMetadata

	file, err := os.Open(path)
	if err != nil {
		return meta, fmt.Errorf("open metadata file: %w", err)
	}
	defer func() { _ = file.Close() }()

	if err := gob.NewDecoder(file).Decode(&meta); err != nil {
		return meta, fmt.Errorf("decode graph metadata: %w", err)
	}
	if meta.IDMap == nil {
		meta.IDMap = make(map[string]uint64)
	}
	return meta, nil
}

// Close releases the graph.
func (g *Graph) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.closed = true
	g.graph = nil
	return nil
}

func normalizeVectorInPlace(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	invMagnitude := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= invMagnitude
	}
}

// distanceToScore maps cosine distance (0-2) onto a 0-1 similarity.
func distanceToScore(distance float32) float32 {
	return 1.0 - distance/2.0
}
