// Package index orchestrates incremental indexing and retrieval: it decides
// which documents changed, turns them into embedded chunks, keeps the vector
// store and the processed-files ledger consistent, and answers queries.
package index

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/curia-rag/curia/internal/chunk"
	"github.com/curia-rag/curia/internal/embed"
	"github.com/curia-rag/curia/internal/errors"
	"github.com/curia-rag/curia/internal/extract"
	"github.com/curia-rag/curia/internal/ledger"
	"github.com/curia-rag/curia/internal/llm"
	"github.com/curia-rag/curia/internal/store"
)

const (
	// DefaultBatchSize is the number of chunks embedded per provider call.
	DefaultBatchSize = 1

	// DefaultTopK is the number of chunks retrieved per query.
	DefaultTopK = 2
)

// Options tunes the manager.
type Options struct {
	Collection string
	BatchSize  int
	TopK       int

	// LedgerPath is used by Status and by builds that don't set one.
	LedgerPath string
}

// Dependencies contains the injected collaborators of a Manager.
type Dependencies struct {
	// Extractor reads documents (required for Build).
	Extractor Extractor

	// Chunker splits text. Defaults to 512/64 word windows.
	Chunker *chunk.Chunker

	// Embedder embeds chunks and queries (required).
	Embedder embed.Embedder

	// Store holds the records (required).
	Store store.VectorStore

	// LLM answers queries. May be nil for retrieve-only use.
	LLM llm.LLM

	// Logger is required; pass logging.Discard() to silence.
	Logger *slog.Logger

	// Progress receives build progress. Optional.
	Progress func(Progress)

	Options Options
}

// Manager runs builds and queries against one collection.
type Manager struct {
	extractor Extractor
	chunker   *chunk.Chunker
	embedder  embed.Embedder
	vectors   store.VectorStore
	llm       llm.LLM
	logger    *slog.Logger
	progress  func(Progress)
	opts      Options
}

// NewManager creates a Manager with injected dependencies.
func NewManager(deps Dependencies) (*Manager, error) {
	if deps.Embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("vector store is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	chunker := deps.Chunker
	if chunker == nil {
		chunker = chunk.New(chunk.DefaultOptions(), deps.Logger)
	}

	opts := deps.Options
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}

	progress := deps.Progress
	if progress == nil {
		progress = func(Progress) {}
	}

	return &Manager{
		extractor: deps.Extractor,
		chunker:   chunker,
		embedder:  deps.Embedder,
		vectors:   deps.Store,
		llm:       deps.LLM,
		logger:    deps.Logger,
		progress:  progress,
		opts:      opts,
	}, nil
}

// Build brings the vector store up to date with the documents in DataDir.
//
// Only files that are new or have a newer modification time than the ledger
// records are processed; a changed file's old records are removed before its
// new chunks are stored. The ledger is written last, after every file is
// stored and the store is persisted, so a failed build is retried in full
// by the next one.
func (m *Manager) Build(ctx context.Context, opts BuildOptions) (*BuildResult, error) {
	start := time.Now()
	runID := uuid.NewString()
	log := m.logger.With(slog.String("run_id", runID))

	if m.extractor == nil {
		return nil, errors.New(errors.ErrCodeDependencyMissing, "build requires an extractor", nil)
	}
	ledgerPath := opts.LedgerPath
	if ledgerPath == "" {
		ledgerPath = m.opts.LedgerPath
	}
	if ledgerPath == "" {
		return nil, errors.ValidationError("ledger path is required", nil)
	}

	lock, err := acquireBuildLock(filepath.Dir(ledgerPath), log)
	if err != nil {
		log.Warn("build_failed", slog.String("stage", StageLedger), slog.String("error", err.Error()))
		return nil, err
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			log.Warn("build_unlock_failed", slog.String("error", err.Error()))
		}
	}()

	log.Info("index_build_started",
		slog.String("data_dir", opts.DataDir),
		slog.String("ledger", ledgerPath),
		slog.Bool("restart", opts.Restart),
		slog.Int("batch_size", m.opts.BatchSize))

	fail := func(stage, file string, err error) (*BuildResult, error) {
		attrs := []any{slog.String("stage", stage), slog.String("file", file)}
		for _, a := range errors.LogAttrs(err) {
			attrs = append(attrs, a)
		}
		log.Error("build_failed", attrs...)
		return nil, err
	}

	previous := ledger.Ledger{}
	if !opts.Restart {
		if previous, err = ledger.Load(ledgerPath); err != nil {
			return fail(StageLedger, "", err)
		}
	}

	m.progress(Progress{Stage: StageScan, File: opts.DataDir})
	snapshot, err := ledger.Scan(opts.DataDir, m.extractor.Supports)
	if err != nil {
		return fail(StageScan, "", err)
	}
	delta := ledger.Detect(previous, snapshot)

	log.Info("index_delta_detected",
		slog.Int("scanned", len(snapshot)),
		slog.Int("recorded", len(previous)),
		slog.Int("changed", len(delta)))

	if len(delta) == 0 {
		m.progress(Progress{Stage: StageLoad})
		if err := m.vectors.Load(ctx); err != nil {
			return fail(StageLoad, "", err)
		}
		duration := time.Since(start)
		log.Info("index_build_complete",
			slog.Bool("reused", true),
			slog.Int("records", m.vectors.Count()),
			slog.Duration("duration", duration))
		return &BuildResult{
			RunID:    runID,
			Delta:    delta,
			Ledger:   previous,
			Reused:   true,
			Duration: duration,
		}, nil
	}

	var chunks []Chunk
	var skipped []string
	for i, name := range delta {
		if err := ctx.Err(); err != nil {
			return fail(StageExtract, name, err)
		}
		m.progress(Progress{Stage: StageExtract, File: name, Current: i + 1, Total: len(delta)})

		text, err := m.extractor.Extract(ctx, filepath.Join(opts.DataDir, name))
		if err != nil {
			if opts.SkipEmpty && stderrors.Is(err, extract.ErrNoExtractableText) {
				log.Warn("index_file_skipped",
					slog.String("file", name),
					slog.String("reason", "no extractable text"))
				skipped = append(skipped, name)
				if err := m.dropStale(ctx, log, name); err != nil {
					return fail(StageStore, name, err)
				}
				continue
			}
			return fail(StageExtract, name, err)
		}

		// The new version may have fewer chunks than the indexed one.
		if err := m.dropStale(ctx, log, name); err != nil {
			return fail(StageStore, name, err)
		}

		texts := m.chunker.Split(text)
		log.Info("index_file_chunked",
			slog.String("file", name),
			slog.Int("words", len(strings.Fields(text))),
			slog.Int("chunks", len(texts)))

		stored, err := m.storeChunks(ctx, log, texts, map[string]string{MetaSource: name}, m.opts.BatchSize)
		if err != nil {
			return fail(StageStore, name, err)
		}
		chunks = append(chunks, stored...)
	}

	m.progress(Progress{Stage: StagePersist})
	if err := m.vectors.Persist(ctx); err != nil {
		return fail(StagePersist, "", err)
	}

	updated := previous.Merge(snapshot)
	if err := updated.Save(ledgerPath); err != nil {
		return fail(StageLedger, "", err)
	}

	duration := time.Since(start)
	log.Info("index_build_complete",
		slog.Bool("reused", false),
		slog.Int("files", len(delta)-len(skipped)),
		slog.Int("skipped", len(skipped)),
		slog.Int("chunks", len(chunks)),
		slog.Int("records", m.vectors.Count()),
		slog.Duration("duration", duration))

	return &BuildResult{
		RunID:    runID,
		Delta:    delta,
		Skipped:  skipped,
		Chunks:   chunks,
		Ledger:   updated,
		Duration: duration,
	}, nil
}

// dropStale removes the records a previous build stored for name.
func (m *Manager) dropStale(ctx context.Context, log *slog.Logger, name string) error {
	n, err := m.vectors.DeleteBySource(ctx, name)
	if err != nil {
		return err
	}
	if n > 0 {
		log.Info("index_file_replaced", slog.String("file", name), slog.Int("old_chunks", n))
	}
	return nil
}

// Store embeds texts in batches and upserts them into the vector store.
// metadata must name the source document; each chunk gets a copy with its
// sequence number added and the id "<source>_chunk_<seq>".
func (m *Manager) Store(ctx context.Context, texts []string, metadata map[string]string, batchSize int) ([]Chunk, error) {
	return m.storeChunks(ctx, m.logger, texts, metadata, batchSize)
}

func (m *Manager) storeChunks(ctx context.Context, log *slog.Logger, texts []string, metadata map[string]string, batchSize int) ([]Chunk, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	source := metadata[MetaSource]
	if source == "" {
		return nil, errors.ValidationError("chunk metadata must include a source", nil)
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	out := make([]Chunk, 0, len(texts))
	for batchStart := 0; batchStart < len(texts); batchStart += batchSize {
		batch := texts[batchStart:min(batchStart+batchSize, len(texts))]
		m.progress(Progress{Stage: StageEmbed, File: source, Current: batchStart + len(batch), Total: len(texts)})

		vectors, err := m.embedder.EmbedBatch(ctx, batch)
		if err != nil {
			return nil, err
		}
		if len(vectors) != len(batch) {
			return nil, errors.ProviderError(
				fmt.Sprintf("embedder returned %d vectors for %d texts", len(vectors), len(batch)), nil)
		}

		records := make([]store.Record, len(batch))
		chunks := make([]Chunk, len(batch))
		for i, text := range batch {
			seq := batchStart + i
			meta := make(map[string]string, len(metadata)+1)
			for k, v := range metadata {
				meta[k] = v
			}
			meta[MetaSeq] = strconv.Itoa(seq)

			id := ChunkID(source, seq)
			records[i] = store.Record{ID: id, Vector: vectors[i], Text: text, Metadata: meta}
			chunks[i] = Chunk{ID: id, Text: text, Source: source, Seq: seq, Metadata: meta}
		}

		if err := m.vectors.Upsert(ctx, records); err != nil {
			return nil, err
		}
		out = append(out, chunks...)

		log.Debug("index_batch_stored",
			slog.String("file", source),
			slog.Int("batch_start", batchStart),
			slog.Int("batch_len", len(batch)))
	}
	return out, nil
}

// ChunkID names the seq-th chunk of source.
func ChunkID(source string, seq int) string {
	return fmt.Sprintf("%s_chunk_%d", source, seq)
}

// Retrieve returns the top-K chunks most similar to text, best first.
func (m *Manager) Retrieve(ctx context.Context, text string) ([]Result, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New(errors.ErrCodeQueryEmpty, "query is empty", nil)
	}

	start := time.Now()
	vec, err := m.embedder.Embed(ctx, text)
	if err != nil {
		m.logger.Error("retrieve_failed", slog.String("stage", StageEmbed), slog.String("error", err.Error()))
		return nil, err
	}

	hits, err := m.vectors.Search(ctx, vec, m.opts.TopK)
	if err != nil {
		m.logger.Error("retrieve_failed", slog.String("stage", "search"), slog.String("error", err.Error()))
		return nil, err
	}

	results := make([]Result, len(hits))
	for i, h := range hits {
		results[i] = Result{Chunk: chunkFromRecord(h.Record), Score: h.Score}
	}

	m.logger.Info("retrieve_complete",
		slog.Int("results", len(results)),
		slog.Int("top_k", m.opts.TopK),
		slog.Duration("duration", time.Since(start)))
	return results, nil
}

func chunkFromRecord(r store.Record) Chunk {
	seq, _ := strconv.Atoi(r.Metadata[MetaSeq])
	return Chunk{
		ID:       r.ID,
		Text:     r.Text,
		Source:   r.Metadata[MetaSource],
		Seq:      seq,
		Metadata: r.Metadata,
	}
}

// Query retrieves context for text and asks the language model to answer.
func (m *Manager) Query(ctx context.Context, text string) (*Answer, error) {
	return m.answer(ctx, text, nil)
}

// QueryStream is Query with the answer delivered token by token.
func (m *Manager) QueryStream(ctx context.Context, text string, onToken func(string)) (*Answer, error) {
	if onToken == nil {
		onToken = func(string) {}
	}
	return m.answer(ctx, text, onToken)
}

func (m *Manager) answer(ctx context.Context, text string, onToken func(string)) (*Answer, error) {
	if m.llm == nil {
		return nil, errors.New(errors.ErrCodeDependencyMissing, "no language model configured", nil).
			WithSuggestion("set models.llm_name in the config")
	}

	results, err := m.Retrieve(ctx, text)
	if err != nil {
		return nil, err
	}
	prompt := BuildPrompt(text, results)

	start := time.Now()
	var out string
	if onToken == nil {
		out, err = m.llm.Generate(ctx, prompt)
	} else {
		out, err = m.llm.Stream(ctx, prompt, func(tok string) error {
			onToken(tok)
			return nil
		})
	}
	if err != nil {
		m.logger.Error("query_failed",
			slog.String("stage", "generate"),
			slog.String("model", m.llm.ModelName()),
			slog.String("error", err.Error()))
		return nil, err
	}

	m.logger.Info("query_complete",
		slog.String("model", m.llm.ModelName()),
		slog.Int("sources", len(results)),
		slog.Bool("stream", onToken != nil),
		slog.Duration("duration", time.Since(start)))
	return &Answer{Text: out, Sources: results}, nil
}

// Status reports the collection size and ledger state.
func (m *Manager) Status(ctx context.Context) (*Status, error) {
	st := &Status{
		Collection: m.opts.Collection,
		Records:    m.vectors.Count(),
		LedgerPath: m.opts.LedgerPath,
		EmbedModel: m.embedder.ModelName(),
		TopK:       m.opts.TopK,
	}
	if m.llm != nil {
		st.LLMModel = m.llm.ModelName()
	}
	if m.opts.LedgerPath != "" {
		l, err := ledger.Load(m.opts.LedgerPath)
		if err != nil {
			return nil, err
		}
		st.LedgerFiles = len(l)
	}
	return st, nil
}
