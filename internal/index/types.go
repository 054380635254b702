package index

import (
	"context"
	"time"

	"github.com/curia-rag/curia/internal/ledger"
	"github.com/curia-rag/curia/internal/store"
)

// Metadata keys attached to every stored chunk.
const (
	MetaSource = store.SourceKey
	MetaSeq    = "seq"
)

// Chunk is a piece of a document as stored in the vector index.
type Chunk struct {
	ID       string
	Text     string
	Source   string
	Seq      int
	Metadata map[string]string
}

// Result is a retrieved chunk with its similarity to the query.
type Result struct {
	Chunk
	Score float32
}

// Answer is a generated response and the chunks it was grounded on.
type Answer struct {
	Text    string
	Sources []Result
}

// BuildOptions configures one incremental build.
type BuildOptions struct {
	// DataDir is the directory scanned for documents (not recursive).
	DataDir string

	// LedgerPath is the processed-files ledger. Defaults to Options.LedgerPath.
	// The build lock lives in the same directory.
	LedgerPath string

	// Restart ignores the persisted ledger and reprocesses every document.
	Restart bool

	// SkipEmpty logs and skips documents with no extractable text instead of
	// failing the build.
	SkipEmpty bool
}

// BuildResult describes a finished build.
type BuildResult struct {
	RunID string

	// Delta is the sorted list of files that were (re)processed.
	Delta []string

	// Skipped lists delta files without extractable text (SkipEmpty only).
	Skipped []string

	Chunks []Chunk

	// Ledger is the ledger in effect after the build.
	Ledger ledger.Ledger

	// Reused is true when nothing changed and the persisted index was loaded as-is.
	Reused bool

	Duration time.Duration
}

// Status summarizes the index for `curia status` and the MCP index_status tool.
type Status struct {
	Collection  string `json:"collection"`
	Records     int    `json:"records"`
	LedgerFiles int    `json:"ledger_files"`
	LedgerPath  string `json:"ledger_path"`
	EmbedModel  string `json:"embed_model"`
	LLMModel    string `json:"llm_model,omitempty"`
	TopK        int    `json:"top_k"`
}

// Extractor turns a document into normalized text.
type Extractor interface {
	Extract(ctx context.Context, path string) (string, error)
	Supports(path string) bool
}

// Progress is reported at each step of a build.
type Progress struct {
	Stage   string
	File    string
	Current int
	Total   int
}

// Build stages, used in progress events and failure logs.
const (
	StageLedger  = "ledger"
	StageScan    = "scan"
	StageExtract = "extract"
	StageChunk   = "chunk"
	StageEmbed   = "embed"
	StageStore   = "store"
	StagePersist = "persist"
	StageLoad    = "load"
)
