// Package ledger records which source files have been indexed, keyed by
// filename and modification time, and computes the delta for the next build.
//
// The ledger is the only state consulted to decide whether a file needs
// indexing. Content is never hashed: a file rewritten without its mtime
// moving is not picked up. Files removed from the data directory keep their
// entries, and their chunks stay searchable until the index is rebuilt.
package ledger

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/renameio"

	"github.com/curia-rag/curia/internal/errors"
)

// FileName is the ledger's file name inside the database directory.
const FileName = "processed.json"

// Ledger maps a filename to the modification time (Unix seconds, fractional)
// it had when it was last indexed.
type Ledger map[string]float64

// Snapshot maps a filename to its current modification time, as returned by Scan.
type Snapshot map[string]float64

// Path returns the ledger location for a database directory.
func Path(dbDir string) string {
	return filepath.Join(dbDir, FileName)
}

// Load reads the ledger at path. A missing file is an empty ledger.
func Load(path string) (Ledger, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return Ledger{}, nil
		}
		return nil, errors.New(errors.ErrCodeFileRead, "failed to read ledger", err).WithDetail("path", path)
	}

	l := Ledger{}
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, errors.New(errors.ErrCodeCorruptIndex, "ledger is not valid JSON", err).
			WithDetail("path", path).
			WithSuggestion("rebuild with `curia index --restart`")
	}
	return l, nil
}

// Save writes the ledger to path atomically: a temp file in the same
// directory is synced and renamed over the old ledger, so a crash leaves
// either the previous ledger or the new one.
func (l Ledger) Save(path string) error {
	data, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return errors.New(errors.ErrCodeLedgerWrite, "failed to encode ledger", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.New(errors.ErrCodeLedgerWrite, "failed to create ledger directory", err).WithDetail("path", dir)
	}

	pending, err := renameio.TempFile(dir, path)
	if err != nil {
		return errors.New(errors.ErrCodeLedgerWrite, "failed to create temp ledger", err).WithDetail("path", path)
	}
	defer func() { _ = pending.Cleanup() }()

	if _, err := pending.Write(data); err != nil {
		return errors.New(errors.ErrCodeLedgerWrite, "failed to write temp ledger", err).WithDetail("path", pending.Name())
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return errors.New(errors.ErrCodeLedgerWrite, "failed to replace ledger", err).WithDetail("path", path)
	}
	return nil
}

// Merge returns a copy of l with every entry of current applied.
// Entries for files no longer present are kept.
func (l Ledger) Merge(current Snapshot) Ledger {
	out := make(Ledger, len(l)+len(current))
	for name, mtime := range l {
		out[name] = mtime
	}
	for name, mtime := range current {
		out[name] = mtime
	}
	return out
}

// Detect returns, sorted by name, the files in current that are absent from
// l or whose modification time is strictly newer than the recorded one.
func Detect(l Ledger, current Snapshot) []string {
	delta := make([]string, 0)
	for name, mtime := range current {
		recorded, seen := l[name]
		if !seen || mtime > recorded {
			delta = append(delta, name)
		}
	}
	sort.Strings(delta)
	return delta
}

// String summarizes the ledger for logs.
func (l Ledger) String() string {
	return fmt.Sprintf("ledger(%d files)", len(l))
}
