package ledger

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/curia-rag/curia/internal/errors"
)

// Mtime converts a modification time to the ledger's representation.
func Mtime(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

// Scan lists the regular, non-hidden files directly inside dir (no
// recursion) with their modification times. When keep is non-nil, only
// names it accepts are returned.
func Scan(dir string, keep func(name string) bool) (Snapshot, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.New(errors.ErrCodeFileNotFound, fmt.Sprintf("cannot read data directory %s", dir), err).
			WithDetail("path", dir).
			WithSuggestion("check data.data_path in the config or pass --data")
	}

	snap := make(Snapshot, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") || !entry.Type().IsRegular() {
			continue
		}
		if keep != nil && !keep(name) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			if os.IsNotExist(err) {
				continue
			}
			return nil, errors.New(errors.ErrCodeFileRead, fmt.Sprintf("cannot stat %s", name), err).WithDetail("file", name)
		}
		snap[name] = Mtime(info.ModTime())
	}
	return snap, nil
}
