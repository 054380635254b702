package chunk

import (
	"log/slog"
	"strings"
)

// Chunker splits text with a fixed set of Options.
type Chunker struct {
	opts Options
}

// New returns a Chunker for opts. A configuration whose overlap swallows the
// whole window is logged once as a warning and otherwise accepted.
func New(opts Options, logger *slog.Logger) *Chunker {
	opts = opts.withDefaults()
	if warn := opts.Warning(); warn != nil && logger != nil {
		logger.Warn("chunk_config_suspicious",
			slog.Int("chunk_size", opts.Size),
			slog.Int("overlap", opts.Overlap),
			slog.Int("effective_stride", opts.Stride()),
			slog.String("reason", warn.Error()))
	}
	return &Chunker{opts: opts}
}

// Options returns the effective options.
func (c *Chunker) Options() Options {
	return c.opts
}

// Split splits text into chunks using the chunker's options.
func (c *Chunker) Split(text string) []string {
	return Split(text, c.opts.Size, c.opts.Overlap)
}

// Split cuts text into windows of size words, consecutive windows sharing
// overlap words. A new window is not started once fewer than overlap words
// remain after its start, so the last window always ends at the final word and
// no near-duplicate tail chunk is produced. Text of size words or fewer yields
// exactly one chunk; blank text yields none.
func Split(text string, size, overlap int) []string {
	words := strings.Fields(text)
	n := len(words)
	if n == 0 {
		return nil
	}

	opts := Options{Size: size, Overlap: overlap}.withDefaults()
	if n <= opts.Size {
		return []string{strings.Join(words, " ")}
	}

	stride := opts.Stride()
	chunks := make([]string, 0, n/stride+1)
	end := 0
	for start := 0; start == 0 || start < n-opts.Overlap; start += stride {
		end = min(start+opts.Size, n)
		chunks = append(chunks, strings.Join(words[start:end], " "))
	}

	// Only reachable when overlap >= size: the stride-1 walk stops before the
	// tail, so close with the last full window.
	if end < n {
		chunks = append(chunks, strings.Join(words[n-opts.Size:], " "))
	}
	return chunks
}
