// Package chunk splits extracted document text into overlapping word windows.
package chunk

import (
	"errors"
	"fmt"
)

// Window defaults, in words.
const (
	DefaultSize    = 512
	DefaultOverlap = 64
)

// ErrOverlapTooLarge marks a configuration whose windows would not advance
// on their own. It is reported as a warning; splitting still makes progress.
var ErrOverlapTooLarge = errors.New("chunk overlap is not smaller than chunk size")

// Options configures the word window.
type Options struct {
	// Size is the number of words per chunk.
	Size int `yaml:"chunk_size" json:"chunk_size"`
	// Overlap is the number of words shared by consecutive chunks.
	Overlap int `yaml:"overlap" json:"overlap"`
}

// DefaultOptions returns 512-word windows with 64 words of overlap.
func DefaultOptions() Options {
	return Options{Size: DefaultSize, Overlap: DefaultOverlap}
}

// Validate rejects negative values. A zero Size is allowed and means DefaultSize.
func (o Options) Validate() error {
	if o.Size < 0 {
		return fmt.Errorf("chunk_size must be non-negative, got %d", o.Size)
	}
	if o.Overlap < 0 {
		return fmt.Errorf("overlap must be non-negative, got %d", o.Overlap)
	}
	return nil
}

// Warning returns ErrOverlapTooLarge when Overlap >= Size, nil otherwise.
func (o Options) Warning() error {
	o = o.withDefaults()
	if o.Overlap >= o.Size {
		return fmt.Errorf("%w (chunk_size=%d, overlap=%d)", ErrOverlapTooLarge, o.Size, o.Overlap)
	}
	return nil
}

// Stride is how far each window starts after the previous one. Never below 1.
func (o Options) Stride() int {
	o = o.withDefaults()
	return max(1, o.Size-o.Overlap)
}

func (o Options) withDefaults() Options {
	if o.Size <= 0 {
		o.Size = DefaultSize
	}
	if o.Overlap < 0 {
		o.Overlap = 0
	}
	return o
}
