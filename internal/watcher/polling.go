package watcher

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// poller detects changes by listing the directory on an interval.
// Used when fsnotify is not available or not wanted.
type poller struct {
	dir      string
	interval time.Duration
	accept   func(name string) bool
	emit     func(FileEvent)
	state    map[string]fileSnapshot
}

type fileSnapshot struct {
	modTime time.Time
	size    int64
}

func newPoller(dir string, interval time.Duration, accept func(string) bool, emit func(FileEvent)) *poller {
	return &poller{
		dir:      dir,
		interval: interval,
		accept:   accept,
		emit:     emit,
		state:    make(map[string]fileSnapshot),
	}
}

// snapshot records the baseline without emitting events.
func (p *poller) snapshot() error {
	current, err := p.list()
	if err != nil {
		return fmt.Errorf("perform initial scan: %w", err)
	}
	p.state = current
	return nil
}

// detect compares the directory against the last listing and emits the differences.
func (p *poller) detect() error {
	current, err := p.list()
	if err != nil {
		return fmt.Errorf("list directory for changes: %w", err)
	}

	now := time.Now()
	for name, snap := range current {
		prev, ok := p.state[name]
		switch {
		case !ok:
			p.emit(FileEvent{Path: name, Operation: OpCreate, Timestamp: now})
		case !prev.modTime.Equal(snap.modTime) || prev.size != snap.size:
			p.emit(FileEvent{Path: name, Operation: OpModify, Timestamp: now})
		}
	}
	for name := range p.state {
		if _, ok := current[name]; !ok {
			p.emit(FileEvent{Path: name, Operation: OpDelete, Timestamp: now})
		}
	}

	p.state = current
	return nil
}

func (p *poller) list() (map[string]fileSnapshot, error) {
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		return nil, err
	}

	out := make(map[string]fileSnapshot, len(entries))
	for _, e := range entries {
		if e.IsDir() || !p.accept(e.Name()) {
			continue
		}
		info, err := os.Stat(filepath.Join(p.dir, e.Name()))
		if err != nil {
			continue
		}
		out[e.Name()] = fileSnapshot{modTime: info.ModTime(), size: info.Size()}
	}
	return out, nil
}
