package ui

import (
	"sync"
	"time"
)

// etaSmoothing is the weight of the newest ETA estimate.
const etaSmoothing = 0.3

// ProgressTracker holds build progress for the TUI. It is safe for concurrent use.
type ProgressTracker struct {
	mu          sync.Mutex
	stage       Stage
	current     int
	total       int
	currentFile string
	files       map[string]struct{}
	stageStart  time.Time
	lastETA     time.Duration
	errors      int
	warnings    int
}

// ProgressStats is a snapshot of a ProgressTracker.
type ProgressStats struct {
	Stage       Stage
	Current     int
	Total       int
	Progress    float64
	ETA         time.Duration
	CurrentFile string
	FilesSeen   int
	ErrorCount  int
	WarnCount   int
}

// NewProgressTracker creates a tracker in the scanning stage.
func NewProgressTracker() *ProgressTracker {
	return &ProgressTracker{
		stage:      StageScanning,
		files:      make(map[string]struct{}),
		stageStart: time.Now(),
	}
}

// Apply records an event, switching stage when it changes.
func (p *ProgressTracker) Apply(e ProgressEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if e.Stage != p.stage {
		p.stage = e.Stage
		p.stageStart = time.Now()
		p.lastETA = 0
	}
	if e.Total != p.total {
		p.stageStart = time.Now()
		p.lastETA = 0
	}
	p.current = e.Current
	p.total = e.Total
	if e.CurrentFile != "" {
		p.currentFile = e.CurrentFile
		if e.Stage == StageExtracting {
			p.files[e.CurrentFile] = struct{}{}
		}
	}
}

// AddError counts an error or warning.
func (p *ProgressTracker) AddError(e ErrorEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if e.IsWarn {
		p.warnings++
	} else {
		p.errors++
	}
}

// Stats returns a snapshot. It updates the smoothed ETA.
func (p *ProgressTracker) Stats() ProgressStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	progress := 0.0
	if p.total > 0 {
		progress = min(float64(p.current)/float64(p.total), 1.0)
	}

	return ProgressStats{
		Stage:       p.stage,
		Current:     p.current,
		Total:       p.total,
		Progress:    progress,
		ETA:         p.eta(progress),
		CurrentFile: p.currentFile,
		FilesSeen:   len(p.files),
		ErrorCount:  p.errors,
		WarnCount:   p.warnings,
	}
}

// eta must be called with the lock held.
func (p *ProgressTracker) eta(progress float64) time.Duration {
	if progress <= 0 || progress >= 1 {
		return 0
	}

	elapsed := time.Since(p.stageStart)
	raw := time.Duration(float64(elapsed)/progress) - elapsed
	if raw < 0 {
		return 0
	}
	if p.lastETA == 0 {
		p.lastETA = raw
		return raw
	}

	p.lastETA = time.Duration(etaSmoothing*float64(raw) + (1-etaSmoothing)*float64(p.lastETA))
	return p.lastETA
}
