package main

import (
	"io"
	"sync"

	"github.com/poiesic/catalogit/ingestion"
	"github.com/poiesic/catalogit/reembed"
)

// progressMonitor draws a progress line for each stage that reports progress.
type progressMonitor struct {
	w        io.Writer
	interval int

	mu      sync.Mutex
	stage   ingestion.Stage
	tracker *reembed.ProgressTracker
}

var _ ingestion.RunMonitor = (*progressMonitor)(nil)

func newProgressMonitor(w io.Writer, interval int) *progressMonitor {
	return &progressMonitor{w: w, interval: interval}
}

func (m *progressMonitor) Start(_, _ string) {}

func (m *progressMonitor) Transition(_ ingestion.Stage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finish()
}

func (m *progressMonitor) Progress(stage ingestion.Stage, done, total int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.tracker == nil || stage != m.stage {
		m.finish()
		m.stage = stage
		m.tracker = reembed.NewProgressTracker(m.w, total, m.interval)
		m.tracker.SetLabel(stageLabel(stage))
		m.tracker.Start()
	}
	m.tracker.Update(done)
}

func (m *progressMonitor) Finish(_ *ingestion.Report, _ error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finish()
}

// finish must be called with lock held.
func (m *progressMonitor) finish() {
	if m.tracker != nil {
		m.tracker.Finish()
		m.tracker = nil
	}
}

func stageLabel(stage ingestion.Stage) string {
	switch stage {
	case ingestion.StageNormalized:
		return "Normalized"
	case ingestion.StageEmbedded:
		return "Embedded"
	default:
		return stage.String()
	}
}
