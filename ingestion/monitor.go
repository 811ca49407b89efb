package ingestion

// RunMonitor observes a run. Callbacks are made from the goroutine calling
// Pipeline.Run, except Progress during normalization which may arrive from
// pool workers.
type RunMonitor interface {
	Start(runID, location string)
	Transition(stage Stage)
	Progress(stage Stage, done, total int)
	Finish(report *Report, err error)
}

// noopMonitor is a no-op implementation of RunMonitor
type noopMonitor struct{}

var _ RunMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_, _ string)          {}
func (n *noopMonitor) Transition(_ Stage)         {}
func (n *noopMonitor) Progress(_ Stage, _, _ int) {}
func (n *noopMonitor) Finish(_ *Report, _ error)  {}
