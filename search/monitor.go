package search

import (
	"time"

	"github.com/poiesic/catalogit/core"
)

// SearchMonitor provides hooks to observe the search process.
// Implement this interface to track intermediate steps and results during search.
type SearchMonitor interface {
	Start(query Query)
	AfterSemanticSearch(ids []string)
	AfterTextSearch(ids []string)
	SemanticAndTextHit(record *core.CatalogRecord)
	SemanticHit(record *core.CatalogRecord)
	TextHit(record *core.CatalogRecord)
	Finish(results []*core.SearchResult, latency time.Duration)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ Query)                                  {}
func (n *noopMonitor) AfterSemanticSearch(_ []string)                 {}
func (n *noopMonitor) AfterTextSearch(_ []string)                     {}
func (n *noopMonitor) SemanticAndTextHit(_ *core.CatalogRecord)       {}
func (n *noopMonitor) SemanticHit(_ *core.CatalogRecord)              {}
func (n *noopMonitor) TextHit(_ *core.CatalogRecord)                  {}
func (n *noopMonitor) Finish(_ []*core.SearchResult, _ time.Duration) {}
