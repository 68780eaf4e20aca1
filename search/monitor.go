package search

import "github.com/derrickSh43/ingestion/core"

// SearchMonitor provides hooks to observe the search process.
// Implement this interface to track intermediate steps and results during search.
type SearchMonitor interface {
	Start(domain, releaseID, query string)
	AfterEmbedding(vector []float32)
	AfterIndexQuery(results []core.SearchResult)
	Finish(resp *Response)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_, _, _ string)                    {}
func (n *noopMonitor) AfterEmbedding(_ []float32)              {}
func (n *noopMonitor) AfterIndexQuery(_ []core.SearchResult)   {}
func (n *noopMonitor) Finish(_ *Response)                      {}
