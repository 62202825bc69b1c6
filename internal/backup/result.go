// Package backup copies tracked items between their live locations and the
// layered backup root, in both directions.
package backup

import (
	"context"

	"github.com/zjrosen/mntn/internal/tracing"
)

// Status is the outcome of one item.
type Status string

const (
	StatusDone    Status = "done"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// ItemResult records what happened to one registry entry.
type ItemResult struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status Status `json:"status"`
	Layer  string `json:"layer,omitempty"`
	From   string `json:"from,omitempty"`
	To     string `json:"to,omitempty"`
	// Note explains a skip or an extra action such as a replaced symlink.
	Note string `json:"note,omitempty"`
	Err  error  `json:"-"`
}

// Error returns the failure message, empty on success.
func (r ItemResult) Error() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Summary collects the results of a batch.
type Summary struct {
	Items []ItemResult `json:"items"`
}

// Count returns how many items ended with status.
func (s Summary) Count(status Status) int {
	n := 0
	for _, item := range s.Items {
		if item.Status == status {
			n++
		}
	}
	return n
}

// Merge appends the items of other.
func (s *Summary) Merge(other Summary) {
	s.Items = append(s.Items, other.Items...)
}

func (s *Summary) record(ctx context.Context, r ItemResult) {
	s.Items = append(s.Items, r)
	path := r.To
	if path == "" {
		path = r.From
	}
	tracing.ItemEvent(ctx, r.ID, string(r.Status), r.Layer, path, r.Err)
}
