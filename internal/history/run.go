package history

import (
	"errors"
	"fmt"
	"time"
)

// ErrRunNotFound is returned by Get for an unknown id.
var ErrRunNotFound = errors.New("run not found")

// Kind names the command that produced a run.
type Kind string

const (
	KindBackup   Kind = "backup"
	KindRestore  Kind = "restore"
	KindMigrate  Kind = "migrate"
	KindValidate Kind = "validate"
	KindWatch    Kind = "watch"
)

// Item is the journaled outcome of one entry.
type Item struct {
	ItemID string `json:"item_id"`
	Status string `json:"status"`
	Layer  string `json:"layer,omitempty"`
	Source string `json:"source,omitempty"`
	Target string `json:"target,omitempty"`
	Note   string `json:"note,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Run is one journaled command invocation.
type Run struct {
	ID         string    `json:"id"`
	Kind       Kind      `json:"kind"`
	Profile    string    `json:"profile"`
	Layer      string    `json:"layer,omitempty"`
	DryRun     bool      `json:"dry_run"`
	Done       int       `json:"done"`
	Skipped    int       `json:"skipped"`
	Failed     int       `json:"failed"`
	Warnings   int       `json:"warnings"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Items      []Item    `json:"items,omitempty"`
}

// Duration is how long the run took.
func (r Run) Duration() time.Duration { return r.FinishedAt.Sub(r.StartedAt) }

// String is a one-line summary.
func (r Run) String() string {
	return fmt.Sprintf("%s %s [%s] done=%d skipped=%d failed=%d", r.ShortID(), r.Kind, r.Profile, r.Done, r.Skipped, r.Failed)
}

// ShortID is the first eight characters of the id, enough for Get.
func (r Run) ShortID() string {
	if len(r.ID) <= 8 {
		return r.ID
	}
	return r.ID[:8]
}
