// Package migrate moves items that only exist in the legacy flat layer into
// one of the layered directories.
package migrate

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/dustin/go-humanize"

	"github.com/zjrosen/mntn/internal/fsutil"
	"github.com/zjrosen/mntn/internal/layers"
	"github.com/zjrosen/mntn/internal/log"
	"github.com/zjrosen/mntn/internal/paths"
	"github.com/zjrosen/mntn/internal/profile"
	"github.com/zjrosen/mntn/internal/registry"
	"github.com/zjrosen/mntn/internal/task"
	"github.com/zjrosen/mntn/internal/tracing"
)

// Outcome is the end state of one migrated item.
type Outcome string

const (
	OutcomeMigrated            Outcome = "migrated"
	OutcomeMigratedWithWarning Outcome = "migrated_with_warning"
	OutcomeFailed              Outcome = "failed"
)

// Candidate is a legacy item eligible for migration.
type Candidate struct {
	ID         string
	SourcePath string
	From       string
	To         string
}

// Discovery is the result of scanning a registry for legacy items.
type Discovery struct {
	Candidates []Candidate
	// AlreadyLayered holds the ids of enabled entries that already have a
	// copy in a layered directory.
	AlreadyLayered []string
	// Nested holds the ids of candidates whose legacy copy lies inside
	// another candidate's directory. They move with that directory.
	Nested []string
}

// Item records what happened to one candidate.
type Item struct {
	Candidate
	Outcome Outcome
	Method  fsutil.Method
	Warning string
	Err     error
}

// Summary aggregates a migration run.
type Summary struct {
	Migrated            int
	MigratedWithWarning int
	Failed              int
	AlreadyLayered      int
	Nested              int
	Items               []Item
}

// Engine migrates legacy items into Target.
type Engine struct {
	Layers  layers.Engine
	Profile profile.ActiveProfile
	Target  layers.Layer
	Mover   fsutil.Mover
}

// New returns an engine using the os-backed Mover.
func New(engine layers.Engine, p profile.ActiveProfile, target layers.Layer) (Engine, error) {
	if !target.Writable() {
		return Engine{}, fmt.Errorf("cannot migrate into the %s layer", target)
	}
	return Engine{Layers: engine, Profile: p, Target: target, Mover: fsutil.NewMover()}, nil
}

// Discover finds enabled entries whose only copy is in the legacy layer.
// Entries whose source path starts inside a layered subtree are never
// candidates, since their legacy lookup already points into a layer.
func (e Engine) Discover(reg *registry.ConfigRegistry) Discovery {
	var d Discovery
	for id, entry := range reg.Enabled() {
		rel := entry.SourcePath
		if layers.IsLayeredPath(rel) {
			continue
		}

		hasLegacy, hasLayered := false, false
		for _, r := range e.Layers.ResolveAll(e.Profile, rel) {
			if r.Layer == layers.Legacy {
				hasLegacy = true
			} else {
				hasLayered = true
			}
		}

		switch {
		case hasLayered:
			d.AlreadyLayered = append(d.AlreadyLayered, id)
		case hasLegacy:
			d.Candidates = append(d.Candidates, Candidate{
				ID:         id,
				SourcePath: rel,
				From:       e.Layers.Destination(e.Profile, layers.Legacy, rel),
				To:         e.Layers.Destination(e.Profile, e.Target, rel),
			})
		}
	}
	d.Candidates, d.Nested = splitNested(d.Candidates)
	return d
}

// splitNested drops candidates whose source sits inside another candidate's
// source. Moving both would move the inner item twice. Among candidates with
// the same source the first (lowest id) is kept.
func splitNested(cs []Candidate) (outer []Candidate, nested []string) {
	for i, c := range cs {
		inside := false
		for j, other := range cs {
			if i == j || !paths.Within(other.From, c.From) {
				continue
			}
			if filepath.Clean(other.From) != filepath.Clean(c.From) || j < i {
				inside = true
				break
			}
		}
		if inside {
			nested = append(nested, c.ID)
			log.Info(log.CatMigrate, "moves with enclosing item", "id", c.ID, "from", c.From)
			continue
		}
		outer = append(outer, c)
	}
	return outer, nested
}

// Run migrates every candidate. Items are independent: a failure leaves that
// item's legacy copy in place and the run continues. Each move re-checks both
// ends, so an item whose destination appeared since discovery fails instead
// of being merged.
func (e Engine) Run(ctx context.Context, reg *registry.ConfigRegistry) (Summary, error) {
	d := e.Discover(reg)
	sum := Summary{AlreadyLayered: len(d.AlreadyLayered), Nested: len(d.Nested)}

	for _, c := range d.Candidates {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		item := e.migrate(c)
		switch item.Outcome {
		case OutcomeMigrated:
			sum.Migrated++
		case OutcomeMigratedWithWarning:
			sum.MigratedWithWarning++
		default:
			sum.Failed++
		}
		tracing.ItemEvent(ctx, c.ID, string(item.Outcome), e.Target.String(), c.To, item.Err)
		sum.Items = append(sum.Items, item)
	}
	return sum, nil
}

func (e Engine) migrate(c Candidate) Item {
	item := Item{Candidate: c}
	res, err := e.Mover.MovePath(c.From, c.To)
	item.Method = res.Method
	switch {
	case err != nil:
		item.Outcome, item.Err = OutcomeFailed, err
		log.ErrorErr(log.CatMigrate, "migration failed", err, "id", c.ID, "from", c.From, "to", c.To)
	case res.Warning():
		item.Outcome, item.Warning = OutcomeMigratedWithWarning, res.WarningMessage()
		log.Warn(log.CatMigrate, "migrated with leftover source", "id", c.ID, "warning", item.Warning)
	default:
		item.Outcome = OutcomeMigrated
		log.Info(log.CatMigrate, "migrated", "id", c.ID, "method", res.Method, "to", e.Target)
	}
	return item
}

// Plan lists the moves Run would perform, with the size of each item.
func (e Engine) Plan(reg *registry.ConfigRegistry) []task.PlannedOperation {
	d := e.Discover(reg)
	if len(d.Candidates) == 0 {
		return []task.PlannedOperation{task.OpTo("No migration needed", "all items already in layered structure")}
	}

	ops := make([]task.PlannedOperation, 0, len(d.Candidates))
	for _, c := range d.Candidates {
		desc := fmt.Sprintf("Migrate %s to %s", c.ID, e.Target)
		if size, err := fsutil.Size(c.From); err == nil {
			desc = fmt.Sprintf("%s (%s)", desc, humanize.Bytes(uint64(size))) //nolint:gosec // sizes are non-negative
		}
		ops = append(ops, task.OpTo(desc, fmt.Sprintf("%s -> %s", c.From, c.To)))
	}
	return ops
}
