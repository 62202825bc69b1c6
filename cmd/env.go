package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/mntn/internal/backup"
	"github.com/zjrosen/mntn/internal/cachemanager"
	"github.com/zjrosen/mntn/internal/crypt"
	"github.com/zjrosen/mntn/internal/history"
	"github.com/zjrosen/mntn/internal/layers"
	"github.com/zjrosen/mntn/internal/log"
	"github.com/zjrosen/mntn/internal/paths"
	"github.com/zjrosen/mntn/internal/presentation"
	"github.com/zjrosen/mntn/internal/profile"
	"github.com/zjrosen/mntn/internal/tracing"
)

// env is everything a command needs after flags and config are parsed.
type env struct {
	layout  paths.Layout
	profile profile.ActiveProfile
	layers  layers.Engine
	out     *presentation.Printer
	tracer  *tracing.Provider
}

func newPrinter() *presentation.Printer { return presentation.NewPrinter(os.Stdout) }

func resolver(layout paths.Layout) profile.Resolver {
	return profile.Resolver{
		ConfigPath: layout.ProfileConfigPath(),
		Marker:     profile.NewMarkerStore(layout.ActiveProfilePath()),
		Host:       profile.DetectHostDefaults(layout.MachineIDPath()),
	}
}

// newEnv resolves the layout and the active profile and starts tracing.
// Callers must call close.
func newEnv(cmd *cobra.Command) (*env, error) {
	layout, err := paths.Default()
	if err != nil {
		return nil, err
	}

	active := resolver(layout).Resolve(profile.Overrides{
		Profile:     viper.GetString("profile"),
		MachineID:   viper.GetString("machine_id"),
		Environment: viper.GetString("env"),
	})
	log.Debug(log.CatProfile, "resolved profile", "profile", active.String())

	tcfg := cfg.Tracing
	if tcfg.FilePath == "" {
		tcfg.FilePath = layout.TracePath()
	} else {
		tcfg.FilePath = layout.ExpandHome(tcfg.FilePath)
	}
	tp, err := tracing.NewProvider(cmd.Context(), tcfg)
	if err != nil {
		log.ErrorErr(log.CatTrace, "tracing disabled", err)
		tp, _ = tracing.NewProvider(cmd.Context(), tracing.Config{})
	}

	return &env{
		layout:  layout,
		profile: active,
		layers:  layers.New(layout),
		out:     presentation.NewPrinter(cmd.OutOrStdout()),
		tracer:  tp,
	}, nil
}

func (e *env) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.tracer.Shutdown(ctx); err != nil {
		log.ErrorErr(log.CatTrace, "tracer shutdown failed", err)
	}
}

func (e *env) pipeline() backup.Pipeline {
	return backup.Pipeline{
		Layers:  e.layers,
		Profile: e.profile,
		Cipher:  crypt.Cipher{},
		Runner:  backup.ExecRunner{},
		Lookup:  cachemanager.NewPathLookup(nil),
	}
}

// run is one journaled command invocation. It carries the root span and
// becomes a history row when finished.
type run struct {
	env    *env
	span   trace.Span
	record history.Run
}

func (e *env) beginRun(ctx context.Context, kind history.Kind, layer string) (context.Context, *run) {
	id := uuid.NewString()
	ctx, span := e.tracer.Tracer().Start(ctx, "mntn."+string(kind),
		trace.WithAttributes(
			attribute.String(tracing.AttrRunID, id),
			attribute.String(tracing.AttrRunKind, string(kind)),
			attribute.String(tracing.AttrProfile, e.profile.Name),
			attribute.String(tracing.AttrMachineID, e.profile.MachineID),
			attribute.String(tracing.AttrEnvironment, e.profile.Environment),
		))
	return ctx, &run{
		env:  e,
		span: span,
		record: history.Run{
			ID:        id,
			Kind:      kind,
			Profile:   e.profile.Name,
			Layer:     layer,
			DryRun:    flagDryRun,
			StartedAt: time.Now(),
		},
	}
}

// finishSummary ends the run with the outcome of a backup-style batch.
func (r *run) finishSummary(ctx context.Context, sum backup.Summary, err error) {
	items := make([]history.Item, 0, len(sum.Items))
	for _, it := range sum.Items {
		items = append(items, history.Item{
			ItemID: it.ID,
			Status: string(it.Status),
			Layer:  it.Layer,
			Source: it.From,
			Target: it.To,
			Note:   it.Note,
			Error:  it.Error(),
		})
	}
	r.finish(ctx, items, sum.Count(backup.StatusDone), sum.Count(backup.StatusSkipped),
		sum.Count(backup.StatusFailed), 0, err)
}

// finish closes the span and, unless this was a dry run or history is off,
// appends the run to the journal. Journal failures only warn.
func (r *run) finish(ctx context.Context, items []history.Item, done, skipped, failed, warnings int, err error) {
	tracing.EndRun(r.span, done, skipped, failed, err)

	if flagDryRun || !cfg.History.Enabled {
		return
	}
	r.record.Done = done
	r.record.Skipped = skipped
	r.record.Failed = failed
	r.record.Warnings = warnings
	r.record.FinishedAt = time.Now()
	r.record.Items = items

	// The command context may already be cancelled; the journal still gets
	// the partial run.
	ctx = context.WithoutCancel(ctx)
	if err := r.env.journal(ctx, &r.record); err != nil {
		log.ErrorErr(log.CatHistory, "recording run failed", err)
		r.env.out.Warning("could not record run history: %v", err)
	}
}

func (e *env) journal(ctx context.Context, rec *history.Run) error {
	db, err := history.NewDB(e.layout.HistoryDBPath())
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if err := db.Runs().Record(ctx, rec); err != nil {
		return err
	}
	if cfg.History.KeepDays > 0 {
		cutoff := time.Now().AddDate(0, 0, -cfg.History.KeepDays)
		if n, err := db.Runs().Prune(ctx, cutoff); err != nil {
			return fmt.Errorf("pruning history: %w", err)
		} else if n > 0 {
			log.Debug(log.CatHistory, "pruned runs", "count", n)
		}
	}
	return nil
}

// printSummary writes one line per item and a closing count line.
func printSummary(p *presentation.Printer, verb string, sum backup.Summary) {
	for _, it := range sum.Items {
		switch it.Status {
		case backup.StatusDone:
			line := fmt.Sprintf("%s: %s -> %s", it.ID, it.From, it.To)
			if it.Layer != "" {
				line += " [" + it.Layer + "]"
			}
			if it.Note != "" {
				line += " (" + it.Note + ")"
			}
			p.Success("%s", line)
		case backup.StatusSkipped:
			p.Skip("%s: skipped (%s)", it.ID, it.Note)
		case backup.StatusFailed:
			p.Error("%s: %v", it.ID, it.Err)
		}
	}
	p.Plain("%s: %d done, %d skipped, %d failed", verb,
		sum.Count(backup.StatusDone), sum.Count(backup.StatusSkipped), sum.Count(backup.StatusFailed))
}

// batchErr turns per-item failures into a command error so the exit status
// reflects them.
func batchErr(verb string, sum backup.Summary) error {
	if n := sum.Count(backup.StatusFailed); n > 0 {
		return fmt.Errorf("%s: %d item(s) failed", verb, n)
	}
	return nil
}
