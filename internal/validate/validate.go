// Package validate runs read-only consistency checks over the registries,
// the layered backup root and the live targets, and collects the findings
// into a severity-tagged report.
package validate

import (
	"context"
	"errors"
	"io/fs"

	"github.com/zjrosen/mntn/internal/cachemanager"
	"github.com/zjrosen/mntn/internal/layers"
	"github.com/zjrosen/mntn/internal/log"
	"github.com/zjrosen/mntn/internal/paths"
	"github.com/zjrosen/mntn/internal/profile"
	"github.com/zjrosen/mntn/internal/registry"
)

// Severity ranks a finding. It is advisory and never stops validation.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
	SeverityInfo
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "ERROR"
	case SeverityWarning:
		return "WARNING"
	default:
		return "INFO"
	}
}

// ValidationError is one finding. Fix is an optional suggestion.
type ValidationError struct {
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Fix      string   `json:"fix,omitempty"`
}

func errorf(msg, fix string) ValidationError {
	return ValidationError{Severity: SeverityError, Message: msg, Fix: fix}
}

func warning(msg, fix string) ValidationError {
	return ValidationError{Severity: SeverityWarning, Message: msg, Fix: fix}
}

func info(msg, fix string) ValidationError {
	return ValidationError{Severity: SeverityInfo, Message: msg, Fix: fix}
}

// Validator is a single independent check.
type Validator interface {
	Name() string
	Validate(ctx context.Context) []ValidationError
}

// Deps is the state every check reads.
type Deps struct {
	Layout   paths.Layout
	Layers   layers.Engine
	Profile  profile.ActiveProfile
	Platform string
	Lookup   *cachemanager.PathLookup
}

// All returns the fixed list of checks in report order.
func All(d Deps) []Validator {
	if d.Lookup == nil {
		d.Lookup = cachemanager.NewPathLookup(nil)
	}
	if d.Platform == "" {
		d.Platform = registry.CurrentPlatform()
	}
	return []Validator{
		RegistryValidator{deps: d},
		LayerValidator{deps: d},
		JSONValidator{deps: d},
		SymlinkValidator{deps: d},
		ProfileValidator{deps: d},
	}
}

// Result pairs a check's name with its findings.
type Result struct {
	Name   string            `json:"name"`
	Errors []ValidationError `json:"errors"`
}

// Report is the ordered output of a validation run.
type Report struct {
	Results []Result `json:"results"`
}

func (r *Report) count(s Severity) int {
	n := 0
	for _, res := range r.Results {
		for _, e := range res.Errors {
			if e.Severity == s {
				n++
			}
		}
	}
	return n
}

func (r *Report) ErrorCount() int   { return r.count(SeverityError) }
func (r *Report) WarningCount() int { return r.count(SeverityWarning) }
func (r *Report) InfoCount() int    { return r.count(SeverityInfo) }

// Run executes every validator in order. All checks run even after errors;
// only a cancelled ctx stops early.
func Run(ctx context.Context, validators []Validator) (*Report, error) {
	report := &Report{}
	for _, v := range validators {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		errs := v.Validate(ctx)
		log.Info(log.CatValidate, "check complete", "check", v.Name(), "findings", len(errs))
		report.Results = append(report.Results, Result{Name: v.Name(), Errors: errs})
	}
	log.Info(log.CatValidate, "validation complete",
		"errors", report.ErrorCount(), "warnings", report.WarningCount(), "info", report.InfoCount())
	return report, nil
}

// loadConfigs reads the configs registry without creating it; a missing
// file stands for the defaults that the first mutating command would write.
func loadConfigs(d Deps) (*registry.ConfigRegistry, error) {
	reg, err := registry.Load[registry.ConfigEntry](d.Layout.ConfigsRegistryPath())
	if errors.Is(err, fs.ErrNotExist) {
		return registry.DefaultConfigs(), nil
	}
	return reg, err
}

func loadPackages(d Deps) (*registry.PackageRegistry, error) {
	reg, err := registry.Load[registry.PackageEntry](d.Layout.PackageRegistryPath())
	if errors.Is(err, fs.ErrNotExist) {
		return registry.DefaultPackages(), nil
	}
	return reg, err
}
