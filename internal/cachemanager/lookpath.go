package cachemanager

import (
	"context"
	"errors"
	"os/exec"
	"time"
)

// PathLookup answers "is this command on PATH" once per command name.
type PathLookup struct {
	cache *ReadThroughCache[string, string]
}

// NewPathLookup returns a lookup backed by look, normally exec.LookPath.
func NewPathLookup(look func(string) (string, error)) *PathLookup {
	if look == nil {
		look = exec.LookPath
	}
	fn := func(_ context.Context, name string) (string, error) {
		path, err := look(name)
		if errors.Is(err, exec.ErrNotFound) {
			return "", nil
		}
		return path, err
	}
	mem := NewInMemoryCacheManager[string, string]("lookpath", DefaultExpiration, DefaultCleanupInterval)
	return &PathLookup{cache: NewReadThroughCache[string, string](mem, fn, time.Hour)}
}

// Find returns the resolved path of name, or "" when it is not installed.
func (p *PathLookup) Find(ctx context.Context, name string) (string, error) {
	return p.cache.Get(ctx, name)
}
