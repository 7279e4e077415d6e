// Package asset loads and caches decoded sample buffers. A ref is fetched and
// decoded at most once for the lifetime of the process, even when several
// callers request it concurrently, and every successfully loaded buffer is
// registered with the Renderer exactly once before any graph referencing it
// can be rendered.
package asset

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"kosketus"
)

type (
	// Registry memoizes asset loads by ref.
	Registry struct {
		loader   kosketus.AssetLoader
		renderer kosketus.Renderer

		group   singleflight.Group
		mu      sync.Mutex
		records map[string]*Record
	}

	// Record is one successfully loaded asset. Immutable after creation.
	Record struct {
		Ref      string
		Data     kosketus.SampleData
		Duration float64 // seconds
	}
)

func NewRegistry(loader kosketus.AssetLoader, renderer kosketus.Renderer) *Registry {
	return &Registry{
		loader:   loader,
		renderer: renderer,
		records:  make(map[string]*Record),
	}
}

// Get returns the record for ref, loading and registering it on first use.
// Concurrent calls for the same ref share a single underlying load; the load
// runs under the context of the first caller. A failed load is not cached, so
// a later call retries.
func (r *Registry) Get(ctx context.Context, ref string) (*Record, error) {
	r.mu.Lock()
	rec, ok := r.records[ref]
	r.mu.Unlock()
	if ok {
		return rec, nil
	}
	v, err, _ := r.group.Do(ref, func() (interface{}, error) {
		// the winner of a Do race may have stored the record already
		r.mu.Lock()
		rec, ok := r.records[ref]
		r.mu.Unlock()
		if ok {
			return rec, nil
		}
		data, err := r.loader.Load(ctx, ref)
		if err != nil {
			return nil, fmt.Errorf("could not load asset %q: %w", ref, err)
		}
		if err := r.renderer.RegisterAsset(ref, data); err != nil {
			return nil, fmt.Errorf("could not register asset %q: %w", ref, err)
		}
		rec = &Record{Ref: ref, Data: data, Duration: data.Duration()}
		r.mu.Lock()
		r.records[ref] = rec
		r.mu.Unlock()
		return rec, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Record), nil
}

// Duration returns the duration of an already-loaded asset, or 0 when the ref
// has not been loaded.
func (r *Registry) Duration(ref string) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.records[ref]; ok {
		return rec.Duration
	}
	return 0
}
