package engine

import (
	"context"
	"fmt"
	"sync"

	"kosketus"
	"kosketus/asset"
)

type fakeAssets struct {
	mu        sync.Mutex
	durations map[string]float64
	failing   map[string]bool
	loads     map[string]int
}

func newFakeAssets(durations map[string]float64) *fakeAssets {
	return &fakeAssets{
		durations: durations,
		failing:   make(map[string]bool),
		loads:     make(map[string]int),
	}
}

func (f *fakeAssets) Get(ctx context.Context, ref string) (*asset.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing[ref] {
		return nil, fmt.Errorf("could not load asset %q: no such resource", ref)
	}
	duration, ok := f.durations[ref]
	if !ok {
		return nil, fmt.Errorf("could not load asset %q: no such resource", ref)
	}
	f.loads[ref]++
	data := kosketus.SampleData{
		Samples:    make([]float32, int(duration*44100)),
		SampleRate: 44100,
	}
	return &asset.Record{Ref: ref, Data: data, Duration: duration}, nil
}

func (f *fakeAssets) Duration(ref string) float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.durations[ref]
}

type fakeRenderer struct {
	mu      sync.Mutex
	renders int
	fail    bool
	last    [2]kosketus.Signal
}

func (f *fakeRenderer) RegisterAsset(ref string, data kosketus.SampleData) error {
	return nil
}

func (f *fakeRenderer) Render(left, right kosketus.Signal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return fmt.Errorf("renderer is broken")
	}
	f.renders++
	f.last = [2]kosketus.Signal{left, right}
	return nil
}

func (f *fakeRenderer) lastSignal() kosketus.Signal {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last[0]
}

func (f *fakeRenderer) renderCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.renders
}

// samplers returns all sampler nodes of the graph in depth-first order.
func samplers(sig kosketus.Signal) []kosketus.Signal {
	var ret []kosketus.Signal
	if sig.Type == kosketus.TypeSampler {
		ret = append(ret, sig)
	}
	for _, in := range sig.Inputs {
		ret = append(ret, samplers(in)...)
	}
	return ret
}

func samplerRefs(sig kosketus.Signal) []string {
	var refs []string
	for _, s := range samplers(sig) {
		refs = append(refs, s.Ref)
	}
	return refs
}

// findNodes returns all nodes of the given type in depth-first order.
func findNodes(sig kosketus.Signal, nodeType string) []kosketus.Signal {
	var ret []kosketus.Signal
	if sig.Type == nodeType {
		ret = append(ret, sig)
	}
	for _, in := range sig.Inputs {
		ret = append(ret, findNodes(in, nodeType)...)
	}
	return ret
}

type alertCollector struct {
	mu     sync.Mutex
	alerts []kosketus.Alert
}

func (c *alertCollector) collect(a kosketus.Alert) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.alerts = append(c.alerts, a)
}

func (c *alertCollector) byName(name string) []kosketus.Alert {
	c.mu.Lock()
	defer c.mu.Unlock()
	var ret []kosketus.Alert
	for _, a := range c.alerts {
		if a.Name == name {
			ret = append(ret, a)
		}
	}
	return ret
}
