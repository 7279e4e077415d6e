package asset

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"

	"kosketus"
)

type countingLoader struct {
	loads   int32
	fail    bool
	release chan struct{} // when non-nil, Load blocks until closed
}

func (l *countingLoader) Load(ctx context.Context, ref string) (kosketus.SampleData, error) {
	atomic.AddInt32(&l.loads, 1)
	if l.release != nil {
		<-l.release
	}
	if l.fail {
		return kosketus.SampleData{}, fmt.Errorf("boom")
	}
	return kosketus.SampleData{Samples: make([]float32, 44100), SampleRate: 44100}, nil
}

type countingRenderer struct {
	mu         sync.Mutex
	registered map[string]int
	fail       bool
}

func (r *countingRenderer) RegisterAsset(ref string, data kosketus.SampleData) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return fmt.Errorf("register failed")
	}
	if r.registered == nil {
		r.registered = make(map[string]int)
	}
	r.registered[ref]++
	return nil
}

func (r *countingRenderer) Render(left, right kosketus.Signal) error { return nil }

func TestGetMemoizes(t *testing.T) {
	loader := &countingLoader{}
	renderer := &countingRenderer{}
	reg := NewRegistry(loader, renderer)
	ctx := context.Background()
	rec, err := reg.Get(ctx, "a")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if rec.Duration != 1.0 {
		t.Errorf("expected duration 1.0, got %v", rec.Duration)
	}
	again, err := reg.Get(ctx, "a")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if again != rec {
		t.Errorf("a second Get should return the cached record")
	}
	if n := atomic.LoadInt32(&loader.loads); n != 1 {
		t.Errorf("expected one load, got %v", n)
	}
	if renderer.registered["a"] != 1 {
		t.Errorf("expected one registration, got %v", renderer.registered["a"])
	}
	if reg.Duration("a") != 1.0 {
		t.Errorf("Duration should report the cached duration")
	}
	if reg.Duration("unloaded") != 0 {
		t.Errorf("Duration of an unloaded ref should be 0")
	}
}

func TestConcurrentGetsShareOneLoad(t *testing.T) {
	loader := &countingLoader{release: make(chan struct{})}
	renderer := &countingRenderer{}
	reg := NewRegistry(loader, renderer)
	const callers = 8
	var wg sync.WaitGroup
	records := make([]*Record, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			records[i], errs[i] = reg.Get(context.Background(), "a")
		}(i)
	}
	// let all callers pile up on the in-flight load before releasing it
	for atomic.LoadInt32(&loader.loads) == 0 {
		runtime.Gosched()
	}
	close(loader.release)
	wg.Wait()
	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %v failed: %v", i, errs[i])
		}
		if records[i] != records[0] {
			t.Errorf("caller %v got a different record", i)
		}
	}
	if n := atomic.LoadInt32(&loader.loads); n != 1 {
		t.Errorf("expected one shared load, got %v", n)
	}
}

func TestFailedLoadIsRetried(t *testing.T) {
	loader := &countingLoader{fail: true}
	renderer := &countingRenderer{}
	reg := NewRegistry(loader, renderer)
	ctx := context.Background()
	if _, err := reg.Get(ctx, "a"); err == nil {
		t.Fatalf("expected the load to fail")
	}
	if reg.Duration("a") != 0 {
		t.Errorf("a failed load should not be cached")
	}
	loader.fail = false
	if _, err := reg.Get(ctx, "a"); err != nil {
		t.Fatalf("the retry should succeed: %v", err)
	}
	if n := atomic.LoadInt32(&loader.loads); n != 2 {
		t.Errorf("expected two loads, got %v", n)
	}
}

func TestRegisterFailureFailsGet(t *testing.T) {
	loader := &countingLoader{}
	renderer := &countingRenderer{fail: true}
	reg := NewRegistry(loader, renderer)
	if _, err := reg.Get(context.Background(), "a"); err == nil {
		t.Fatalf("expected Get to fail when registration fails")
	}
	if reg.Duration("a") != 0 {
		t.Errorf("a failed registration should not be cached")
	}
}
