package summary_test

import (
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/jawa-analysis/heapsum/internal/heap"
	"github.com/jawa-analysis/heapsum/internal/summary"
)

func TestManager_PublishAndGet(t *testing.T) {
	mgr := summary.NewManager()
	s := &summary.Summary{MethodSignature: "M.m()V"}

	if _, ok := mgr.GetHeapSummary("M.m()V"); ok {
		t.Fatalf("expected no summary before Publish")
	}
	mgr.Publish("M.m()V", summary.KindHeap, s)

	got, ok := mgr.GetHeapSummary("M.m()V")
	if !ok || got != s {
		t.Fatalf("expected to get back the published summary, got %v (ok=%v)", got, ok)
	}
	if _, ok := mgr.GetPTSummary("M.m()V"); ok {
		t.Fatalf("expected heap and PT summaries to be independent tables")
	}
}

func TestManager_ComputeHeapSummary_ComputesOnce(t *testing.T) {
	mgr := summary.NewManager()
	var calls int32

	compute := func() (*summary.Summary, error) {
		atomic.AddInt32(&calls, 1)
		return &summary.Summary{MethodSignature: "M.m()V"}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := mgr.ComputeHeapSummary("M.m()V", compute); err != nil {
				t.Errorf("ComputeHeapSummary: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected compute to run exactly once, ran %d times", got)
	}
}

func TestManager_ComputeHeapSummary_PropagatesError(t *testing.T) {
	mgr := summary.NewManager()
	wantErr := errTest{"computation failed"}

	_, err := mgr.ComputeHeapSummary("M.m()V", func() (*summary.Summary, error) {
		return nil, wantErr
	})
	if err != wantErr {
		t.Fatalf("expected the compute error to propagate, got %v", err)
	}
	if _, ok := mgr.GetHeapSummary("M.m()V"); ok {
		t.Fatalf("a failed compute must not publish anything")
	}
}

type errTest struct{ msg string }

func (e errTest) Error() string { return e.msg }

func TestManager_ComputePTSummary_IndependentFromHeap(t *testing.T) {
	mgr := summary.NewManager()
	heapCalls, ptCalls := 0, 0

	if _, err := mgr.ComputeHeapSummary("M.m()V", func() (*summary.Summary, error) {
		heapCalls++
		return &summary.Summary{MethodSignature: "M.m()V"}, nil
	}); err != nil {
		t.Fatalf("ComputeHeapSummary: %v", err)
	}
	if _, err := mgr.ComputePTSummary("M.m()V", func() (*summary.Summary, error) {
		ptCalls++
		return &summary.Summary{MethodSignature: "M.m()V"}, nil
	}); err != nil {
		t.Fatalf("ComputePTSummary: %v", err)
	}

	if heapCalls != 1 || ptCalls != 1 {
		t.Fatalf("expected one compute per kind, got heap=%d pt=%d", heapCalls, ptCalls)
	}
}

func TestManager_SqliteCache_RoundTripsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")

	mgr1, err := summary.NewManagerWithCache(path)
	if err != nil {
		t.Fatalf("NewManagerWithCache: %v", err)
	}
	s := &summary.Summary{
		MethodSignature: "Box.set(LBox;LObject;)V",
		Rules: []summary.Rule{
			summary.HeapSummaryRule(summary.HeapStore,
				heap.NewBase(heap.Arg(0)).Make(heap.FieldAcc("f")),
				heap.NewBase(heap.Arg(1))),
		},
	}
	mgr1.Publish(s.MethodSignature, summary.KindHeap, s)

	mgr2, err := summary.NewManagerWithCache(path)
	if err != nil {
		t.Fatalf("NewManagerWithCache (second instance): %v", err)
	}
	got, ok := mgr2.GetHeapSummary(s.MethodSignature)
	if !ok {
		t.Fatalf("expected the second manager instance to warm-start from the sqlite cache")
	}
	if len(got.Rules) != 1 {
		t.Fatalf("expected 1 rule to round-trip through the cache, got %d", len(got.Rules))
	}
	if got.Rules[0].HeapOp() != summary.HeapStore {
		t.Fatalf("expected the round-tripped rule to preserve its heap op, got %v", got.Rules[0].HeapOp())
	}
}
