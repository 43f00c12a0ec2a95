package indexcache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ziadkadry99/pdf-inquiry/internal/fingerprint"
	"github.com/ziadkadry99/pdf-inquiry/internal/index"
)

type stubEmbedder struct{}

func (stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{1, 0}
	}
	return out, nil
}
func (stubEmbedder) Dimensions() int { return 2 }
func (stubEmbedder) Name() string    { return "stub" }

func emptyIndex(t *testing.T, fp fingerprint.Fingerprint) *index.Index {
	t.Helper()
	ix, err := index.NewBuilder(stubEmbedder{}).Build(context.Background(), fp, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return ix
}

func TestGetOrBuild_BuildsOnce(t *testing.T) {
	c := New()
	fp := fingerprint.Of([]byte("doc"))
	var builds int
	build := func(context.Context) (*index.Index, error) {
		builds++
		return emptyIndex(t, fp), nil
	}

	first, cached, err := c.GetOrBuild(context.Background(), fp, build)
	if err != nil || cached {
		t.Fatalf("first GetOrBuild: cached=%v err=%v", cached, err)
	}
	second, cached, err := c.GetOrBuild(context.Background(), fp, build)
	if err != nil || !cached {
		t.Fatalf("second GetOrBuild: cached=%v err=%v", cached, err)
	}
	if first != second {
		t.Error("expected the same index instance")
	}
	if builds != 1 {
		t.Errorf("build ran %d times, want 1", builds)
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestGetOrBuild_ConcurrentSingleBuild(t *testing.T) {
	c := New()
	fp := fingerprint.Of([]byte("concurrent"))
	var builds atomic.Int32
	release := make(chan struct{})
	build := func(context.Context) (*index.Index, error) {
		builds.Add(1)
		<-release
		return emptyIndex(t, fp), nil
	}

	const n = 8
	var wg sync.WaitGroup
	results := make([]*index.Index, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ix, _, err := c.GetOrBuild(context.Background(), fp, build)
			if err != nil {
				t.Errorf("GetOrBuild: %v", err)
			}
			results[i] = ix
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := builds.Load(); got != 1 {
		t.Errorf("build ran %d times, want 1", got)
	}
	for i := 1; i < n; i++ {
		if results[i] != results[0] {
			t.Fatalf("caller %d got a different index", i)
		}
	}
}

func TestGetOrBuild_ErrorNotCached(t *testing.T) {
	c := New()
	fp := fingerprint.Of([]byte("flaky"))
	boom := errors.New("embedding service down")

	_, _, err := c.GetOrBuild(context.Background(), fp, func(context.Context) (*index.Index, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected build error, got %v", err)
	}
	if _, ok := c.Get(fp); ok {
		t.Fatal("failed build was cached")
	}

	ix, cached, err := c.GetOrBuild(context.Background(), fp, func(context.Context) (*index.Index, error) {
		return emptyIndex(t, fp), nil
	})
	if err != nil || cached || ix == nil {
		t.Fatalf("retry: ix=%v cached=%v err=%v", ix, cached, err)
	}
}

func TestGet_Miss(t *testing.T) {
	if _, ok := New().Get(fingerprint.Of([]byte("nothing"))); ok {
		t.Error("expected miss on empty cache")
	}
}
