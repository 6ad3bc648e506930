package preview

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/Sternrassler/nameyourink/internal/testutil"
	"github.com/Sternrassler/nameyourink/pkg/cache"
	"github.com/Sternrassler/nameyourink/pkg/client"
)

func newBackend(t *testing.T) (*testutil.MockBackend, *client.Client) {
	t.Helper()

	mock := testutil.NewMockBackend()
	t.Cleanup(mock.Close)

	c, err := client.New(client.DefaultConfig(mock.URL()))
	if err != nil {
		t.Fatalf("client.New failed: %v", err)
	}
	return mock, c
}

func newLoader(t *testing.T, backend *client.Client, previewCache *cache.Cache) *Loader {
	t.Helper()

	loader, err := NewLoader(NewFetcher(backend, previewCache), backend, DefaultLoaderConfig())
	if err != nil {
		t.Fatalf("NewLoader failed: %v", err)
	}
	return loader
}

func TestNewLoader_Defaults(t *testing.T) {
	loader, err := NewLoader(NewFetcher(newFakeRemote(), nil), nil, LoaderConfig{})
	if err != nil {
		t.Fatalf("NewLoader failed: %v", err)
	}
	if loader.config.Concurrency != 3 {
		t.Errorf("Concurrency = %d, want 3", loader.config.Concurrency)
	}
	if loader.config.PreviewText != "ABC" {
		t.Errorf("PreviewText = %q, want ABC", loader.config.PreviewText)
	}

	if _, err := NewLoader(NewFetcher(newFakeRemote(), nil), nil, LoaderConfig{Concurrency: -1}); !errors.Is(err, ErrInvalidConcurrency) {
		t.Errorf("NewLoader(-1) error = %v, want ErrInvalidConcurrency", err)
	}
}

// Eight styles, concurrency 3, items 2 and 5 answer success=false.
func TestLoader_LoadStyles_EightWithTwoFailures(t *testing.T) {
	mock, backend := newBackend(t)
	mock.SetDelay(5 * time.Millisecond)

	styles := testutil.DefaultStyles()
	mock.FailPreview(strconv.Itoa(styles[2].ID), "render failed")
	mock.FailPreview(strconv.Itoa(styles[5].ID), "render failed")

	loader := newLoader(t, backend, nil)
	sink := newRecordingSink()

	items, stats, err := loader.LoadStyles(context.Background(), sink)
	if err != nil {
		t.Fatalf("LoadStyles failed: %v", err)
	}
	if len(items) != 8 {
		t.Fatalf("got %d items, want 8", len(items))
	}
	if sink.total() != 8 {
		t.Errorf("sink calls = %d, want 8", sink.total())
	}
	for i := 0; i < 8; i++ {
		if sink.calls[i] != 1 {
			t.Errorf("index %d delivered %d times, want 1", i, sink.calls[i])
		}
	}

	if len(sink.failures) != 2 {
		t.Fatalf("failures = %d, want 2", len(sink.failures))
	}
	for _, i := range []int{2, 5} {
		if !errors.Is(sink.failures[i], client.ErrRejected) {
			t.Errorf("item %d error = %v, want ErrRejected", i, sink.failures[i])
		}
	}
	if len(sink.successes) != 6 {
		t.Errorf("successes = %d, want 6", len(sink.successes))
	}
	if got := sink.successes[0]; got != testutil.PreviewDataURL("261", "ABC") {
		t.Errorf("item 0 payload = %q", got)
	}
	if stats.Succeeded != 6 || stats.Failed != 2 {
		t.Errorf("stats = %+v", stats)
	}
	if mock.MaxInFlight() > 3 {
		t.Errorf("max in-flight = %d, want <= 3", mock.MaxInFlight())
	}
}

func TestLoader_LoadAll_IndexedFailures(t *testing.T) {
	remote := newFakeRemote()
	items := makeItems(8)
	remote.failID(items[2].ID, errBoom)
	remote.failID(items[5].ID, errBoom)

	loader, err := NewLoader(NewFetcher(remote, nil), nil, DefaultLoaderConfig())
	if err != nil {
		t.Fatalf("NewLoader failed: %v", err)
	}

	sink := newRecordingSink()
	if _, err := loader.LoadAll(context.Background(), items, sink); err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}

	if sink.total() != 8 {
		t.Errorf("sink calls = %d, want 8", sink.total())
	}
	for i := 0; i < 8; i++ {
		_, failed := sink.failures[i]
		wantFailed := i == 2 || i == 5
		if failed != wantFailed {
			t.Errorf("item %d failed = %v, want %v", i, failed, wantFailed)
		}
	}
}

func TestLoader_SecondLoadIsCached(t *testing.T) {
	mock, backend := newBackend(t)
	previewCache, _ := newTestCache(0)
	loader := newLoader(t, backend, previewCache)

	if _, _, err := loader.LoadStyles(context.Background(), newRecordingSink()); err != nil {
		t.Fatalf("first LoadStyles failed: %v", err)
	}
	if mock.TotalPreviewCalls() != 8 {
		t.Fatalf("first batch preview calls = %d, want 8", mock.TotalPreviewCalls())
	}

	mock.Reset()
	sink := newRecordingSink()
	_, stats, err := loader.LoadStyles(context.Background(), sink)
	if err != nil {
		t.Fatalf("second LoadStyles failed: %v", err)
	}

	if mock.TotalPreviewCalls() != 0 {
		t.Errorf("second batch preview calls = %d, want 0", mock.TotalPreviewCalls())
	}
	if stats.CacheHits != 8 {
		t.Errorf("CacheHits = %d, want 8", stats.CacheHits)
	}
	if len(sink.successes) != 8 {
		t.Errorf("successes = %d, want 8", len(sink.successes))
	}
}

func TestLoader_FailedItemsRetriedOnNextBatch(t *testing.T) {
	mock, backend := newBackend(t)
	mock.FailPreview("261", "temporary")
	previewCache, _ := newTestCache(0)
	loader := newLoader(t, backend, previewCache)

	if _, _, err := loader.LoadStyles(context.Background(), newRecordingSink()); err != nil {
		t.Fatalf("LoadStyles failed: %v", err)
	}

	mock.Reset()
	if _, _, err := loader.LoadStyles(context.Background(), newRecordingSink()); err != nil {
		t.Fatalf("LoadStyles failed: %v", err)
	}
	if mock.PreviewCalls("261") != 1 {
		t.Errorf("failed style calls = %d, want 1", mock.PreviewCalls("261"))
	}
	if mock.TotalPreviewCalls() != 1 {
		t.Errorf("total preview calls = %d, want 1", mock.TotalPreviewCalls())
	}
}

func TestLoader_LoadStyles_ListFailure(t *testing.T) {
	mock, backend := newBackend(t)
	mock.FailStyles("catalog offline")
	loader := newLoader(t, backend, nil)
	sink := newRecordingSink()

	items, _, err := loader.LoadStyles(context.Background(), sink)
	if !errors.Is(err, ErrBatchConstruction) {
		t.Fatalf("error = %v, want ErrBatchConstruction", err)
	}
	if !errors.Is(err, client.ErrRejected) {
		t.Errorf("error = %v, want wrapped ErrRejected", err)
	}
	if items != nil {
		t.Errorf("items = %v, want nil", items)
	}
	if sink.total() != 0 {
		t.Errorf("sink calls = %d, want 0", sink.total())
	}
	if mock.TotalPreviewCalls() != 0 {
		t.Errorf("preview calls = %d, want 0", mock.TotalPreviewCalls())
	}
}

func TestLoader_LoadStyles_NoLister(t *testing.T) {
	loader, err := NewLoader(NewFetcher(newFakeRemote(), nil), nil, DefaultLoaderConfig())
	if err != nil {
		t.Fatalf("NewLoader failed: %v", err)
	}
	if _, _, err := loader.LoadStyles(context.Background(), newRecordingSink()); !errors.Is(err, ErrBatchConstruction) {
		t.Errorf("error = %v, want ErrBatchConstruction", err)
	}
}

func TestLoader_LoadAll_NilSink(t *testing.T) {
	loader, err := NewLoader(NewFetcher(newFakeRemote(), nil), nil, DefaultLoaderConfig())
	if err != nil {
		t.Fatalf("NewLoader failed: %v", err)
	}
	if _, err := loader.LoadAll(context.Background(), makeItems(2), nil); !errors.Is(err, ErrBatchConstruction) {
		t.Errorf("error = %v, want ErrBatchConstruction", err)
	}
}

func TestLoader_SinkPanicDoesNotAbortBatch(t *testing.T) {
	loader, err := NewLoader(NewFetcher(newFakeRemote(), nil), nil, DefaultLoaderConfig())
	if err != nil {
		t.Fatalf("NewLoader failed: %v", err)
	}

	sink := SinkFuncs{
		Success: func(index int, item WorkItem, payload string) {
			if index == 0 {
				panic("slot missing")
			}
		},
	}
	stats, err := loader.LoadAll(context.Background(), makeItems(5), sink)
	if err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}
	if stats.Succeeded != 5 || stats.CallbackPanics != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestItemsFromStyles(t *testing.T) {
	styles := []client.Style{
		{ID: "261", Name: "Golden 3D"},
		{ID: "", Name: "Broken"},
		{ID: " 99 ", Name: "Liquid Silver"},
	}

	items := ItemsFromStyles(styles, "Hi")
	want := []WorkItem{{ID: "261", DisplayText: "Hi"}, {ID: "99", DisplayText: "Hi"}}

	if len(items) != len(want) {
		t.Fatalf("got %d items, want %d", len(items), len(want))
	}
	for i := range want {
		if items[i] != want[i] {
			t.Errorf("items[%d] = %+v, want %+v", i, items[i], want[i])
		}
	}

	if got := ItemsFromStyles(nil, "x"); len(got) != 0 {
		t.Errorf("ItemsFromStyles(nil) = %v", got)
	}
}
