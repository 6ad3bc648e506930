package preview

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// fakeRemote is an in-process Remote with per-id failures, latency and
// in-flight tracking.
type fakeRemote struct {
	delay time.Duration

	mu      sync.Mutex
	fail    map[string]error
	empty   map[string]bool
	calls   map[string]int
	release chan struct{}

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		fail:  make(map[string]error),
		empty: make(map[string]bool),
		calls: make(map[string]int),
	}
}

func (f *fakeRemote) failID(id string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[id] = err
}

func (f *fakeRemote) Preview(ctx context.Context, styleID, text string) (string, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		cur := f.maxInFlight.Load()
		if n <= cur || f.maxInFlight.CompareAndSwap(cur, n) {
			break
		}
	}

	f.mu.Lock()
	f.calls[styleID]++
	err := f.fail[styleID]
	empty := f.empty[styleID]
	release := f.release
	f.mu.Unlock()

	if release != nil {
		<-release
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	if err != nil {
		return "", err
	}
	if empty {
		return "", nil
	}
	return payloadFor(styleID, text), nil
}

func (f *fakeRemote) callsFor(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[id]
}

func (f *fakeRemote) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

func payloadFor(id, text string) string {
	return fmt.Sprintf("data:image/png;base64,%s-%s", id, text)
}

func makeItems(n int) []WorkItem {
	items := make([]WorkItem, n)
	for i := range items {
		items[i] = WorkItem{ID: fmt.Sprintf("style-%d", i), DisplayText: "ABC"}
	}
	return items
}

// recordingSink collects sink calls by index.
type recordingSink struct {
	mu        sync.Mutex
	successes map[int]string
	failures  map[int]error
	calls     map[int]int
}

func newRecordingSink() *recordingSink {
	return &recordingSink{
		successes: make(map[int]string),
		failures:  make(map[int]error),
		calls:     make(map[int]int),
	}
}

func (s *recordingSink) OnPreview(index int, item WorkItem, payload string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.successes[index] = payload
	s.calls[index]++
}

func (s *recordingSink) OnPreviewError(index int, item WorkItem, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[index] = err
	s.calls[index]++
}

func (s *recordingSink) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.calls {
		total += n
	}
	return total
}

var errBoom = errors.New("boom")
