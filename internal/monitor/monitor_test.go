package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
	got    chan struct{}
}

func newRecorder() *recorder {
	return &recorder{got: make(chan struct{}, 1)}
}

func (r *recorder) Report(_ context.Context, ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	select {
	case r.got <- struct{}{}:
	default:
	}
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func TestWatchReportsSlowCallWithoutCancelling(t *testing.T) {
	rec := newRecorder()
	w := NewWatcher(10*time.Millisecond, rec)

	release := make(chan struct{})
	done := make(chan struct{})
	var result string
	var err error
	go func() {
		defer close(done)
		result, err = Watch(context.Background(), w, "writeFile", map[string]string{"name": "a.json"},
			func(ctx context.Context) (string, error) {
				<-release
				return "ok", ctx.Err()
			})
	}()

	select {
	case <-rec.got:
	case <-time.After(2 * time.Second):
		t.Fatal("slow call not reported")
	}
	close(release)
	<-done

	if err != nil || result != "ok" {
		t.Errorf("call result altered: %q, %v", result, err)
	}
	ev := rec.events[0]
	if ev.Name != "writeFile" || ev.Elapsed < 10*time.Millisecond {
		t.Errorf("unexpected event %+v", ev)
	}
	if ev.Size != len(`{"name":"a.json"}`) {
		t.Errorf("expected size %d, got %d", len(`{"name":"a.json"}`), ev.Size)
	}
}

func TestWatchFastCallNotReported(t *testing.T) {
	rec := newRecorder()
	w := NewWatcher(50*time.Millisecond, rec)

	want := errors.New("boom")
	_, err := Watch(context.Background(), w, "readKv", nil, func(context.Context) (int, error) {
		return 0, want
	})
	if !errors.Is(err, want) {
		t.Errorf("expected error passed through, got %v", err)
	}

	time.Sleep(100 * time.Millisecond)
	if rec.count() != 0 {
		t.Errorf("fast call reported %d times", rec.count())
	}
}

func TestNilWatcher(t *testing.T) {
	v, err := Watch(context.Background(), nil, "x", nil, func(context.Context) (int, error) { return 7, nil })
	if v != 7 || err != nil {
		t.Errorf("expected passthrough, got %d, %v", v, err)
	}
	if NewWatcher(0, nil).Bound() != DefaultBound {
		t.Error("expected default bound")
	}
}
