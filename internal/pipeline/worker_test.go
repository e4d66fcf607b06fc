package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dgallion1/docstruct/internal/analyzer"
	"github.com/dgallion1/docstruct/internal/config"
	"github.com/dgallion1/docstruct/internal/correction"
	"github.com/dgallion1/docstruct/internal/parser"
)

const story = `# Chapter 1: Arrival

The ship came in at dawn. Gulls circled the mast.

The harbor master waved.

# Chapter 2: The Market

Stalls lined the quay. Fish glittered on ice.
`

func quietLog() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newAnalyzer(t *testing.T, store correction.ProfileStore) *analyzer.Analyzer {
	t.Helper()
	a, err := analyzer.New(analyzer.DefaultConfig(), store, nil, quietLog())
	if err != nil {
		t.Fatalf("new analyzer: %v", err)
	}
	return a
}

func noBackoff(int) time.Duration { return 0 }

type tempErr struct{}

func (tempErr) Error() string   { return "store unavailable" }
func (tempErr) Temporary() bool { return true }

// flakyStore fails the first failures Load calls with a temporary error.
type flakyStore struct {
	mu       sync.Mutex
	failures int
	calls    int
	*correction.MemoryStore
}

func (f *flakyStore) Load(ctx context.Context, id string) (correction.SavedCorrections, error) {
	f.mu.Lock()
	f.calls++
	fail := f.calls <= f.failures
	f.mu.Unlock()
	if fail {
		return correction.SavedCorrections{}, tempErr{}
	}
	return f.MemoryStore.Load(ctx, id)
}

func TestWorker_Process(t *testing.T) {
	w := NewWorker(newAnalyzer(t, nil), parser.Options{}, quietLog())
	job := NewJob("harbor.md", "Harbor Tales", []byte(story), analyzer.Options{GenerateTree: true})

	w.Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusCompleted {
		t.Fatalf("status = %q, errors = %v", snap.Status, snap.Progress.Errors)
	}
	if snap.Progress.Chapters != 2 || snap.Progress.Percent != 100 {
		t.Errorf("progress = %+v", snap.Progress)
	}
	if snap.DocID != "harbor-tales" {
		t.Errorf("doc id = %q", snap.DocID)
	}
	res, ok := job.Result()
	if !ok || res.Tree == nil {
		t.Fatalf("expected result with tree, ok = %v", ok)
	}
	if !res.Structure.ProcessingMetrics.Streamed {
		t.Error("jobs should analyze in streaming mode")
	}
	if job.FileData() != nil {
		t.Error("upload should be released after parsing")
	}
}

func TestWorker_UnsupportedFormat(t *testing.T) {
	w := NewWorker(newAnalyzer(t, nil), parser.Options{}, quietLog())
	job := NewJob("report.docx", "", []byte("x"), analyzer.Options{})
	w.Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusFailed || snap.Phase != "parsing" {
		t.Errorf("status = %q, phase = %q", snap.Status, snap.Phase)
	}
	if len(snap.Progress.Errors) != 1 {
		t.Errorf("errors = %v", snap.Progress.Errors)
	}
}

func TestWorker_EmptyDocumentCompletesWithErrors(t *testing.T) {
	w := NewWorker(newAnalyzer(t, nil), parser.Options{}, quietLog())
	job := NewJob("blank.txt", "", []byte("   \n\n"), analyzer.Options{})
	w.Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusCompleted {
		t.Fatalf("status = %q", snap.Status)
	}
	if len(snap.Progress.Errors) == 0 || snap.Progress.Confidence != 0 {
		t.Errorf("progress = %+v", snap.Progress)
	}
}

func TestWorker_RetriesTemporaryStoreErrors(t *testing.T) {
	store := &flakyStore{failures: 2, MemoryStore: correction.NewMemoryStore()}
	w := NewWorker(newAnalyzer(t, store), parser.Options{}, quietLog())
	w.backoff = noBackoff

	job := NewJob("harbor.md", "", []byte(story), analyzer.Options{ApplySavedCorrections: true})
	w.Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusCompleted {
		t.Fatalf("status = %q, errors = %v", snap.Status, snap.Progress.Errors)
	}
	if snap.Progress.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", snap.Progress.Attempts)
	}
}

func TestWorker_GivesUpAfterMaxRetries(t *testing.T) {
	store := &flakyStore{failures: 100, MemoryStore: correction.NewMemoryStore()}
	w := NewWorker(newAnalyzer(t, store), parser.Options{}, quietLog())
	w.backoff = noBackoff

	job := NewJob("harbor.md", "", []byte(story), analyzer.Options{ApplySavedCorrections: true})
	w.Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusFailed {
		t.Fatalf("status = %q", snap.Status)
	}
	if snap.Progress.Attempts != MaxRetries {
		t.Errorf("attempts = %d, want %d", snap.Progress.Attempts, MaxRetries)
	}
}

// brokenStore fails every Load with a permanent error.
type brokenStore struct {
	*correction.MemoryStore
}

func (brokenStore) Load(context.Context, string) (correction.SavedCorrections, error) {
	return correction.SavedCorrections{}, errors.New("profile corrupt")
}

func TestWorker_NoRetryOnPermanentError(t *testing.T) {
	store := brokenStore{MemoryStore: correction.NewMemoryStore()}
	w := NewWorker(newAnalyzer(t, store), parser.Options{}, quietLog())
	w.backoff = noBackoff

	job := NewJob("harbor.md", "", []byte(story), analyzer.Options{ApplySavedCorrections: true})
	w.Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusFailed {
		t.Fatalf("status = %q", snap.Status)
	}
	if snap.Progress.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", snap.Progress.Attempts)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("bad"), false},
		{"temporary", tempErr{}, true},
		{"wrapped temporary", errors.Join(errors.New("load profile"), tempErr{}), true},
		{"canceled", context.Canceled, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestBackoff_Capped(t *testing.T) {
	for attempt := 0; attempt < 10; attempt++ {
		if d := Backoff(attempt); d > 45*time.Second {
			t.Errorf("Backoff(%d) = %v exceeds cap", attempt, d)
		}
	}
}

func TestOrchestrator_RunsJobs(t *testing.T) {
	cfg := config.Config{WorkerCount: 2, MaxQueueSize: 10, JobTTL: time.Hour}
	o := NewOrchestrator(cfg, newAnalyzer(t, nil), quietLog())
	o.Start(context.Background())
	defer o.Stop()

	var ids []string
	for i := 0; i < 3; i++ {
		job := NewJob("harbor.md", "", []byte(story), analyzer.Options{})
		if err := o.Submit(job); err != nil {
			t.Fatalf("submit: %v", err)
		}
		ids = append(ids, job.ID)
	}

	deadline := time.Now().Add(5 * time.Second)
	for _, id := range ids {
		for {
			snap := o.GetJob(id).Snapshot()
			if snap.Status.Terminal() {
				if snap.Status != StatusCompleted {
					t.Errorf("job %s status = %q", id, snap.Status)
				}
				break
			}
			if time.Now().After(deadline) {
				t.Fatalf("job %s did not finish", id)
			}
			time.Sleep(5 * time.Millisecond)
		}
	}
	if len(o.Jobs()) != 3 {
		t.Errorf("jobs = %d", len(o.Jobs()))
	}
}

func TestOrchestrator_QueueFull(t *testing.T) {
	cfg := config.Config{WorkerCount: 1, MaxQueueSize: 1, JobTTL: time.Hour}
	// Not started: nothing drains the queue.
	o := NewOrchestrator(cfg, newAnalyzer(t, nil), quietLog())

	if err := o.Submit(NewJob("a.md", "", []byte(story), analyzer.Options{})); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	job := NewJob("b.md", "", []byte(story), analyzer.Options{})
	err := o.Submit(job)
	if !errors.Is(err, ErrQueueFull) {
		t.Fatalf("err = %v, want ErrQueueFull", err)
	}
	if snap := job.Snapshot(); snap.Status != StatusFailed || snap.Phase != "queue_full" {
		t.Errorf("rejected job = %+v", snap)
	}
	if o.QueueDepth() != 1 {
		t.Errorf("queue depth = %d", o.QueueDepth())
	}
}
