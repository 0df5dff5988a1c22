package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sony/gobreaker"

	"switchmonitor/internal/models"
)

var (
	dev = models.Device{IP: "10.0.0.2", Name: "core-sw2"}
	t0  = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
)

func event(status models.Status, at time.Time) models.TransitionEvent {
	return models.TransitionEvent{Device: dev, NewStatus: status, Timestamp: at}
}

// ---- fake sink ----

type fakeSink struct {
	err   error
	calls int
}

func (f *fakeSink) Name() string { return "fake" }

func (f *fakeSink) Record(context.Context, models.TransitionEvent) error {
	f.calls++
	return f.err
}

// ---- file store ----

func TestFileStore_RecordAndRecent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "switch_status.json")
	store, err := NewFileStore(path, 0)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	ctx := context.Background()
	if err := store.Record(ctx, event(models.StatusDown, t0)); err != nil {
		t.Fatalf("record down: %v", err)
	}
	if err := store.Record(ctx, event(models.StatusUp, t0.Add(time.Minute))); err != nil {
		t.Fatalf("record up: %v", err)
	}

	recent, err := store.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recent))
	}
	if recent[0].Status != models.StatusUp || recent[0].ID != 2 {
		t.Fatalf("expected newest first, got %+v", recent[0])
	}
	if recent[1].Status != models.StatusDown || recent[1].IP != dev.IP || recent[1].Name != dev.Name {
		t.Fatalf("unexpected oldest record %+v", recent[1])
	}

	limited, _ := store.Recent(ctx, 1)
	if len(limited) != 1 || limited[0].ID != 2 {
		t.Fatalf("limit not applied: %+v", limited)
	}
}

func TestFileStore_ReloadContinuesIDs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "switch_status.json")
	store, err := NewFileStore(path, 0)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	ctx := context.Background()
	_ = store.Record(ctx, event(models.StatusDown, t0))

	reopened, err := NewFileStore(path, 0)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if err := reopened.Record(ctx, event(models.StatusUp, t0.Add(time.Second))); err != nil {
		t.Fatalf("record: %v", err)
	}
	recent, _ := reopened.Recent(ctx, 0)
	if len(recent) != 2 || recent[0].ID != 2 || recent[1].ID != 1 {
		t.Fatalf("unexpected records after reload: %+v", recent)
	}
	if !recent[1].Timestamp.Equal(t0) {
		t.Fatalf("timestamp not preserved: %v", recent[1].Timestamp)
	}
}

func TestFileStore_FailedWriteLeavesHistory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	store, err := NewFileStore(filepath.Join(dir, "switch_status.json"), 0)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if err := os.RemoveAll(dir); err != nil {
		t.Fatalf("remove dir: %v", err)
	}

	if err := store.Record(context.Background(), event(models.StatusDown, t0)); err == nil {
		t.Fatalf("expected write error")
	}
	recent, _ := store.Recent(context.Background(), 10)
	if len(recent) != 0 {
		t.Fatalf("failed write must not be visible, got %+v", recent)
	}
}

func TestFileStore_KeepsNewestMaxRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "switch_status.json")
	store, err := NewFileStore(path, 3)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	ctx := context.Background()
	statuses := []models.Status{models.StatusDown, models.StatusUp}
	for i := 0; i < 5; i++ {
		if err := store.Record(ctx, event(statuses[i%2], t0.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}

	recent, _ := store.Recent(ctx, 100)
	if len(recent) != 3 || recent[0].ID != 5 || recent[2].ID != 3 {
		t.Fatalf("expected records 5..3, got %+v", recent)
	}

	reopened, err := NewFileStore(path, 3)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if err := reopened.Record(ctx, event(models.StatusUp, t0.Add(time.Hour))); err != nil {
		t.Fatalf("record after reopen: %v", err)
	}
	recent, _ = reopened.Recent(ctx, 100)
	if len(recent) != 3 || recent[0].ID != 6 || recent[2].ID != 4 {
		t.Fatalf("expected records 6..4 after reopen, got %+v", recent)
	}
}

func TestFileStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "switch_status.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := NewFileStore(path, 0); err == nil {
		t.Fatalf("expected parse error")
	}
}

// ---- breaker ----

func TestBreakerSink_OpensAfterConsecutiveFailures(t *testing.T) {
	inner := &fakeSink{err: errors.New("db down")}
	b := NewBreakerSink(inner, 2, time.Hour)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := b.Record(ctx, event(models.StatusDown, t0)); err == nil {
			t.Fatalf("call %d: expected error", i)
		}
	}
	if b.State() != gobreaker.StateOpen {
		t.Fatalf("expected open breaker, got %s", b.State())
	}

	err := b.Record(ctx, event(models.StatusUp, t0))
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected ErrOpenState, got %v", err)
	}
	if inner.calls != 2 {
		t.Fatalf("open breaker must not call inner sink, calls=%d", inner.calls)
	}
}

func TestBreakerSink_PassesThroughSuccess(t *testing.T) {
	inner := &fakeSink{}
	b := NewBreakerSink(inner, 3, time.Second)

	if err := b.Record(context.Background(), event(models.StatusDown, t0)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.calls != 1 || b.Name() != "fake" {
		t.Fatalf("unexpected inner state calls=%d name=%s", inner.calls, b.Name())
	}
}
