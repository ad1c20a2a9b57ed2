package result

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestKeyedLockTimesOutAsContention(t *testing.T) {
	l := newKeyedLock()
	release, err := l.acquire(context.Background(), 1, time.Second)
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	defer release()

	_, err = l.acquire(context.Background(), 1, 20*time.Millisecond)
	if !errors.Is(err, ErrStorageContention) {
		t.Fatalf("expected ErrStorageContention, got %v", err)
	}
}

func TestKeyedLockIndependentKeys(t *testing.T) {
	l := newKeyedLock()
	release, err := l.acquire(context.Background(), 1, time.Second)
	if err != nil {
		t.Fatalf("acquire exam 1: %v", err)
	}
	defer release()

	other, err := l.acquire(context.Background(), 2, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("exam 2 must not wait on exam 1: %v", err)
	}
	other()
}

func TestKeyedLockCanceledContext(t *testing.T) {
	l := newKeyedLock()
	release, _ := l.acquire(context.Background(), 1, time.Second)
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := l.acquire(ctx, 1, time.Second)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestSubmitRunTransitions(t *testing.T) {
	run := &submitRun{examID: 1}
	if err := run.advance(stateInserted); err == nil {
		t.Fatalf("idle -> inserted must be rejected")
	}
	for _, next := range []submitState{stateChecking, stateInserted, stateRanksStale, stateRanksFresh} {
		if err := run.advance(next); err != nil {
			t.Fatalf("advance to %s: %v", next, err)
		}
	}

	run = &submitRun{examID: 1}
	_ = run.advance(stateChecking)
	_ = run.advance(stateInserted)
	run.rollback(errors.New("commit failed"))
	if run.state != stateIdle {
		t.Fatalf("expected idle after rollback, got %s", run.state)
	}

	run = &submitRun{examID: 1, state: stateRanksStale}
	run.rollback(errors.New("late"))
	if run.state != stateRanksStale {
		t.Fatalf("committed submissions must not roll back, got %s", run.state)
	}
}
