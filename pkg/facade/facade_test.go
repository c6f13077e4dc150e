package facade

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/openthread/otcommissioner/internal/coerr"
)

func testConfig() Config {
	return Config{ID: "commissioner-1", PSKc: [16]byte{1, 2, 3}}
}

func newTestFacade(t *testing.T) *Facade {
	t.Helper()
	f, err := New(testConfig(), Handler{})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(f.Close)
	return f
}

func TestNewStartsInDisabledState(t *testing.T) {
	f := newTestFacade(t)
	if f.State().String() != "disabled" {
		t.Fatalf("expected state disabled, got %s", f.State())
	}
}

func TestPetitionWhileDisabledReturnsInvalidState(t *testing.T) {
	f := newTestFacade(t)
	err := f.Petition(context.Background())
	if !coerr.Is(err, coerr.InvalidState) {
		t.Fatalf("expected InvalidState, got %v", err)
	}
}

func TestPetitionAsyncInvokesCallbackExactlyOnce(t *testing.T) {
	f := newTestFacade(t)

	var calls int32
	done := make(chan error, 1)
	f.PetitionAsync(context.Background(), func(err error) {
		atomic.AddInt32(&calls, 1)
		done <- err
	})

	select {
	case err := <-done:
		if !coerr.Is(err, coerr.InvalidState) {
			t.Fatalf("expected InvalidState, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("callback was never invoked")
	}

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected exactly one callback invocation, got %d", got)
	}
}

// TestReactorSerializesConcurrentCalls submits many concurrent jobs
// through submitSync and checks none observe each other running: the reactor's single
// goroutine means every core method call happens strictly before the next
// begins, so a shared counter incremented/decremented around the call body
// never exceeds 1.
func TestReactorSerializesConcurrentCalls(t *testing.T) {
	f := newTestFacade(t)

	var inFlight int32
	var maxObserved int32
	const n = 50

	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, _ = submitSync(context.Background(), f, func() (struct{}, error) {
				cur := atomic.AddInt32(&inFlight, 1)
				for {
					old := atomic.LoadInt32(&maxObserved)
					if cur <= old || atomic.CompareAndSwapInt32(&maxObserved, old, cur) {
						break
					}
				}
				atomic.AddInt32(&inFlight, -1)
				return struct{}{}, nil
			})
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt32(&maxObserved); got != 1 {
		t.Fatalf("expected at most one job in flight at a time, observed %d", got)
	}
}

func TestSubmitSyncUnblocksOnContextCancellation(t *testing.T) {
	f := newTestFacade(t)

	block := make(chan struct{})
	defer close(block)

	// Occupy the reactor with a job that will not return until block is
	// closed, so the next submission is still queued when ctx expires.
	go func() {
		_, _ = submitSync(context.Background(), f, func() (struct{}, error) {
			<-block
			return struct{}{}, nil
		})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := submitSync(ctx, f, func() (struct{}, error) {
		return struct{}{}, nil
	})
	if !coerr.Is(err, coerr.Cancelled) {
		t.Fatalf("expected Cancelled, got %v", err)
	}
}

func TestSetCCMCredentialsRejectedWithoutCCM(t *testing.T) {
	f := newTestFacade(t)
	err := f.SetCCMCredentials(context.Background(), nil, nil)
	if !coerr.Is(err, coerr.InvalidState) {
		t.Fatalf("expected InvalidState, got %v", err)
	}
}

func TestCloseRunsQueuedJobsBeforeReturning(t *testing.T) {
	f, err := New(testConfig(), Handler{})
	if err != nil {
		t.Fatal(err)
	}

	var ran int32
	f.PetitionAsync(context.Background(), func(error) {
		atomic.AddInt32(&ran, 1)
	})
	f.Close()

	if got := atomic.LoadInt32(&ran); got != 1 {
		t.Fatalf("expected queued job to run before Close returned, ran=%d", got)
	}
}
