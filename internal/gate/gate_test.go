package gate

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestTryAcquireExclusive(t *testing.T) {
	g := New("calc")
	release, ok := g.TryAcquire(context.Background(), DefaultTimeout)
	if !ok {
		t.Fatal("first TryAcquire failed on an open gate")
	}

	start := time.Now()
	if _, ok := g.TryAcquire(context.Background(), 20*time.Millisecond); ok {
		t.Fatal("second TryAcquire succeeded while held")
	}
	if waited := time.Since(start); waited < 15*time.Millisecond {
		t.Errorf("TryAcquire returned after %v, want about the 20ms timeout", waited)
	}

	release()
	release() // double release is a no-op

	r2, ok := g.TryAcquire(context.Background(), DefaultTimeout)
	if !ok {
		t.Fatal("TryAcquire failed after release")
	}
	r2()
}

func TestTryAcquireZeroTimeout(t *testing.T) {
	g := New("calc")
	r, ok := g.TryAcquire(context.Background(), 0)
	if !ok {
		t.Fatal("zero-timeout acquire failed on an open gate")
	}
	if _, ok := g.TryAcquire(context.Background(), 0); ok {
		t.Fatal("zero-timeout acquire succeeded while held")
	}
	r()
}

func TestRunBusy(t *testing.T) {
	g := New("compression")
	release, _ := g.TryAcquire(context.Background(), DefaultTimeout)
	defer release()

	called := false
	err := g.Run(context.Background(), DefaultTimeout, func(context.Context) error {
		called = true
		return nil
	})
	if !IsBusy(err) {
		t.Fatalf("Run err = %v, want ErrBusy", err)
	}
	if called {
		t.Error("fn ran while the gate was held")
	}
	if err.Error() != "compression: "+BusyMessage {
		t.Errorf("err text = %q", err.Error())
	}
}

func TestRunReleasesOnError(t *testing.T) {
	g := New("calc")
	boom := errors.New("boom")
	if err := g.Run(context.Background(), DefaultTimeout, func(context.Context) error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("Run err = %v, want boom", err)
	}
	if err := g.Run(context.Background(), DefaultTimeout, func(context.Context) error { return nil }); err != nil {
		t.Fatalf("gate not released after error: %v", err)
	}
}

func TestRunReleasesOnPanic(t *testing.T) {
	g := New("calc")
	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("expected panic to propagate")
			}
		}()
		_ = g.Run(context.Background(), DefaultTimeout, func(context.Context) error { panic("solver blew up") })
	}()
	if err := g.Run(context.Background(), DefaultTimeout, func(context.Context) error { return nil }); err != nil {
		t.Fatalf("gate not released after panic: %v", err)
	}
}

func TestRunCancelledContext(t *testing.T) {
	g := New("calc")
	release, _ := g.TryAcquire(context.Background(), DefaultTimeout)
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := g.Run(ctx, time.Second, func(context.Context) error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
