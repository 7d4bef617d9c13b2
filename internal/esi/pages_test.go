package esi

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"testing"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// boundaryCheck simulates a collection with pages 1..n.
func boundaryCheck(n int, calls *int) PageCheck {
	return func(_ context.Context, page int) (bool, error) {
		*calls++
		if page <= n {
			return true, nil
		}
		return false, &StatusError{Code: 404, Body: "Requested page does not exist!"}
	}
}

func TestFindMaxPage_ExactBoundary(t *testing.T) {
	starts := []struct{ begin, interval int }{
		{1, 1}, {1, 2}, {20, 10}, {350, 50}, {500, 500}, {7, 3},
	}
	for _, s := range starts {
		boundaries := []int{0, 1, 2, s.begin - 1, s.begin, s.begin + 1, s.begin + s.interval, 999, 4321}
		for _, n := range boundaries {
			if n < 0 {
				continue
			}
			t.Run(fmt.Sprintf("begin=%d/interval=%d/N=%d", s.begin, s.interval, n), func(t *testing.T) {
				calls := 0
				got, err := FindMaxPage(context.Background(), boundaryCheck(n, &calls), s.begin, s.interval)
				if err != nil {
					t.Fatalf("FindMaxPage: %v", err)
				}
				if got != n {
					t.Fatalf("FindMaxPage = %d, want %d", got, n)
				}
			})
		}
	}
}

func TestFindMaxPage_LookupCountBounded(t *testing.T) {
	calls := 0
	n := 1234
	if _, err := FindMaxPage(context.Background(), boundaryCheck(n, &calls), 100, 100); err != nil {
		t.Fatal(err)
	}
	// 13 forward steps (100..1300) + ceil(log2(100)) = 7 bisection lookups.
	if calls > 13+8 {
		t.Errorf("lookup calls = %d, want <= 21", calls)
	}
}

func TestFindMaxPage_LookupErrorsCountAsMissing(t *testing.T) {
	check := func(_ context.Context, page int) (bool, error) {
		if page <= 5 {
			return true, nil
		}
		return false, errors.New("connection reset")
	}
	got, err := FindMaxPage(context.Background(), check, 1, 2)
	if err != nil {
		t.Fatalf("FindMaxPage: %v", err)
	}
	if got != 5 {
		t.Errorf("FindMaxPage = %d, want 5", got)
	}
}

func TestFindMaxPage_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	check := func(ctx context.Context, page int) (bool, error) { return true, nil }
	if _, err := FindMaxPage(ctx, check, 1, 1); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestFetchAllPages_DropsFailedPages(t *testing.T) {
	const maxPage = 40
	failing := map[int]bool{3: true, 7: true, 19: true, 40: true}

	fetch := func(_ context.Context, page int) (int, error) {
		if failing[page] {
			return 0, fmt.Errorf("ESI 502 on page %d", page)
		}
		return page, nil
	}
	got, err := FetchAllPages[int](context.Background(), fetch, maxPage)
	if err != nil {
		t.Fatalf("FetchAllPages: %v", err)
	}
	if len(got) != maxPage-len(failing) {
		t.Fatalf("len = %d, want %d", len(got), maxPage-len(failing))
	}
	sort.Ints(got)
	for _, p := range got {
		if failing[p] {
			t.Errorf("failed page %d present in result", p)
		}
	}
}

func TestFetchAllPages_RespectsConcurrencyCeiling(t *testing.T) {
	var inFlight, peak int32
	fetch := func(_ context.Context, page int) (int, error) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		defer atomic.AddInt32(&inFlight, -1)
		return page, nil
	}
	got, err := FetchAllPages[int](context.Background(), fetch, 100, WithPageConcurrency(4))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 100 {
		t.Fatalf("len = %d, want 100", len(got))
	}
	if peak > 4 {
		t.Errorf("peak concurrency = %d, want <= 4", peak)
	}
}

func TestFetchAllPages_ZeroPages(t *testing.T) {
	called := false
	fetch := func(_ context.Context, page int) (int, error) {
		called = true
		return page, nil
	}
	got, err := FetchAllPages[int](context.Background(), fetch, 0, RequireData())
	if err != nil || len(got) != 0 || called {
		t.Fatalf("got %v, %v, called=%v; want empty, nil, false", got, err, called)
	}
}

func TestFetchAllPages_RequireDataAllFailed(t *testing.T) {
	fetch := func(_ context.Context, page int) (int, error) {
		return 0, errors.New("boom")
	}
	_, err := FetchAllPages[int](context.Background(), fetch, 5, RequireData())
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("err = %v, want ErrUpstreamUnavailable", err)
	}

	got, err := FetchAllPages[int](context.Background(), fetch, 5)
	if err != nil || len(got) != 0 {
		t.Fatalf("without RequireData: got %v, %v; want empty, nil", got, err)
	}
}
