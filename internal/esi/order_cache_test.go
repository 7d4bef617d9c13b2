package esi

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestOrderCacheLoadCoalesces(t *testing.T) {
	oc := NewOrderCache()
	var calls int32
	release := make(chan struct{})
	fetch := func() ([]MarketOrder, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return []MarketOrder{{OrderID: 1, TypeID: 34}}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			orders, err := oc.Load("structure:1", fetch)
			if err != nil || len(orders) != 1 {
				t.Errorf("Load = %v, %v", orders, err)
			}
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("fetch ran %d times, want 1", n)
	}
	if _, ok := oc.Get("structure:1"); !ok {
		t.Error("result was not cached")
	}
}

func TestOrderCacheExpiry(t *testing.T) {
	oc := NewOrderCache()
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	oc.now = func() time.Time { return now }

	oc.Put("region:10000002:34", []MarketOrder{{OrderID: 7}}, now.Add(OrderTTL))
	if _, ok := oc.Get("region:10000002:34"); !ok {
		t.Fatal("fresh entry missing")
	}
	now = now.Add(OrderTTL + time.Second)
	if _, ok := oc.Get("region:10000002:34"); ok {
		t.Fatal("expired entry still served")
	}

	calls := 0
	_, err := oc.Load("region:10000002:34", func() ([]MarketOrder, error) {
		calls++
		return []MarketOrder{{OrderID: 8}}, nil
	})
	if err != nil || calls != 1 {
		t.Fatalf("reload after expiry: err=%v calls=%d", err, calls)
	}
}

func TestOrderCacheLoadErrorNotCached(t *testing.T) {
	oc := NewOrderCache()
	boom := errors.New("ESI 503")
	if _, err := oc.Load("k", func() ([]MarketOrder, error) { return nil, boom }); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if _, ok := oc.Get("k"); ok {
		t.Fatal("failed load was cached")
	}
}

func TestOrderCacheClear(t *testing.T) {
	oc := NewOrderCache()
	exp := time.Now().Add(time.Minute)
	oc.Put("a", nil, exp)
	oc.Put("b", nil, exp)
	if n := oc.Clear(); n != 2 {
		t.Errorf("Clear() = %d, want 2", n)
	}
	if _, ok := oc.Get("a"); ok {
		t.Error("entry survived Clear")
	}
}
