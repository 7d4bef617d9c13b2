package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"eve-industry/internal/config"
	"eve-industry/internal/esi"
)

type memHistory struct {
	mu      sync.Mutex
	entries map[[2]int32][]esi.HistoryEntry
}

func (m *memHistory) GetMarketHistory(regionID, typeID int32) ([]esi.HistoryEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[[2]int32{regionID, typeID}]
	return e, ok
}

func (m *memHistory) SetMarketHistory(regionID, typeID int32, entries []esi.HistoryEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[[2]int32{regionID, typeID}] = entries
}

func newMarketServer(t *testing.T) (*esi.Client, *int32) {
	t.Helper()
	var historyHits int32
	mux := http.NewServeMux()
	mux.HandleFunc("/markets/10000002/orders/", func(w http.ResponseWriter, r *http.Request) {
		typeID, _ := strconv.Atoi(r.URL.Query().Get("type_id"))
		var orders []esi.MarketOrder
		if typeID == 34 {
			orders = []esi.MarketOrder{
				{OrderID: 1, TypeID: 34, LocationID: 60003760, Price: 5.5},
				{OrderID: 2, TypeID: 34, LocationID: 60003760, Price: 5.1, IsBuyOrder: true},
				{OrderID: 3, TypeID: 34, LocationID: 60008494, Price: 4.0},
			}
		}
		_ = json.NewEncoder(w).Encode(orders)
	})
	mux.HandleFunc("/markets/structures/1035466617946/", func(w http.ResponseWriter, r *http.Request) {
		if page, _ := strconv.Atoi(r.URL.Query().Get("page")); page > 1 {
			http.Error(w, `{"error":"Requested page does not exist!"}`, http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode([]esi.MarketOrder{
			{OrderID: 10, TypeID: 22456, LocationID: 1035466617946, Price: 90e6},
			{OrderID: 11, TypeID: 22456, LocationID: 1035466617946, Price: 70e6, IsBuyOrder: true},
		})
	})
	mux.HandleFunc("/markets/10000003/history/", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&historyHits, 1)
		_ = json.NewEncoder(w).Encode([]esi.HistoryEntry{
			{Date: "2026-10-10", Average: 100, Volume: 3},
			{Date: "2026-09-01", Average: 50, Volume: 10},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return esi.NewClient(esi.WithBaseURL(srv.URL), esi.WithHTTPClient(srv.Client()), esi.WithToken("tok")), &historyHits
}

func TestESIMarket_Quotes(t *testing.T) {
	client, _ := newMarketServer(t)
	m := NewESIMarket(client, nil, config.Default())

	hub, err := m.Quotes(context.Background(), testHub, []int32{34, 35})
	if err != nil {
		t.Fatalf("hub quotes: %v", err)
	}
	if hub[34] != (esi.Quote{Buy: 5.1, Sell: 5.5}) {
		t.Errorf("hub[34] = %+v, want buy 5.1 sell 5.5 (other stations ignored)", hub[34])
	}
	if hub[35] != (esi.Quote{}) {
		t.Errorf("hub[35] = %+v, want zero quote", hub[35])
	}

	sec, err := m.Quotes(context.Background(), testSecondary, []int32{22456})
	if err != nil {
		t.Fatalf("structure quotes: %v", err)
	}
	if sec[22456] != (esi.Quote{Buy: 70e6, Sell: 90e6}) {
		t.Errorf("sec[22456] = %+v", sec[22456])
	}
}

func TestESIMarket_MonthlyStatsCached(t *testing.T) {
	client, hits := newMarketServer(t)
	cache := &memHistory{entries: map[[2]int32][]esi.HistoryEntry{}}
	m := NewESIMarket(client, cache, config.Default())
	m.now = func() time.Time { return time.Date(2026, 10, 19, 15, 0, 0, 0, time.UTC) }

	for i := 0; i < 2; i++ {
		w, err := m.MonthlyStats(context.Background(), testSecondary, 22456)
		if err != nil {
			t.Fatalf("MonthlyStats: %v", err)
		}
		if w.Entries != 1 || w.Flow != 300 || w.Volume != 3 {
			t.Errorf("month window = %+v, want only 2026-10-10", w)
		}
	}
	if got := atomic.LoadInt32(hits); got != 1 {
		t.Errorf("history requests = %d, want 1 (second served from cache)", got)
	}

	s, err := m.Summary(context.Background(), testSecondary, 22456)
	if err != nil {
		t.Fatal(err)
	}
	if s.Week.Entries != 1 || s.Year.Entries != 2 || s.Year.Volume != 13 {
		t.Errorf("summary = %+v", s)
	}
}
