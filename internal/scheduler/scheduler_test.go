package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/i474232898/air-quality-aggregation/internal/airquality"
	"github.com/i474232898/air-quality-aggregation/internal/store"
)

type fakeFetcher struct {
	mu    sync.Mutex
	calls int
	known map[string]int
}

func (f *fakeFetcher) GetBatch(_ context.Context, qs []airquality.Query) map[string]airquality.Record {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	out := make(map[string]airquality.Record)
	for _, q := range qs {
		if aqi, ok := f.known[q.City]; ok {
			out[q.City] = airquality.Record{AQI: aqi, City: q.City, Provider: "fake", Coordinates: q.Coordinates()}
		}
	}
	return out
}

func (f *fakeFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type failingCache struct{}

func (failingCache) Get(context.Context, string) (airquality.Record, error) {
	return airquality.Record{}, store.ErrNotFound
}

func (failingCache) Set(context.Context, string, airquality.Record) error {
	return errors.New("cache down")
}

var queries = []airquality.Query{
	{Lat: 27.7172, Lng: 85.324, City: "Kathmandu"},
	{Lat: 28.2096, Lng: 83.9856, City: "Pokhara"},
	{Lat: 26.7153, Lng: 87.2843, City: "Dharan"},
}

func TestRun_StoresSuccessfulLocations(t *testing.T) {
	fetcher := &fakeFetcher{known: map[string]int{"Kathmandu": 152, "Dharan": 80}}
	cache := store.NewMemoryStore(time.Hour)
	s := New(queries, time.Minute, time.Second, fetcher, cache, zaptest.NewLogger(t))

	if got := s.Run(context.Background()); got != 2 {
		t.Fatalf("expected 2 stored records, got %d", got)
	}

	rec, err := cache.Get(context.Background(), queries[0].Key())
	if err != nil || rec.AQI != 152 {
		t.Fatalf("expected cached Kathmandu record, got %+v (%v)", rec, err)
	}
	if _, err := cache.Get(context.Background(), queries[1].Key()); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected Pokhara to be missing, got %v", err)
	}
}

func TestRun_DuplicateCityKeepsLocationsApart(t *testing.T) {
	fetcher := &fakeFetcher{known: map[string]int{"Kathmandu": 152}}
	cache := store.NewMemoryStore(time.Hour)
	dups := []airquality.Query{
		{Lat: 27.7172, Lng: 85.324, City: "Kathmandu"},
		{Lat: 27.6, Lng: 85.5, City: "Kathmandu"},
	}
	s := New(dups, time.Minute, time.Second, fetcher, cache, zaptest.NewLogger(t))

	if got := s.Run(context.Background()); got != 1 {
		t.Fatalf("expected 1 stored record, got %d", got)
	}
	if _, err := cache.Get(context.Background(), dups[0].Key()); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected no record under %s, got %v", dups[0].Key(), err)
	}
	rec, err := cache.Get(context.Background(), dups[1].Key())
	if err != nil || rec.Coordinates != dups[1].Coordinates() {
		t.Fatalf("expected record for %s, got %+v (%v)", dups[1].Key(), rec, err)
	}
}

func TestRun_CacheFailuresAreSkipped(t *testing.T) {
	fetcher := &fakeFetcher{known: map[string]int{"Kathmandu": 152}}
	s := New(queries, time.Minute, time.Second, fetcher, failingCache{}, zaptest.NewLogger(t))

	if got := s.Run(context.Background()); got != 0 {
		t.Fatalf("expected 0 stored records, got %d", got)
	}
}

func TestStart_RunsImmediately(t *testing.T) {
	fetcher := &fakeFetcher{known: map[string]int{"Kathmandu": 152}}
	cache := store.NewMemoryStore(time.Hour)
	// The job may still be logging after the test returns.
	s := New(queries, time.Hour, time.Second, fetcher, cache, zap.NewNop())

	if err := s.Start(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(s.Stop)

	deadline := time.Now().Add(2 * time.Second)
	for fetcher.Calls() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("warm-up job did not run")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestStart_NothingToSchedule(t *testing.T) {
	fetcher := &fakeFetcher{}
	s := New(nil, time.Minute, time.Second, fetcher, store.NewMemoryStore(time.Hour), zaptest.NewLogger(t))

	if err := s.Start(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s.Stop()
	if fetcher.Calls() != 0 {
		t.Fatalf("expected no runs, got %d", fetcher.Calls())
	}
}
