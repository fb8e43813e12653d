package ledger

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"face-attendance-go/internal/core/models"
	"face-attendance-go/internal/core/recognition"
)

func at(day, hour, minute int) time.Time {
	return time.Date(2024, time.May, day, hour, minute, 0, 0, time.UTC)
}

// testStores liefert frische Speicher aller reinen Go-Backends
func testStores(t *testing.T) map[string]Store {
	t.Helper()
	return map[string]Store{
		"memory": NewMemoryStore(),
		"csv":    NewCSVStore(t.TempDir() + "/attendance.csv"),
		"sqlite": newTestGormStore(t),
	}
}

func TestMarkSameDayIsIdempotent(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			l := New(store)
			defer l.Close()

			first, err := l.Mark(ctx, "alice", at(6, 8, 15))
			if err != nil {
				t.Fatalf("first Mark failed: %v", err)
			}
			second, err := l.Mark(ctx, "alice", at(6, 17, 45))
			if err != nil {
				t.Fatalf("second Mark failed: %v", err)
			}

			if first != Recorded {
				t.Errorf("first = %v, want Recorded", first)
			}
			if second != AlreadyPresentToday {
				t.Errorf("second = %v, want AlreadyPresentToday", second)
			}

			records, err := l.List(ctx, "2024-05-06")
			if err != nil {
				t.Fatalf("List failed: %v", err)
			}
			want := models.AttendanceRecord{Name: "alice", Date: "2024-05-06", Time: "08:15:00"}
			if len(records) != 1 || records[0] != want {
				t.Errorf("records = %+v, want [%+v]", records, want)
			}
		})
	}
}

func TestMarkAcrossDaysCreatesTwoRecords(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			l := New(store)
			defer l.Close()

			for _, ts := range []time.Time{at(6, 9, 0), at(7, 9, 0)} {
				res, err := l.Mark(ctx, "alice", ts)
				if err != nil {
					t.Fatalf("Mark failed: %v", err)
				}
				if res != Recorded {
					t.Errorf("Mark(%s) = %v, want Recorded", ts.Format(DateLayout), res)
				}
			}

			records, err := l.List(ctx, "")
			if err != nil {
				t.Fatalf("List failed: %v", err)
			}
			if len(records) != 2 {
				t.Fatalf("got %d records, want 2: %+v", len(records), records)
			}
			if records[0].Date != "2024-05-06" || records[1].Date != "2024-05-07" {
				t.Errorf("records out of order: %+v", records)
			}
		})
	}
}

func TestMarkDifferentIdentitiesSameDay(t *testing.T) {
	ctx := context.Background()
	l := New(NewMemoryStore())

	for _, name := range []string{"alice", "bob"} {
		if res, err := l.Mark(ctx, name, at(6, 9, 0)); err != nil || res != Recorded {
			t.Errorf("Mark(%s) = %v, %v; want Recorded", name, res, err)
		}
	}
}

func TestMarkRejectsInvalidNames(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	l := New(store)

	for _, name := range []string{"", "   ", recognition.Unknown} {
		if _, err := l.Mark(ctx, name, at(6, 9, 0)); !errors.Is(err, ErrInvalidName) {
			t.Errorf("Mark(%q) error = %v, want ErrInvalidName", name, err)
		}
	}
	if records, _ := store.List(ctx, ""); len(records) != 0 {
		t.Errorf("invalid names must not be written, got %+v", records)
	}
}

func TestMarkConcurrentSameIdentity(t *testing.T) {
	ctx := context.Background()
	l := New(&slowStore{MemoryStore: NewMemoryStore()})

	const callers = 50
	var recorded, present atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			res, err := l.Mark(ctx, "alice", at(6, 9, i%60))
			if err != nil {
				t.Errorf("Mark failed: %v", err)
				return
			}
			switch res {
			case Recorded:
				recorded.Add(1)
			case AlreadyPresentToday:
				present.Add(1)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	if recorded.Load() != 1 {
		t.Errorf("recorded = %d, want exactly 1", recorded.Load())
	}
	if present.Load() != callers-1 {
		t.Errorf("already present = %d, want %d", present.Load(), callers-1)
	}
}

func TestMarkRetriesOnceThenSucceeds(t *testing.T) {
	store := &flakyStore{MemoryStore: NewMemoryStore(), failures: 1}
	l := New(store, WithRetries(1))

	res, err := l.Mark(context.Background(), "alice", at(6, 9, 0))
	if err != nil {
		t.Fatalf("Mark failed: %v", err)
	}
	if res != Recorded {
		t.Errorf("res = %v, want Recorded", res)
	}
	if store.calls != 2 {
		t.Errorf("store called %d times, want 2", store.calls)
	}
}

func TestMarkSurfacesStoreErrorAfterOneRetry(t *testing.T) {
	tests := []struct {
		name      string
		retries   int
		wantCalls int
	}{
		{"no retry", 0, 1},
		{"one retry", 1, 2},
		{"retries capped at one", 5, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &flakyStore{MemoryStore: NewMemoryStore(), failures: 100}
			l := New(store, WithRetries(tt.retries))

			_, err := l.Mark(context.Background(), "alice", at(6, 9, 0))

			var storeErr *StoreError
			if !errors.As(err, &storeErr) {
				t.Fatalf("error = %v, want *StoreError", err)
			}
			if !errors.Is(err, errDiskFull) {
				t.Errorf("StoreError does not wrap the cause: %v", err)
			}
			if storeErr.Op != "insert" || storeErr.Name != "alice" || storeErr.Date != "2024-05-06" {
				t.Errorf("unexpected StoreError fields: %+v", storeErr)
			}
			if store.calls != tt.wantCalls {
				t.Errorf("store called %d times, want %d", store.calls, tt.wantCalls)
			}
		})
	}
}

func TestMarkInitializesStoreOnFirstUse(t *testing.T) {
	store := &initFailStore{MemoryStore: NewMemoryStore(), initFailures: 2}
	l := New(store, WithRetries(1))
	ctx := context.Background()

	// Beide Init-Versuche schlagen fehl
	_, err := l.Mark(ctx, "alice", at(6, 9, 0))
	var storeErr *StoreError
	if !errors.As(err, &storeErr) || storeErr.Op != "init" {
		t.Fatalf("error = %v, want init StoreError", err)
	}

	// Der nächste Aufruf versucht Init erneut
	res, err := l.Mark(ctx, "alice", at(6, 9, 1))
	if err != nil || res != Recorded {
		t.Fatalf("Mark = %v, %v; want Recorded", res, err)
	}

	// Init wird danach nicht erneut aufgerufen
	if _, err := l.Mark(ctx, "bob", at(6, 9, 2)); err != nil {
		t.Fatal(err)
	}
	if store.initCalls != 3 {
		t.Errorf("init calls = %d, want 3", store.initCalls)
	}
}

func TestMarkResultString(t *testing.T) {
	if Recorded.String() != "recorded" || AlreadyPresentToday.String() != "already_present" {
		t.Errorf("unexpected strings: %s, %s", Recorded, AlreadyPresentToday)
	}
}

var errDiskFull = errors.New("disk full")

// flakyStore schlägt bei den ersten n Schreibversuchen fehl
type flakyStore struct {
	*MemoryStore
	failures int
	calls    int
}

func (s *flakyStore) InsertIfAbsent(ctx context.Context, rec models.AttendanceRecord) (bool, error) {
	s.calls++
	if s.calls <= s.failures {
		return false, errDiskFull
	}
	return s.MemoryStore.InsertIfAbsent(ctx, rec)
}

type initFailStore struct {
	*MemoryStore
	initFailures int
	initCalls    int
}

func (s *initFailStore) Init(ctx context.Context) error {
	s.initCalls++
	if s.initCalls <= s.initFailures {
		return errors.New("database locked")
	}
	return nil
}

// slowStore trennt Prüfen und Schreiben, damit fehlende Sperren auffallen
type slowStore struct {
	*MemoryStore
}

func (s *slowStore) InsertIfAbsent(ctx context.Context, rec models.AttendanceRecord) (bool, error) {
	existing, _ := s.MemoryStore.List(ctx, rec.Date)
	for _, r := range existing {
		if r.Name == rec.Name {
			return false, nil
		}
	}
	time.Sleep(time.Millisecond)

	s.MemoryStore.mu.Lock()
	s.MemoryStore.records = append(s.MemoryStore.records, rec)
	s.MemoryStore.index[recordKey(rec.Name, rec.Date)] = struct{}{}
	s.MemoryStore.mu.Unlock()
	return true, nil
}
