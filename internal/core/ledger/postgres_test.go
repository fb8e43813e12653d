package ledger

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestPostgresStoreIntegration läuft gegen einen echten Postgres-Container und benötigt Docker.
func TestPostgresStoreIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()

	// testcontainers kann ohne Docker-Socket in Panik geraten
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("testcontainers panicked: %v", r)
			}
		}()
		_, err = testcontainers.NewDockerClientWithOpts(ctx)
		return
	}()
	if err != nil {
		t.Skipf("Docker not available: %v", err)
	}

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("attendance_test"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("Failed to start postgres container: %v", err)
	}
	defer func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Errorf("Failed to terminate container: %v", err)
		}
	}()

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("Failed to get connection string: %v", err)
	}

	l := New(NewPostgresStore(connStr))
	defer l.Close()

	// Gleicher Tag: ein Eintrag
	if res, err := l.Mark(ctx, "alice", at(6, 9, 0)); err != nil || res != Recorded {
		t.Fatalf("Mark = %v, %v; want Recorded", res, err)
	}
	if res, err := l.Mark(ctx, "alice", at(6, 18, 0)); err != nil || res != AlreadyPresentToday {
		t.Fatalf("Mark = %v, %v; want AlreadyPresentToday", res, err)
	}

	// Anderer Tag: zweiter Eintrag
	if res, err := l.Mark(ctx, "alice", at(7, 9, 0)); err != nil || res != Recorded {
		t.Fatalf("Mark = %v, %v; want Recorded", res, err)
	}

	// Parallele Aufrufe verschiedener Ledger-Instanzen verlassen sich auf den Primärschlüssel
	other := New(NewPostgresStore(connStr))
	defer other.Close()

	var wg sync.WaitGroup
	results := make(chan MarkResult, 2)
	for _, inst := range []*Ledger{l, other} {
		wg.Add(1)
		go func(inst *Ledger) {
			defer wg.Done()
			res, err := inst.Mark(ctx, "bob", at(8, 9, 0))
			if err != nil {
				t.Errorf("Mark failed: %v", err)
				return
			}
			results <- res
		}(inst)
	}
	wg.Wait()
	close(results)

	recorded := 0
	for res := range results {
		if res == Recorded {
			recorded++
		}
	}
	if recorded != 1 {
		t.Errorf("recorded = %d, want exactly 1 across instances", recorded)
	}

	records, err := l.List(ctx, "")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(records) != 3 {
		t.Errorf("got %d records, want 3: %+v", len(records), records)
	}
}
