// Package ledger führt die Anwesenheitsliste. Pro Person und Kalendertag entsteht höchstens
// ein Eintrag.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"face-attendance-go/internal/core/models"
	"face-attendance-go/internal/core/recognition"

	log "github.com/sirupsen/logrus"
)

// Formate der Anwesenheitsliste
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04:05"
)

// MarkResult beschreibt den Ausgang eines Mark-Aufrufs
type MarkResult int

const (
	// Recorded bedeutet, dass ein neuer Eintrag geschrieben wurde
	Recorded MarkResult = iota + 1
	// AlreadyPresentToday bedeutet, dass für diesen Tag bereits ein Eintrag existiert
	AlreadyPresentToday
)

func (r MarkResult) String() string {
	switch r {
	case Recorded:
		return "recorded"
	case AlreadyPresentToday:
		return "already_present"
	default:
		return "none"
	}
}

// MarshalText serialisiert das Ergebnis als Text für JSON und Logs
func (r MarkResult) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// ErrInvalidName wird für leere Namen und Unknown zurückgegeben
var ErrInvalidName = errors.New("invalid identity name")

// StoreError signalisiert, dass der Speicher nicht erreichbar war oder das Schreiben fehlschlug
type StoreError struct {
	Op   string
	Name string
	Date string
	Err  error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("attendance store %s failed for %s on %s: %v", e.Op, e.Name, e.Date, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Store ist das Speicher-Backend der Anwesenheitsliste.
// InsertIfAbsent muss ein einzelner atomarer Schreibvorgang sein.
type Store interface {
	// Init legt Schema oder Datei an. Mehrfache Aufrufe sind erlaubt.
	Init(ctx context.Context) error
	// InsertIfAbsent schreibt den Eintrag, wenn für (Name, Date) noch keiner existiert
	InsertIfAbsent(ctx context.Context, rec models.AttendanceRecord) (bool, error)
	// List gibt die Einträge eines Tages zurück, bei leerem Datum alle
	List(ctx context.Context, date string) ([]models.AttendanceRecord, error)
	Close() error
}

// Marker ist die Schnittstelle, über die die Pipeline Anwesenheit meldet
type Marker interface {
	Mark(ctx context.Context, name string, now time.Time) (MarkResult, error)
}

// Ledger setzt Prüfen und Anhängen atomar um: pro Person wird ein Mutex gehalten,
// der Speicher schreibt in einem Schritt.
type Ledger struct {
	store   Store
	retries int

	initMutex   sync.Mutex
	initialized bool

	locksMutex sync.Mutex
	locks      map[string]*sync.Mutex
}

// Option konfiguriert einen Ledger
type Option func(*Ledger)

// WithRetries setzt die Anzahl der Wiederholungen bei Speicherfehlern (0 oder 1)
func WithRetries(n int) Option {
	return func(l *Ledger) {
		if n < 0 {
			n = 0
		}
		if n > 1 {
			n = 1
		}
		l.retries = n
	}
}

// New erstellt einen Ledger über dem angegebenen Speicher
func New(store Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:   store,
		retries: 1,
		locks:   make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Mark trägt name für das Datum von now ein, falls noch kein Eintrag existiert
func (l *Ledger) Mark(ctx context.Context, name string, now time.Time) (MarkResult, error) {
	name = strings.TrimSpace(name)
	if name == "" || name == recognition.Unknown {
		return 0, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	rec := models.AttendanceRecord{
		Name: name,
		Date: now.Format(DateLayout),
		Time: now.Format(TimeLayout),
	}

	lock := l.lockFor(name)
	lock.Lock()
	defer lock.Unlock()

	var lastErr error
	op := "init"
	for attempt := 0; attempt <= l.retries; attempt++ {
		if attempt > 0 {
			log.WithFields(log.Fields{
				"component": "ledger",
				"name":      rec.Name,
				"date":      rec.Date,
			}).WithError(lastErr).Warn("Retrying attendance write")
		}

		if err := l.ensureInitialized(ctx); err != nil {
			op, lastErr = "init", err
			continue
		}

		inserted, err := l.store.InsertIfAbsent(ctx, rec)
		if err != nil {
			op, lastErr = "insert", err
			continue
		}

		if inserted {
			log.WithFields(log.Fields{
				"component": "ledger",
				"name":      rec.Name,
				"date":      rec.Date,
				"time":      rec.Time,
			}).Info("Attendance recorded")
			return Recorded, nil
		}
		return AlreadyPresentToday, nil
	}

	return 0, &StoreError{Op: op, Name: rec.Name, Date: rec.Date, Err: lastErr}
}

// List gibt die Einträge eines Tages zurück
func (l *Ledger) List(ctx context.Context, date string) ([]models.AttendanceRecord, error) {
	if err := l.ensureInitialized(ctx); err != nil {
		return nil, &StoreError{Op: "init", Date: date, Err: err}
	}
	records, err := l.store.List(ctx, date)
	if err != nil {
		return nil, &StoreError{Op: "list", Date: date, Err: err}
	}
	return records, nil
}

// Close schließt den Speicher
func (l *Ledger) Close() error {
	return l.store.Close()
}

// ensureInitialized ruft Store.Init beim ersten Zugriff auf. Ein Fehlschlag wird beim
// nächsten Zugriff erneut versucht.
func (l *Ledger) ensureInitialized(ctx context.Context) error {
	l.initMutex.Lock()
	defer l.initMutex.Unlock()

	if l.initialized {
		return nil
	}
	if err := l.store.Init(ctx); err != nil {
		return err
	}
	l.initialized = true
	return nil
}

func (l *Ledger) lockFor(name string) *sync.Mutex {
	l.locksMutex.Lock()
	defer l.locksMutex.Unlock()

	lock, ok := l.locks[name]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[name] = lock
	}
	return lock
}
