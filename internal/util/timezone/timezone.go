package timezone

import (
	"os"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// DateLayout ist das Datumsformat der Anwesenheitsliste
const DateLayout = "2006-01-02"

var (
	currentLocation *time.Location
	locationMutex   sync.RWMutex
)

// Initialize setzt die Zeitzone. Ist name leer, wird die TZ-Umgebungsvariable verwendet,
// danach UTC.
func Initialize(name string) {
	tzName := name
	if tzName == "" {
		tzName = os.Getenv("TZ")
	}
	if tzName == "" {
		tzName = "UTC"
	}

	loc, err := time.LoadLocation(tzName)
	if err != nil {
		log.Warnf("Failed to load timezone %s: %v. Falling back to UTC.", tzName, err)
		loc = time.UTC
	} else {
		log.Infof("Successfully initialized timezone to %s", tzName)
	}

	locationMutex.Lock()
	currentLocation = loc
	locationMutex.Unlock()
}

// Location gibt die konfigurierte Zeitzone zurück
func Location() *time.Location {
	locationMutex.RLock()
	loc := currentLocation
	locationMutex.RUnlock()

	if loc == nil {
		// Wenn die Zeitzone noch nicht initialisiert wurde, initialisiere sie jetzt
		Initialize("")
		return Location()
	}
	return loc
}

// Now gibt die aktuelle Zeit in der konfigurierten Zeitzone zurück.
// Die Funktion dient der Pipeline als Uhr.
func Now() time.Time {
	return time.Now().In(Location())
}

// Format formatiert ein time.Time-Objekt mit der konfigurierten Zeitzone
func Format(t time.Time, layout string) string {
	return t.In(Location()).Format(layout)
}

// Today gibt das heutige Datum im Format der Anwesenheitsliste zurück
func Today() string {
	return Now().Format(DateLayout)
}
