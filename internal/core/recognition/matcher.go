// Package recognition ordnet Gesichtsvektoren den registrierten Personen zu.
package recognition

import (
	"math"
	"slices"
)

// Unknown ist das Ergebnis, wenn keine registrierte Person nah genug ist
const Unknown = "Unknown"

// Embedding ist der Merkmalsvektor eines Gesichts. Nach der Erzeugung wird er nicht verändert.
type Embedding []float64

// Enrollment verknüpft einen Namen mit dem Vektor seines Referenzbildes
type Enrollment struct {
	Name      string
	Embedding Embedding
}

// Set ist die geordnete Menge aller Registrierungen eines Laufs
type Set []Enrollment

// Names gibt die Namen in Registrierungsreihenfolge zurück
func (s Set) Names() []string {
	names := make([]string, len(s))
	for i, e := range s {
		names[i] = e.Name
	}
	return names
}

// Result ist das Ergebnis eines Abgleichs
type Result struct {
	Name     string
	Distance float64 // Abstand zum besten Kandidaten, +Inf bei leerer Menge
	Known    bool
}

// EuclideanDistance berechnet den euklidischen Abstand zweier Vektoren.
// Vektoren unterschiedlicher Länge haben den Abstand +Inf.
func EuclideanDistance(a, b Embedding) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Match sucht den Kandidaten mit dem kleinsten Abstand unterhalb der Toleranz.
// Ein Abstand gleich der Toleranz gilt nicht als Treffer. Bei gleichem Abstand gewinnt
// der Kandidat, der in der Menge zuerst kommt.
func Match(embedding Embedding, set Set, tolerance float64) Result {
	best := Result{Name: Unknown, Distance: math.Inf(1)}

	for _, candidate := range set {
		distance := EuclideanDistance(embedding, candidate.Embedding)
		if distance < best.Distance {
			best.Distance = distance
			if distance < tolerance {
				best.Name = candidate.Name
				best.Known = true
			} else {
				best.Name = Unknown
				best.Known = false
			}
		}
	}

	return best
}

// Matcher hält eine unveränderliche Registrierungsmenge und die Toleranz eines Laufs
type Matcher struct {
	set       Set
	tolerance float64
}

// NewMatcher erstellt einen Matcher. Die Menge wird samt Vektoren kopiert.
func NewMatcher(set Set, tolerance float64) *Matcher {
	owned := make(Set, len(set))
	for i, e := range set {
		owned[i] = Enrollment{Name: e.Name, Embedding: slices.Clone(e.Embedding)}
	}
	return &Matcher{set: owned, tolerance: tolerance}
}

// Match gleicht einen Vektor mit der Registrierungsmenge ab
func (m *Matcher) Match(embedding Embedding) Result {
	return Match(embedding, m.set, m.tolerance)
}

// Names gibt die registrierten Namen zurück
func (m *Matcher) Names() []string {
	return m.set.Names()
}

// Len gibt die Anzahl der Registrierungen zurück
func (m *Matcher) Len() int {
	return len(m.set)
}

// Tolerance gibt die konfigurierte Toleranz zurück
func (m *Matcher) Tolerance() float64 {
	return m.tolerance
}
