// Package utils erfasst Laufzeitkennzahlen des Prozesses für den Statusendpunkt
package utils

import (
	"runtime"
	"sync"
	"time"

	"face-attendance-go/internal/core/pipeline"

	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	log "github.com/sirupsen/logrus"
)

// cpuWindow ist das Messfenster für eine CPU-Messung
const cpuWindow = 200 * time.Millisecond

// SystemStats ist eine Momentaufnahme von Host und Erkennungs-Pool
type SystemStats struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"` // Anteil am Systemspeicher
	HeapBytes     uint64  `json:"heap_bytes"`
	Heap          string  `json:"heap"`
	Goroutines    int     `json:"goroutines"`

	// nur bei laufender Pipeline mit Pool gesetzt
	Workers       int `json:"workers"`
	FacesInFlight int `json:"faces_in_flight"`
	QueueCapacity int `json:"queue_capacity"`

	SampledAt time.Time `json:"sampled_at"`
}

// Sampler misst CPU und Speicher. Eine CPU-Messung blockiert für cpuWindow und wird
// deshalb für maxAge zwischengespeichert.
type Sampler struct {
	maxAge time.Duration
	cpu    func() (float64, error)
	memory func() (float64, error)
	now    func() time.Time

	mu      sync.Mutex
	cpuAt   time.Time
	cpuLast float64
}

// NewSampler erstellt einen Sampler auf Basis von gopsutil
func NewSampler(maxAge time.Duration) *Sampler {
	return &Sampler{
		maxAge: maxAge,
		cpu:    hostCPU,
		memory: hostMemory,
		now:    time.Now,
	}
}

func hostCPU() (float64, error) {
	percentages, err := cpu.Percent(cpuWindow, false)
	if err != nil || len(percentages) == 0 {
		return 0, err
	}
	return percentages[0], nil
}

func hostMemory() (float64, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, err
	}
	return vm.UsedPercent, nil
}

// CPUPercent gibt die Auslastung aller Kerne zurück. Bei einem Messfehler bleibt der
// letzte Wert stehen.
func (s *Sampler) CPUPercent() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.cpuAt.IsZero() && s.now().Sub(s.cpuAt) < s.maxAge {
		return s.cpuLast
	}

	usage, err := s.cpu()
	if err != nil {
		log.WithError(err).Warn("CPU usage not available")
		return s.cpuLast
	}
	s.cpuAt = s.now()
	s.cpuLast = usage
	return usage
}

// Sample erstellt eine Momentaufnahme. pool darf nil sein.
func (s *Sampler) Sample(pool *pipeline.WorkerPool) SystemStats {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	stats := SystemStats{
		CPUPercent: s.CPUPercent(),
		HeapBytes:  ms.HeapAlloc,
		Heap:       humanize.IBytes(ms.HeapAlloc),
		Goroutines: runtime.NumGoroutine(),
		SampledAt:  s.now(),
	}
	if usage, err := s.memory(); err == nil {
		stats.MemoryPercent = usage
	}

	if pool != nil {
		stats.Workers = pool.GetWorkerCount()
		stats.FacesInFlight = pool.ActiveJobCount()
		stats.QueueCapacity = pool.GetQueueCapacity()
	}
	return stats
}
