package pipeline

import (
	"context"
	"errors"
	"image"
	"runtime"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// ErrPoolClosed wird zurückgegeben, wenn der Pool bereits heruntergefahren wurde
var ErrPoolClosed = errors.New("worker pool closed")

// analyzeFunc analysiert ein einzelnes Gesicht im Originalbild
type analyzeFunc func(ctx context.Context, img image.Image, box image.Rectangle, now time.Time) Detection

// WorkerPool verwaltet einen Pool von Worker-Goroutinen für die Gesichtsanalyse.
// Jedes Gesicht eines Bildes ist ein eigener Job.
type WorkerPool struct {
	analyze         analyzeFunc
	jobs            chan *faceJob
	workerCount     int
	activeJobs      int
	activeJobsMutex sync.Mutex
	shutdown        chan struct{}
	shutdownOnce    sync.Once
	wg              sync.WaitGroup
}

// faceJob repräsentiert die Analyse eines Gesichts
type faceJob struct {
	ctx      context.Context
	img      image.Image
	box      image.Rectangle
	now      time.Time
	resultCh chan Detection // Individueller Ergebniskanal pro Job
}

// NewWorkerPool erstellt einen neuen Worker-Pool. Bei workers <= 0 werden 75% der CPUs verwendet, mindestens 2.
func NewWorkerPool(workers int, analyze analyzeFunc) *WorkerPool {
	workerCount := workers
	if workerCount <= 0 {
		workerCount = max(2, (runtime.NumCPU()*3)/4)
	}

	log.Infof("Initializing face analysis worker pool with %d workers", workerCount)

	pool := &WorkerPool{
		analyze:     analyze,
		jobs:        make(chan *faceJob, workerCount*2), // Puffer für Jobs
		workerCount: workerCount,
		shutdown:    make(chan struct{}),
	}

	pool.startWorkers()

	return pool
}

// startWorkers startet die Worker-Goroutinen
func (p *WorkerPool) startWorkers() {
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go func(workerID int) {
			defer p.wg.Done()
			log.Debugf("Worker %d started", workerID)

			for {
				select {
				case job := <-p.jobs:
					p.activeJobsMutex.Lock()
					p.activeJobs++
					p.activeJobsMutex.Unlock()

					detection := p.analyze(job.ctx, job.img, job.box, job.now)

					p.activeJobsMutex.Lock()
					p.activeJobs--
					p.activeJobsMutex.Unlock()

					// Ergebniskanal ist gepuffert, der Versand blockiert nie
					job.resultCh <- detection

				case <-p.shutdown:
					log.Debugf("Worker %d received shutdown signal", workerID)
					return
				}
			}
		}(i)
	}
}

// Submit übergibt ein Gesicht an den Pool. Das Ergebnis kommt über den zurückgegebenen Kanal.
func (p *WorkerPool) Submit(ctx context.Context, img image.Image, box image.Rectangle, now time.Time) (<-chan Detection, error) {
	resultCh := make(chan Detection, 1)
	job := &faceJob{
		ctx:      ctx,
		img:      img,
		box:      box,
		now:      now,
		resultCh: resultCh,
	}

	select {
	case p.jobs <- job:
		return resultCh, nil
	case <-p.shutdown:
		return nil, ErrPoolClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ActiveJobCount gibt die Anzahl der aktuell aktiven Jobs zurück
func (p *WorkerPool) ActiveJobCount() int {
	p.activeJobsMutex.Lock()
	defer p.activeJobsMutex.Unlock()
	return p.activeJobs
}

// GetWorkerCount gibt die Anzahl der Worker im Pool zurück
func (p *WorkerPool) GetWorkerCount() int {
	return p.workerCount
}

// GetQueueCapacity gibt die Kapazität der Job-Queue zurück
func (p *WorkerPool) GetQueueCapacity() int {
	return cap(p.jobs)
}

// Shutdown fährt den Worker-Pool herunter und wartet auf laufende Jobs
func (p *WorkerPool) Shutdown() {
	p.shutdownOnce.Do(func() {
		close(p.shutdown)
	})
	p.wg.Wait()
}
