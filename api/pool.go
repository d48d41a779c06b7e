package api

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"tasktrack-api/domain"
)

const (
	defaultPublishTimeout = 60 * time.Second
	defaultHandoffTimeout = 15 * time.Millisecond
	minPublishWorkers     = 8
	maxPublishWorkers     = 64
	bufferPerWorker       = 128
)

// DispatcherConfig sizes the background publish pool. Zero values fall back to
// defaults derived from the CPU count. A negative HandoffTimeout disables
// waiting for buffer capacity.
type DispatcherConfig struct {
	Workers        int
	Buffer         int
	Timeout        time.Duration
	HandoffTimeout time.Duration
}

type publishJob struct {
	userID string
	events []domain.Event
}

// EventDispatcher hands change events to a Publisher on a bounded set of
// workers. When the buffer stays full past the handoff timeout the events are
// published inline by the caller. A nil dispatcher drops events.
type EventDispatcher struct {
	publisher      Publisher
	log            *log.Logger
	jobs           chan publishJob
	timeout        time.Duration
	handoffTimeout time.Duration
	wg             sync.WaitGroup
	closeOnce      sync.Once
	mu             sync.RWMutex
	closed         bool
}

// NewEventDispatcher starts the worker pool. cpu is the number of logical CPUs
// used to size the pool when cfg leaves it unset.
func NewEventDispatcher(publisher Publisher, logger *log.Logger, cfg DispatcherConfig, cpu int) *EventDispatcher {
	if logger == nil {
		panic("Logger is not initialized")
	}
	workers, buffer := computeWorkerDefaults(cpu)
	if cfg.Workers > 0 {
		workers = cfg.Workers
	}
	if cfg.Buffer > 0 {
		buffer = cfg.Buffer
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}
	handoff := cfg.HandoffTimeout
	switch {
	case handoff == 0:
		handoff = defaultHandoffTimeout
	case handoff < 0:
		handoff = 0
	}

	d := &EventDispatcher{
		publisher:      publisher,
		log:            logger,
		jobs:           make(chan publishJob, buffer),
		timeout:        timeout,
		handoffTimeout: handoff,
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
	logger.Infof("event dispatcher started, workers: %d, buffer: %d, timeout: %v, handoff: %v", workers, buffer, timeout, handoff)
	return d
}

func computeWorkerDefaults(cpu int) (workers, buffer int) {
	if cpu < 1 {
		cpu = 1
	}
	workers = cpu * 8
	if workers < minPublishWorkers {
		workers = minPublishWorkers
	}
	if workers > maxPublishWorkers {
		workers = maxPublishWorkers
	}
	return workers, workers * bufferPerWorker
}

// Dispatch fills in missing ids and times and queues the events for
// publishing. It never returns an error to the caller; publish failures are
// logged.
func (d *EventDispatcher) Dispatch(userID string, events ...domain.Event) {
	if d == nil || len(events) == 0 {
		return
	}
	for i := range events {
		if events[i].ID == "" {
			events[i].ID = uuid.NewString()
		}
		if events[i].Time == 0 {
			events[i].Time = domain.NextTimestamp()
		}
	}

	job := publishJob{userID: userID, events: events}
	if d.tryEnqueue(job) {
		return
	}

	d.log.Warn("publish buffer saturated; processing inline")
	d.publish(-1, job)
}

func (d *EventDispatcher) worker(id int) {
	defer d.wg.Done()
	for j := range d.jobs {
		d.publish(id, j)
	}
}

func (d *EventDispatcher) publish(worker int, j publishJob) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	if err := d.publisher.Publish(ctx, j.events); err != nil {
		d.log.Errorf("publish failed, err: %v, user: %s, count: %d, worker: %d", err, j.userID, len(j.events), worker)
	}
}

func (d *EventDispatcher) tryEnqueue(job publishJob) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return false
	}

	if trySendNonBlocking(d.jobs, job) {
		return true
	}
	if d.handoffTimeout <= 0 {
		return false
	}

	timer := time.NewTimer(d.handoffTimeout)
	defer timer.Stop()
	return sendWithTimer(d.jobs, job, timer.C)
}

// Close stops accepting jobs and waits for queued events to be published.
func (d *EventDispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.jobs)
		d.mu.Unlock()
		d.wg.Wait()
	})
}

func trySendNonBlocking(ch chan<- publishJob, job publishJob) bool {
	select {
	case ch <- job:
		return true
	default:
		return false
	}
}

func sendWithTimer(ch chan<- publishJob, job publishJob, timer <-chan time.Time) bool {
	select {
	case ch <- job:
		return true
	case <-timer:
		return false
	}
}
