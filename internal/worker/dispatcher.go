package worker

import (
	"container/list"
	"errors"
	"sync"
	"time"

	"turnitinbot/internal/intake"
)

// ErrDispatcherBusy is returned when the inbound job queue is full.
var ErrDispatcherBusy = errors.New("server is busy, please retry")

type DispatcherConfig struct {
	MinWorkers        int
	MaxWorkers        int
	QueueSize         int
	WorkerIdleTimeout time.Duration
}

type userQueue struct {
	jobs     []Job
	enqueued bool
}

// Dispatcher fans jobs out to the worker pool with per-user FIFO queues and
// round-robin fairness between users, so one user's slow vendor polls never
// starve everybody else.
type Dispatcher struct {
	pool     *jobChannelPool
	jobQueue chan Job
	manager  *Manager

	mu        sync.Mutex
	queues    map[int64]*userQueue // pending jobs per user
	ready     *list.List           // user ids with pending jobs, oldest first
	positions map[int64]*list.Element
}

func NewDispatcher(cfg DispatcherConfig, manager *Manager) *Dispatcher {
	if cfg.MinWorkers <= 0 {
		cfg.MinWorkers = 1
	}
	if cfg.MaxWorkers < cfg.MinWorkers {
		cfg.MaxWorkers = cfg.MinWorkers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	pool := newJobChannelPool(cfg.MinWorkers, cfg.MaxWorkers, cfg.WorkerIdleTimeout, manager)

	d := &Dispatcher{
		pool:      pool,
		jobQueue:  make(chan Job, cfg.QueueSize),
		manager:   manager,
		queues:    make(map[int64]*userQueue),
		ready:     list.New(),
		positions: make(map[int64]*list.Element),
	}

	for i := 0; i < cfg.MinWorkers; i++ {
		d.pool.spawnWorker()
	}

	go d.run()
	return d
}

// Enqueue accepts one check request without blocking the caller.
func (d *Dispatcher) Enqueue(req intake.CheckRequest) error {
	select {
	case d.jobQueue <- Job{Type: Check, Check: &req}:
		return nil
	default:
		return ErrDispatcherBusy
	}
}

// CancelUser drops every pending job for the user.
func (d *Dispatcher) CancelUser(userID int64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.queues, userID)
	if elem, ok := d.positions[userID]; ok {
		d.ready.Remove(elem)
		delete(d.positions, userID)
	}
}

func (d *Dispatcher) run() {
	for {
		if !d.dispatchOne() {
			job := <-d.jobQueue // nothing pending, block for the next job
			d.enqueueJob(job)
			continue
		}
		select {
		case job := <-d.jobQueue:
			d.enqueueJob(job)
		default:
		}
	}
}

func (d *Dispatcher) enqueueJob(job Job) {
	userID := job.userID()

	d.mu.Lock()
	defer d.mu.Unlock()

	q := d.queues[userID]
	if q == nil {
		q = &userQueue{}
		d.queues[userID] = q
	}
	q.jobs = append(q.jobs, job)
	if q.enqueued {
		return
	}
	q.enqueued = true
	elem := d.ready.PushBack(userID)
	d.positions[userID] = elem
}

// dispatchOne hands the front user's next job to a worker. Returns false
// when no job is pending.
func (d *Dispatcher) dispatchOne() bool {
	job, ok := d.popNext()
	if !ok {
		return false
	}
	workerChan := d.pool.acquire()
	workerChan <- job
	return true
}

// popNext takes one job from the front user's queue and rotates that user to
// the back of the line when they have more work pending.
func (d *Dispatcher) popNext() (Job, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	elem := d.ready.Front()
	if elem == nil {
		return Job{}, false
	}
	userID := elem.Value.(int64)
	q := d.queues[userID]
	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	if len(q.jobs) == 0 {
		q.enqueued = false
		d.ready.Remove(elem)
		delete(d.positions, userID)
		delete(d.queues, userID)
	} else {
		d.ready.MoveToBack(elem)
	}
	return job, true
}
