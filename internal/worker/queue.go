package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrStopped is returned for work submitted to, or still pending in, a
// stopped queue.
var ErrStopped = errors.New("worker queue stopped")

// maxJobHistory bounds how many finished jobs are remembered.
const maxJobHistory = 100

// JobStatus represents the state of a submitted job
type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
	StatusCancelled JobStatus = "cancelled"
)

// Job describes one unit of background work
type Job struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Status      JobStatus  `json:"status"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

type task struct {
	ctx    context.Context
	job    *Job
	fn     func(ctx context.Context) error
	result chan error
}

// Queue runs submitted operations one at a time, in submission order, on a
// single background goroutine.
type Queue struct {
	logger *logrus.Logger
	tasks  chan *task

	mu       sync.RWMutex
	started  bool
	stopped  bool
	stopping chan struct{}
	stopOnce sync.Once
	quit     chan struct{}
	done     chan struct{}

	jobsMux sync.RWMutex
	jobs    map[string]*Job
	order   []string
}

// NewQueue creates a queue buffering up to capacity pending operations.
func NewQueue(logger *logrus.Logger, capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{
		logger:   logger,
		tasks:    make(chan *task, capacity),
		stopping: make(chan struct{}),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		jobs:     make(map[string]*Job),
	}
}

// Start launches the worker goroutine. Calling it twice is a no-op.
func (q *Queue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started || q.stopped {
		return
	}
	q.started = true
	go q.run()
}

// Stop waits for the running operation to finish and fails every pending
// one with ErrStopped.
func (q *Queue) Stop() {
	// Submit blocked on a full buffer holds the read lock until it sees this.
	q.stopOnce.Do(func() { close(q.stopping) })

	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	started := q.started
	close(q.quit)
	q.mu.Unlock()

	if started {
		<-q.done
	} else {
		q.drain()
	}
}

// Submit enqueues fn and returns its job and a channel that receives fn's
// result once. ctx governs both waiting in the queue and the run itself.
func (q *Queue) Submit(ctx context.Context, name string, fn func(ctx context.Context) error) (*Job, <-chan error) {
	t := &task{
		ctx: ctx,
		job: &Job{
			ID:        uuid.New().String(),
			Name:      name,
			Status:    StatusPending,
			CreatedAt: time.Now(),
		},
		fn:     fn,
		result: make(chan error, 1),
	}
	q.track(t.job)

	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.stopped {
		q.finish(t, ErrStopped)
		return q.snapshot(t.job), t.result
	}

	select {
	case q.tasks <- t:
	case <-q.stopping:
		q.finish(t, ErrStopped)
	case <-ctx.Done():
		q.finish(t, ctx.Err())
	}
	return q.snapshot(t.job), t.result
}

// Do runs fn on the queue and waits for its result.
func Do[T any](ctx context.Context, q *Queue, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	var value T
	_, result := q.Submit(ctx, name, func(ctx context.Context) error {
		var err error
		value, err = fn(ctx)
		return err
	})

	select {
	case err := <-result:
		if err != nil {
			var zero T
			return zero, err
		}
		return value, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Job returns a copy of the job with id.
func (q *Queue) Job(id string) (*Job, bool) {
	q.jobsMux.RLock()
	defer q.jobsMux.RUnlock()
	job, ok := q.jobs[id]
	if !ok {
		return nil, false
	}
	jobCopy := *job
	return &jobCopy, true
}

// Jobs returns copies of the remembered jobs, oldest first.
func (q *Queue) Jobs() []Job {
	q.jobsMux.RLock()
	defer q.jobsMux.RUnlock()
	jobs := make([]Job, 0, len(q.order))
	for _, id := range q.order {
		jobs = append(jobs, *q.jobs[id])
	}
	return jobs
}

func (q *Queue) run() {
	defer close(q.done)
	for {
		// Stop takes priority over queued work.
		select {
		case <-q.quit:
			q.drain()
			return
		default:
		}

		select {
		case <-q.quit:
			q.drain()
			return
		case t := <-q.tasks:
			q.execute(t)
		}
	}
}

func (q *Queue) drain() {
	for {
		select {
		case t := <-q.tasks:
			q.finish(t, ErrStopped)
		default:
			return
		}
	}
}

func (q *Queue) execute(t *task) {
	if err := t.ctx.Err(); err != nil {
		q.finish(t, err)
		return
	}

	q.setStatus(t.job, StatusRunning, "")
	start := time.Now()

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				q.logger.WithField("job", t.job.Name).Errorf("Job panicked: %v", r)
				err = errors.New("job panicked")
			}
		}()
		return t.fn(t.ctx)
	}()

	q.logger.WithFields(logrus.Fields{
		"job_id":   t.job.ID,
		"job":      t.job.Name,
		"duration": time.Since(start),
	}).Debug("Job finished")
	q.finish(t, err)
}

func (q *Queue) finish(t *task, err error) {
	switch {
	case err == nil:
		q.setStatus(t.job, StatusCompleted, "")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded), errors.Is(err, ErrStopped):
		q.setStatus(t.job, StatusCancelled, err.Error())
	default:
		q.setStatus(t.job, StatusFailed, err.Error())
		q.logger.WithError(err).WithField("job", t.job.Name).Warn("Job failed")
	}
	t.result <- err
	close(t.result)
}

func (q *Queue) track(job *Job) {
	q.jobsMux.Lock()
	defer q.jobsMux.Unlock()
	q.jobs[job.ID] = job
	q.order = append(q.order, job.ID)
	if len(q.order) > maxJobHistory {
		delete(q.jobs, q.order[0])
		q.order = q.order[1:]
	}
}

func (q *Queue) setStatus(job *Job, status JobStatus, errMsg string) {
	q.jobsMux.Lock()
	defer q.jobsMux.Unlock()
	job.Status = status
	job.Error = errMsg
	if status != StatusPending && status != StatusRunning {
		now := time.Now()
		job.CompletedAt = &now
	}
}

func (q *Queue) snapshot(job *Job) *Job {
	q.jobsMux.RLock()
	defer q.jobsMux.RUnlock()
	jobCopy := *job
	return &jobCopy
}
