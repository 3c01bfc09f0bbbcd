package template

import (
	"context"
	"io"
	"log/slog"
	"runtime"
	"sync"

	"github.com/google/uuid"
)

// JobState is the lifecycle of one batch render job.
type JobState int

const (
	JobPending JobState = iota
	JobRunning
	JobCompleted
	JobFailed
	JobCancelled
)

func (s JobState) String() string {
	switch s {
	case JobPending:
		return "pending"
	case JobRunning:
		return "running"
	case JobCompleted:
		return "completed"
	case JobFailed:
		return "failed"
	case JobCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Job pairs a shared, read-only Program with one input data set.
type Job struct {
	Template *Program
	Data     map[string]Value
}

// Result is one job's outcome. Output is set for JobCompleted, Err for
// JobFailed and JobCancelled.
type Result struct {
	ID     uuid.UUID
	State  JobState
	Output string
	Err    error
}

// Pool renders batches of jobs across a bounded worker pool. One job's
// failure is captured in its result slot and never affects sibling jobs.
// A Pool holds no per-batch state and is safe for concurrent use.
type Pool struct {
	host    Host
	workers int
	logger  *slog.Logger
}

// NewPool returns a Pool backed by the given Host. A non-positive worker
// count defaults to the number of CPUs.
func NewPool(host Host, workers int) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Pool{
		host:    host,
		workers: workers,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// SetLogger sets the logger for the Pool. By default, all logs are
// discarded.
func (p *Pool) SetLogger(logger *slog.Logger) {
	if logger != nil {
		p.logger = logger
	}
}

// Render dispatches the jobs onto the worker pool and returns one result
// per job, in input order, regardless of completion order. Cancellation is
// cooperative: ctx is checked between jobs, not mid-render, and jobs that
// never started report JobCancelled.
func (p *Pool) Render(ctx context.Context, jobs []Job) []Result {
	results := make([]Result, len(jobs))
	for i := range results {
		results[i] = Result{ID: uuid.New(), State: JobPending}
	}
	if len(jobs) == 0 {
		return results
	}

	workers := p.workers
	if workers > len(jobs) {
		workers = len(jobs)
	}

	// Workers communicate through per-job result slots; each index is
	// written by exactly one worker, so no locking is needed.
	indexes := make(chan int)
	var wg sync.WaitGroup
	wg.Add(workers)

	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			renderer := NewRenderer(p.host)
			renderer.SetLogger(p.logger)

			for i := range indexes {
				if ctx.Err() != nil {
					results[i].State = JobCancelled
					results[i].Err = ctx.Err()
					continue
				}
				results[i].State = JobRunning
				output, err := renderer.Render(jobs[i].Template, jobs[i].Data)
				if err != nil {
					p.logger.Warn("Render job failed", "job", results[i].ID, "error", err)
					results[i].State = JobFailed
					results[i].Err = err
					continue
				}
				results[i].State = JobCompleted
				results[i].Output = output
			}
		}()
	}

	for i := range jobs {
		indexes <- i
	}
	close(indexes)
	wg.Wait()

	return results
}
