// Package scheduler runs the bridge's periodic jobs on a cron ticker.
package scheduler

import (
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Job describes a registered periodic job.
type Job struct {
	Name     string        `json:"name"`
	Interval time.Duration `json:"interval"`
	Next     time.Time     `json:"next"`
}

type entry struct {
	id       cron.EntryID
	job      cron.Job
	interval time.Duration
}

// Scheduler manages all periodic jobs.
type Scheduler struct {
	cron  *cron.Cron
	chain cron.JobWrapper
	mu    sync.RWMutex
	jobs  map[string]entry
}

// NewScheduler creates a stopped scheduler. Jobs recover from panics
// and a run is skipped while the previous one is still in progress.
func NewScheduler() *Scheduler {
	logger := cron.PrintfLogger(log.Default())
	chain := cron.NewChain(cron.Recover(logger), cron.SkipIfStillRunning(logger))
	return &Scheduler{
		cron:  cron.New(cron.WithLogger(logger)),
		chain: chain.Then,
		jobs:  make(map[string]entry),
	}
}

// Start begins the cron job ticker.
func (s *Scheduler) Start() {
	s.cron.Start()
	log.Println("[Scheduler] Started")
}

// Stop halts the ticker and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	log.Println("[Scheduler] Stopped")
}

// Every registers fn to run every interval under name. Intervals below
// one second are rounded up by the cron schedule.
func (s *Scheduler) Every(name string, interval time.Duration, fn func()) error {
	if interval <= 0 {
		return fmt.Errorf("job %q: interval must be positive, got %s", name, interval)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[name]; ok {
		return fmt.Errorf("job %q already registered", name)
	}

	job := s.chain(cron.FuncJob(fn))
	id := s.cron.Schedule(cron.Every(interval), job)
	s.jobs[name] = entry{id: id, job: job, interval: interval}
	log.Printf("[Scheduler] Added job %q every %s", name, interval)
	return nil
}

// RunNow runs the named job synchronously through the same wrappers the
// ticker uses. It reports whether the job exists.
func (s *Scheduler) RunNow(name string) bool {
	s.mu.RLock()
	e, ok := s.jobs[name]
	s.mu.RUnlock()
	if !ok {
		return false
	}
	e.job.Run()
	return true
}

// Remove deletes the named job.
func (s *Scheduler) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.jobs[name]
	if !ok {
		return
	}
	s.cron.Remove(e.id)
	delete(s.jobs, name)
	log.Printf("[Scheduler] Removed job %q", name)
}

// Jobs returns the registered jobs sorted by name.
func (s *Scheduler) Jobs() []Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]Job, 0, len(s.jobs))
	for name, e := range s.jobs {
		jobs = append(jobs, Job{
			Name:     name,
			Interval: e.interval,
			Next:     s.cron.Entry(e.id).Next,
		})
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].Name < jobs[j].Name })
	return jobs
}
