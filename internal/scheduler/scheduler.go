// Package scheduler runs named jobs on cron schedules. The clock is
// injectable so schedules can be tested without real timers, and a trigger
// that lands while the previous run of the same job is still in progress is
// skipped, never overlapped.
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
)

type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time                         { return time.Now() }
func (SystemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

type logger interface {
	Debugf(format string, v ...any)
	Infof(format string, v ...any)
	Warnf(format string, v ...any)
	Errorf(format string, v ...any)
}

type job struct {
	name     string
	schedule cron.Schedule
	run      func(context.Context)
	running  atomic.Bool
}

type Scheduler struct {
	Clock  Clock
	Logger logger
	jobs   []*job
}

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

func (s *Scheduler) AddJob(name string, spec string, run func(context.Context)) error {
	schedule, err := cronParser.Parse(spec)
	if err != nil {
		return errors.Wrapf(err, "error parsing cron spec %#v for job %#v", spec, name)
	}
	s.jobs = append(s.jobs, &job{name: name, schedule: schedule, run: run})
	return nil
}

// Run blocks until ctx is cancelled. Jobs already in progress are not
// interrupted, they just stop being rescheduled.
func (s *Scheduler) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, j := range s.jobs {
		wg.Add(1)
		go func(j *job) {
			defer wg.Done()
			s.runJob(ctx, j)
		}(j)
	}
	wg.Wait()
}

func (s *Scheduler) runJob(ctx context.Context, j *job) {
	for {
		next := j.schedule.Next(s.Clock.Now())
		s.Logger.Debugf("runJob: Next trigger for job %#v at %s", j.name, next)
		select {
		case <-ctx.Done():
			s.Logger.Infof("runJob: Stopping job %#v, err: %v", j.name, ctx.Err())
			return
		case <-s.Clock.After(next.Sub(s.Clock.Now())):
		}

		if !j.running.CompareAndSwap(false, true) {
			s.Logger.Warnf("runJob: Previous run of job %#v still in progress, skipping trigger at %s", j.name, next)
			continue
		}
		go func() {
			defer j.running.Store(false)
			s.Logger.Infof("runJob: Running job %#v", j.name)
			j.run(ctx)
			s.Logger.Infof("runJob: Finished job %#v", j.name)
		}()
	}
}
