package runner

import (
	"context"

	"rebalance_bot/internal/modules/config"
	"rebalance_bot/pkg/logger"

	"github.com/opentracing/opentracing-go"
	"github.com/robfig/cron/v3"
)

// Cycles is what the runner drives; the trader implements it.
type Cycles interface {
	TrailingStop(ctx context.Context) error
	Invest(ctx context.Context) error
	Rebalance(ctx context.Context) error
}

// Job is one scheduled unit of work. The cron schedules only enqueue
// jobs; a single worker drains the queue so cycles never overlap and a
// long rebalance simply delays the next tick instead of racing it.
type Job string

const (
	JobTrailingStop Job = "trailing_stop"
	JobInvest       Job = "invest"
	JobRebalance    Job = "rebalance"
)

// queueSize bounds how many ticks can pile up behind a slow cycle;
// beyond that, ticks are dropped rather than queued into the past.
const queueSize = 4

type Runner struct {
	cfg    *config.Config
	trader Cycles

	cron  *cron.Cron
	queue chan Job
	done  chan struct{}
}

func New(cfg *config.Config, trader Cycles) *Runner {
	return &Runner{
		cfg:    cfg,
		trader: trader,
		cron: cron.New(cron.WithParser(
			cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
		)),
		queue: make(chan Job, queueSize),
		done:  make(chan struct{}),
	}
}

// Start registers the three schedules and launches the worker. The
// trailing stop runs first on ties: its schedule is registered first
// and the queue preserves order.
func (r *Runner) Start(ctx context.Context) error {
	schedules := []struct {
		spec string
		job  Job
	}{
		{r.cfg.Schedule.TrailingStop, JobTrailingStop},
		{r.cfg.Schedule.Investing, JobInvest},
		{r.cfg.Schedule.Rebalance, JobRebalance},
	}

	for _, s := range schedules {
		job := s.job
		if _, err := r.cron.AddFunc(s.spec, func() { r.enqueue(job) }); err != nil {
			return err
		}
	}

	go r.work(ctx)
	r.cron.Start()
	logger.Info("scheduler started: trailing stop %q, investing %q, rebalance %q",
		r.cfg.Schedule.TrailingStop, r.cfg.Schedule.Investing, r.cfg.Schedule.Rebalance)
	return nil
}

// Stop halts the schedules and waits for an in-flight cycle to finish.
func (r *Runner) Stop() {
	stopped := r.cron.Stop()
	<-stopped.Done()
	close(r.queue)
	<-r.done
}

func (r *Runner) enqueue(job Job) {
	select {
	case r.queue <- job:
	default:
		logger.Warn("queue full, dropping %s tick", job)
	}
}

func (r *Runner) work(ctx context.Context) {
	defer close(r.done)

	for job := range r.queue {
		r.run(ctx, job)
	}
}

func (r *Runner) run(ctx context.Context, job Job) {
	span := opentracing.StartSpan(string(job))
	defer span.Finish()
	ctx = opentracing.ContextWithSpan(ctx, span)

	var err error
	switch job {
	case JobTrailingStop:
		err = r.trader.TrailingStop(ctx)
	case JobInvest:
		err = r.trader.Invest(ctx)
	case JobRebalance:
		err = r.trader.Rebalance(ctx)
	}

	if err != nil {
		// a failed cycle changes nothing durable; the next tick retries
		span.SetTag("error", true)
		logger.Error("%s cycle failed: %v", job, err)
	}
}
