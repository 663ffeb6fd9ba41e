package dispatch

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"agora/internal/logging"
	"agora/internal/market/app"
	"agora/internal/market/domain"
	"agora/internal/observability"
)

// Config tunes the dispatch loop.
type Config struct {
	Interval      time.Duration
	BatchSize     int
	MaxConcurrent int
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = 5 * time.Second
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 10
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = 4
	}
	return c
}

// Dispatcher is the single background loop that hands paid tasks to their
// agents. Each tick claims a bounded batch; the PROCESSING transition is the
// exclusive gate, written before the outbound call, so neither a concurrent
// tick nor a second dispatcher instance can deliver the same task twice.
type Dispatcher struct {
	tasks   domain.TaskRepository
	agents  domain.AgentRepository
	taskSvc *app.TaskService
	client  *WebhookClient

	cfg     Config
	metrics *observability.MetricsCollector
	tracer  *observability.TracerProvider
	logger  logging.Logger

	// tickMu makes ticks single-flight: a tick that outlives the interval
	// delays the next one instead of overlapping it.
	tickMu sync.Mutex

	// recent remembers task ids claimed by this process so a slow store
	// read cannot feed one back into a later batch.
	recent *expirable.LRU[string, struct{}]

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(
	tasks domain.TaskRepository,
	agents domain.AgentRepository,
	taskSvc *app.TaskService,
	client *WebhookClient,
	cfg Config,
	metrics *observability.MetricsCollector,
	tracer *observability.TracerProvider,
	logger logging.Logger,
) *Dispatcher {
	cfg = cfg.withDefaults()
	return &Dispatcher{
		tasks:   tasks,
		agents:  agents,
		taskSvc: taskSvc,
		client:  client,
		cfg:     cfg,
		metrics: metrics,
		tracer:  tracer,
		logger:  logging.OrNop(logger),
		recent:  expirable.NewLRU[string, struct{}](1024, nil, 10*time.Minute),
	}
}

// Start launches the polling loop. Call Stop to drain it.
func (d *Dispatcher) Start(ctx context.Context) {
	ctx, d.cancel = context.WithCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ticker := time.NewTicker(d.cfg.Interval)
		defer ticker.Stop()
		d.logger.Info("dispatcher started (interval %s, batch %d)", d.cfg.Interval, d.cfg.BatchSize)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				d.Tick(ctx)
			}
		}
	}()
}

// Stop cancels the loop and waits for the in-flight tick to finish.
func (d *Dispatcher) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
	d.wg.Wait()
	d.logger.Info("dispatcher stopped")
}

// Tick processes one dispatch batch. Exported for tests and manual kicks.
// Returns the number of tasks it attempted to deliver.
func (d *Dispatcher) Tick(ctx context.Context) int {
	if !d.tickMu.TryLock() {
		return 0
	}
	defer d.tickMu.Unlock()

	if d.tracer != nil {
		var span trace.Span
		ctx, span = d.tracer.StartSpan(ctx, observability.SpanDispatchTick)
		defer span.End()
	}

	batch, err := d.tasks.ListDispatchable(ctx, d.cfg.BatchSize)
	if err != nil {
		d.logger.Error("list dispatchable tasks: %v", err)
		return 0
	}
	if len(batch) == 0 {
		return 0
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.MaxConcurrent)
	attempted := 0
	for _, task := range batch {
		if _, seen := d.recent.Get(task.ID); seen {
			continue
		}
		attempted++
		task := task
		g.Go(func() error {
			d.dispatchOne(gctx, task)
			return nil
		})
	}
	_ = g.Wait()
	return attempted
}

// dispatchOne delivers a single task. Claim first, call second: a lost claim
// means another tick owns the task and this one walks away.
func (d *Dispatcher) dispatchOne(ctx context.Context, task *domain.Task) {
	if d.tracer != nil {
		var span trace.Span
		ctx, span = d.tracer.StartSpan(ctx, observability.SpanDispatchTask, observability.TaskAttrs(task.ID)...)
		defer span.End()
	}

	agent, ok := d.lookupAgent(ctx, task)
	if !ok {
		return
	}

	claimed, err := d.tasks.ClaimForDispatch(ctx, task.ID)
	if err != nil {
		d.logger.Error("claim task %s: %v", task.ID, err)
		return
	}
	if !claimed {
		d.logger.Debug("task %s already claimed, skipping", task.ID)
		return
	}
	d.recent.Add(task.ID, struct{}{})

	payload := WebhookPayload{
		TaskID:      task.ID,
		Description: task.Description,
		ServiceType: task.ServiceType,
	}
	if agent.PricePerRequest != nil {
		payload.Price = agent.PricePerRequest.Dec()
	}

	start := time.Now()
	result, err := d.client.Call(ctx, agent.Endpoint, payload)
	latency := time.Since(start)

	if err != nil {
		// No automatic retry: the failure reason is stored on the task
		// and recovery is out-of-band re-assignment.
		d.logger.Warn("dispatch task %s to agent %s failed after %s: %v", task.ID, agent.ID, latency, err)
		if _, ferr := d.taskSvc.FailDispatch(ctx, task.ID, err.Error()); ferr != nil {
			d.logger.Error("record dispatch failure for task %s: %v", task.ID, ferr)
		}
		if d.metrics != nil {
			d.metrics.RecordDispatch(ctx, "failed", latency)
		}
		return
	}

	if _, cerr := d.taskSvc.Complete(ctx, task.ID, result); cerr != nil {
		d.logger.Error("record completion for task %s: %v", task.ID, cerr)
		return
	}
	d.logger.Info("task %s completed by agent %s in %s", task.ID, agent.ID, latency)
	if d.metrics != nil {
		d.metrics.RecordDispatch(ctx, "completed", latency)
	}
}

// lookupAgent resolves the task's agent. A missing record, a deactivated
// agent, or an empty endpoint is a data-integrity condition: log and skip,
// never fail the task.
func (d *Dispatcher) lookupAgent(ctx context.Context, task *domain.Task) (*domain.Agent, bool) {
	agent, err := d.agents.Get(ctx, task.SelectedAgentID)
	if err != nil {
		d.logger.Warn("task %s references missing agent %s, skipping", task.ID, task.SelectedAgentID)
		return nil, false
	}
	if !agent.Active {
		d.logger.Warn("agent %s is inactive, skipping task %s", agent.ID, task.ID)
		return nil, false
	}
	if strings.TrimSpace(agent.Endpoint) == "" {
		d.logger.Warn("agent %s has no endpoint, skipping task %s", agent.ID, task.ID)
		return nil, false
	}
	return agent, true
}
