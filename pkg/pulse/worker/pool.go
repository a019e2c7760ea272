// Package worker runs protocols asynchronously on a bounded pool. Every
// submitted task writes exactly one terminal row to the task table, panics
// included.
package worker

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/papercomputeco/chora/pkg/primitive"
	"github.com/papercomputeco/chora/pkg/store"
)

const (
	defaultWorkers   = 3
	defaultQueueSize = 256
)

// Config holds pool construction options.
type Config struct {
	Store      *store.Store
	Registry   *primitive.Registry
	Logger     *zap.Logger
	NumWorkers int
	QueueSize  int
}

type task struct {
	id         string
	protocolID string
	inputs     map[string]any
}

var _ primitive.TaskSubmitter = (*Pool)(nil)

// Pool executes protocol tasks on a fixed set of workers.
type Pool struct {
	store    *store.Store
	registry *primitive.Registry
	logger   *zap.Logger

	queue  chan task
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	closeOnce sync.Once
}

func New(cfg Config) *Pool {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.NumWorkers <= 0 {
		cfg.NumWorkers = defaultWorkers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		store:    cfg.Store,
		registry: cfg.Registry,
		logger:   cfg.Logger,
		queue:    make(chan task, cfg.QueueSize),
		ctx:      ctx,
		cancel:   cancel,
	}

	for i := 0; i < cfg.NumWorkers; i++ {
		p.wg.Add(1)
		go p.worker()
	}

	return p
}

// Submit enqueues a protocol run. Returns the task id, or false when the
// queue is full. The pending row is written before the task is queued so a
// caller can always look the task up.
func (p *Pool) Submit(ctx context.Context, protocolID string, inputs map[string]any) (string, bool) {
	taskID := "task-" + uuid.NewString()[:8]

	if err := p.store.EnqueueTask(ctx, taskID, protocolID); err != nil {
		p.logger.Error("enqueueing task", zap.String("task_id", taskID), zap.Error(err))
		return "", false
	}

	select {
	case p.queue <- task{id: taskID, protocolID: protocolID, inputs: inputs}:
		return taskID, true
	default:
		p.logger.Warn("worker queue full", zap.String("task_id", taskID))
		if err := p.store.CompleteTask(ctx, taskID, store.TaskFailed, nil, "worker queue full"); err != nil {
			p.logger.Error("failing overflow task", zap.String("task_id", taskID), zap.Error(err))
		}
		return taskID, false
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for t := range p.queue {
		p.run(t)
	}
}

// run executes one task and guarantees a terminal task row.
func (p *Pool) run(t task) {
	if err := p.store.StartTask(p.ctx, t.id); err != nil {
		p.logger.Error("starting task", zap.String("task_id", t.id), zap.Error(err))
	}

	completed := false
	complete := func(status string, result map[string]any, errMsg string) {
		completed = true
		if err := p.store.CompleteTask(p.ctx, t.id, status, result, errMsg); err != nil {
			p.logger.Error("completing task", zap.String("task_id", t.id), zap.Error(err))
		}
	}

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("task panicked",
				zap.String("task_id", t.id),
				zap.String("protocol_id", t.protocolID),
				zap.Any("panic", r),
			)
			if !completed {
				complete(store.TaskFailed, nil, fmt.Sprintf("panic: %v", r))
			}
		}
	}()

	resp := p.registry.InvokeProtocol(p.ctx, t.protocolID, t.inputs)
	if resp.IsError() {
		complete(store.TaskFailed, nil, fmt.Sprintf("%s: %s", resp.ErrorKind, resp.ErrorMessage))
		return
	}
	complete(store.TaskCompleted, resp.Data, "")
}

// Close stops accepting work, drains the queued tasks, and waits for the
// workers to finish.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		close(p.queue)
		p.wg.Wait()
		p.cancel()
	})
}
