// Package worker provides a fixed-size pool of goroutines consuming a FIFO
// task queue.
package worker

import (
	"runtime/debug"
	"sync"

	"go.uber.org/zap"

	"github.com/salesline/salesline/internal/errs"
)

// Pool runs submitted tasks on n goroutines. Tasks run outside the queue
// lock; a panicking task is logged and does not kill its worker.
type Pool struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	queue    []func()
	stopped  bool

	wg  sync.WaitGroup
	log *zap.Logger
}

// NewPool starts n workers.
func NewPool(n int, log *zap.Logger) *Pool {
	p := &Pool{log: log}
	p.notEmpty = sync.NewCond(&p.mu)

	p.wg.Add(n)
	for i := 0; i < n; i++ {
		go p.work()
	}
	return p
}

// Execute enqueues a task and wakes one idle worker. A single task can only
// be taken by one worker, so waking all of them would be wasted wakeups.
func (p *Pool) Execute(task func()) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return errs.ErrClosed
	}
	p.queue = append(p.queue, task)
	p.notEmpty.Signal()
	return nil
}

// Stop rejects new tasks and wakes every worker: all of them must observe
// the stop flag. Workers drain the remaining queue, then exit; Stop returns
// once they have.
func (p *Pool) Stop() {
	p.mu.Lock()
	p.stopped = true
	p.notEmpty.Broadcast()
	p.mu.Unlock()

	p.wg.Wait()
}

func (p *Pool) work() {
	defer p.wg.Done()

	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.stopped {
			p.notEmpty.Wait()
		}
		if len(p.queue) == 0 {
			p.mu.Unlock()
			return
		}
		task := p.queue[0]
		p.queue = p.queue[1:]
		p.mu.Unlock()

		p.run(task)
	}
}

func (p *Pool) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("task panic",
				zap.Any("reason", r),
				zap.ByteString("stack", debug.Stack()),
			)
		}
	}()
	task()
}
