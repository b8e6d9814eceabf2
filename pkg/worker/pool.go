/*
Copyright 2021 Stefan Prodan

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package worker runs broker workflows on a fixed pool of goroutines.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"k8s.io/client-go/util/workqueue"
)

// DefaultWorkers is the number of goroutines used when none is specified.
const DefaultWorkers = 10

// ErrShuttingDown is returned by Submit after Shutdown was called.
var ErrShuttingDown = errors.New("worker pool is shutting down")

// Task is a unit of work.
type Task struct {
	Name string
	Run  func(ctx context.Context)
}

// Pool drains a workqueue of tasks with a fixed number of goroutines.
// Tasks run on a context detached from the submitter.
type Pool struct {
	queue   workqueue.TypedInterface[*Task]
	workers int
	log     *zap.SugaredLogger

	ctx context.Context
	wg  sync.WaitGroup

	mu       sync.RWMutex
	stopping bool
}

// Options configures a Pool.
type Options struct {
	// Name of the queue, used for metrics.
	Name string
	// Workers is the number of goroutines, DefaultWorkers if zero.
	Workers int
	// MetricsProvider records the queue metrics, optional.
	MetricsProvider workqueue.MetricsProvider
}

// NewPool starts the worker goroutines and returns the pool.
func NewPool(opts Options, log *zap.SugaredLogger) *Pool {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.Name == "" {
		opts.Name = "workflows"
	}

	p := &Pool{
		queue: workqueue.NewTypedWithConfig(workqueue.TypedQueueConfig[*Task]{
			Name:            opts.Name,
			MetricsProvider: opts.MetricsProvider,
		}),
		workers: opts.Workers,
		log:     log,
		ctx:     context.Background(),
	}

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}

	return p
}

// Submit queues the function for execution.
func (p *Pool) Submit(name string, fn func(ctx context.Context)) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.stopping {
		return ErrShuttingDown
	}

	p.queue.Add(&Task{Name: name, Run: fn})
	return nil
}

// Shutdown stops accepting tasks and waits for the queued and running
// tasks to finish or for the context to be done.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	p.stopping = true
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.queue.ShutDownWithDrain()
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("worker pool shutdown failed, error: %w", ctx.Err())
	}
}

// Len returns the number of queued tasks.
func (p *Pool) Len() int {
	return p.queue.Len()
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		task, shutdown := p.queue.Get()
		if shutdown {
			return
		}
		p.run(task)
		p.queue.Done(task)
	}
}

func (p *Pool) run(task *Task) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Errorw("task panicked", "task", task.Name, "panic", r)
		}
	}()

	p.log.Debugw("task started", "task", task.Name)
	task.Run(p.ctx)
	p.log.Debugw("task finished", "task", task.Name)
}
