package utils

import (
	"sync"
)

// WorkerPool runs submitted tasks on a fixed number of goroutines.
type WorkerPool struct {
	workers   int
	jobQueue  chan func()
	waitGroup sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewWorkerPool creates a new WorkerPool with the specified number of workers.
func NewWorkerPool(workers int) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	pool := &WorkerPool{
		workers:  workers,
		jobQueue: make(chan func(), workers),
	}

	pool.waitGroup.Add(workers)
	for i := 0; i < workers; i++ {
		go pool.worker()
	}

	return pool
}

// worker processes jobs from the jobQueue.
func (wp *WorkerPool) worker() {
	defer wp.waitGroup.Done()
	for task := range wp.jobQueue {
		task()
	}
}

// Submit queues a task, blocking while the queue is full.
// It returns false without running the task once the pool is shut down.
func (wp *WorkerPool) Submit(task func()) bool {
	wp.mu.RLock()
	defer wp.mu.RUnlock()

	if wp.closed {
		return false
	}
	wp.jobQueue <- task
	return true
}

// Shutdown stops accepting tasks and waits for queued ones to finish.
func (wp *WorkerPool) Shutdown() {
	wp.mu.Lock()
	if wp.closed {
		wp.mu.Unlock()
		return
	}
	wp.closed = true
	close(wp.jobQueue)
	wp.mu.Unlock()

	wp.waitGroup.Wait()
}
