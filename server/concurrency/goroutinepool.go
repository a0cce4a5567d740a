/******************************************************************************
 *
 *  Description :
 *    Small pool of goroutines running the control agent's retained
 *    publishes (request mirrors, history events, sentinel clears) off
 *    the subscription callback.
 *
 *****************************************************************************/
package concurrency

import "sync"

// Task is one scheduled publish closure.
type Task func()

type GoRoutinePool struct {
	// Work queue.
	work chan Task
	// Counter to control the number of already allocated/running goroutines.
	sem chan struct{}
	// Exit knob.
	stop chan struct{}
	// Tracks scheduled-but-unfinished tasks so Stop can join them.
	pending sync.WaitGroup
}

// NewGoRoutinePool allocates a pool of at most `numWorkers` goroutines.
// Workers are spawned lazily, one per scheduled task up to the limit.
func NewGoRoutinePool(numWorkers int) *GoRoutinePool {
	return &GoRoutinePool{
		work: make(chan Task),
		sem:  make(chan struct{}, numWorkers),
		stop: make(chan struct{}),
	}
}

// Schedule enqueues a closure to run on the pool's goroutines. The
// agent's callback is the only scheduler; Schedule must not be called
// concurrently with Stop.
func (p *GoRoutinePool) Schedule(task Task) {
	p.pending.Add(1)
	select {
	case p.work <- task:
	case p.sem <- struct{}{}:
		go p.worker(task)
	}
}

// Stop shuts the pool down and returns only after every scheduled task
// has finished. Callers may tear down shared state (stats channel,
// transport) as soon as Stop returns.
func (p *GoRoutinePool) Stop() {
	close(p.stop)
	p.pending.Wait()
}

// Pool worker goroutine.
func (p *GoRoutinePool) worker(task Task) {
	defer func() { <-p.sem }()
	for {
		task()
		p.pending.Done()
		select {
		case task = <-p.work:
		case <-p.stop:
			return
		}
	}
}
