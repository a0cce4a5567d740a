package concurrency

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestPoolRunsAllTasks(t *testing.T) {
	p := NewGoRoutinePool(4)
	var done int32
	for i := 0; i < 100; i++ {
		p.Schedule(func() { atomic.AddInt32(&done, 1) })
	}
	p.Stop()
	if got := atomic.LoadInt32(&done); got != 100 {
		t.Errorf("ran %d of 100 tasks", got)
	}
}

func TestStopJoinsInflightTasks(t *testing.T) {
	p := NewGoRoutinePool(2)
	var done int32
	for i := 0; i < 3; i++ {
		p.Schedule(func() {
			time.Sleep(50 * time.Millisecond)
			atomic.AddInt32(&done, 1)
		})
	}
	p.Stop()
	// Stop returns only after every scheduled task has finished.
	if got := atomic.LoadInt32(&done); got != 3 {
		t.Errorf("Stop returned with %d of 3 tasks finished", got)
	}
}
