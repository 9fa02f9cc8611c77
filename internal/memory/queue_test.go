package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestTaskQueueRunsTasks(t *testing.T) {
	q := NewTaskQueue(8, nil, nil)
	defer q.Close()

	var ran atomic.Int32
	var wg sync.WaitGroup
	wg.Add(3)
	for i := 0; i < 3; i++ {
		ok := q.Enqueue(Task{Name: "count", Run: func(context.Context) {
			ran.Add(1)
			wg.Done()
		}})
		if !ok {
			t.Fatal("enqueue rejected with free capacity")
		}
	}
	wg.Wait()
	if ran.Load() != 3 {
		t.Fatalf("ran = %d, want 3", ran.Load())
	}
}

func TestTaskQueueDropsWhenFull(t *testing.T) {
	q := NewTaskQueue(1, nil, nil)
	defer q.Close()

	block := make(chan struct{})
	started := make(chan struct{})
	q.Enqueue(Task{Name: "block", Run: func(context.Context) {
		close(started)
		<-block
	}})
	<-started

	// Worker is busy; one slot buffers, the next must drop.
	if !q.Enqueue(Task{Name: "buffered", Run: func(context.Context) {}}) {
		t.Fatal("buffered task rejected")
	}
	if q.Enqueue(Task{Name: "overflow", Run: func(context.Context) {}}) {
		t.Fatal("overflow task accepted on a full queue")
	}
	close(block)
}

func TestTaskQueueDrainsOnClose(t *testing.T) {
	q := NewTaskQueue(8, nil, nil)

	var ran atomic.Int32
	for i := 0; i < 5; i++ {
		q.Enqueue(Task{Name: "drain", Run: func(context.Context) {
			time.Sleep(time.Millisecond)
			ran.Add(1)
		}})
	}
	q.Close()
	if got := ran.Load(); got != 5 {
		t.Fatalf("ran = %d, want all 5 drained before Close returned", got)
	}
}

func TestTaskQueueSurvivesPanickingTask(t *testing.T) {
	q := NewTaskQueue(8, nil, nil)
	defer q.Close()

	q.Enqueue(Task{Name: "bad", Run: func(context.Context) { panic("task exploded") }})

	done := make(chan struct{})
	q.Enqueue(Task{Name: "after", Run: func(context.Context) { close(done) }})
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker died after a panicking task")
	}
}
