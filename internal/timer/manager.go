package timer

import (
	"container/heap"
	"errors"
	"sync"
	"time"
)

// ErrManagerStopped is returned when scheduling on a stopped manager
var ErrManagerStopped = errors.New("timer manager is stopped")

// Task is a callback due at a point in time. Recurring tasks carry a
// non-zero Every and are pushed back after each run.
type Task struct {
	ID    string
	DueAt time.Time
	Every time.Duration
	Run   func()
	index int
}

// taskHeap is a min-heap of tasks ordered by DueAt
type taskHeap []*Task

func (h taskHeap) Len() int           { return len(h) }
func (h taskHeap) Less(i, j int) bool { return h[i].DueAt.Before(h[j].DueAt) }

func (h taskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *taskHeap) Push(x any) {
	task := x.(*Task)
	task.index = len(*h)
	*h = append(*h, task)
}

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	task := old[n-1]
	old[n-1] = nil
	task.index = -1
	*h = old[:n-1]
	return task
}

// TimerManager runs scheduled callbacks from a single loop. A task is
// never run concurrently with itself: a recurring task is rescheduled
// only after its callback returns.
type TimerManager struct {
	mu      sync.Mutex
	heap    taskHeap
	tasks   map[string]*Task
	wakeup  chan struct{}
	stopCh  chan struct{}
	done    chan struct{}
	running sync.WaitGroup
	started bool
	stopped bool
}

// NewTimerManager creates an idle manager; call Start to run it
func NewTimerManager() *TimerManager {
	return &TimerManager{
		tasks:  make(map[string]*Task),
		wakeup: make(chan struct{}, 1),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start launches the scheduling loop
func (tm *TimerManager) Start() {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	if tm.started || tm.stopped {
		return
	}
	tm.started = true
	go tm.loop()
}

// Stop ends the loop and waits for in-flight callbacks
func (tm *TimerManager) Stop() {
	tm.mu.Lock()
	if tm.stopped {
		tm.mu.Unlock()
		return
	}
	tm.stopped = true
	started := tm.started
	close(tm.stopCh)
	tm.mu.Unlock()

	if started {
		<-tm.done
	}
	tm.running.Wait()
}

// Schedule runs fn once at dueAt, replacing any task with the same id
func (tm *TimerManager) Schedule(id string, dueAt time.Time, fn func()) error {
	return tm.push(&Task{ID: id, DueAt: dueAt, Run: fn})
}

// Every runs fn every interval, first one interval from now
func (tm *TimerManager) Every(id string, interval time.Duration, fn func()) error {
	if interval <= 0 {
		return errors.New("timer interval must be positive")
	}
	return tm.push(&Task{ID: id, DueAt: time.Now().Add(interval), Every: interval, Run: fn})
}

func (tm *TimerManager) push(task *Task) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if tm.stopped {
		return ErrManagerStopped
	}
	if existing, ok := tm.tasks[task.ID]; ok && existing.index >= 0 {
		heap.Remove(&tm.heap, existing.index)
	}
	heap.Push(&tm.heap, task)
	tm.tasks[task.ID] = task

	if tm.heap[0] == task {
		tm.notify()
	}
	return nil
}

// Cancel removes a task. A callback already running finishes, but a
// recurring task is not rescheduled.
func (tm *TimerManager) Cancel(id string) bool {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	task, ok := tm.tasks[id]
	if !ok {
		return false
	}
	if task.index >= 0 {
		heap.Remove(&tm.heap, task.index)
	}
	delete(tm.tasks, id)
	return true
}

// Pending returns the number of tasks waiting for their due time
func (tm *TimerManager) Pending() int {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	return tm.heap.Len()
}

func (tm *TimerManager) notify() {
	select {
	case tm.wakeup <- struct{}{}:
	default:
	}
}

func (tm *TimerManager) loop() {
	defer close(tm.done)

	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		wait := tm.fireDue()

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)

		select {
		case <-timer.C:
		case <-tm.wakeup:
		case <-tm.stopCh:
			return
		}
	}
}

// fireDue starts every task that is due and returns the wait until the next one
func (tm *TimerManager) fireDue() time.Duration {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	for tm.heap.Len() > 0 {
		next := tm.heap[0]
		wait := time.Until(next.DueAt)
		if wait > 0 {
			return wait
		}
		heap.Pop(&tm.heap)
		if next.Every == 0 {
			delete(tm.tasks, next.ID)
		}
		tm.running.Add(1)
		go tm.run(next)
	}
	return time.Hour
}

func (tm *TimerManager) run(task *Task) {
	defer tm.running.Done()
	task.Run()

	if task.Every == 0 {
		return
	}

	tm.mu.Lock()
	defer tm.mu.Unlock()
	// cancelled or replaced while running
	if tm.stopped || tm.tasks[task.ID] != task {
		return
	}
	task.DueAt = time.Now().Add(task.Every)
	heap.Push(&tm.heap, task)
	if tm.heap[0] == task {
		tm.notify()
	}
}
