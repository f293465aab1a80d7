// File: reactor/task.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Deferred in-loop calls with epoch tagging.

package reactor

import "container/list"

// Task is a deferred call run by the loop before it blocks again.
type Task struct {
	Handler func()

	elem  *list.Element
	queue *list.List
	ranIn uint64 // drain epoch the task last ran in
}

// Registered reports whether the task is queued.
func (t *Task) Registered() bool { return t.elem != nil }

// RegisterTask queues t. During a drain, a task that has not yet run in
// this drain joins it; a task that already ran (one re-registering itself)
// waits for the next drain. Queueing a queued task is fatal.
func (r *Reactor) RegisterTask(t *Task) {
	if t.elem != nil {
		fatal(r, "task already registered")
	}
	q := r.tasks
	if r.draining != nil && t.ranIn != r.taskEpoch {
		q = r.draining
	}
	t.queue = q
	t.elem = q.PushBack(t)
	r.numObjs++
}

// UnregisterTask removes t from whichever queue holds it.
func (r *Reactor) UnregisterTask(t *Task) {
	if t.elem == nil {
		fatal(r, "task not registered")
	}
	t.queue.Remove(t.elem)
	t.elem, t.queue = nil, nil
	r.numObjs--
}

// runTasks captures the queue, opens a new epoch and runs the capture in
// FIFO order.
func (r *Reactor) runTasks() {
	if r.tasks.Len() == 0 {
		return
	}
	r.taskEpoch++
	cur := r.tasks
	r.tasks = list.New()
	r.draining = cur
	defer func() { r.draining = nil }()

	for e := cur.Front(); e != nil; e = cur.Front() {
		t := cur.Remove(e).(*Task)
		t.elem, t.queue = nil, nil
		t.ranIn = r.taskEpoch
		r.numObjs--
		r.stats.TasksRun++
		metricTasks.Add(1)
		t.Handler()
	}
}
