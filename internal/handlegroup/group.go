// File: internal/handlegroup/group.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Rebalancing groups of waitable handles across dedicated wait threads.

// Package handlegroup spreads waitable handles over groups, each served by
// one OS thread blocked in a multi-object wait with a fixed object ceiling.
//
// A group holding fewer members than the low-water mark is growing, one
// holding more than the high-water mark is shrinking; anything between is
// stable. At most one group is left growing at a time (the imbalanced
// group); a group pushed above the high-water mark is split immediately,
// and a second group falling below the low-water mark is merged with the
// imbalanced one.
package handlegroup

import (
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
)

// ErrClosed is returned by Add after Close.
var ErrClosed = errors.New("handlegroup: manager closed")

// Waiter blocks on a set of handles. Wait returns the index of a signalled
// handle, or -1 when woken by Wake. Implementations must allow Wake from
// any goroutine while Wait is blocked. After Wait fails the group does not
// call it again until its membership changes.
type Waiter interface {
	Wait(handles []uintptr) (int, error)
	Wake()
	Close() error
}

// State classifies a group's membership against the watermarks.
type State int

const (
	Growing State = iota
	Stable
	Shrinking
)

func (s State) String() string {
	switch s {
	case Growing:
		return "growing"
	case Stable:
		return "stable"
	case Shrinking:
		return "shrinking"
	}
	return "unknown"
}

// Member is one waitable handle. OnSignal runs on the group thread after
// the handle is signalled; the member is then paused, excluded from the
// wait, until Resume. OnSignal must not call Add, Remove or Resume, and
// may rarely fire once more for a member that was being moved between
// groups while Remove ran, so receivers re-check their own registration.
type Member struct {
	Handle   uintptr
	OnSignal func(m *Member)

	group  *Group // written under group.mu
	index  int
	paused bool
	live   atomic.Bool
}

// Group is one wait thread and its members.
type Group struct {
	id     uint64
	m      *Manager
	waiter Waiter

	mu      sync.Mutex
	cond    *sync.Cond
	members []*Member
	epoch   uint64 // bumped by every membership change
	acked   uint64 // epoch of the last snapshot taken by the thread
	closed  bool
	done    chan struct{}
}

// Len returns the member count.
func (g *Group) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.members)
}

// State returns the group's watermark classification.
func (g *Group) State() State {
	return g.m.classify(g.Len())
}

func (g *Group) run() {
	defer close(g.done)
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	var (
		handles []uintptr
		snap    []*Member
	)
	for {
		g.mu.Lock()
		if g.closed {
			g.acked = g.epoch
			g.cond.Broadcast()
			g.mu.Unlock()
			g.waiter.Close()
			return
		}
		handles, snap = handles[:0], snap[:0]
		for _, mem := range g.members {
			if !mem.paused {
				handles = append(handles, mem.Handle)
				snap = append(snap, mem)
			}
		}
		g.acked = g.epoch
		g.cond.Broadcast()
		g.mu.Unlock()

		i, err := g.waiter.Wait(handles)
		if err != nil {
			g.m.onWaitError(g, err)
			// the same wait set would fail the same way
			g.mu.Lock()
			for !g.closed && g.acked == g.epoch {
				g.cond.Wait()
			}
			g.mu.Unlock()
			continue
		}
		if i < 0 || i >= len(snap) {
			continue
		}

		mem := snap[i]
		g.mu.Lock()
		own := mem.group == g
		if own && !mem.paused {
			mem.paused = true
			g.epoch++
		}
		g.mu.Unlock()
		// a member moved away mid-wait may have had its signal consumed
		// here, so it is still reported
		if (own || mem.live.Load()) && mem.OnSignal != nil {
			mem.OnSignal(mem)
		}
	}
}

// commit publishes a membership change to the group thread and, when the
// caller needs removed handles to be out of the wait set, blocks until the
// thread has taken a fresh snapshot. Called with g.mu held.
func (g *Group) commit(wait bool) {
	g.epoch++
	g.cond.Broadcast()
	g.waiter.Wake()
	if !wait {
		return
	}
	target := g.epoch
	for g.acked < target {
		g.cond.Wait()
	}
}

func (g *Group) insertLocked(mem *Member) {
	mem.group = g
	mem.index = len(g.members)
	g.members = append(g.members, mem)
}

func (g *Group) removeLocked(mem *Member) {
	last := len(g.members) - 1
	if mem.index != last {
		moved := g.members[last]
		g.members[mem.index] = moved
		moved.index = mem.index
	}
	g.members[last] = nil
	g.members = g.members[:last]
	mem.group = nil
	mem.index = -1
}
