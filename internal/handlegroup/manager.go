// File: internal/handlegroup/manager.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Membership placement, split and merge.

package handlegroup

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Stats counts rebalancing activity.
type Stats struct {
	Groups  int
	Members int
	Splits  uint64
	Merges  uint64
	Created uint64
	Deleted uint64
}

// Manager owns every group. All membership changes are serialised by the
// manager lock; moves between groups additionally hold both group locks,
// taken in ascending id order.
type Manager struct {
	capacity int
	low      int
	high     int

	newWaiter func() (Waiter, error)
	// OnWaitError is called on the group thread when a wait fails. The
	// group then stays parked until its membership changes.
	OnWaitError func(err error)

	mu         sync.Mutex
	groups     map[*Group]struct{}
	imbalanced *Group
	nextID     uint64
	closed     bool

	splits, merges, created, deleted atomic.Uint64
}

// NewManager creates a manager for groups of at most capacity handles.
// newWaiter is called once per group, from the goroutine creating it.
func NewManager(capacity int, newWaiter func() (Waiter, error)) *Manager {
	if capacity < 4 {
		panic(fmt.Sprintf("handlegroup: capacity %d too small", capacity))
	}
	return &Manager{
		capacity:  capacity,
		low:       capacity / 4,
		high:      capacity * 3 / 4,
		newWaiter: newWaiter,
		groups:    make(map[*Group]struct{}),
	}
}

// Capacity returns the per-group handle ceiling.
func (m *Manager) Capacity() int { return m.capacity }

// Watermarks returns the low and high water marks.
func (m *Manager) Watermarks() (low, high int) { return m.low, m.high }

func (m *Manager) classify(n int) State {
	switch {
	case n < m.low:
		return Growing
	case n > m.high:
		return Shrinking
	}
	return Stable
}

func (m *Manager) onWaitError(g *Group, err error) {
	if fn := m.OnWaitError; fn != nil {
		fn(fmt.Errorf("handlegroup: group %d: %w", g.id, err))
	}
}

// newGroupLocked creates a group and starts its wait thread.
func (m *Manager) newGroupLocked() (*Group, error) {
	w, err := m.newWaiter()
	if err != nil {
		return nil, fmt.Errorf("handlegroup: new waiter: %w", err)
	}
	m.nextID++
	g := &Group{id: m.nextID, m: m, waiter: w, done: make(chan struct{})}
	g.cond = sync.NewCond(&g.mu)
	m.groups[g] = struct{}{}
	m.created.Add(1)
	go g.run()
	return g, nil
}

// destroyLocked stops an empty group's thread and waits for it to exit.
func (m *Manager) destroyLocked(g *Group) {
	delete(m.groups, g)
	if m.imbalanced == g {
		m.imbalanced = nil
	}
	g.mu.Lock()
	g.closed = true
	g.commit(true)
	g.mu.Unlock()
	<-g.done
	m.deleted.Add(1)
}

// Add places mem, preferring home, then the imbalanced group, then a new
// group. It returns the group chosen so callers can use it as the next home.
func (m *Manager) Add(mem *Member, home *Group) (*Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}

	var g *Group
	switch {
	case home != nil && m.hasRoom(home):
		g = home
	case m.imbalanced != nil && m.hasRoom(m.imbalanced):
		g = m.imbalanced
	default:
		var err error
		if g, err = m.newGroupLocked(); err != nil {
			return nil, err
		}
		if m.imbalanced == nil {
			m.imbalanced = g
		}
	}

	mem.live.Store(true)
	mem.paused = false
	g.mu.Lock()
	g.insertLocked(mem)
	g.commit(false)
	n := len(g.members)
	g.mu.Unlock()

	switch {
	case n > m.high:
		if err := m.splitLocked(g); err != nil {
			// the group is over its high-water mark but still within capacity
			m.onWaitError(g, err)
		}
	case g == m.imbalanced && n >= m.low:
		m.imbalanced = nil
	}
	return mem.group, nil
}

func (m *Manager) hasRoom(g *Group) bool {
	if _, ok := m.groups[g]; !ok {
		return false
	}
	return g.Len() < m.capacity
}

// splitLocked moves members out of g until it holds half its capacity. The
// recipient is the imbalanced group when it can absorb them, otherwise a
// new group.
func (m *Manager) splitLocked(g *Group) error {
	excess := g.Len() - m.capacity/2
	dst := m.imbalanced
	if dst == nil || dst == g || dst.Len()+excess > m.high {
		var err error
		if dst, err = m.newGroupLocked(); err != nil {
			return err
		}
	}
	m.moveLocked(g, dst, excess)
	m.splits.Add(1)
	m.settleLocked(dst)
	m.settleLocked(g)
	return nil
}

// Remove takes mem out of its group. When Remove returns, the group thread
// no longer waits on mem.Handle.
func (m *Manager) Remove(mem *Member) {
	m.mu.Lock()
	defer m.mu.Unlock()

	g := mem.group
	if g == nil {
		return
	}
	mem.live.Store(false)
	g.mu.Lock()
	g.removeLocked(mem)
	g.commit(true)
	n := len(g.members)
	g.mu.Unlock()

	switch {
	case n == 0:
		m.destroyLocked(g)
	case n >= m.low || g == m.imbalanced:
	case m.imbalanced == nil:
		m.imbalanced = g
	default:
		m.mergeLocked(m.imbalanced, g)
	}
}

// mergeLocked empties src into dst and settles the result.
func (m *Manager) mergeLocked(src, dst *Group) {
	m.moveLocked(src, dst, src.Len())
	m.merges.Add(1)
	m.destroyLocked(src)
	m.settleLocked(dst)
}

// settleLocked updates the imbalanced designation after a move.
func (m *Manager) settleLocked(g *Group) {
	if _, ok := m.groups[g]; !ok {
		return
	}
	switch n := g.Len(); {
	case n >= m.low:
		if m.imbalanced == g {
			m.imbalanced = nil
		}
	case m.imbalanced == nil:
		m.imbalanced = g
	}
}

// moveLocked transfers up to n members from src to dst and waits until
// src's thread dropped them from its wait set.
func (m *Manager) moveLocked(src, dst *Group, n int) {
	first, second := src, dst
	if dst.id < src.id {
		first, second = dst, src
	}
	first.mu.Lock()
	second.mu.Lock()
	for i := 0; i < n && len(src.members) > 0; i++ {
		mem := src.members[len(src.members)-1]
		src.removeLocked(mem)
		dst.insertLocked(mem)
	}
	dst.commit(false)
	second.mu.Unlock()
	if first == dst {
		first.mu.Unlock()
		src.mu.Lock()
		src.commit(true)
		src.mu.Unlock()
		return
	}
	src.commit(true)
	first.mu.Unlock()
}

// Resume re-enables a member paused after a signal.
func (m *Manager) Resume(mem *Member) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g := mem.group
	if g == nil {
		return
	}
	g.mu.Lock()
	if mem.paused {
		mem.paused = false
		g.commit(false)
	}
	g.mu.Unlock()
}

// Groups returns every live group.
func (m *Manager) Groups() []*Group {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Group, 0, len(m.groups))
	for g := range m.groups {
		out = append(out, g)
	}
	return out
}

// Imbalanced returns the single group allowed outside the stable band, if any.
func (m *Manager) Imbalanced() *Group {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.imbalanced
}

// Stats returns rebalancing counters.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := Stats{
		Groups:  len(m.groups),
		Splits:  m.splits.Load(),
		Merges:  m.merges.Load(),
		Created: m.created.Load(),
		Deleted: m.deleted.Load(),
	}
	for g := range m.groups {
		s.Members += g.Len()
	}
	return s
}

// Close removes every member and stops all group threads.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	for g := range m.groups {
		g.mu.Lock()
		for _, mem := range g.members {
			mem.live.Store(false)
			mem.group = nil
		}
		g.members = nil
		g.mu.Unlock()
		m.destroyLocked(g)
	}
}
