// File: reactor/extension.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Per-reactor extension slots. Subsystems reserve a typed slot before the
// first reactor exists; every reactor then carries one zeroed value per
// slot, initialised and torn down in registration order.

package reactor

import (
	"sync"
	"unsafe"
)

type extensionRecord struct {
	size   uintptr
	alloc  func() any
	init   func(r *Reactor, slot any)
	deinit func(r *Reactor, slot any)
}

var extensions struct {
	sync.Mutex
	records []extensionRecord
	sealed  bool
}

// Extension is a handle to a per-reactor slot of type T.
type Extension[T any] struct {
	index int
}

// RegisterExtension reserves a slot of type T in every reactor created
// afterwards. init runs when a reactor is created, deinit (optional) when
// it is closed. Registering once any reactor exists is fatal, so callers
// normally register from a package-level variable initialiser.
func RegisterExtension[T any](init, deinit func(r *Reactor, v *T)) *Extension[T] {
	extensions.Lock()
	defer extensions.Unlock()
	if extensions.sealed {
		Fatal("extension registered after first reactor creation")
	}
	rec := extensionRecord{
		size:  unsafe.Sizeof(*new(T)),
		alloc: func() any { return new(T) },
	}
	if init != nil {
		rec.init = func(r *Reactor, slot any) { init(r, slot.(*T)) }
	}
	if deinit != nil {
		rec.deinit = func(r *Reactor, slot any) { deinit(r, slot.(*T)) }
	}
	extensions.records = append(extensions.records, rec)
	return &Extension[T]{index: len(extensions.records) - 1}
}

// Get returns r's slot. It is only valid on r's own goroutine.
func (x *Extension[T]) Get(r *Reactor) *T {
	return r.ext[x.index].(*T)
}

// ExtensionBlockSize is the size of the core reactor state plus every
// registered slot.
func ExtensionBlockSize() uintptr {
	extensions.Lock()
	defer extensions.Unlock()
	size := unsafe.Sizeof(Reactor{})
	for _, rec := range extensions.records {
		size += rec.size
	}
	return size
}

func sealedExtensions() []extensionRecord {
	extensions.Lock()
	defer extensions.Unlock()
	extensions.sealed = true
	return extensions.records
}

func initExtensions(r *Reactor) []any {
	recs := sealedExtensions()
	slots := make([]any, len(recs))
	for i, rec := range recs {
		slots[i] = rec.alloc()
	}
	r.ext = slots
	for i, rec := range recs {
		if rec.init != nil {
			rec.init(r, slots[i])
		}
	}
	return slots
}

func deinitExtensions(r *Reactor) {
	recs := sealedExtensions()
	for i, rec := range recs {
		if rec.deinit != nil {
			rec.deinit(r, r.ext[i])
		}
	}
}
