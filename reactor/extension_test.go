// File: reactor/extension_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package reactor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type traceSlot struct {
	owner *Reactor
	trace *[]string
}

var extTrace = map[*Reactor]*[]string{}

func traceExtension(name string) *Extension[traceSlot] {
	return RegisterExtension(
		func(r *Reactor, s *traceSlot) {
			s.owner = r
			tr, ok := extTrace[r]
			if !ok {
				tr = new([]string)
				extTrace[r] = tr
			}
			s.trace = tr
			*tr = append(*tr, name+".init")
		},
		func(r *Reactor, s *traceSlot) {
			*s.trace = append(*s.trace, name+".deinit")
		},
	)
}

var (
	extFirst  = traceExtension("first")
	extSecond = traceExtension("second")
)

func TestExtensionsRunInRegistrationOrder(t *testing.T) {
	r, err := New(WithLogger(nil))
	require.NoError(t, err)

	assert.Same(t, r, extFirst.Get(r).owner)
	assert.Same(t, r, extSecond.Get(r).owner)
	assert.NotSame(t, extFirst.Get(r), extSecond.Get(r))

	r.Close()
	tr := extTrace[r]
	require.NotNil(t, tr)
	assert.Equal(t, []string{"first.init", "second.init", "first.deinit", "second.deinit"}, *tr)
	delete(extTrace, r)
}

func TestExtensionSlotsArePerReactor(t *testing.T) {
	r1, err := New(WithLogger(nil))
	require.NoError(t, err)
	defer r1.Close()
	r2, err := New(WithLogger(nil))
	require.NoError(t, err)
	defer r2.Close()

	assert.NotSame(t, extFirst.Get(r1), extFirst.Get(r2))
	assert.Greater(t, ExtensionBlockSize(), uintptr(0))
	assert.Equal(t, ExtensionBlockSize(), r1.Stats().ExtensionBytes)
}

func TestLateExtensionIsFatal(t *testing.T) {
	r, err := New(WithLogger(nil))
	require.NoError(t, err)
	defer r.Close()
	msg := expectFatal(t, func() {
		RegisterExtension[int](nil, nil)
	})
	assert.Contains(t, msg, "after first reactor")
}
