// File: reactor/process_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package reactor

import (
	"errors"
	"testing"
	"time"

	"github.com/momentics/hioload-iv/api"
	"github.com/momentics/hioload-iv/control"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubBackend records init calls and fails them when initErr is set.
type stubBackend struct {
	label   string
	initErr error
	inits   *[]string
}

func (b *stubBackend) name() string { return b.label }

func (b *stubBackend) init(*Reactor, int) error {
	*b.inits = append(*b.inits, b.label)
	return b.initErr
}

func (b *stubBackend) poll(time.Duration) error { return nil }
func (b *stubBackend) register(*FD)             {}
func (b *stubBackend) unregister(*FD)           {}
func (b *stubBackend) notify(*FD)               {}
func (b *stubBackend) notifyFDSync(*FD) error   { return nil }
func (b *stubBackend) close()                   {}

func stubFactory(label string, initErr error, inits *[]string) backendFactory {
	return backendFactory{
		name: label,
		new:  func() backend { return &stubBackend{label: label, initErr: initErr, inits: inits} },
	}
}

func stubProcess(exclude []string, candidates ...backendFactory) *processState {
	return &processState{
		cfg:        control.Config{ExcludePollMethods: exclude},
		maxFDs:     64,
		candidates: candidates,
	}
}

func TestSelectionSkipsExcludedAndFailedBackends(t *testing.T) {
	var inits []string
	ps := stubProcess([]string{"first"},
		stubFactory("first", nil, &inits),
		stubFactory("broken", errors.New("no kernel support"), &inits),
		stubFactory("working", nil, &inits),
		stubFactory("last", nil, &inits),
	)

	be, err := ps.instantiate(&Reactor{})
	require.NoError(t, err)
	assert.Equal(t, "working", be.name())
	assert.Equal(t, "working", ps.selected)
	assert.Equal(t, []string{"broken", "working"}, inits)
}

func TestLaterReactorsReuseSelectedBackend(t *testing.T) {
	var inits []string
	ps := stubProcess(nil,
		stubFactory("broken", errors.New("unavailable"), &inits),
		stubFactory("working", nil, &inits),
		stubFactory("last", nil, &inits),
	)

	for i := 0; i < 3; i++ {
		be, err := ps.instantiate(&Reactor{})
		require.NoError(t, err)
		assert.Equal(t, "working", be.name())
	}
	// selection runs once; the failed candidate is never retried
	assert.Equal(t, []string{"broken", "working", "working", "working"}, inits)
}

func TestSelectedBackendInitFailureIsReturned(t *testing.T) {
	var inits []string
	failing := errors.New("out of descriptors")
	ps := stubProcess(nil, stubFactory("working", nil, &inits))
	_, err := ps.instantiate(&Reactor{})
	require.NoError(t, err)

	ps.candidates[0] = stubFactory("working", failing, &inits)
	_, err = ps.instantiate(&Reactor{})
	assert.ErrorIs(t, err, failing)
	assert.Equal(t, "working", ps.selected)
}

func TestNoUsableBackend(t *testing.T) {
	var inits []string
	ps := stubProcess([]string{"excluded"},
		stubFactory("excluded", nil, &inits),
		stubFactory("broken", errors.New("unavailable"), &inits),
	)

	_, err := ps.instantiate(&Reactor{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, api.ErrNotSupported))
	assert.Contains(t, err.Error(), "broken")
	assert.Empty(t, ps.selected)
	assert.Equal(t, []string{"broken"}, inits)
}
