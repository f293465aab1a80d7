// File: reactor/process.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Process-wide initialisation performed at first reactor creation:
// configuration, descriptor limit, ignored signals, and backend selection.

package reactor

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/momentics/hioload-iv/api"
	"github.com/momentics/hioload-iv/control"
)

type processState struct {
	cfg        control.Config
	maxFDs     int
	candidates []backendFactory // preference order

	mu       sync.Mutex
	selected string
}

var (
	procOnce  sync.Once
	procState *processState

	cfgOnce sync.Once
	cfg     control.Config
)

func processConfig() control.Config {
	cfgOnce.Do(func() {
		c, err := control.LoadConfig()
		if err != nil {
			// the logger depends on this config, so report on the stock one
			NewLogger(c.LogLevel).Warning().Err(err).Log("config load failed, using defaults")
		}
		cfg = c
	})
	return cfg
}

func processInit() *processState {
	procOnce.Do(func() {
		ps := &processState{cfg: processConfig(), candidates: backendCandidates()}
		ps.maxFDs = raiseFDLimit()
		ignoreSignals()
		procState = ps

		probes := control.Probes()
		probes.RegisterProbe("reactor.backend", func() any { return BackendName() })
		probes.RegisterProbe("reactor.fd_limit", func() any { return ps.maxFDs })
		probes.RegisterProbe("reactor.live", func() any {
			return control.Metrics().Counter("reactor.live").Load()
		})
		DefaultLogger().Debug().
			Int("fd_limit", ps.maxFDs).
			Str("excluded", fmt.Sprint(ps.cfg.ExcludePollMethods)).
			Log("process initialised")
	})
	return procState
}

// instantiate creates a backend for r. The first successful candidate in
// preference order, not excluded by configuration, becomes the process
// backend; later reactors use that backend only.
func (ps *processState) instantiate(r *Reactor) (backend, error) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if ps.selected != "" {
		f := ps.candidate(ps.selected)
		be := f.new()
		if err := be.init(r, ps.maxFDs); err != nil {
			return nil, fmt.Errorf("reactor: %s init: %w", f.name, err)
		}
		return be, nil
	}

	var errs []error
	for _, f := range ps.candidates {
		if slices.Contains(ps.cfg.ExcludePollMethods, f.name) {
			continue
		}
		be := f.new()
		if err := be.init(r, ps.maxFDs); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", f.name, err))
			r.log.Debug().Str("backend", f.name).Err(err).Log("backend unavailable")
			continue
		}
		ps.selected = f.name
		r.log.Info().Str("backend", f.name).Log("poll backend selected")
		return be, nil
	}
	return nil, fmt.Errorf("reactor: no usable poll backend: %w",
		errors.Join(append([]error{api.ErrNotSupported}, errs...)...))
}

func (ps *processState) candidate(name string) backendFactory {
	i := slices.IndexFunc(ps.candidates, func(f backendFactory) bool { return f.name == name })
	return ps.candidates[i]
}

// BackendName reports the process-wide backend, or "" before the first
// reactor is created.
func BackendName() string {
	ps := procState
	if ps == nil {
		return ""
	}
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return ps.selected
}

// Config returns the process-wide configuration, loading it on first use.
func Config() control.Config {
	return processConfig()
}
