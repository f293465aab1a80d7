// control/config_test.go
// Author: momentics <momentics@gmail.com>

package control

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/joeycumines/logiface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv(EnvExcludePollMethod, "")
	t.Setenv(EnvConfigFile, "")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Empty(t, cfg.ExcludePollMethods)
	assert.Equal(t, logiface.LevelWarning, cfg.LogLevel)
	assert.Equal(t, 10*time.Second, cfg.IdleTimeout)
	assert.Positive(t, cfg.MaxThreads)
}

func TestLoadConfigExcludeList(t *testing.T) {
	if !identityMatches() {
		t.Skip("running set-id; environment is ignored")
	}
	t.Setenv(EnvConfigFile, "")
	t.Setenv(EnvExcludePollMethod, "epoll, uring\tpoll")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, []string{"epoll", "uring", "poll"}, cfg.ExcludePollMethods)
}

func TestLoadConfigFile(t *testing.T) {
	if !identityMatches() {
		t.Skip("running set-id; environment is ignored")
	}
	path := filepath.Join(t.TempDir(), "iv.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
exclude_poll_methods = ["uring"]
log_level = "debug"

[pool]
max_threads = 3
idle_timeout = "250ms"
`), 0o600))
	t.Setenv(EnvConfigFile, path)
	t.Setenv(EnvExcludePollMethod, "kqueue")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, []string{"uring", "kqueue"}, cfg.ExcludePollMethods)
	assert.Equal(t, logiface.LevelDebug, cfg.LogLevel)
	assert.Equal(t, 3, cfg.MaxThreads)
	assert.Equal(t, 250*time.Millisecond, cfg.IdleTimeout)
}

func TestLoadConfigBadFileKeepsDefaults(t *testing.T) {
	if !identityMatches() {
		t.Skip("running set-id; environment is ignored")
	}
	path := filepath.Join(t.TempDir(), "iv.toml")
	require.NoError(t, os.WriteFile(path, []byte(`log_level = "loud"`), 0o600))
	t.Setenv(EnvConfigFile, path)

	cfg, err := LoadConfig()
	require.Error(t, err)
	assert.Equal(t, logiface.LevelWarning, cfg.LogLevel)
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]logiface.Level{
		"emerg":   logiface.LevelEmergency,
		"ERROR":   logiface.LevelError,
		" warn ":  logiface.LevelWarning,
		"info":    logiface.LevelInformational,
		"trace":   logiface.LevelTrace,
		"off":     logiface.LevelDisabled,
		"notice":  logiface.LevelNotice,
		"crit":    logiface.LevelCritical,
		"debug":   logiface.LevelDebug,
		"alert":   logiface.LevelAlert,
		"err":     logiface.LevelError,
		"warning": logiface.LevelWarning,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseLevel("chatty")
	assert.Error(t, err)
}

func TestCountersAndProbes(t *testing.T) {
	reg := NewMetricsRegistry()
	c := reg.Counter("x")
	assert.Same(t, c, reg.Counter("x"))
	c.Add(3)
	c.Add(-1)
	reg.Set("gauge", "on")
	snap := reg.GetSnapshot()
	assert.EqualValues(t, 2, snap["x"])
	assert.Equal(t, "on", snap["gauge"])
	assert.False(t, reg.Updated().IsZero())

	dump := Probes().DumpState()
	assert.Contains(t, dump, "platform.cpus")
	assert.Contains(t, dump, "platform.clock")
}

func TestDumpStateAllowsRegistration(t *testing.T) {
	var dp DebugProbes
	dp.RegisterProbe("outer", func() any {
		dp.RegisterProbe("inner", func() any { return 2 })
		return 1
	})
	first := dp.DumpState()
	assert.Equal(t, map[string]any{"outer": 1}, first)

	second := dp.DumpState()
	assert.Equal(t, 1, second["outer"])
	assert.Equal(t, 2, second["inner"])
}
