package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubResetter struct {
	calls atomic.Int32
	today atomic.Value
	err   error
}

func (s *stubResetter) ResetStaleStreaks(_ context.Context, today time.Time) (int64, error) {
	s.calls.Add(1)
	s.today.Store(today)
	return 3, s.err
}

func TestSweep_PassesClock(t *testing.T) {
	r := &stubResetter{}
	s, err := NewStreakSweeper(r, time.Minute, zerolog.Nop())
	require.NoError(t, err)

	fixed := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	s.Sweep()
	assert.Equal(t, int32(1), r.calls.Load())
	assert.Equal(t, fixed, r.today.Load())
}

func TestSweep_ErrorIsSwallowed(t *testing.T) {
	r := &stubResetter{err: errors.New("db down")}
	s, err := NewStreakSweeper(r, time.Minute, zerolog.Nop())
	require.NoError(t, err)

	assert.NotPanics(t, s.Sweep)
	assert.Equal(t, int32(1), r.calls.Load())
}

func TestStart_RunsImmediately(t *testing.T) {
	r := &stubResetter{}
	s, err := NewStreakSweeper(r, time.Hour, zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, s.Start())
	defer func() { _ = s.Shutdown() }()

	assert.Eventually(t, func() bool { return r.calls.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestNewStreakSweeper_DefaultInterval(t *testing.T) {
	s, err := NewStreakSweeper(&stubResetter{}, 0, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, defaultInterval, s.interval)
}
