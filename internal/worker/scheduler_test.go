package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bryan-buckman/newsreel/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRunner struct {
	calls atomic.Int32
}

func (r *countingRunner) Run(ctx context.Context) (*model.RunRecord, error) {
	r.calls.Add(1)
	rec := model.EmptyRunRecord()
	return &rec, nil
}

func TestNewSchedulerClampsInterval(t *testing.T) {
	s := NewScheduler(&countingRunner{}, time.Minute, 0, nil)
	assert.Equal(t, MinScheduleInterval, s.interval)
	assert.Equal(t, DefaultRunTimeout, s.runTimeout)
}

func TestSchedulerRunsImmediatelyAndRepeats(t *testing.T) {
	r := &countingRunner{}
	s := NewScheduler(r, 0, time.Second, nil)
	s.interval = 5 * time.Millisecond

	s.Start()
	require.Eventually(t, func() bool { return r.calls.Load() >= 2 }, time.Second, time.Millisecond)
	s.Stop()

	calls := r.calls.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, calls, r.calls.Load())
}
