package creatify

import (
	"context"
	"fmt"
	"time"
)

// Render polling defaults.
const (
	DefaultPollInterval  = 6 * time.Second
	DefaultRenderTimeout = 10 * time.Minute

	maxConsecutivePollErrors = 3
)

// Poller reports render job state.
type Poller interface {
	Poll(ctx context.Context, jobID string) (JobStatus, error)
}

// TimeoutError reports a render job that did not finish in time.
type TimeoutError struct {
	JobID string
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("render job %s not finished after %s", e.JobID, e.After)
}

// FailedError reports a render job that ended in a failed or cancelled state.
type FailedError struct {
	JobID  string
	Status Status
	Reason string
}

func (e *FailedError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("render job %s %s: %s", e.JobID, e.Status, e.Reason)
	}
	return fmt.Sprintf("render job %s %s", e.JobID, e.Status)
}

// Await polls jobID every interval until it reaches a terminal state or timeout
// elapses. A done job without an output URL counts as failed.
func Await(ctx context.Context, p Poller, jobID string, interval, timeout time.Duration) (JobStatus, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if timeout <= 0 {
		timeout = DefaultRenderTimeout
	}
	deadline := time.Now().Add(timeout)
	pollErrors := 0

	for {
		job, err := p.Poll(ctx, jobID)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return JobStatus{}, ctx.Err()
			}
			pollErrors++
			if pollErrors >= maxConsecutivePollErrors {
				return JobStatus{}, err
			}
		case job.Status == StatusDone:
			if job.OutputURL == "" {
				return job, &FailedError{JobID: jobID, Status: StatusFailed, Reason: "done without video output"}
			}
			return job, nil
		case job.Status.Terminal():
			return job, &FailedError{JobID: jobID, Status: job.Status, Reason: job.FailedReason}
		default:
			pollErrors = 0
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return job, &TimeoutError{JobID: jobID, After: timeout}
		}
		wait := interval
		if wait > remaining {
			wait = remaining
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return JobStatus{}, ctx.Err()
		case <-timer.C:
		}
	}
}
