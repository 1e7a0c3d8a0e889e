package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/vxkit/vxh/internal/vxrail"
)

const (
	// DefaultPollInterval is the wait between status observations.
	DefaultPollInterval = 10 * time.Second

	// DefaultMaxWait is the total polling budget.
	DefaultMaxWait = 5 * time.Minute

	// DefaultMaxConsecutiveMisses bounds back-to-back failed polls before
	// tracking is abandoned.
	DefaultMaxConsecutiveMisses = 5
)

// Transport performs one call against the management API.
type Transport interface {
	Do(ctx context.Context, call vxrail.Call) (json.RawMessage, error)
}

// SleepFunc waits for d or until ctx is done, whichever comes first.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Tracker submits jobs and polls them. It is the only component that sleeps.
type Tracker struct {
	transport Transport
	logger    *zap.Logger
	now       func() time.Time
	sleep     SleepFunc
	maxMisses int
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(t *Tracker) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithClock replaces the wall clock and sleep (for testing).
func WithClock(now func() time.Time, sleep SleepFunc) Option {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
		if sleep != nil {
			t.sleep = sleep
		}
	}
}

// WithMaxConsecutiveMisses sets how many failed polls in a row are tolerated.
func WithMaxConsecutiveMisses(n int) Option {
	return func(t *Tracker) {
		if n > 0 {
			t.maxMisses = n
		}
	}
}

// New creates a Tracker over the given transport.
func New(transport Transport, opts ...Option) *Tracker {
	t := &Tracker{
		transport: transport,
		logger:    zap.NewNop(),
		now:       time.Now,
		sleep:     sleepContext,
		maxMisses: DefaultMaxConsecutiveMisses,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// sleepContext is a cancellable sleep.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Submit starts a job and returns its handle.
func (t *Tracker) Submit(ctx context.Context, job JobSpec) (Handle, error) {
	body, err := t.transport.Do(ctx, job.Submit)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Handle{}, ctxErr
		}
		return Handle{}, fmt.Errorf("%w: %s: %w", ErrSubmission, job.Name, err)
	}

	var resp vxrail.SubmitResponse
	if err := vxrail.Decode(body, &resp); err != nil {
		return Handle{}, fmt.Errorf("%w: %s: %w", ErrSubmission, job.Name, err)
	}

	id := resp.Handle()
	if id == "" {
		return Handle{}, fmt.Errorf("%w: %s: response has no request_id", ErrSubmission, job.Name)
	}
	if url.PathEscape(id) != id {
		return Handle{}, fmt.Errorf("%w: %s: unusable request_id %q", ErrSubmission, job.Name, id)
	}

	h := NewHandle(id, job)
	h.SubmittedAt = t.now()

	t.logger.Info("request submitted",
		zap.String("job", job.Name),
		zap.String("request_id", id))
	return h, nil
}

// AwaitCompletion polls the request until it reaches a terminal state.
//
// Each iteration observes the status once. A terminal observation returns
// immediately; otherwise the tracker sleeps exactly pollInterval, unless
// doing so would take the elapsed time past maxWait, in which case the
// outcome is TIMED_OUT. Failed polls are tolerated up to the configured
// number of consecutive misses. A rejected credential or a cancelled context
// ends tracking at once. On COMPLETED the result resource is fetched once.
func (t *Tracker) AwaitCompletion(ctx context.Context, h Handle, pollInterval, maxWait time.Duration) (Outcome, error) {
	out := Outcome{Handle: h, State: StatePending}
	if h.RequestID == "" {
		return out, ErrInvalidHandle
	}
	if pollInterval <= 0 {
		return out, fmt.Errorf("%w: poll interval must be positive", ErrInvalidHandle)
	}

	start := t.now()
	finish := func() Outcome {
		out.Elapsed = t.now().Sub(start)
		out.ElapsedMS = out.Elapsed.Milliseconds()
		return out
	}

	misses := 0
	for {
		if err := ctx.Err(); err != nil {
			return finish(), err
		}

		out.Polls++
		status, err := t.poll(ctx, h)
		switch {
		case err == nil:
			misses = 0
			out.State = ParseState(status.State)
			t.logger.Debug("request status",
				zap.String("request_id", h.RequestID),
				zap.String("state", string(out.State)),
				zap.String("raw_state", status.State),
				zap.Int("poll", out.Polls))

			switch out.State {
			case StateCompleted:
				return t.fetchResult(ctx, h, finish)
			case StateFailed:
				if len(status.Error) > 0 && string(status.Error) != "null" {
					out.Failure = status.Error
				}
				t.logger.Warn("request failed", zap.String("request_id", h.RequestID))
				return finish(), nil
			}

		case ctx.Err() != nil:
			return finish(), ctx.Err()

		case vxrail.IsUnauthorized(err):
			out.LastError = err.Error()
			return finish(), fmt.Errorf("%w: %w", ErrTrackingFatal, err)

		default:
			misses++
			out.LastError = err.Error()
			t.logger.Warn("status poll failed",
				zap.String("request_id", h.RequestID),
				zap.Int("consecutive_misses", misses),
				zap.Error(err))
			if misses >= t.maxMisses {
				return finish(), fmt.Errorf("%w: %d consecutive poll failures: %w", ErrTrackingFatal, misses, err)
			}
		}

		if t.now().Sub(start)+pollInterval > maxWait {
			out.State = StateTimedOut
			t.logger.Warn("request timed out",
				zap.String("request_id", h.RequestID),
				zap.Duration("max_wait", maxWait),
				zap.Int("polls", out.Polls))
			return finish(), nil
		}

		if err := t.sleep(ctx, pollInterval); err != nil {
			return finish(), err
		}
	}
}

// Run submits a job and waits for it.
func (t *Tracker) Run(ctx context.Context, job JobSpec, pollInterval, maxWait time.Duration) (Outcome, error) {
	h, err := t.Submit(ctx, job)
	if err != nil {
		return Outcome{Handle: Handle{Job: job.Name}}, err
	}
	return t.AwaitCompletion(ctx, h, pollInterval, maxWait)
}

func (t *Tracker) poll(ctx context.Context, h Handle) (vxrail.RequestStatus, error) {
	var status vxrail.RequestStatus
	body, err := t.transport.Do(ctx, vxrail.Get(vxrail.RequestPath(h.RequestID)))
	if err != nil {
		return status, err
	}
	if err := vxrail.Decode(body, &status); err != nil {
		return status, err
	}
	return status, nil
}

func (t *Tracker) fetchResult(ctx context.Context, h Handle, finish func() Outcome) (Outcome, error) {
	path := h.resultPath
	if path == "" {
		path = vxrail.PrecheckResultPath(h.RequestID)
	}

	body, err := t.transport.Do(ctx, vxrail.Get(path))
	if err != nil {
		out := finish()
		out.LastError = err.Error()
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return out, err
		}
		return out, fmt.Errorf("%w: %w", ErrResultUnavailable, err)
	}

	out := finish()
	out.Result = body
	t.logger.Info("request completed",
		zap.String("request_id", h.RequestID),
		zap.Int("polls", out.Polls),
		zap.Duration("elapsed", out.Elapsed))
	return out, nil
}
