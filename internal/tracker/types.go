// Package tracker submits long-running VxRail requests and polls them to a
// terminal state under a bounded time budget.
package tracker

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vxkit/vxh/internal/vxrail"
)

// Tracking errors.
var (
	// ErrSubmission indicates the job could not be started or returned no
	// usable request id.
	ErrSubmission = errors.New("submitting request failed")

	// ErrTrackingTimeout indicates the poll budget ran out before a terminal state.
	ErrTrackingTimeout = errors.New("request did not finish before the deadline")

	// ErrTrackingFatal indicates polling could not continue.
	ErrTrackingFatal = errors.New("tracking request failed")

	// ErrOperationFailed indicates the server reported the request as FAILED.
	ErrOperationFailed = errors.New("request failed on VxRail Manager")

	// ErrResultUnavailable indicates the request completed but its result
	// resource could not be fetched.
	ErrResultUnavailable = errors.New("request result unavailable")

	// ErrInvalidHandle indicates a zero or malformed handle.
	ErrInvalidHandle = errors.New("invalid request handle")
)

// State is the lifecycle state of a tracked request.
type State string

const (
	StatePending   State = "PENDING"
	StateRunning   State = "RUNNING"
	StateCompleted State = "COMPLETED"
	StateFailed    State = "FAILED"
	StateTimedOut  State = "TIMED_OUT" // Client-side only
)

// Terminal reports whether no further transition can occur.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateTimedOut
}

// ParseState maps a server state string to a State. Unknown non-empty
// states are treated as RUNNING so they keep being observed.
func ParseState(raw string) State {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "COMPLETED", "COMPLETE", "SUCCEEDED", "SUCCESS":
		return StateCompleted
	case "FAILED", "FAILURE", "ERROR", "CANCELED", "CANCELLED":
		return StateFailed
	case "", "PENDING", "SUBMITTED", "QUEUED", "WAITING":
		return StatePending
	default:
		return StateRunning
	}
}

// JobSpec describes a long-running request to submit.
type JobSpec struct {
	Name       string
	Submit     vxrail.Call
	ResultPath func(requestID string) string
}

// SystemPrecheck is the /v1/system/precheck job.
func SystemPrecheck(body any) JobSpec {
	return JobSpec{
		Name:       "system precheck",
		Submit:     vxrail.Post(vxrail.PathSystemPrecheck, body),
		ResultPath: vxrail.PrecheckResultPath,
	}
}

// LCMPrecheck is the /v1/lcm/precheck job.
func LCMPrecheck(body any) JobSpec {
	return JobSpec{
		Name:       "lcm precheck",
		Submit:     vxrail.Post(vxrail.PathLCMPrecheck, body),
		ResultPath: vxrail.PrecheckResultPath,
	}
}

// PrecheckJob returns the pre-check job for a submit path.
func PrecheckJob(path string) JobSpec {
	switch path {
	case "", vxrail.PathSystemPrecheck:
		return SystemPrecheck(nil)
	case vxrail.PathLCMPrecheck:
		return LCMPrecheck(nil)
	default:
		return JobSpec{
			Name:       "precheck " + path,
			Submit:     vxrail.Post(path, nil),
			ResultPath: vxrail.PrecheckResultPath,
		}
	}
}

// Handle identifies one submitted request.
type Handle struct {
	RequestID   string    `json:"request_id"`
	SubmittedAt time.Time `json:"submitted_at"`
	Job         string    `json:"job,omitempty"`

	resultPath string
}

// NewHandle builds a handle for an already-submitted request.
func NewHandle(requestID string, job JobSpec) Handle {
	h := Handle{RequestID: requestID, Job: job.Name}
	if job.ResultPath != nil {
		h.resultPath = job.ResultPath(requestID)
	}
	return h
}

// Outcome is the terminal result of tracking one request.
type Outcome struct {
	Handle    Handle          `json:"handle"`
	State     State           `json:"state"`
	Polls     int             `json:"polls"`
	Elapsed   time.Duration   `json:"-"`
	ElapsedMS int64           `json:"elapsed_ms"`
	Result    json.RawMessage `json:"result,omitempty"`
	Failure   json.RawMessage `json:"failure,omitempty"`
	LastError string          `json:"last_error,omitempty"`
}

// Err returns the error equivalent of a non-successful terminal state.
func (o Outcome) Err() error {
	switch o.State {
	case StateCompleted:
		return nil
	case StateFailed:
		if len(o.Failure) > 0 {
			return fmt.Errorf("%w: %s", ErrOperationFailed, string(o.Failure))
		}
		return ErrOperationFailed
	case StateTimedOut:
		return fmt.Errorf("%w: request %s after %d polls", ErrTrackingTimeout, o.Handle.RequestID, o.Polls)
	default:
		return fmt.Errorf("%w: request %s left in state %s", ErrTrackingFatal, o.Handle.RequestID, o.State)
	}
}
