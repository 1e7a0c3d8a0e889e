// Package report assembles the result of one vxh run.
package report

import (
	"time"

	"github.com/google/uuid"

	"github.com/vxkit/vxh/internal/health"
	"github.com/vxkit/vxh/internal/tracker"
	"github.com/vxkit/vxh/internal/vxrail"
)

// Report is everything one run produced. It carries the manager host but
// never credentials.
type Report struct {
	RunID       string             `json:"run_id"`
	Host        string             `json:"host"`
	GeneratedAt time.Time          `json:"generated_at"`
	Verdict     health.Verdict     `json:"verdict"`
	Health      *health.Report     `json:"health,omitempty"`
	Precheck    *Precheck          `json:"precheck,omitempty"`
	System      *vxrail.SystemInfo `json:"system,omitempty"`

	// Support is the support account status. Older managers have no
	// support endpoint, so it is often absent.
	Support *vxrail.SupportAccount `json:"support,omitempty"`
}

// Precheck is a tracked pre-check and its parsed check list.
type Precheck struct {
	Outcome tracker.Outcome          `json:"outcome"`
	Checks  *tracker.PrecheckSummary `json:"checks,omitempty"`
	Error   string                   `json:"error,omitempty"`
}

// OK reports whether the pre-check completed with every check passed.
func (p *Precheck) OK() bool {
	return p.Error == "" && p.Outcome.State == tracker.StateCompleted && (p.Checks == nil || p.Checks.OK())
}

// Option configures New.
type Option func(*Report)

// WithRunID sets the run id instead of generating one.
func WithRunID(id string) Option {
	return func(r *Report) { r.RunID = id }
}

// WithGeneratedAt sets the generation time instead of now.
func WithGeneratedAt(t time.Time) Option {
	return func(r *Report) { r.GeneratedAt = t.UTC() }
}

// WithHealth attaches the aggregate health report.
func WithHealth(h *health.Report) Option {
	return func(r *Report) { r.Health = h }
}

// WithSystem attaches system information.
func WithSystem(sys *vxrail.SystemInfo) Option {
	return func(r *Report) { r.System = sys }
}

// WithSupport attaches the support account status.
func WithSupport(account *vxrail.SupportAccount) Option {
	return func(r *Report) { r.Support = account }
}

// WithPrecheck attaches a tracker outcome. err is the tracking error, if any.
// The check list is parsed from the result of a completed outcome.
func WithPrecheck(out tracker.Outcome, err error) Option {
	return func(r *Report) {
		p := &Precheck{Outcome: out}
		if err != nil {
			p.Error = err.Error()
		} else if oerr := out.Err(); oerr != nil {
			p.Error = oerr.Error()
		}
		if out.State == tracker.StateCompleted && len(out.Result) > 0 {
			checks, perr := tracker.ParseChecks(out.Result)
			if perr != nil {
				if p.Error == "" {
					p.Error = perr.Error()
				}
			} else {
				p.Checks = checks
			}
		}
		r.Precheck = p
	}
}

// New assembles a report for host. It performs no I/O.
func New(host string, opts ...Option) *Report {
	r := &Report{
		RunID:       uuid.NewString(),
		Host:        host,
		GeneratedAt: time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.Verdict = verdict(r)
	return r
}

// verdict folds health and pre-check into one verdict. Failed checks make the
// run unhealthy; a pre-check that never finished leaves a healthy run unknown.
func verdict(r *Report) health.Verdict {
	v := health.VerdictUnknown
	if r.Health != nil {
		v = r.Health.Overall
	} else if r.Precheck != nil {
		v = health.VerdictHealthy
	}
	if r.Precheck == nil || v == health.VerdictUnhealthy {
		return v
	}

	p := r.Precheck
	switch {
	case p.Outcome.State == tracker.StateFailed:
		return health.VerdictUnhealthy
	case p.Checks != nil && !p.Checks.OK():
		return health.VerdictUnhealthy
	case !p.OK():
		return health.VerdictUnknown
	}
	return v
}
