package report

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vxkit/vxh/internal/health"
	"github.com/vxkit/vxh/internal/tracker"
	"github.com/vxkit/vxh/internal/vxrail"
)

func healthReport(v health.Verdict) *health.Report {
	return &health.Report{Overall: v}
}

func completed(result string) tracker.Outcome {
	return tracker.Outcome{
		Handle: tracker.Handle{RequestID: "abc"},
		State:  tracker.StateCompleted,
		Result: json.RawMessage(result),
	}
}

func TestNew(t *testing.T) {
	at := time.Date(2026, 10, 15, 11, 0, 0, 0, time.FixedZone("CEST", 2*3600))
	r := New("vxm.example.net", WithHealth(healthReport(health.VerdictHealthy)), WithGeneratedAt(at))

	_, err := uuid.Parse(r.RunID)
	assert.NoError(t, err)
	assert.Equal(t, "vxm.example.net", r.Host)
	assert.Equal(t, at.UTC(), r.GeneratedAt)
	assert.Equal(t, health.VerdictHealthy, r.Verdict)
	assert.Nil(t, r.Precheck)
}

func TestNew_RunIDOverride(t *testing.T) {
	r := New("h", WithRunID("fixed"))
	assert.Equal(t, "fixed", r.RunID)
	assert.Equal(t, health.VerdictUnknown, r.Verdict)
}

func TestVerdict(t *testing.T) {
	passing := `{"data":{"check_list":[{"name":"a","status":"PASSED"}]}}`
	failing := `{"data":{"check_list":[{"name":"a","status":"FAILED"}]}}`

	tests := []struct {
		name   string
		health *health.Report
		out    *tracker.Outcome
		err    error
		want   health.Verdict
	}{
		{name: "health only", health: healthReport(health.VerdictUnhealthy), want: health.VerdictUnhealthy},
		{name: "passing precheck", health: healthReport(health.VerdictHealthy), out: ptr(completed(passing)), want: health.VerdictHealthy},
		{name: "failing check", health: healthReport(health.VerdictHealthy), out: ptr(completed(failing)), want: health.VerdictUnhealthy},
		{name: "failed request", health: healthReport(health.VerdictHealthy), out: &tracker.Outcome{State: tracker.StateFailed}, want: health.VerdictUnhealthy},
		{name: "timed out", health: healthReport(health.VerdictHealthy), out: &tracker.Outcome{State: tracker.StateTimedOut}, want: health.VerdictUnknown},
		{name: "tracking error", health: healthReport(health.VerdictHealthy), out: &tracker.Outcome{State: tracker.StateRunning}, err: tracker.ErrTrackingFatal, want: health.VerdictUnknown},
		{name: "unhealthy stays unhealthy", health: healthReport(health.VerdictUnhealthy), out: &tracker.Outcome{State: tracker.StateTimedOut}, want: health.VerdictUnhealthy},
		{name: "precheck only", out: ptr(completed(passing)), want: health.VerdictHealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var opts []Option
			if tt.health != nil {
				opts = append(opts, WithHealth(tt.health))
			}
			if tt.out != nil {
				opts = append(opts, WithPrecheck(*tt.out, tt.err))
			}
			assert.Equal(t, tt.want, New("h", opts...).Verdict)
		})
	}
}

func TestWithPrecheck_ParsesChecks(t *testing.T) {
	r := New("h", WithPrecheck(completed(`{"data":{"check_list":[{"name":"a","status":"PASSED"},{"name":"b","status":"WARNING"}]}}`), nil))
	require.NotNil(t, r.Precheck)
	require.NotNil(t, r.Precheck.Checks)
	assert.Equal(t, 1, r.Precheck.Checks.Passed)
	assert.Equal(t, 1, r.Precheck.Checks.Failed)
	assert.Empty(t, r.Precheck.Error)
}

func TestWithPrecheck_RecordsErrors(t *testing.T) {
	r := New("h", WithPrecheck(tracker.Outcome{State: tracker.StateCompleted}, errors.New("result fetch failed")))
	assert.Equal(t, "result fetch failed", r.Precheck.Error)
	assert.False(t, r.Precheck.OK())

	r = New("h", WithPrecheck(completed(`{"data":{"check_list":7}}`), nil))
	assert.NotEmpty(t, r.Precheck.Error)
}

func TestReportJSONHasNoSecret(t *testing.T) {
	r := New("vxm.example.net", WithHealth(healthReport(health.VerdictHealthy)))
	data, err := json.Marshal(r)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "secret")
	assert.NotContains(t, string(data), "password")
	assert.Contains(t, string(data), `"verdict":"healthy"`)
}

func ptr[T any](v T) *T { return &v }

func TestWithSupport(t *testing.T) {
	r := New("h", WithHealth(healthReport(health.VerdictHealthy)),
		WithSupport(&vxrail.SupportAccount{Status: "connected", Username: "support@example.net"}))

	data, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"support":{"status":"connected","username":"support@example.net"}`)
	assert.Equal(t, health.VerdictHealthy, r.Verdict, "support status does not change the verdict")

	data, err = json.Marshal(New("h"))
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"support"`)
}
