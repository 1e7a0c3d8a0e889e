package health

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vxkit/vxh/internal/vxrail"
)

// fakeTransport answers GETs from a fixed table of bodies or errors.
type fakeTransport struct {
	bodies map[string]string
	errs   map[string]error
	delay  map[string]time.Duration

	mu       sync.Mutex
	calls    []string
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (f *fakeTransport) Do(ctx context.Context, call vxrail.Call) (json.RawMessage, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}

	f.mu.Lock()
	f.calls = append(f.calls, call.Path)
	f.mu.Unlock()

	if d := f.delay[call.Path]; d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err, ok := f.errs[call.Path]; ok {
		return nil, err
	}
	body, ok := f.bodies[call.Path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", vxrail.ErrNotFound, call)
	}
	return json.RawMessage(body), nil
}

const healthySystem = `{"version":"8.0.210","health":"Healthy","cluster_info":{"cluster_name":"vx-prod"}}`

const twoHealthyHosts = `[
		{"hostname":"esx-01","health":"Healthy","power_status":"on","serial_number":"H1"},
		{"hostname":"esx-02","health":"HEALTHY","power_status":"on","serial_number":"H2"}
	]`

const threeOKDisks = `[
		{"sn":"D1","disk_state":"OK","disk_type":"SSD"},
		{"sn":"D2","disk_state":"ok","disk_type":"SSD"},
		{"sn":"D3","disk_state":"OK","disk_type":"HDD"}
	]`

var fixedNow = time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)

func newTestAggregator(tr Transport) *Aggregator {
	return NewAggregator(tr, WithClock(func() time.Time { return fixedNow }))
}

func TestAggregate_FullHealthy(t *testing.T) {
	tr := &fakeTransport{bodies: map[string]string{
		vxrail.PathSystem: healthySystem,
		vxrail.PathHosts:  twoHealthyHosts,
		vxrail.PathDisks:  threeOKDisks,
	}}

	r, err := newTestAggregator(tr).Aggregate(context.Background(), AllKinds)
	require.NoError(t, err)

	assert.Equal(t, VerdictHealthy, r.Overall)
	assert.Equal(t, fixedNow, r.GeneratedAt)
	assert.Empty(t, r.Warnings())

	healthy, unhealthy := r.Counts()
	assert.Equal(t, 6, healthy)
	assert.Equal(t, 0, unhealthy)

	cluster, ok := r.Section(KindCluster)
	require.True(t, ok)
	assert.Equal(t, CoverageComplete, cluster.Coverage())
	assert.Equal(t, "vx-prod", cluster.Record(0).ID)

	hosts, _ := r.Section(KindHost)
	assert.Equal(t, 2, hosts.Len())
	assert.Equal(t, "on", hosts.Record(0).PowerStatus)

	storage, _ := r.Section(KindStorage)
	assert.Equal(t, 3, storage.Len())
}

func TestAggregate_OneUnhealthyDisk(t *testing.T) {
	tr := &fakeTransport{bodies: map[string]string{
		vxrail.PathSystem: healthySystem,
		vxrail.PathHosts:  twoHealthyHosts,
		vxrail.PathDisks: `[
			{"sn":"D1","disk_state":"OK"},
			{"sn":"D2","disk_state":"DEGRADED"},
			{"sn":"D3","disk_state":"OK"}
		]`,
	}}

	r, err := newTestAggregator(tr).Aggregate(context.Background(), AllKinds)
	require.NoError(t, err)

	assert.Equal(t, VerdictUnhealthy, r.Overall)

	var bad []Record
	for _, rec := range r.Records() {
		if !rec.Healthy {
			bad = append(bad, rec)
		}
	}
	require.Len(t, bad, 1)
	assert.Equal(t, EntityDisk, bad[0].Kind)
	assert.Equal(t, "D2", bad[0].ID)
	assert.Equal(t, "DEGRADED", bad[0].Label)
}

func TestAggregate_StorageUnreachableIsPartialCoverage(t *testing.T) {
	tr := &fakeTransport{
		bodies: map[string]string{
			vxrail.PathSystem: healthySystem,
			vxrail.PathHosts:  twoHealthyHosts,
		},
		errs: map[string]error{
			vxrail.PathDisks: fmt.Errorf("%w: connection refused", vxrail.ErrUnreachable),
		},
	}

	r, err := newTestAggregator(tr).Aggregate(context.Background(), AllKinds)
	require.NoError(t, err)

	assert.Equal(t, VerdictUnknown, r.Overall)
	assert.True(t, r.PartialCoverage())

	storage, ok := r.Section(KindStorage)
	require.True(t, ok)
	assert.Equal(t, CoverageUnknown, storage.Coverage())
	assert.Zero(t, storage.Len())
	assert.NotEmpty(t, storage.Errors())

	require.Len(t, r.Warnings(), 1)
	assert.Equal(t, KindStorage, r.Warnings()[0].Kind)
	assert.Contains(t, r.Warnings()[0].Message, "unreachable")
}

func TestAggregate_DegradedKinds(t *testing.T) {
	for _, class := range []error{vxrail.ErrNotFound, vxrail.ErrUnreachable, vxrail.ErrTimedOut, vxrail.ErrMalformed, vxrail.ErrRejected} {
		t.Run(class.Error(), func(t *testing.T) {
			tr := &fakeTransport{
				bodies: map[string]string{vxrail.PathHosts: twoHealthyHosts},
				errs:   map[string]error{vxrail.PathSystem: class},
			}
			r, err := newTestAggregator(tr).Aggregate(context.Background(), []Kind{KindCluster, KindHost})
			require.NoError(t, err)

			cluster, _ := r.Section(KindCluster)
			assert.Equal(t, CoverageUnknown, cluster.Coverage())
			assert.Equal(t, VerdictUnknown, r.Overall)
		})
	}
}

func TestAggregate_UnhealthyWinsOverUnknown(t *testing.T) {
	tr := &fakeTransport{
		bodies: map[string]string{
			vxrail.PathHosts: `[{"hostname":"esx-01","health":"Critical"}]`,
		},
		errs: map[string]error{vxrail.PathSystem: vxrail.ErrUnreachable},
	}
	r, err := newTestAggregator(tr).Aggregate(context.Background(), []Kind{KindCluster, KindHost})
	require.NoError(t, err)
	assert.Equal(t, VerdictUnhealthy, r.Overall)
}

func TestAggregate_EveryKindUnknown(t *testing.T) {
	tr := &fakeTransport{errs: map[string]error{
		vxrail.PathSystem: vxrail.ErrUnreachable,
		vxrail.PathHosts:  vxrail.ErrTimedOut,
		vxrail.PathDisks:  vxrail.ErrNotFound,
	}}
	r, err := newTestAggregator(tr).Aggregate(context.Background(), AllKinds)
	require.NoError(t, err)

	assert.Equal(t, VerdictUnknown, r.Overall)
	assert.Len(t, r.Sections(), 3)
	for _, s := range r.Sections() {
		assert.Equal(t, CoverageUnknown, s.Coverage(), s.Kind())
	}
	assert.Len(t, r.Warnings(), 3)
}

func TestAggregate_MalformedBodyDegrades(t *testing.T) {
	tr := &fakeTransport{bodies: map[string]string{
		vxrail.PathSystem: `{"health":`,
		vxrail.PathHosts:  `{"not":"a list"}`,
	}}
	r, err := newTestAggregator(tr).Aggregate(context.Background(), []Kind{KindCluster, KindHost})
	require.NoError(t, err)
	assert.Equal(t, VerdictUnknown, r.Overall)
	assert.Len(t, r.Warnings(), 2)
}

func TestAggregate_UnauthorizedAborts(t *testing.T) {
	tr := &fakeTransport{
		bodies: map[string]string{vxrail.PathSystem: healthySystem, vxrail.PathDisks: threeOKDisks},
		errs: map[string]error{
			vxrail.PathHosts: &vxrail.APIError{StatusCode: 401, Method: "GET", Path: vxrail.PathHosts},
		},
	}
	r, err := newTestAggregator(tr).Aggregate(context.Background(), AllKinds)
	assert.Nil(t, r)
	assert.ErrorIs(t, err, vxrail.ErrUnauthorized)
}

func TestAggregate_CancelledContext(t *testing.T) {
	tr := &fakeTransport{
		bodies: map[string]string{vxrail.PathSystem: healthySystem},
		delay:  map[string]time.Duration{vxrail.PathSystem: time.Minute},
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestAggregator(tr).Aggregate(ctx, []Kind{KindCluster})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAggregate_OnlyRequestedEndpoints(t *testing.T) {
	tr := &fakeTransport{bodies: map[string]string{vxrail.PathSystem: healthySystem}}
	r, err := newTestAggregator(tr).Aggregate(context.Background(), []Kind{KindCluster})
	require.NoError(t, err)

	assert.Equal(t, []string{vxrail.PathSystem}, tr.calls)
	assert.Equal(t, VerdictHealthy, r.Overall)
	_, ok := r.Section(KindStorage)
	assert.False(t, ok)
}

func TestAggregate_StorageFetchesHostsForNestedDisks(t *testing.T) {
	tr := &fakeTransport{bodies: map[string]string{
		vxrail.PathHosts: `[{"hostname":"esx-01","health":"Healthy","disks":[{"sn":"N1","disk_state":"OK"}]}]`,
		vxrail.PathDisks: `[]`,
	}}
	r, err := newTestAggregator(tr).Aggregate(context.Background(), []Kind{KindStorage})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{vxrail.PathHosts, vxrail.PathDisks}, tr.calls)
	storage, _ := r.Section(KindStorage)
	require.Equal(t, 1, storage.Len())
	assert.Equal(t, "esx-01", storage.Record(0).Host)
	assert.Equal(t, SourceHostNested, storage.Record(0).Source)
	_, hasHosts := r.Section(KindHost)
	assert.False(t, hasHosts)
}

func TestAggregate_FlatDisksMissingUsesNested(t *testing.T) {
	tr := &fakeTransport{
		bodies: map[string]string{
			vxrail.PathHosts: `[{"hostname":"esx-01","health":"Healthy","disks":[{"sn":"N1","disk_state":"OK"}]}]`,
		},
		errs: map[string]error{vxrail.PathDisks: vxrail.ErrNotFound},
	}
	r, err := newTestAggregator(tr).Aggregate(context.Background(), []Kind{KindHost, KindStorage})
	require.NoError(t, err)

	storage, _ := r.Section(KindStorage)
	assert.Equal(t, CoveragePartial, storage.Coverage())
	assert.Equal(t, 1, storage.Len())
	assert.True(t, r.PartialCoverage())
	assert.Equal(t, VerdictHealthy, r.Overall)
}

func TestAggregate_DeduplicatesAcrossShapes(t *testing.T) {
	tr := &fakeTransport{
		bodies: map[string]string{
			vxrail.PathDisks: `[{"sn":"SN123","disk_state":"OK","disk_type":"SSD"}]`,
			vxrail.PathHosts: `[
				{"hostname":"esx-01","health":"Healthy","disks":[{"sn":"SN123","disk_state":"FAILED","disk_type":"HDD"}]},
				{"hostname":"esx-02","health":"Healthy","disks":[{"serial_number":"SN123","disk_state":"DEGRADED"}]}
			]`,
		},
		// Slow down the flat list so it completes last.
		delay: map[string]time.Duration{vxrail.PathDisks: 20 * time.Millisecond},
	}

	r, err := newTestAggregator(tr).Aggregate(context.Background(), []Kind{KindStorage})
	require.NoError(t, err)

	storage, _ := r.Section(KindStorage)
	require.Equal(t, 1, storage.Len())
	rec := storage.Record(0)
	assert.Equal(t, "SN123", rec.ID)
	assert.Equal(t, SourceDisks, rec.Source)
	assert.Equal(t, "OK", rec.Label)
	assert.Equal(t, "SSD", rec.DiskType)
	assert.True(t, rec.Healthy)
	assert.Equal(t, VerdictHealthy, r.Overall)
}

func TestAggregate_WorkerLimit(t *testing.T) {
	delay := 20 * time.Millisecond
	tr := &fakeTransport{
		bodies: map[string]string{
			vxrail.PathSystem: healthySystem,
			vxrail.PathHosts:  twoHealthyHosts,
			vxrail.PathDisks:  threeOKDisks,
		},
		delay: map[string]time.Duration{
			vxrail.PathSystem: delay,
			vxrail.PathHosts:  delay,
			vxrail.PathDisks:  delay,
		},
	}
	_, err := NewAggregator(tr, WithWorkers(1)).Aggregate(context.Background(), AllKinds)
	require.NoError(t, err)
	assert.Equal(t, int32(1), tr.peak.Load())
}

func TestAggregate_UnknownKind(t *testing.T) {
	_, err := newTestAggregator(&fakeTransport{}).Aggregate(context.Background(), []Kind{"network"})
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestAggregate_SectionsAreCopies(t *testing.T) {
	tr := &fakeTransport{bodies: map[string]string{vxrail.PathHosts: twoHealthyHosts}}
	r, err := newTestAggregator(tr).Aggregate(context.Background(), []Kind{KindHost})
	require.NoError(t, err)

	hosts, _ := r.Section(KindHost)
	recs := hosts.Records()
	recs[0].Healthy = false
	recs[0].ID = "tampered"

	again, _ := r.Section(KindHost)
	assert.Equal(t, "esx-01", again.Record(0).ID)
	assert.True(t, again.Record(0).Healthy)
	assert.Equal(t, VerdictHealthy, Evaluate(r.Sections()))
}

func TestAggregate_ReportListsAreCopies(t *testing.T) {
	tr := &fakeTransport{
		bodies: map[string]string{vxrail.PathHosts: twoHealthyHosts},
		errs:   map[string]error{vxrail.PathDisks: vxrail.ErrUnreachable},
	}
	r, err := newTestAggregator(tr).Aggregate(context.Background(), []Kind{KindHost, KindStorage})
	require.NoError(t, err)

	sections := r.Sections()
	sections[0] = Section{}
	warnings := r.Warnings()
	require.NotEmpty(t, warnings)
	warnings[0].Message = "tampered"

	again := r.Sections()
	require.Len(t, again, 2)
	assert.Equal(t, KindHost, again[0].Kind())
	assert.Equal(t, KindStorage, again[1].Kind())
	assert.NotEqual(t, "tampered", r.Warnings()[0].Message)
}

func TestAggregate_ClusterExposesSystemInfo(t *testing.T) {
	tr := &fakeTransport{bodies: map[string]string{vxrail.PathSystem: healthySystem}}
	r, err := newTestAggregator(tr).Aggregate(context.Background(), []Kind{KindCluster})
	require.NoError(t, err)

	sys := r.System()
	require.NotNil(t, sys)
	assert.Equal(t, "8.0.210", sys.Version)
	assert.Equal(t, []string{vxrail.PathSystem}, tr.calls, "system info comes from the single cluster fetch")

	sys.Version = "tampered"
	assert.Equal(t, "8.0.210", r.System().Version)
}

func TestAggregate_NoSystemInfoWithoutCluster(t *testing.T) {
	tr := &fakeTransport{bodies: map[string]string{vxrail.PathHosts: twoHealthyHosts}}
	r, err := newTestAggregator(tr).Aggregate(context.Background(), []Kind{KindHost})
	require.NoError(t, err)
	assert.Nil(t, r.System())
}

func TestReport_JSONRoundTrip(t *testing.T) {
	tr := &fakeTransport{bodies: map[string]string{
		vxrail.PathSystem: healthySystem,
		vxrail.PathHosts:  twoHealthyHosts,
	}}
	r, err := newTestAggregator(tr).Aggregate(context.Background(), []Kind{KindCluster, KindHost, KindStorage})
	require.NoError(t, err)

	data, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"sections":[`)
	assert.NotContains(t, string(data), `"version"`, "system info is carried by the run report, not the health report")

	var got Report
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, r.Overall, got.Overall)
	assert.Len(t, got.Sections(), 3)
	assert.Equal(t, len(r.Warnings()), len(got.Warnings()))
	assert.Equal(t, r.Records(), got.Records())
}
