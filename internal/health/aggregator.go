package health

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vxkit/vxh/internal/vxrail"
)

// DefaultWorkers bounds concurrent endpoint queries.
const DefaultWorkers = 3

// Transport performs one call against the management API.
type Transport interface {
	Do(ctx context.Context, call vxrail.Call) (json.RawMessage, error)
}

// Aggregator queries the requested kinds and builds a Report.
type Aggregator struct {
	transport Transport
	logger    *zap.Logger
	workers   int
	now       func() time.Time
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(a *Aggregator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithWorkers sets the number of concurrent queries.
func WithWorkers(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.workers = n
		}
	}
}

// WithClock sets the clock used for GeneratedAt.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		if now != nil {
			a.now = now
		}
	}
}

// NewAggregator creates an Aggregator over the given transport.
func NewAggregator(transport Transport, opts ...Option) *Aggregator {
	a := &Aggregator{
		transport: transport,
		logger:    zap.NewNop(),
		workers:   DefaultWorkers,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// fetch is one endpoint query and its outcome.
type fetch struct {
	path string
	body json.RawMessage
	err  error
}

func (f *fetch) ok() bool { return f != nil && f.err == nil }

// plan returns the endpoints needed for kinds. Hosts are fetched for storage
// as well because disks may only be reported nested in host records.
func plan(kinds []Kind) []string {
	var want struct{ system, hosts, disks bool }
	for _, k := range kinds {
		switch k {
		case KindCluster:
			want.system = true
		case KindHost:
			want.hosts = true
		case KindStorage:
			want.hosts = true
			want.disks = true
		}
	}

	var paths []string
	if want.system {
		paths = append(paths, vxrail.PathSystem)
	}
	if want.hosts {
		paths = append(paths, vxrail.PathHosts)
	}
	if want.disks {
		paths = append(paths, vxrail.PathDisks)
	}
	return paths
}

// Aggregate queries every requested kind and returns the report.
//
// Queries run concurrently, bounded by the worker count, and their results are
// merged in a fixed order once all have returned. A kind whose queries fail is
// reported with unknown coverage and a warning; only a rejected credential or
// a cancelled context makes Aggregate return an error.
func (a *Aggregator) Aggregate(ctx context.Context, kinds []Kind) (*Report, error) {
	if len(kinds) == 0 {
		kinds = AllKinds
	}
	for _, k := range kinds {
		switch k {
		case KindCluster, KindHost, KindStorage:
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownKind, k)
		}
	}

	paths := plan(kinds)
	results := make([]*fetch, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)
	for i, path := range paths {
		g.Go(func() error {
			body, err := a.transport.Do(gctx, vxrail.Get(path))
			if vxrail.IsUnauthorized(err) {
				return err
			}
			results[i] = &fetch{path: path, body: body, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("aggregating health: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	byPath := make(map[string]*fetch, len(results))
	for _, f := range results {
		byPath[f.path] = f
	}

	b := &builder{logger: a.logger}
	seen := make(map[Kind]bool)
	for _, k := range kinds {
		if seen[k] {
			continue
		}
		seen[k] = true
		switch k {
		case KindCluster:
			b.cluster(byPath[vxrail.PathSystem])
		case KindHost:
			b.hosts(byPath[vxrail.PathHosts])
		case KindStorage:
			b.storage(byPath[vxrail.PathDisks], byPath[vxrail.PathHosts])
		}
	}

	r := NewReport(a.now().UTC(), b.sections, b.warnings)
	r.system = b.system
	healthy, unhealthy := r.Counts()
	a.logger.Info("health aggregated",
		zap.String("overall", string(r.Overall)),
		zap.Int("healthy", healthy),
		zap.Int("unhealthy", unhealthy),
		zap.Int("warnings", len(r.warnings)))
	return r, nil
}

// builder accumulates sections in request order.
type builder struct {
	logger   *zap.Logger
	sections []Section
	warnings []Warning
	hostList []vxrail.Host
	hostsErr error
	decoded  bool
	system   *vxrail.SystemInfo
}

func (b *builder) warn(kind Kind, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	b.warnings = append(b.warnings, Warning{Code: WarningPartialCoverage, Kind: kind, Message: msg})
	b.logger.Warn("partial coverage", zap.String("kind", string(kind)), zap.String("reason", msg))
}

func (b *builder) unknown(kind Kind, err error) {
	b.sections = append(b.sections, newSection(kind, CoverageUnknown, nil, []string{err.Error()}))
	b.warn(kind, "%s not available: %s", kind, vxrail.Class(err))
}

// decodeHosts decodes /v7/hosts once for both the host and storage kinds.
func (b *builder) decodeHosts(f *fetch) ([]vxrail.Host, error) {
	if b.decoded {
		return b.hostList, b.hostsErr
	}
	b.decoded = true
	switch {
	case f == nil:
		b.hostsErr = fmt.Errorf("%w: %s not queried", vxrail.ErrNotFound, vxrail.PathHosts)
	case f.err != nil:
		b.hostsErr = f.err
	default:
		b.hostsErr = vxrail.Decode(f.body, &b.hostList)
	}
	return b.hostList, b.hostsErr
}

func (b *builder) cluster(f *fetch) {
	if !f.ok() {
		b.unknown(KindCluster, fetchErr(f, vxrail.PathSystem))
		return
	}
	var sys vxrail.SystemInfo
	if err := vxrail.Decode(f.body, &sys); err != nil {
		b.unknown(KindCluster, err)
		return
	}
	b.system = &sys
	b.sections = append(b.sections, newSection(KindCluster, CoverageComplete, []Record{ClusterRecord(sys)}, nil))
}

func (b *builder) hosts(f *fetch) {
	hosts, err := b.decodeHosts(f)
	if err != nil {
		b.unknown(KindHost, err)
		return
	}
	b.sections = append(b.sections, newSection(KindHost, CoverageComplete, hostRecords(hosts), nil))
}

// storage merges the flat disk list with host-nested disks. Losing one source
// keeps the records of the other with partial coverage.
func (b *builder) storage(disksFetch, hostsFetch *fetch) {
	var (
		flat []vxrail.Disk
		errs []string
	)
	flatErr := fetchErr(disksFetch, vxrail.PathDisks)
	if flatErr == nil {
		flatErr = vxrail.Decode(disksFetch.body, &flat)
	}
	if flatErr != nil {
		errs = append(errs, flatErr.Error())
	}

	hosts, hostsErr := b.decodeHosts(hostsFetch)
	if hostsErr != nil {
		errs = append(errs, hostsErr.Error())
	}

	if flatErr != nil && hostsErr != nil {
		b.sections = append(b.sections, newSection(KindStorage, CoverageUnknown, nil, errs))
		b.warn(KindStorage, "storage not available: %s", vxrail.Class(flatErr))
		return
	}

	records := MergeDisks(flat, hosts)
	coverage := CoverageComplete
	switch {
	case flatErr != nil:
		coverage = CoveragePartial
		b.warn(KindStorage, "flat disk list not available (%s), using host-nested disks only", vxrail.Class(flatErr))
	case hostsErr != nil:
		coverage = CoveragePartial
		b.warn(KindStorage, "host records not available (%s), using flat disk list only", vxrail.Class(hostsErr))
	}
	if len(records) == 0 && coverage == CoveragePartial {
		coverage = CoverageUnknown
	}
	b.sections = append(b.sections, newSection(KindStorage, coverage, records, errs))
}

func fetchErr(f *fetch, path string) error {
	switch {
	case f == nil:
		return fmt.Errorf("%w: %s not queried", vxrail.ErrNotFound, path)
	case f.err != nil:
		return f.err
	default:
		return nil
	}
}
