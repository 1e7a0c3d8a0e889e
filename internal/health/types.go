// Package health queries cluster, host and storage health from VxRail Manager
// and folds it into an aggregate report with a tri-state verdict.
package health

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vxkit/vxh/internal/vxrail"
)

// ErrUnknownKind is returned for a kind outside cluster, host and storage.
var ErrUnknownKind = errors.New("unknown health kind")

// Kind is a requested health section.
type Kind string

const (
	KindCluster Kind = "cluster"
	KindHost    Kind = "host"
	KindStorage Kind = "storage"
)

// AllKinds lists every kind in report order.
var AllKinds = []Kind{KindCluster, KindHost, KindStorage}

// Entity returns the entity kind of the records in this section.
func (k Kind) Entity() EntityKind {
	switch k {
	case KindCluster:
		return EntityCluster
	case KindHost:
		return EntityHost
	default:
		return EntityDisk
	}
}

// ParseKinds parses a list such as "cluster,host,storage". Duplicates are
// dropped and the result follows report order. An empty list means all kinds.
func ParseKinds(values ...string) ([]Kind, error) {
	want := make(map[Kind]bool)
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.ToLower(strings.TrimSpace(part))
			if part == "" {
				continue
			}
			switch k := Kind(part); k {
			case KindCluster, KindHost, KindStorage:
				want[k] = true
			case "disk", "disks":
				want[KindStorage] = true
			case "hosts":
				want[KindHost] = true
			default:
				return nil, fmt.Errorf("%w: %q", ErrUnknownKind, part)
			}
		}
	}
	if len(want) == 0 {
		return append([]Kind(nil), AllKinds...), nil
	}

	kinds := make([]Kind, 0, len(want))
	for _, k := range AllKinds {
		if want[k] {
			kinds = append(kinds, k)
		}
	}
	return kinds, nil
}

// EntityKind is the type of component a record describes.
type EntityKind string

const (
	EntityCluster EntityKind = "cluster"
	EntityHost    EntityKind = "host"
	EntityDisk    EntityKind = "disk"
)

// LabelUnknown stands in for an absent health label or disk state.
const LabelUnknown = "UNKNOWN"

// Record is the normalized health of one entity. (Kind, ID) identifies it.
type Record struct {
	Kind    EntityKind `json:"kind"`
	ID      string     `json:"id"`
	Label   string     `json:"label"`
	Healthy bool       `json:"healthy"`
	Source  string     `json:"source"`

	// Informational fields, empty when the server did not send them.
	Host        string `json:"host,omitempty"`
	PowerStatus string `json:"power_status,omitempty"`
	DiskType    string `json:"disk_type,omitempty"`
	Model       string `json:"model,omitempty"`
}

// Key is the deduplication key of the record.
func (r Record) Key() string {
	return string(r.Kind) + "/" + r.ID
}

// Coverage describes how much of a section could be queried.
type Coverage string

const (
	CoverageComplete Coverage = "complete"
	CoveragePartial  Coverage = "partial"
	CoverageUnknown  Coverage = "unknown"
)

// Section holds the records of one kind. Its records cannot be modified
// through the accessor.
type Section struct {
	kind     Kind
	coverage Coverage
	records  []Record
	errs     []string
}

func newSection(kind Kind, coverage Coverage, records []Record, errs []string) Section {
	return Section{
		kind:     kind,
		coverage: coverage,
		records:  append([]Record(nil), records...),
		errs:     append([]string(nil), errs...),
	}
}

func (s Section) Kind() Kind          { return s.kind }
func (s Section) Coverage() Coverage  { return s.coverage }
func (s Section) Len() int            { return len(s.records) }
func (s Section) Errors() []string    { return append([]string(nil), s.errs...) }
func (s Section) Records() []Record   { return append([]Record(nil), s.records...) }
func (s Section) Record(i int) Record { return s.records[i] }
func (s Section) HasRecords() bool    { return len(s.records) > 0 }

// Unhealthy returns the records that are not healthy.
func (s Section) Unhealthy() []Record {
	var out []Record
	for _, r := range s.records {
		if !r.Healthy {
			out = append(out, r)
		}
	}
	return out
}

type sectionJSON struct {
	Kind     Kind     `json:"kind"`
	Coverage Coverage `json:"coverage"`
	Records  []Record `json:"records"`
	Errors   []string `json:"errors,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (s Section) MarshalJSON() ([]byte, error) {
	records := s.records
	if records == nil {
		records = []Record{}
	}
	return json.Marshal(sectionJSON{Kind: s.kind, Coverage: s.coverage, Records: records, Errors: s.errs})
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Section) UnmarshalJSON(data []byte) error {
	var raw sectionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = newSection(raw.Kind, raw.Coverage, raw.Records, raw.Errors)
	return nil
}

// Verdict is the tri-state overall health.
type Verdict string

const (
	VerdictHealthy   Verdict = "healthy"
	VerdictUnhealthy Verdict = "unhealthy"
	VerdictUnknown   Verdict = "unknown"
)

// WarningPartialCoverage marks a section that could not be fully queried.
const WarningPartialCoverage = "partial_coverage"

// Warning is a non-fatal annotation on a report.
type Warning struct {
	Code    string `json:"code"`
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

// Report is the aggregate health of one run. It is not modified after
// Aggregate returns it; sections and warnings are only reachable as copies.
type Report struct {
	GeneratedAt time.Time `json:"generated_at"`
	Overall     Verdict   `json:"overall"`

	sections []Section
	warnings []Warning
	system   *vxrail.SystemInfo
}

// NewReport builds a report over sections and computes its verdict.
func NewReport(at time.Time, sections []Section, warnings []Warning) *Report {
	return &Report{
		GeneratedAt: at,
		Overall:     Evaluate(sections),
		sections:    sections,
		warnings:    warnings,
	}
}

// Sections returns the sections in request order.
func (r *Report) Sections() []Section {
	return append([]Section(nil), r.sections...)
}

// Warnings returns the coverage warnings.
func (r *Report) Warnings() []Warning {
	return append([]Warning(nil), r.warnings...)
}

// System returns the system information decoded for the cluster section, or
// nil if cluster health was not requested or could not be read.
func (r *Report) System() *vxrail.SystemInfo {
	if r.system == nil {
		return nil
	}
	sys := *r.system
	return &sys
}

type reportJSON struct {
	GeneratedAt time.Time `json:"generated_at"`
	Overall     Verdict   `json:"overall"`
	Sections    []Section `json:"sections"`
	Warnings    []Warning `json:"warnings,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (r Report) MarshalJSON() ([]byte, error) {
	sections := r.sections
	if sections == nil {
		sections = []Section{}
	}
	return json.Marshal(reportJSON{GeneratedAt: r.GeneratedAt, Overall: r.Overall, Sections: sections, Warnings: r.warnings})
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Report) UnmarshalJSON(data []byte) error {
	var raw reportJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = Report{GeneratedAt: raw.GeneratedAt, Overall: raw.Overall, sections: raw.Sections, warnings: raw.Warnings}
	return nil
}

// Section returns the section for kind, if it was requested.
func (r *Report) Section(kind Kind) (Section, bool) {
	for _, s := range r.sections {
		if s.kind == kind {
			return s, true
		}
	}
	return Section{}, false
}

// Records returns every record across sections in report order.
func (r *Report) Records() []Record {
	var out []Record
	for _, s := range r.sections {
		out = append(out, s.records...)
	}
	return out
}

// Counts returns the number of healthy and unhealthy records.
func (r *Report) Counts() (healthy, unhealthy int) {
	for _, s := range r.sections {
		for _, rec := range s.records {
			if rec.Healthy {
				healthy++
			} else {
				unhealthy++
			}
		}
	}
	return healthy, unhealthy
}

// PartialCoverage reports whether any section carries a coverage warning.
func (r *Report) PartialCoverage() bool {
	for _, w := range r.warnings {
		if w.Code == WarningPartialCoverage {
			return true
		}
	}
	return false
}

// Evaluate computes the verdict over sections. Any unhealthy record makes the
// report unhealthy. Otherwise a section without records leaves it unknown.
func Evaluate(sections []Section) Verdict {
	if len(sections) == 0 {
		return VerdictUnknown
	}
	empty := false
	for _, s := range sections {
		if len(s.Unhealthy()) > 0 {
			return VerdictUnhealthy
		}
		if !s.HasRecords() {
			empty = true
		}
	}
	if empty {
		return VerdictUnknown
	}
	return VerdictHealthy
}
