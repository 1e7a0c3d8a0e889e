package health

import (
	"fmt"
	"strings"

	"github.com/vxkit/vxh/internal/vxrail"
)

// Sources recorded on each record.
const (
	SourceSystem     = "system"
	SourceHosts      = "hosts"
	SourceDisks      = "disks"
	SourceHostNested = "hosts.disks"
)

// IsHealthyLabel is the cluster and host predicate: the label equals
// "healthy" ignoring case and surrounding space.
func IsHealthyLabel(label string) bool {
	return strings.EqualFold(strings.TrimSpace(label), "healthy")
}

// IsDiskOK is the storage predicate: the disk state equals "OK" ignoring case.
func IsDiskOK(state string) bool {
	return strings.EqualFold(strings.TrimSpace(state), "OK")
}

func labelOrUnknown(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return LabelUnknown
	}
	return s
}

// ClusterRecord normalizes /v3/system.
func ClusterRecord(sys vxrail.SystemInfo) Record {
	id := "system"
	if sys.ClusterInfo != nil && sys.ClusterInfo.ClusterName != "" {
		id = sys.ClusterInfo.ClusterName
	}
	return Record{
		Kind:    EntityCluster,
		ID:      id,
		Label:   labelOrUnknown(sys.Health),
		Healthy: IsHealthyLabel(sys.Health),
		Source:  SourceSystem,
	}
}

// HostRecord normalizes one /v7/hosts entry. idx names hosts that report
// neither a hostname nor a serial number.
func HostRecord(h vxrail.Host, idx int) Record {
	id := h.Name()
	if id == "" {
		id = fmt.Sprintf("host[%d]", idx)
	}
	return Record{
		Kind:        EntityHost,
		ID:          id,
		Label:       labelOrUnknown(h.Health),
		Healthy:     IsHealthyLabel(h.Health),
		Source:      SourceHosts,
		PowerStatus: h.PowerStatus,
		Model:       h.Model,
	}
}

// DiskRecord normalizes a disk from the flat list or from a host record.
func DiskRecord(d vxrail.Disk, source, host string) Record {
	return Record{
		Kind:     EntityDisk,
		ID:       strings.TrimSpace(d.Serial()),
		Label:    labelOrUnknown(d.DiskState),
		Healthy:  IsDiskOK(d.DiskState),
		Source:   source,
		Host:     host,
		DiskType: d.DiskType,
	}
}

// recordSet keeps records in insertion order and drops later duplicates.
type recordSet struct {
	seen    map[string]bool
	records []Record
	anon    int
}

func newRecordSet() *recordSet {
	return &recordSet{seen: make(map[string]bool)}
}

// add inserts r unless its key was already seen. Records without an ID cannot
// be matched against anything and are kept under a generated one.
func (s *recordSet) add(r Record) bool {
	if r.ID == "" {
		s.anon++
		r.ID = fmt.Sprintf("unidentified-%d", s.anon)
	}
	key := r.Key()
	if s.seen[key] {
		return false
	}
	s.seen[key] = true
	s.records = append(s.records, r)
	return true
}

// MergeDisks merges the flat disk list with host-nested disks. Flat disks come
// first, then each host's disks in host order. A serial already seen is
// dropped so the first observation wins.
func MergeDisks(flat []vxrail.Disk, hosts []vxrail.Host) []Record {
	set := newRecordSet()
	for _, d := range flat {
		set.add(DiskRecord(d, SourceDisks, ""))
	}
	for _, h := range hosts {
		for _, d := range h.Disks {
			set.add(DiskRecord(d, SourceHostNested, h.Name()))
		}
	}
	return set.records
}

func hostRecords(hosts []vxrail.Host) []Record {
	set := newRecordSet()
	for i, h := range hosts {
		set.add(HostRecord(h, i))
	}
	return set.records
}
