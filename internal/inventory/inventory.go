// Package inventory collects the hardware inventory of a VxRail cluster.
//
// Payloads are kept as the raw JSON the manager returned; only the disk
// summary reads into them.
package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vxkit/vxh/internal/health"
	"github.com/vxkit/vxh/internal/vxrail"
)

// FilePrefix names saved inventory files.
const FilePrefix = "vxrail_inventory"

// ErrNothingCollected is returned when every inventory endpoint failed.
var ErrNothingCollected = errors.New("no inventory endpoint answered")

// Inventory is one hardware inventory snapshot.
type Inventory struct {
	Host        string            `json:"host"`
	CollectedAt time.Time         `json:"collected_at"`
	Hosts       json.RawMessage   `json:"hosts,omitempty"`
	Chassis     json.RawMessage   `json:"chassis,omitempty"`
	Disks       json.RawMessage   `json:"disks,omitempty"`
	Errors      map[string]string `json:"errors,omitempty"` // By endpoint path
	Summary     Summary           `json:"summary"`
}

// Summary counts the inventory.
type Summary struct {
	Hosts     int            `json:"hosts"`
	Chassis   int            `json:"chassis"`
	Disks     int            `json:"disks"`
	DiskTypes map[string]int `json:"disk_types,omitempty"`

	// TotalCapacity sums numeric disk capacities as reported, without
	// unit conversion. Disks with non-numeric capacity are counted in
	// UnparsedCapacity instead.
	TotalCapacity    float64 `json:"total_capacity"`
	UnparsedCapacity int     `json:"unparsed_capacity,omitempty"`
}

// DiskTypeNames returns the disk types sorted by name.
func (s Summary) DiskTypeNames() []string {
	names := make([]string, 0, len(s.DiskTypes))
	for name := range s.DiskTypes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Collector fetches inventory endpoints concurrently.
type Collector struct {
	transport health.Transport
	logger    *zap.Logger
	now       func() time.Time
}

// NewCollector creates a collector. A nil logger discards output.
func NewCollector(transport health.Transport, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{transport: transport, logger: logger, now: time.Now}
}

var endpoints = []string{vxrail.PathHosts, vxrail.PathChassis, vxrail.PathDisks}

// Collect fetches hosts, chassis and disks. Failed endpoints are recorded in
// Errors; an authentication failure aborts the collection.
func (c *Collector) Collect(ctx context.Context, host string) (*Inventory, error) {
	bodies := make([]json.RawMessage, len(endpoints))
	errs := make([]error, len(endpoints))

	g, gctx := errgroup.WithContext(ctx)
	for i, path := range endpoints {
		g.Go(func() error {
			body, err := c.transport.Do(gctx, vxrail.Get(path))
			if vxrail.IsUnauthorized(err) {
				return err
			}
			bodies[i], errs[i] = body, err
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("collecting inventory: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	inv := &Inventory{Host: host, CollectedAt: c.now().UTC()}
	for i, path := range endpoints {
		if errs[i] != nil {
			if inv.Errors == nil {
				inv.Errors = make(map[string]string)
			}
			inv.Errors[path] = errs[i].Error()
			c.logger.Warn("inventory endpoint failed",
				zap.String("path", path), zap.String("class", vxrail.Class(errs[i])))
		}
	}
	if len(inv.Errors) == len(endpoints) {
		return nil, fmt.Errorf("%w: %s", ErrNothingCollected, errors.Join(errs...))
	}

	inv.Hosts, inv.Chassis, inv.Disks = bodies[0], bodies[1], bodies[2]
	inv.Summary = summarize(inv, c.logger)
	return inv, nil
}

func summarize(inv *Inventory, logger *zap.Logger) Summary {
	s := Summary{
		Hosts:   arrayLen(inv.Hosts),
		Chassis: arrayLen(inv.Chassis),
	}

	disks, err := diskList(inv)
	if err != nil {
		logger.Warn("disk summary unavailable", zap.Error(err))
		return s
	}

	s.Disks = len(disks)
	for _, d := range disks {
		diskType := strings.ToUpper(strings.TrimSpace(d.DiskType))
		if diskType == "" {
			diskType = health.LabelUnknown
		}
		if s.DiskTypes == nil {
			s.DiskTypes = make(map[string]int)
		}
		s.DiskTypes[diskType]++

		if v, ok := d.CapacityValue(); ok {
			s.TotalCapacity += v
		} else {
			s.UnparsedCapacity++
		}
	}
	return s
}

// diskList prefers the flat disk list and falls back to host-nested disks.
func diskList(inv *Inventory) ([]vxrail.Disk, error) {
	if len(inv.Disks) > 0 {
		var disks []vxrail.Disk
		if err := vxrail.Decode(inv.Disks, &disks); err != nil {
			return nil, err
		}
		return disks, nil
	}
	if len(inv.Hosts) == 0 {
		return nil, nil
	}

	var hosts []vxrail.Host
	if err := vxrail.Decode(inv.Hosts, &hosts); err != nil {
		return nil, err
	}
	var disks []vxrail.Disk
	for _, h := range hosts {
		disks = append(disks, h.Disks...)
	}
	return disks, nil
}

// HostList decodes the host payload. A single object is one host.
func (inv *Inventory) HostList() ([]vxrail.Host, error) {
	return decodeList[vxrail.Host](inv.Hosts)
}

// ChassisList decodes the chassis payload. A single object is one chassis.
func (inv *Inventory) ChassisList() ([]vxrail.Chassis, error) {
	return decodeList[vxrail.Chassis](inv.Chassis)
}

func decodeList[T any](raw json.RawMessage) ([]T, error) {
	trimmed := strings.TrimSpace(string(raw))
	switch {
	case trimmed == "" || trimmed == "null":
		return nil, nil
	case strings.HasPrefix(trimmed, "{"):
		var one T
		if err := vxrail.Decode(raw, &one); err != nil {
			return nil, err
		}
		return []T{one}, nil
	}
	var list []T
	if err := vxrail.Decode(raw, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// arrayLen counts elements of a JSON array; a single object counts as one.
func arrayLen(raw json.RawMessage) int {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return 0
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		if strings.HasPrefix(trimmed, "{") {
			return 1
		}
		return 0
	}
	return len(items)
}
