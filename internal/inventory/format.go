package inventory

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vxkit/vxh/internal/sink"
)

var (
	hostHeaders    = []string{"Host name", "Serial number", "Model", "Management IP", "Health"}
	chassisHeaders = []string{"ID", "Serial number", "Model", "Health"}
)

// Format renders the inventory for humans: a table of hosts, a table of
// chassis, then the disk summary and any endpoint failures.
func Format(inv *Inventory) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Hosts (%d):\n", inv.Summary.Hosts)
	if hosts, err := inv.HostList(); err != nil {
		fmt.Fprintf(&sb, "  not shown: %v\n", err)
	} else if len(hosts) > 0 {
		rows := make([][]string, len(hosts))
		for i, h := range hosts {
			name := h.Hostname
			if name == "" {
				name = h.HostName
			}
			rows[i] = []string{orNA(name), orNA(h.SerialNumber), orNA(h.Model), orNA(h.ManagementIP), orNA(h.Health)}
		}
		sb.WriteString(sink.FormatTable(hostHeaders, rows, nil))
	}

	fmt.Fprintf(&sb, "\nChassis (%d):\n", inv.Summary.Chassis)
	if chassis, err := inv.ChassisList(); err != nil {
		fmt.Fprintf(&sb, "  not shown: %v\n", err)
	} else if len(chassis) > 0 {
		rows := make([][]string, len(chassis))
		for i, c := range chassis {
			rows[i] = []string{orNA(c.ID), orNA(c.SerialNumber), orNA(c.Model), orNA(c.Health)}
		}
		sb.WriteString(sink.FormatTable(chassisHeaders, rows, nil))
	}

	s := inv.Summary
	fmt.Fprintf(&sb, "\nDisks (%d):\n", s.Disks)
	for _, name := range s.DiskTypeNames() {
		fmt.Fprintf(&sb, "  %-8s %d\n", name, s.DiskTypes[name])
	}
	fmt.Fprintf(&sb, "Raw capacity total: %g", s.TotalCapacity)
	if s.UnparsedCapacity > 0 {
		fmt.Fprintf(&sb, " (%d disks without a numeric capacity)", s.UnparsedCapacity)
	}
	sb.WriteString("\n")

	paths := make([]string, 0, len(inv.Errors))
	for path := range inv.Errors {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	for _, path := range paths {
		fmt.Fprintf(&sb, "warning: %s: %s\n", path, inv.Errors[path])
	}
	return sb.String()
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
