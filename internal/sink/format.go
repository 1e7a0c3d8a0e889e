package sink

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/vxkit/vxh/internal/health"
	"github.com/vxkit/vxh/internal/report"
	"github.com/vxkit/vxh/internal/storage"
	"github.com/vxkit/vxh/internal/tracker"
)

// palette colours verdicts and check marks. Disabled palettes print plain text.
type palette struct {
	good, bad, unknown, dim *color.Color
}

func newPalette(enabled bool) palette {
	p := palette{
		good:    color.New(color.FgGreen, color.Bold),
		bad:     color.New(color.FgRed, color.Bold),
		unknown: color.New(color.FgYellow, color.Bold),
		dim:     color.New(color.Faint),
	}
	for _, c := range []*color.Color{p.good, p.bad, p.unknown, p.dim} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

func (p palette) verdict(v health.Verdict) string {
	text := strings.ToUpper(string(v))
	switch v {
	case health.VerdictHealthy:
		return p.good.Sprint(text)
	case health.VerdictUnhealthy:
		return p.bad.Sprint(text)
	default:
		return p.unknown.Sprint(text)
	}
}

func (p palette) mark(ok bool) string {
	if ok {
		return p.good.Sprint("✓")
	}
	return p.bad.Sprint("✗")
}

// FormatReport renders a report for humans.
func FormatReport(r *report.Report, colored bool) string {
	p := newPalette(colored)
	var sb strings.Builder

	fmt.Fprintf(&sb, "VxRail health: %s\n", p.verdict(r.Verdict))
	fmt.Fprintf(&sb, "Manager: %s  Generated: %s  Run: %s\n",
		r.Host, r.GeneratedAt.Format("2006-01-02 15:04:05 MST"), r.RunID)

	if r.System != nil {
		fmt.Fprintf(&sb, "Version: %s  Operational status: %s\n",
			orNA(r.System.Version), orNA(r.System.OperationalStatus))
	}
	if r.Support != nil {
		fmt.Fprintf(&sb, "Support account: %s  Status: %s\n",
			orNA(r.Support.Username), orNA(r.Support.Status))
	}

	if r.Health != nil {
		sb.WriteString("\n")
		sb.WriteString(formatSections(r.Health, p))
		if warnings := r.Health.Warnings(); len(warnings) > 0 {
			sb.WriteString("\nWarnings:\n")
			for _, w := range warnings {
				fmt.Fprintf(&sb, "  - %s: %s\n", w.Kind, w.Message)
			}
		}
	}

	if r.Precheck != nil {
		sb.WriteString("\n")
		sb.WriteString(formatPrecheck(r.Precheck, p))
	}
	return sb.String()
}

func formatSections(h *health.Report, p palette) string {
	var sb strings.Builder

	sb.WriteString("Coverage:")
	for _, s := range h.Sections() {
		fmt.Fprintf(&sb, "  %s=%s", s.Kind(), s.Coverage())
	}
	sb.WriteString("\n\n")

	records := h.Records()
	if len(records) == 0 {
		sb.WriteString("No entities reported.\n")
		return sb.String()
	}

	headers := []string{"Kind", "ID", "State", "Healthy", "Source", "Details"}
	rows := make([][]string, len(records))
	for i, rec := range records {
		rows[i] = []string{string(rec.Kind), rec.ID, rec.Label, yesNo(rec.Healthy), rec.Source, details(rec)}
	}
	sb.WriteString(FormatTable(headers, rows, func(row, col int) string {
		if col == 3 {
			return p.mark(records[row].Healthy) + " "
		}
		return ""
	}))
	return sb.String()
}

func details(rec health.Record) string {
	var parts []string
	if rec.Host != "" {
		parts = append(parts, "host="+rec.Host)
	}
	if rec.PowerStatus != "" {
		parts = append(parts, "power="+rec.PowerStatus)
	}
	if rec.DiskType != "" {
		parts = append(parts, "type="+rec.DiskType)
	}
	if rec.Model != "" {
		parts = append(parts, "model="+rec.Model)
	}
	return strings.Join(parts, " ")
}

func formatPrecheck(pc *report.Precheck, p palette) string {
	var sb strings.Builder
	out := pc.Outcome

	state := string(out.State)
	if pc.OK() {
		state = p.good.Sprint(state)
	} else if out.State == tracker.StateCompleted || out.State == tracker.StateFailed {
		state = p.bad.Sprint(state)
	} else {
		state = p.unknown.Sprint(state)
	}
	fmt.Fprintf(&sb, "Pre-check %s: %s (%d polls, %s)\n",
		orNA(out.Handle.RequestID), state, out.Polls, time.Duration(out.ElapsedMS)*time.Millisecond)

	if pc.Error != "" {
		fmt.Fprintf(&sb, "  Error: %s\n", pc.Error)
	}
	if pc.Checks == nil {
		return sb.String()
	}

	fmt.Fprintf(&sb, "  Passed: %d  Failed: %d\n", pc.Checks.Passed, pc.Checks.Failed)
	for _, c := range pc.Checks.Checks {
		writeCheck(&sb, c, p, "  ")
	}
	return sb.String()
}

func writeCheck(sb *strings.Builder, c tracker.Check, p palette, indent string) {
	fmt.Fprintf(sb, "%s%s %s: %s\n", indent, p.mark(c.Passed()), c.Name, c.Status)
	if !c.Passed() && c.Message != "" {
		fmt.Fprintf(sb, "%s   %s\n", indent, p.dim.Sprint(c.Message))
	}
	for _, sub := range c.SubChecks {
		writeCheck(sb, sub, p, indent+"   ")
	}
}

// FormatRuns renders stored runs as a table.
func FormatRuns(runs []storage.Run, colored bool) string {
	if len(runs) == 0 {
		return "No runs recorded.\n"
	}
	p := newPalette(colored)

	headers := []string{"Generated", "Host", "Verdict", "Healthy", "Unhealthy", "Warnings", "Pre-check", "Run"}
	rows := make([][]string, len(runs))
	for i, r := range runs {
		rows[i] = []string{
			r.GeneratedAt.Format("2006-01-02 15:04"),
			r.Host,
			strings.ToUpper(string(r.Verdict)),
			fmt.Sprint(r.Healthy),
			fmt.Sprint(r.Unhealthy),
			fmt.Sprint(r.Warnings),
			orDash(r.PrecheckState),
			r.RunID,
		}
	}
	return FormatTable(headers, rows, func(row, col int) string {
		if col == 2 {
			return p.verdict(runs[row].Verdict)
		}
		return ""
	})
}

// FormatTable lays out left-aligned columns. decorate may return a coloured
// replacement for a cell; padding is computed from the plain text. A nil
// decorate prints cells as given.
func FormatTable(headers []string, rows [][]string, decorate func(row, col int) string) string {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if n := len([]rune(cell)); n > widths[i] {
				widths[i] = n
			}
		}
	}

	var sb strings.Builder

	// Header
	for i, h := range headers {
		if i > 0 {
			sb.WriteString("  ")
		}
		sb.WriteString(padRight(h, widths[i]))
	}
	sb.WriteString("\n")

	// Underline
	for i, w := range widths {
		if i > 0 {
			sb.WriteString("  ")
		}
		sb.WriteString(strings.Repeat("-", w))
	}
	sb.WriteString("\n")

	// Rows
	for r, row := range rows {
		for i, cell := range row {
			if i > 0 {
				sb.WriteString("  ")
			}
			padding := strings.Repeat(" ", widths[i]-len([]rune(cell)))
			if decorate == nil {
				sb.WriteString(cell)
				sb.WriteString(padding)
				continue
			}
			if d := decorate(r, i); d != "" {
				sb.WriteString(d)
				sb.WriteString(padding)
				continue
			}
			sb.WriteString(cell)
			sb.WriteString(padding)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
