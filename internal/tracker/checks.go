package tracker

import (
	"encoding/json"
	"strings"

	"github.com/vxkit/vxh/internal/vxrail"
)

// StatusPassed is the check status that counts as a pass.
const StatusPassed = "PASSED"

// Check is one pre-check item, possibly with sub-checks.
type Check struct {
	Name      string  `json:"name"`
	Status    string  `json:"status"`
	Message   string  `json:"message,omitempty"`
	SubChecks []Check `json:"sub_checks,omitempty"`
}

// Passed reports whether the check (not its sub-checks) passed.
func (c Check) Passed() bool {
	return strings.EqualFold(strings.TrimSpace(c.Status), StatusPassed)
}

// PrecheckSummary is the parsed check list of a pre-check result.
type PrecheckSummary struct {
	Checks []Check `json:"checks"`
	Passed int     `json:"passed"`
	Failed int     `json:"failed"`
}

// OK reports whether every check and sub-check passed.
func (s PrecheckSummary) OK() bool {
	return s.Failed == 0
}

// ParseChecks reads data.check_list from a pre-check result payload.
// Missing names and statuses are reported as "UNKNOWN".
func ParseChecks(result json.RawMessage) (*PrecheckSummary, error) {
	var payload struct {
		Data struct {
			CheckList []Check `json:"check_list"`
		} `json:"data"`
	}
	if len(result) == 0 {
		return &PrecheckSummary{}, nil
	}
	if err := vxrail.Decode(result, &payload); err != nil {
		return nil, err
	}

	summary := &PrecheckSummary{Checks: payload.Data.CheckList}
	for i := range summary.Checks {
		normalizeCheck(&summary.Checks[i])
		countChecks(summary, summary.Checks[i])
	}
	return summary, nil
}

func normalizeCheck(c *Check) {
	if c.Name == "" {
		c.Name = "UNKNOWN"
	}
	if c.Status == "" {
		c.Status = "UNKNOWN"
	}
	for i := range c.SubChecks {
		normalizeCheck(&c.SubChecks[i])
	}
}

func countChecks(s *PrecheckSummary, c Check) {
	if c.Passed() {
		s.Passed++
	} else {
		s.Failed++
	}
	for _, sub := range c.SubChecks {
		countChecks(s, sub)
	}
}
