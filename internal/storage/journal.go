package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// MaxJournalLineCapacity is the maximum buffer size for reading journal lines (1MB per line).
const MaxJournalLineCapacity = 1024 * 1024

// AppendRun adds a run summary to the end of a JSONL journal, creating the
// file and its directory if needed.
func AppendRun(path string, run Run) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating journal directory: %w", err)
	}

	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("encoding run %s: %w", run.RunID, err)
	}
	data = append(data, '\n')

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening journal for append: %w", err)
	}
	defer f.Close()

	// Single write per line
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("writing run %s: %w", run.RunID, err)
	}
	return f.Close()
}

// ReadJournal reads run summaries from a JSONL journal in file order.
// A missing file is empty.
func ReadJournal(path string) ([]Run, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening journal: %w", err)
	}
	defer f.Close()

	var runs []Run
	scanner := bufio.NewScanner(f)
	buf := make([]byte, MaxJournalLineCapacity)
	scanner.Buffer(buf, MaxJournalLineCapacity)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var run Run
		if err := json.Unmarshal(line, &run); err != nil {
			return nil, fmt.Errorf("parsing journal line %d: %w", lineNum, err)
		}
		runs = append(runs, run)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading journal: %w", err)
	}
	return runs, nil
}

// FilterRuns applies f to runs read from a journal and returns them newest
// first, matching ListRuns.
func FilterRuns(runs []Run, f RunFilter) []Run {
	var out []Run
	for _, r := range runs {
		if !f.Since.IsZero() && r.GeneratedAt.Before(f.Since) {
			continue
		}
		if f.Host != "" && r.Host != f.Host {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].GeneratedAt.After(out[j].GeneratedAt)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out
}
