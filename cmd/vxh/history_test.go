package main

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/vxkit/vxh/internal/storage"
)

func TestPruneResponse_SameShapeWithAndWithoutRuns(t *testing.T) {
	cutoff := time.Date(2026, 7, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		runs []storage.Run
		want int
	}{
		{"no remaining runs", nil, 0},
		{"filtered runs", []storage.Run{{RunID: "run-1", Host: "vxm.example.net"}}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(pruneResponse(3, cutoff, tt.runs))
			if err != nil {
				t.Fatalf("Marshal: %v", err)
			}

			var got map[string]json.RawMessage
			if err := json.Unmarshal(data, &got); err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			for _, key := range []string{"pruned", "before", "runs"} {
				if _, ok := got[key]; !ok {
					t.Errorf("missing %q in %s", key, data)
				}
			}
			if string(got["pruned"]) != "3" {
				t.Errorf("pruned = %s, want 3", got["pruned"])
			}

			var runs []storage.Run
			if err := json.Unmarshal(got["runs"], &runs); err != nil {
				t.Fatalf("runs: %v", err)
			}
			if runs == nil || len(runs) != tt.want {
				t.Errorf("runs = %v, want %d entries as a list", runs, tt.want)
			}
		})
	}
}
