package tracker

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vxkit/vxh/internal/vxrail"
)

func TestParseChecks(t *testing.T) {
	result := json.RawMessage(`{
		"data": {
			"check_list": [
				{"name": "vCenter connectivity", "status": "PASSED"},
				{"name": "vSAN health", "status": "FAILED", "message": "resync in progress",
				 "sub_checks": [
					{"name": "object health", "status": "passed"},
					{"name": "resync", "status": "WARNING", "message": "12 objects"}
				 ]},
				{"status": "PASSED"}
			]
		}
	}`)

	summary, err := ParseChecks(result)
	require.NoError(t, err)

	require.Len(t, summary.Checks, 3)
	assert.Equal(t, 3, summary.Passed)
	assert.Equal(t, 2, summary.Failed)
	assert.False(t, summary.OK())

	assert.True(t, summary.Checks[0].Passed())
	assert.False(t, summary.Checks[1].Passed())
	assert.True(t, summary.Checks[1].SubChecks[0].Passed())
	assert.Equal(t, "UNKNOWN", summary.Checks[2].Name)
}

func TestParseChecks_Empty(t *testing.T) {
	summary, err := ParseChecks(nil)
	require.NoError(t, err)
	assert.True(t, summary.OK())

	summary, err = ParseChecks(json.RawMessage(`{"data":{}}`))
	require.NoError(t, err)
	assert.Empty(t, summary.Checks)
}

func TestParseChecks_Malformed(t *testing.T) {
	_, err := ParseChecks(json.RawMessage(`{"data":{"check_list":"nope"}}`))
	assert.ErrorIs(t, err, vxrail.ErrMalformed)
}
