package audit

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remedian/remedian/types"
)

func TestTrail_Record(t *testing.T) {
	dir := t.TempDir()
	trail, err := Open(dir)
	require.NoError(t, err)

	event := types.ComplianceEvent{
		ResourceID:   "bucket-A",
		ResourceType: types.ResourceTypeS3Bucket,
		Status:       types.StatusNonCompliant,
	}
	result := types.RemediationResult{
		ResourceID: "bucket-A",
		Outcome:    types.OutcomeRemediated,
		Action:     "Automatically blocked public access on S3 bucket: bucket-A",
	}

	require.NoError(t, trail.Record(context.Background(), event, result))
	require.NoError(t, trail.Close())

	entries, err := ReadAll(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	assert.Equal(t, EntryHandled, entries[0].Kind)
	assert.Equal(t, "bucket-A", entries[0].ResourceID)
	assert.Equal(t, int64(1), entries[0].Sequence)

	var rec record
	require.NoError(t, json.Unmarshal(entries[0].Data, &rec))
	assert.Equal(t, types.OutcomeRemediated, rec.Result.Outcome)
	assert.Equal(t, types.StatusNonCompliant, rec.Event.Status)
}

func TestTrail_FailedOutcome(t *testing.T) {
	dir := t.TempDir()
	trail, err := Open(dir)
	require.NoError(t, err)

	result := types.RemediationResult{
		ResourceID: "bucket-A",
		Outcome:    types.OutcomeFailed,
		Error:      "AccessDenied",
	}
	require.NoError(t, trail.Record(context.Background(), types.ComplianceEvent{ResourceID: "bucket-A"}, result))
	require.NoError(t, trail.Close())

	entries, err := ReadAll(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, EntryFailed, entries[0].Kind)
	assert.Equal(t, "AccessDenied", entries[0].Error)
}

func TestTrail_SequenceIncrements(t *testing.T) {
	dir := t.TempDir()
	trail, err := Open(dir)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, trail.Append(EntryHandled, "bucket-A", map[string]string{"n": "x"}, ""))
	}
	require.NoError(t, trail.Close())

	entries, err := ReadAll(dir)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	for i, entry := range entries {
		assert.Equal(t, int64(i+1), entry.Sequence)
	}
}

func TestReadAll_EmptyDir(t *testing.T) {
	entries, err := ReadAll(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}
