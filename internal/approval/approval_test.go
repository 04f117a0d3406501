package approval

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strp(s string) *string { return &s }

var now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestProposeLocksField(t *testing.T) {
	f := &FieldStatus{Value: "Escola A", Status: StatusApproved}

	require.NoError(t, f.Propose("u1", strp("Escola B"), "", now))
	assert.Equal(t, "Escola B", f.Value)
	assert.Equal(t, "Escola A", f.PreviousValue)
	assert.Equal(t, StatusPending, f.Status)
	assert.True(t, f.IsLocked)
	assert.Equal(t, "u1", f.LastUpdatedBy)

	// A second proposal while pending is rejected.
	assert.ErrorIs(t, f.Propose("u2", strp("Escola C"), "", now), ErrLocked)
	assert.Equal(t, "Escola B", f.Value)
}

func TestProposeNilValueIsEmptyString(t *testing.T) {
	f := &FieldStatus{}
	require.NoError(t, f.Propose("u1", nil, "", now))
	assert.Equal(t, "", f.Value)
	assert.Equal(t, "", f.PreviousValue)
}

func TestApprove(t *testing.T) {
	f := &FieldStatus{}
	require.NoError(t, f.Propose("u1", strp("x"), "", now))

	assert.ErrorIs(t, f.Approve("u1", "", now), ErrSelfReview)
	require.NoError(t, f.Approve("u2", "ok", now))

	assert.Equal(t, StatusApproved, f.Status)
	assert.False(t, f.IsLocked)
	assert.Equal(t, "x", f.Value)
	assert.Equal(t, "u2", f.ApprovedBy)
	require.Len(t, f.Comments, 1)
	assert.Equal(t, ActionApprove, f.Comments[0].Action)

	assert.ErrorIs(t, f.Approve("u2", "", now), ErrNotPending)
}

func TestRejectRestoresPreviousValue(t *testing.T) {
	f := &FieldStatus{Value: "old", Status: StatusApproved}
	require.NoError(t, f.Propose("u1", strp("new"), "", now))

	assert.ErrorIs(t, f.Reject("u1", "", now), ErrSelfReview)
	require.NoError(t, f.Reject("u2", "", now))

	assert.Equal(t, "old", f.Value)
	assert.Equal(t, StatusDisagreed, f.Status)
	assert.False(t, f.IsLocked)
	assert.Empty(t, f.Comments)

	// The field can be proposed again after a rejection.
	require.NoError(t, f.Propose("u2", strp("newer"), "", now))
	assert.Equal(t, "old", f.PreviousValue)
}

func TestCancel(t *testing.T) {
	t.Run("restores agreed value", func(t *testing.T) {
		f := &FieldStatus{Value: "old", Status: StatusApproved, ApprovedBy: "u2"}
		require.NoError(t, f.Propose("u1", strp("new"), "", now))
		assert.Empty(t, f.ApprovedBy)

		assert.ErrorIs(t, f.Cancel("u2", now), ErrNotProposer)
		require.NoError(t, f.Cancel("u1", now))
		assert.Equal(t, "old", f.Value)
		assert.Equal(t, StatusApproved, f.Status)
		assert.Equal(t, "u2", f.ApprovedBy)
		assert.False(t, f.IsLocked)
	})

	t.Run("restores agreed empty value", func(t *testing.T) {
		f := &FieldStatus{Value: "", Status: StatusApproved, ApprovedBy: "u2"}
		require.NoError(t, f.Propose("u1", strp("filled"), "", now))
		require.NoError(t, f.Cancel("u1", now))
		assert.Equal(t, "", f.Value)
		assert.Equal(t, StatusApproved, f.Status)
		assert.Equal(t, "u2", f.ApprovedBy)
	})

	t.Run("restores disagreed state", func(t *testing.T) {
		f := &FieldStatus{Value: "kept", Status: StatusDisagreed}
		require.NoError(t, f.Propose("u1", strp("again"), "", now))
		require.NoError(t, f.Cancel("u1", now))
		assert.Equal(t, "kept", f.Value)
		assert.Equal(t, StatusDisagreed, f.Status)
	})

	t.Run("never agreed returns to zero state", func(t *testing.T) {
		f := &FieldStatus{}
		require.NoError(t, f.Propose("u1", strp("new"), "", now))
		require.NoError(t, f.Cancel("u1", now))
		assert.Equal(t, "", f.Value)
		assert.Equal(t, StatusNone, f.Status)
	})

	t.Run("not pending", func(t *testing.T) {
		f := &FieldStatus{}
		assert.ErrorIs(t, f.Cancel("u1", now), ErrNotPending)
	})
}

func TestApply(t *testing.T) {
	f := &FieldStatus{}
	require.NoError(t, f.Apply(ActionPropose, "u1", strp("v"), "", now))
	require.NoError(t, f.Apply(ActionApprove, "u2", nil, "", now))
	assert.Equal(t, StatusApproved, f.Status)

	assert.ErrorIs(t, f.Apply(ActionPropose, "", strp("v"), "", now), ErrNoActor)
	assert.Error(t, f.Apply(Action("merge"), "u1", nil, "", now))
}

func TestSnapshot(t *testing.T) {
	f := &FieldStatus{Value: "v", Status: StatusPending, IsLocked: true, LastUpdatedBy: "u1"}
	snap := f.Snapshot()
	assert.Equal(t, "v", snap["value"])
	assert.Equal(t, "pending", snap["status"])
	assert.Equal(t, true, snap["isLocked"])

	var nilField *FieldStatus
	assert.Empty(t, nilField.Snapshot())
}
