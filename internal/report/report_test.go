package report

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregatorCounts(t *testing.T) {
	a := New("card", nil)
	_, err := uuid.Parse(a.ExecutionID())
	require.NoError(t, err)

	a.Enter("LOGIN")
	a.Record(Item{Label: "A", Outcome: Success})
	a.Record(Item{Label: "B", Outcome: Failure, Message: "저장 실패"})
	a.Record(Item{Label: "C"})
	a.Warn("amount mismatch")

	r := a.Finish(StatusCompleted, nil)
	assert.Equal(t, StatusCompleted, r.Status)
	assert.Equal(t, 3, r.Processed)
	assert.Equal(t, 1, r.Success)
	assert.Equal(t, 2, r.Failure)
	assert.Equal(t, Failure, r.Items[2].Outcome)
	assert.Equal(t, []string{"LOGIN"}, r.Trail)
	assert.Equal(t, []string{"amount mismatch"}, r.Warnings)
	assert.False(t, r.FinishedAt.Before(r.StartedAt))
}

func TestFinishFreezes(t *testing.T) {
	a := New("tax", nil)
	a.Record(Item{Label: "A", Outcome: Success})
	first := a.Finish(StatusLoginFailed, errors.New("bad password"))

	a.Record(Item{Label: "B", Outcome: Success})
	a.Warn("late")
	a.Enter("END")
	a.SetSelected(4)
	second := a.Finish(StatusCompleted, nil)

	assert.Equal(t, first, second)
	assert.Equal(t, StatusLoginFailed, second.Status)
	assert.Equal(t, "bad password", second.Error)
	assert.Equal(t, 1, second.Processed)
}

func TestResultIsACopy(t *testing.T) {
	a := New("card", nil)
	a.Enter("LOGIN")
	r := a.Result()
	r.Trail[0] = "changed"
	assert.Equal(t, []string{"LOGIN"}, a.Result().Trail)
}

func TestTransferCountersNeverDecrease(t *testing.T) {
	a := New("transfer", nil)
	a.SetSelected(3)
	a.SetSelected(1)
	a.SetTransferred(2)
	r := a.Result()
	assert.Equal(t, 3, r.Selected)
	assert.Equal(t, 2, r.Transferred)
}

func TestStatusOK(t *testing.T) {
	assert.True(t, StatusCompleted.OK())
	assert.True(t, StatusNoRecords.OK())
	for _, s := range []Status{StatusStarted, StatusLoginFailed, StatusProjectSelectFailed, StatusNoSelection, StatusTransferInitFailed, StatusAuthFailed, StatusError} {
		assert.False(t, s.OK(), s)
	}
}

func TestSave(t *testing.T) {
	a := New("card", nil)
	a.Record(Item{Key: "A100", Label: "SK텔레콤", Outcome: Success})
	r := a.Finish(StatusCompleted, nil)

	dir := filepath.Join(t.TempDir(), "results")
	path, err := Save(dir, r)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "card-"+r.ExecutionID+".json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "COMPLETED", decoded["status"])
	assert.EqualValues(t, 1, decoded["success"])
	assert.Equal(t, r.ExecutionID, decoded["execution_id"])
	assert.NotContains(t, decoded, "selected")
}
