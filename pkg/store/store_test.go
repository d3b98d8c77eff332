package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "circdesk.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestReturnRequestLifecycle(t *testing.T) {
	s := openTestStore(t)

	req, err := s.CreateReturnRequest("2100000005088", "21000004099")
	require.NoError(t, err)
	assert.NotZero(t, req.ID)
	assert.Equal(t, ReturnPending, req.Status)

	pending, err := s.PendingReturns()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "2100000005088", pending[0].Barcode)

	require.NoError(t, s.Decide(req.ID, ReturnApproved, "returned"))

	got, err := s.GetReturnRequest(req.ID)
	require.NoError(t, err)
	assert.Equal(t, ReturnApproved, got.Status)
	assert.Equal(t, "returned", got.Message)
	require.NotNil(t, got.DecidedAt)

	pending, err = s.PendingReturns()
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestPendingReturnsIncludesFailed(t *testing.T) {
	s := openTestStore(t)

	a, err := s.CreateReturnRequest("a", "")
	require.NoError(t, err)
	b, err := s.CreateReturnRequest("b", "")
	require.NoError(t, err)

	require.NoError(t, s.Decide(a.ID, ReturnFailed, "browser error"))
	require.NoError(t, s.Decide(b.ID, ReturnRejected, "not ours"))

	pending, err := s.PendingReturns()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, a.ID, pending[0].ID, "failed requests stay visible for retry")
}

func TestDecideUnknownRequest(t *testing.T) {
	s := openTestStore(t)
	err := s.Decide(42, ReturnApproved, "")
	assert.Error(t, err)
}

func TestRecordAndListIssues(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.RecordIssue("b1", 987, "21000004099", 14, "2026-09-08"))
	require.NoError(t, s.RecordIssue("b2", 988, "21000004100", 7, "2026-09-01"))

	books, err := s.RecentIssues(10)
	require.NoError(t, err)
	require.Len(t, books, 2)
	assert.Equal(t, "b2", books[0].Barcode, "newest first")
	assert.Equal(t, int64(987), books[1].ReaderID)
	assert.Equal(t, "2026-09-08", books[1].DueDate)

	one, err := s.RecentIssues(1)
	require.NoError(t, err)
	assert.Len(t, one, 1)
}
