package synchronizer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bansync/internal/models"
)

type latestStub struct {
	record *models.BanRecord
	err    error
	calls  int
}

func (s *latestStub) GetLatest(ctx context.Context) (*models.BanRecord, error) {
	s.calls++
	return s.record, s.err
}

func TestCursorAdvanceIsMonotonic(t *testing.T) {
	c := NewCursorAt(0)
	ctx := context.Background()

	c.Advance(5)
	c.Advance(3)
	got, err := c.Current(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 5, got)

	c.Advance(7)
	got, err = c.Current(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 7, got)
}

func TestCursorLazyInitialization(t *testing.T) {
	src := &latestStub{record: &models.BanRecord{ID: 50}}
	c := NewCursor(src)
	assert.False(t, c.Initialized())
	assert.Zero(t, src.calls)

	got, err := c.Current(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 50, got)
	assert.True(t, c.Initialized())

	_, err = c.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, src.calls)
}

func TestCursorEmptyStore(t *testing.T) {
	c := NewCursor(&latestStub{})
	got, err := c.Current(context.Background())
	require.NoError(t, err)
	assert.Zero(t, got)
}

func TestCursorInitFailureRetries(t *testing.T) {
	src := &latestStub{err: errors.New("connection refused")}
	c := NewCursor(src)

	_, err := c.Current(context.Background())
	assert.Error(t, err)
	assert.False(t, c.Initialized())

	src.err = nil
	src.record = &models.BanRecord{ID: 12}
	got, err := c.Current(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 12, got)
}

func TestCursorAdvanceBeforeInitKeepsHigherValue(t *testing.T) {
	c := NewCursor(&latestStub{record: &models.BanRecord{ID: 4}})
	c.Advance(9)

	got, err := c.Current(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 9, got)
}
