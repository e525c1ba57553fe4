package alerts

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleet_tracker/internal/models"
	"fleet_tracker/internal/store"
	"fleet_tracker/internal/testutil"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(store.New(testutil.OpenDB(t)).Queries())
}

func TestCreate(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	local := time.FixedZone("ICT", 7*3600)
	a, err := s.Create(ctx, Draft{
		DeviceID:  "DEV-1",
		Timestamp: time.Date(2025, 1, 1, 15, 0, 0, 0, local),
		Type:      models.AlertLowFuel,
		Message:   "15.0% remaining",
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, a.ID)
	assert.False(t, a.IsRead)
	assert.Equal(t, time.UTC, a.Timestamp.Location())
	assert.Equal(t, 8, a.Timestamp.Hour())

	list, err := s.ListUnread(ctx, "DEV-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, a.ID, list[0].ID)
	assert.Equal(t, models.AlertLowFuel, list[0].Type)
}

func TestListUnreadOrderAndIsolation(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	t0 := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		a, err := s.Create(ctx, Draft{DeviceID: "DEV-1", Timestamp: t0.Add(time.Duration(i) * time.Minute), Type: models.AlertErrorCode, Message: "m"})
		require.NoError(t, err)
		ids = append(ids, a.ID)
	}
	_, err := s.Create(ctx, Draft{DeviceID: "DEV-2", Timestamp: t0, Type: models.AlertLowFuel, Message: "m"})
	require.NoError(t, err)

	list, err := s.ListUnread(ctx, "DEV-1")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []uuid.UUID{ids[2], ids[1], ids[0]}, []uuid.UUID{list[0].ID, list[1].ID, list[2].ID})

	empty, err := s.ListUnread(ctx, "DEV-3")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestMarkRead(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	a, err := s.Create(ctx, Draft{DeviceID: "DEV-1", Timestamp: time.Now(), Type: models.AlertLowFuel, Message: "m"})
	require.NoError(t, err)

	t.Run("other device", func(t *testing.T) {
		assert.ErrorIs(t, s.MarkRead(ctx, a.ID, "DEV-2"), ErrNotFound)
	})

	t.Run("unknown id", func(t *testing.T) {
		assert.ErrorIs(t, s.MarkRead(ctx, uuid.New(), "DEV-1"), ErrNotFound)
	})

	t.Run("first and second time", func(t *testing.T) {
		require.NoError(t, s.MarkRead(ctx, a.ID, "DEV-1"))
		assert.ErrorIs(t, s.MarkRead(ctx, a.ID, "DEV-1"), ErrNotFound)

		list, err := s.ListUnread(ctx, "DEV-1")
		require.NoError(t, err)
		assert.Empty(t, list)
	})
}

func TestMarkReadByID(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	a, err := s.Create(ctx, Draft{DeviceID: "DEV-2", Timestamp: time.Now(), Type: models.AlertErrorCode, Message: "m"})
	require.NoError(t, err)

	assert.ErrorIs(t, s.MarkReadByID(ctx, uuid.New()), ErrNotFound)
	require.NoError(t, s.MarkReadByID(ctx, a.ID))
	assert.ErrorIs(t, s.MarkReadByID(ctx, a.ID), ErrNotFound)
	assert.ErrorIs(t, s.MarkRead(ctx, a.ID, "DEV-2"), ErrNotFound)

	list, err := s.ListUnread(ctx, "DEV-2")
	require.NoError(t, err)
	assert.Empty(t, list)
}
