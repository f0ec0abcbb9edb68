package pagination

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type row struct {
	ID        string
	CreatedAt time.Time
}

func TestBuildCursorPageInfo(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	rows := []*row{
		{ID: "3", CreatedAt: now},
		{ID: "2", CreatedAt: now.Add(-time.Minute)},
		{ID: "1", CreatedAt: now.Add(-2 * time.Minute)},
	}
	extract := func(r *row) Cursor { return Cursor{ID: r.ID, CreatedAt: r.CreatedAt} }

	page, info, err := BuildCursorPageInfo(rows, 2, extract)
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.True(t, info.HasMore)

	cursor, err := DecodeCursor(info.NextPageToken)
	require.NoError(t, err)
	require.Equal(t, "2", cursor.ID)
	require.True(t, cursor.CreatedAt.Equal(now.Add(-time.Minute)))

	page, info, err = BuildCursorPageInfo(rows, 5, extract)
	require.NoError(t, err)
	require.Len(t, page, 3)
	require.False(t, info.HasMore)
	require.Empty(t, info.NextPageToken)
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	cursor, err := DecodeCursor("")
	require.NoError(t, err)
	require.Nil(t, cursor)

	_, err = DecodeCursor("%%%")
	require.ErrorIs(t, err, ErrInvalidPageToken)
}

func TestPaginationLimit(t *testing.T) {
	require.Equal(t, DefaultPageSize, Pagination{}.Limit())
	require.Equal(t, MaxPageSize, Pagination{PageSize: 1000}.Limit())
	require.Equal(t, 7, Pagination{PageSize: 7}.Limit())
}
