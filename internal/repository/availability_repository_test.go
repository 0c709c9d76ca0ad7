package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muselane/studio-api/internal/models"
)

func windowRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "teacher_id", "day_of_week", "start_minute", "end_minute", "active", "created_at", "updated_at"}).
		AddRow("window-1", "teacher-1", 1, 540, 1020, true, time.Now(), time.Now())
}

func TestAvailabilityRepositoryListWindows(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAvailabilityRepository(db)

	mock.ExpectQuery("FROM availability_windows WHERE teacher_id = \\$1 AND active = TRUE").
		WithArgs("teacher-1").
		WillReturnRows(windowRows())

	windows, err := repo.ListWindows(context.Background(), "teacher-1")
	require.NoError(t, err)
	require.Len(t, windows, 1)
	assert.Equal(t, 540, windows[0].StartMinute)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAvailabilityRepositoryFindOverlappingWindows(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAvailabilityRepository(db)

	mock.ExpectQuery("start_minute < \\$4 AND end_minute > \\$3").
		WithArgs("teacher-1", 1, 600, 720).
		WillReturnRows(windowRows())

	windows, err := repo.FindOverlappingWindows(context.Background(), "teacher-1", 1, 600, 720, "")
	require.NoError(t, err)
	assert.Len(t, windows, 1)

	mock.ExpectQuery("start_minute < \\$4 AND end_minute > \\$3").
		WithArgs("teacher-1", 1, 600, 720, "window-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	windows, err = repo.FindOverlappingWindows(context.Background(), "teacher-1", 1, 600, 720, "window-1")
	require.NoError(t, err)
	assert.Empty(t, windows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAvailabilityRepositoryCreateWindow(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAvailabilityRepository(db)

	mock.ExpectExec("INSERT INTO availability_windows").WillReturnResult(sqlmock.NewResult(1, 1))

	window := &models.AvailabilityWindow{TeacherID: "teacher-1", DayOfWeek: 1, StartMinute: 540, EndMinute: 1020, Active: true}
	require.NoError(t, repo.CreateWindow(context.Background(), window))
	assert.NotEmpty(t, window.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAvailabilityRepositoryBlockedTimes(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAvailabilityRepository(db)

	start := time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Hour)

	rows := sqlmock.NewRows([]string{"id", "teacher_id", "start_at", "end_at", "reason", "timezone", "created_at"}).
		AddRow("blocked-1", "teacher-1", start, end, "dentist", "America/Chicago", time.Now())
	mock.ExpectQuery("FROM blocked_times WHERE teacher_id = \\$1 AND start_at < \\$3 AND end_at > \\$2").
		WithArgs("teacher-1", start, end).
		WillReturnRows(rows)

	blocked, err := repo.FindBlockedIntersecting(context.Background(), "teacher-1", start, end)
	require.NoError(t, err)
	require.Len(t, blocked, 1)
	assert.Equal(t, "blocked-1", blocked[0].ID)
	assert.Equal(t, "America/Chicago", blocked[0].Timezone)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM blocked_times WHERE id = $1")).
		WithArgs("blocked-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.DeleteBlockedTime(context.Background(), "blocked-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
