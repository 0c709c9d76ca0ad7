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

func lessonRows(id string, start time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "teacher_id", "student_id", "recurring_slot_id", "start_at", "duration_minutes", "status", "recurring", "price", "notes", "created_at", "updated_at"}).
		AddRow(id, "teacher-1", "student-1", nil, start, 60, "SCHEDULED", false, int64(5000), nil, time.Now(), time.Now())
}

func TestLessonRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLessonRepository(db)

	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT id, teacher_id, student_id, recurring_slot_id").
		WithArgs("teacher-1", "SCHEDULED", from).
		WillReturnRows(lessonRows("lesson-1", from.Add(10*time.Hour)))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM lessons")).
		WithArgs("teacher-1", "SCHEDULED", from).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	lessons, total, err := repo.List(context.Background(), models.LessonFilter{
		TeacherID: "teacher-1",
		Status:    models.LessonStatusScheduled,
		From:      &from,
	})
	require.NoError(t, err)
	assert.Len(t, lessons, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLessonRepositoryFindConflicting(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLessonRepository(db)

	start := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)
	end := start.Add(60 * time.Minute)

	mock.ExpectQuery("start_at < \\$3 AND start_at \\+ make_interval").
		WithArgs("teacher-1", start, end).
		WillReturnRows(lessonRows("lesson-1", start.Add(-30*time.Minute)))

	conflict, err := repo.FindConflicting(context.Background(), "teacher-1", start, end)
	require.NoError(t, err)
	require.NotNil(t, conflict)
	assert.Equal(t, "lesson-1", conflict.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLessonRepositoryFindConflictingNone(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLessonRepository(db)

	start := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)
	mock.ExpectQuery("start_at < \\$3 AND start_at \\+ make_interval").
		WithArgs("teacher-1", start, start.Add(time.Hour)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	conflict, err := repo.FindConflicting(context.Background(), "teacher-1", start, start.Add(time.Hour))
	require.NoError(t, err)
	assert.Nil(t, conflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLessonRepositoryMaxStartBySlot(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLessonRepository(db)

	last := time.Date(2026, 4, 6, 18, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT MAX(start_at) FROM lessons WHERE recurring_slot_id = $1")).
		WithArgs("slot-1").
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(last))

	got, err := repo.MaxStartBySlot(context.Background(), "slot-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Equal(last))

	mock.ExpectQuery(regexp.QuoteMeta("SELECT MAX(start_at) FROM lessons WHERE recurring_slot_id = $1")).
		WithArgs("slot-2").
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(nil))

	got, err = repo.MaxStartBySlot(context.Background(), "slot-2")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLessonRepositoryBulkInsertSkipConflicts(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLessonRepository(db)

	slotID := "slot-1"
	lessons := []models.Lesson{
		{TeacherID: "teacher-1", StudentID: "student-1", RecurringSlotID: &slotID, StartAt: time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC), DurationMinutes: 60, Status: models.LessonStatusScheduled, Recurring: true, Price: 5000},
		{TeacherID: "teacher-1", StudentID: "student-1", RecurringSlotID: &slotID, StartAt: time.Date(2026, 3, 9, 15, 0, 0, 0, time.UTC), DurationMinutes: 60, Status: models.LessonStatusScheduled, Recurring: true, Price: 5000},
	}

	mock.ExpectExec("INSERT INTO lessons").WillReturnResult(sqlmock.NewResult(1, 1))
	// Second row collides and the ON CONFLICT clause swallows it.
	mock.ExpectExec("INSERT INTO lessons").WillReturnResult(sqlmock.NewResult(0, 0))

	inserted, err := repo.BulkInsertSkipConflicts(context.Background(), lessons)
	require.NoError(t, err)
	assert.Equal(t, 1, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}
