package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muselane/studio-api/internal/models"
	appErrors "github.com/muselane/studio-api/pkg/errors"
)

func TestBookingRepositoryCreateSingleLesson(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	start := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)
	lesson := &models.Lesson{TeacherID: "teacher-1", StudentID: "student-1", StartAt: start, DurationMinutes: 60, Price: 5000}

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").
		WithArgs("teacher-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("start_at < \\$3 AND start_at \\+ make_interval").
		WithArgs("teacher-1", start, start.Add(time.Hour)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectExec("INSERT INTO lessons").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.CreateSingleLesson(context.Background(), lesson))
	assert.NotEmpty(t, lesson.ID)
	assert.Equal(t, models.LessonStatusScheduled, lesson.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryCreateSingleLessonConflict(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	start := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)
	lesson := &models.Lesson{TeacherID: "teacher-1", StudentID: "student-1", StartAt: start, DurationMinutes: 60, Price: 5000}

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").
		WithArgs("teacher-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("start_at < \\$3 AND start_at \\+ make_interval").
		WithArgs("teacher-1", start, start.Add(time.Hour)).
		WillReturnRows(lessonRows("existing-lesson", start.Add(-30*time.Minute)))
	mock.ExpectRollback()

	err := repo.CreateSingleLesson(context.Background(), lesson)
	require.ErrorIs(t, err, appErrors.ErrLessonConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryCreateRecurringBooking(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	slot := &models.RecurringSlot{
		TeacherID:       "teacher-1",
		StudentID:       "student-1",
		DayOfWeek:       1,
		StartMinute:     900,
		DurationMinutes: 60,
		Price:           5000,
		Timezone:        "America/Chicago",
		Status:          models.RecurringSlotStatusActive,
	}
	first := time.Date(2026, 3, 2, 21, 0, 0, 0, time.UTC)
	lessons := []models.Lesson{
		{TeacherID: "teacher-1", StudentID: "student-1", StartAt: first, DurationMinutes: 60, Recurring: true, Price: 5000},
		{TeacherID: "teacher-1", StudentID: "student-1", StartAt: first.AddDate(0, 0, 7), DurationMinutes: 60, Recurring: true, Price: 5000},
	}

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").
		WithArgs("teacher-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM recurring_slots").
		WithArgs("teacher-1", 1, 900, 60).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec("INSERT INTO recurring_slots").WillReturnResult(sqlmock.NewResult(1, 1))
	// First occurrence inserts unconditionally after its conflict re-check.
	mock.ExpectQuery("start_at < \\$3 AND start_at \\+ make_interval").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectExec("INSERT INTO lessons").WillReturnResult(sqlmock.NewResult(1, 1))
	// Second occurrence takes the skip-on-conflict path.
	mock.ExpectQuery("start_at < \\$3 AND start_at \\+ make_interval").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectExec("INSERT INTO lessons").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	created, err := repo.CreateRecurringBooking(context.Background(), slot, lessons)
	require.NoError(t, err)
	assert.Equal(t, 2, created)
	assert.NotEmpty(t, slot.ID)
	require.NotNil(t, lessons[0].RecurringSlotID)
	assert.Equal(t, slot.ID, *lessons[0].RecurringSlotID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryCreateRecurringBookingDuplicateTuple(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	slot := &models.RecurringSlot{
		TeacherID:       "teacher-1",
		StudentID:       "student-1",
		DayOfWeek:       1,
		StartMinute:     900,
		DurationMinutes: 60,
		Timezone:        "America/Chicago",
		Status:          models.RecurringSlotStatusActive,
	}

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").
		WithArgs("teacher-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM recurring_slots").
		WithArgs("teacher-1", 1, 900, 60).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectRollback()

	_, err := repo.CreateRecurringBooking(context.Background(), slot, nil)
	require.ErrorIs(t, err, appErrors.ErrDuplicateRecurringSlot)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryRecurringSkipsCollidingOccurrence(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	slot := &models.RecurringSlot{
		TeacherID:       "teacher-1",
		StudentID:       "student-1",
		DayOfWeek:       1,
		StartMinute:     900,
		DurationMinutes: 60,
		Timezone:        "America/Chicago",
		Status:          models.RecurringSlotStatusActive,
	}
	first := time.Date(2026, 3, 2, 21, 0, 0, 0, time.UTC)
	lessons := []models.Lesson{
		{TeacherID: "teacher-1", StudentID: "student-1", StartAt: first, DurationMinutes: 60, Recurring: true, Price: 5000},
		{TeacherID: "teacher-1", StudentID: "student-1", StartAt: first.AddDate(0, 0, 7), DurationMinutes: 60, Recurring: true, Price: 5000},
	}

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").
		WithArgs("teacher-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM recurring_slots").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec("INSERT INTO recurring_slots").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery("start_at < \\$3 AND start_at \\+ make_interval").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectExec("INSERT INTO lessons").WillReturnResult(sqlmock.NewResult(1, 1))
	// Second occurrence lands on an existing lesson and is skipped.
	mock.ExpectQuery("start_at < \\$3 AND start_at \\+ make_interval").
		WillReturnRows(lessonRows("existing-lesson", first.AddDate(0, 0, 7)))
	mock.ExpectCommit()

	created, err := repo.CreateRecurringBooking(context.Background(), slot, lessons)
	require.NoError(t, err)
	assert.Equal(t, 1, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}
