package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muselane/studio-api/internal/models"
	appErrors "github.com/muselane/studio-api/pkg/errors"
)

type mockAvailabilityRepo struct {
	windows       []models.AvailabilityWindow
	blocked       []models.BlockedTime
	overlapping   []models.AvailabilityWindow
	createdWindow *models.AvailabilityWindow
	updatedWindow *models.AvailabilityWindow
	deletedWindow string
	createdBlock  *models.BlockedTime
	deletedBlock  string
}

func (m *mockAvailabilityRepo) ListWindows(ctx context.Context, teacherID string) ([]models.AvailabilityWindow, error) {
	return m.windows, nil
}

func (m *mockAvailabilityRepo) FindWindowByID(ctx context.Context, id string) (*models.AvailabilityWindow, error) {
	for _, w := range m.windows {
		if w.ID == id {
			return &w, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAvailabilityRepo) FindOverlappingWindows(ctx context.Context, teacherID string, dayOfWeek, startMinute, endMinute int, excludeID string) ([]models.AvailabilityWindow, error) {
	return m.overlapping, nil
}

func (m *mockAvailabilityRepo) CreateWindow(ctx context.Context, window *models.AvailabilityWindow) error {
	window.ID = "w-new"
	m.createdWindow = window
	return nil
}

func (m *mockAvailabilityRepo) UpdateWindow(ctx context.Context, window *models.AvailabilityWindow) error {
	m.updatedWindow = window
	return nil
}

func (m *mockAvailabilityRepo) DeleteWindow(ctx context.Context, id string) error {
	m.deletedWindow = id
	return nil
}

func (m *mockAvailabilityRepo) ListBlockedTimes(ctx context.Context, teacherID string, from, to time.Time) ([]models.BlockedTime, error) {
	return m.blocked, nil
}

func (m *mockAvailabilityRepo) FindBlockedIntersecting(ctx context.Context, teacherID string, startAt, endAt time.Time) ([]models.BlockedTime, error) {
	var hits []models.BlockedTime
	for _, b := range m.blocked {
		if b.StartAt.Before(endAt) && b.EndAt.After(startAt) {
			hits = append(hits, b)
		}
	}
	return hits, nil
}

func (m *mockAvailabilityRepo) FindBlockedByID(ctx context.Context, id string) (*models.BlockedTime, error) {
	for _, b := range m.blocked {
		if b.ID == id {
			return &b, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAvailabilityRepo) CreateBlockedTime(ctx context.Context, blocked *models.BlockedTime) error {
	blocked.ID = "b-new"
	m.createdBlock = blocked
	return nil
}

func (m *mockAvailabilityRepo) DeleteBlockedTime(ctx context.Context, id string) error {
	m.deletedBlock = id
	return nil
}

type mockTeacherFinder struct {
	teachers map[string]*models.Teacher
}

func (m *mockTeacherFinder) FindByID(ctx context.Context, id string) (*models.Teacher, error) {
	if teacher, ok := m.teachers[id]; ok {
		return teacher, nil
	}
	return nil, sql.ErrNoRows
}

func chicagoTeacherFinder() *mockTeacherFinder {
	return &mockTeacherFinder{teachers: map[string]*models.Teacher{
		"t1": {ID: "t1", Email: "t1@example.com", FullName: "Toni Reyes", Timezone: "America/Chicago", Active: true},
	}}
}

// mondayWindow covers 09:00-17:00 local on Mondays.
func mondayWindow() models.AvailabilityWindow {
	return models.AvailabilityWindow{ID: "w1", TeacherID: "t1", DayOfWeek: 1, StartMinute: 540, EndMinute: 1020, Active: true}
}

func TestAvailabilityServiceCheckSlotBoundaries(t *testing.T) {
	repo := &mockAvailabilityRepo{windows: []models.AvailabilityWindow{mondayWindow()}}
	svc := NewAvailabilityService(repo, chicagoTeacherFinder(), nil, "UTC", time.Minute, nil, nil)

	// 2026-06-01 is a Monday; 14:00 UTC is 09:00 CDT, the window's start.
	mondayOpen := time.Date(2026, 6, 1, 14, 0, 0, 0, time.UTC)
	require.NoError(t, svc.CheckSlot(context.Background(), "t1", mondayOpen, 30))

	// The window's end minute itself is not bookable.
	mondayClose := time.Date(2026, 6, 1, 22, 0, 0, 0, time.UTC) // 17:00 CDT
	err := svc.CheckSlot(context.Background(), "t1", mondayClose, 30)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrOutsideAvailability.Code, appErrors.FromError(err).Code)

	// Containment is start-only: a lesson starting inside may run past the end.
	mondayLate := time.Date(2026, 6, 1, 21, 45, 0, 0, time.UTC) // 16:45 CDT
	require.NoError(t, svc.CheckSlot(context.Background(), "t1", mondayLate, 30))
}

func TestAvailabilityServiceCheckSlotWrongDay(t *testing.T) {
	repo := &mockAvailabilityRepo{windows: []models.AvailabilityWindow{mondayWindow()}}
	svc := NewAvailabilityService(repo, chicagoTeacherFinder(), nil, "UTC", time.Minute, nil, nil)

	// Tuesday 08:00 CDT has no covering window.
	tuesday := time.Date(2026, 6, 2, 13, 0, 0, 0, time.UTC)
	err := svc.CheckSlot(context.Background(), "t1", tuesday, 30)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrOutsideAvailability.Code, appErrors.FromError(err).Code)
}

func TestAvailabilityServiceCheckSlotBlockedTime(t *testing.T) {
	start := time.Date(2026, 6, 1, 15, 0, 0, 0, time.UTC)
	repo := &mockAvailabilityRepo{
		windows: []models.AvailabilityWindow{mondayWindow()},
		blocked: []models.BlockedTime{{
			ID:        "b1",
			TeacherID: "t1",
			StartAt:   start.Add(-time.Hour),
			EndAt:     start.Add(time.Hour),
			Timezone:  "America/Chicago",
		}},
	}
	svc := NewAvailabilityService(repo, chicagoTeacherFinder(), nil, "UTC", time.Minute, nil, nil)

	err := svc.CheckSlot(context.Background(), "t1", start, 30)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrBlockedTime.Code, appErrors.FromError(err).Code)
}

func TestAvailabilityServiceTimezoneDefaultApplied(t *testing.T) {
	finder := &mockTeacherFinder{teachers: map[string]*models.Teacher{
		"t2": {ID: "t2", Email: "t2@example.com", FullName: "No Zone", Active: true},
	}}
	svc := NewAvailabilityService(&mockAvailabilityRepo{}, finder, nil, "Europe/Berlin", time.Minute, nil, nil)

	zone, err := svc.TimezoneFor(context.Background(), "t2")
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", zone)
}

func TestAvailabilityServiceTimezoneInvalid(t *testing.T) {
	finder := &mockTeacherFinder{teachers: map[string]*models.Teacher{
		"t3": {ID: "t3", Email: "t3@example.com", FullName: "Bad Zone", Timezone: "Mars/Olympus", Active: true},
	}}
	svc := NewAvailabilityService(&mockAvailabilityRepo{}, finder, nil, "UTC", time.Minute, nil, nil)

	_, err := svc.TimezoneFor(context.Background(), "t3")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAvailabilityServiceTimezoneUnknownTeacher(t *testing.T) {
	svc := NewAvailabilityService(&mockAvailabilityRepo{}, chicagoTeacherFinder(), nil, "UTC", time.Minute, nil, nil)

	_, err := svc.TimezoneFor(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestAvailabilityServiceCreateWindow(t *testing.T) {
	repo := &mockAvailabilityRepo{}
	svc := NewAvailabilityService(repo, chicagoTeacherFinder(), nil, "UTC", time.Minute, nil, nil)

	window, err := svc.CreateWindow(context.Background(), teacherClaims("t1"), "t1", CreateWindowRequest{
		DayOfWeek: 1,
		Start:     "09:00",
		End:       "17:00",
	})
	require.NoError(t, err)
	assert.Equal(t, 540, window.StartMinute)
	assert.Equal(t, 1020, window.EndMinute)
	assert.True(t, window.Active)
	require.NotNil(t, repo.createdWindow)
}

func TestAvailabilityServiceCreateWindowOverlapRejected(t *testing.T) {
	repo := &mockAvailabilityRepo{overlapping: []models.AvailabilityWindow{mondayWindow()}}
	svc := NewAvailabilityService(repo, chicagoTeacherFinder(), nil, "UTC", time.Minute, nil, nil)

	_, err := svc.CreateWindow(context.Background(), teacherClaims("t1"), "t1", CreateWindowRequest{
		DayOfWeek: 1,
		Start:     "10:00",
		End:       "12:00",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Nil(t, repo.createdWindow)
}

func TestAvailabilityServiceCreateWindowInvalidBounds(t *testing.T) {
	svc := NewAvailabilityService(&mockAvailabilityRepo{}, chicagoTeacherFinder(), nil, "UTC", time.Minute, nil, nil)

	_, err := svc.CreateWindow(context.Background(), teacherClaims("t1"), "t1", CreateWindowRequest{
		DayOfWeek: 1,
		Start:     "17:00",
		End:       "09:00",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAvailabilityServiceUpdateWindowWrongTeacher(t *testing.T) {
	repo := &mockAvailabilityRepo{windows: []models.AvailabilityWindow{mondayWindow()}}
	svc := NewAvailabilityService(repo, &mockTeacherFinder{teachers: map[string]*models.Teacher{
		"t2": {ID: "t2", Email: "t2@example.com", FullName: "Other", Timezone: "America/Chicago", Active: true},
	}}, nil, "UTC", time.Minute, nil, nil)

	_, err := svc.UpdateWindow(context.Background(), teacherClaims("t2"), "t2", "w1", CreateWindowRequest{
		DayOfWeek: 1,
		Start:     "10:00",
		End:       "12:00",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestAvailabilityServiceCreateBlockedTimeValidation(t *testing.T) {
	svc := NewAvailabilityService(&mockAvailabilityRepo{}, chicagoTeacherFinder(), nil, "UTC", time.Minute, nil, nil)

	start := time.Date(2026, 6, 1, 15, 0, 0, 0, time.UTC)
	_, err := svc.CreateBlockedTime(context.Background(), teacherClaims("t1"), "t1", CreateBlockedTimeRequest{
		StartAt: start,
		EndAt:   start.Add(-time.Hour),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAvailabilityServiceCreateBlockedTimeStampsZone(t *testing.T) {
	repo := &mockAvailabilityRepo{}
	svc := NewAvailabilityService(repo, chicagoTeacherFinder(), nil, "UTC", time.Minute, nil, nil)

	start := time.Date(2026, 6, 1, 15, 0, 0, 0, time.UTC)
	blocked, err := svc.CreateBlockedTime(context.Background(), teacherClaims("t1"), "t1", CreateBlockedTimeRequest{
		StartAt: start,
		EndAt:   start.Add(2 * time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, "America/Chicago", blocked.Timezone)
	require.NotNil(t, repo.createdBlock)
}

func TestAvailabilityServiceGetTeacherAvailability(t *testing.T) {
	repo := &mockAvailabilityRepo{windows: []models.AvailabilityWindow{mondayWindow()}}
	svc := NewAvailabilityService(repo, chicagoTeacherFinder(), nil, "UTC", time.Minute, nil, nil)

	availability, cacheHit, err := svc.GetTeacherAvailability(context.Background(), "t1", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.False(t, cacheHit)
	assert.Equal(t, "America/Chicago", availability.Timezone)
	assert.Len(t, availability.Windows, 1)
}
