package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muselane/studio-api/internal/models"
	appErrors "github.com/muselane/studio-api/pkg/errors"
)

type mockSettingsRepo struct {
	settings map[string]*models.LessonSettings
	upserted *models.LessonSettings
}

func (m *mockSettingsRepo) Get(ctx context.Context, teacherID string) (*models.LessonSettings, error) {
	if settings, ok := m.settings[teacherID]; ok {
		copied := *settings
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockSettingsRepo) Upsert(ctx context.Context, settings *models.LessonSettings) error {
	m.upserted = settings
	return nil
}

func TestSettingsServiceUpsertStoresPricing(t *testing.T) {
	repo := &mockSettingsRepo{}
	teachers := &mockTeacherRepo{teachers: map[string]*models.Teacher{"t1": chicagoTeacher("t1")}}
	svc := NewSettingsService(repo, teachers, nil, nil)

	settings, err := svc.Upsert(context.Background(), teacherClaims("t1"), "t1", UpsertLessonSettingsRequest{
		Price30Min: 3000,
		Price60Min: 5500,
		Currency:   "USD",
	})
	require.NoError(t, err)
	assert.Equal(t, "t1", settings.TeacherID)
	assert.Equal(t, int64(3000), settings.Price30Min)
	assert.Equal(t, int64(5500), settings.Price60Min)
	assert.Equal(t, "USD", settings.Currency)
	assert.False(t, settings.UpdatedAt.IsZero())
	require.NotNil(t, repo.upserted)
}

func TestSettingsServiceUpsertValidatesPricing(t *testing.T) {
	repo := &mockSettingsRepo{}
	teachers := &mockTeacherRepo{teachers: map[string]*models.Teacher{"t1": chicagoTeacher("t1")}}
	svc := NewSettingsService(repo, teachers, nil, nil)

	cases := []UpsertLessonSettingsRequest{
		{Price30Min: 0, Price60Min: 5500, Currency: "USD"},
		{Price30Min: 3000, Price60Min: -100, Currency: "USD"},
		{Price30Min: 3000, Price60Min: 5500, Currency: "usd"},
		{Price30Min: 3000, Price60Min: 5500, Currency: "DOLLARS"},
	}
	for _, req := range cases {
		_, err := svc.Upsert(context.Background(), teacherClaims("t1"), "t1", req)
		require.Error(t, err, "request %+v", req)
		assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	}
	assert.Nil(t, repo.upserted)
}

func TestSettingsServiceUpsertTeacherNotFound(t *testing.T) {
	svc := NewSettingsService(&mockSettingsRepo{}, &mockTeacherRepo{}, nil, nil)

	_, err := svc.Upsert(context.Background(), adminClaims(), "missing", UpsertLessonSettingsRequest{
		Price30Min: 3000,
		Price60Min: 5500,
		Currency:   "USD",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestSettingsServiceUpsertScopedToOwner(t *testing.T) {
	teachers := &mockTeacherRepo{teachers: map[string]*models.Teacher{"t1": chicagoTeacher("t1")}}
	svc := NewSettingsService(&mockSettingsRepo{}, teachers, nil, nil)

	_, err := svc.Upsert(context.Background(), teacherClaims("t2"), "t1", UpsertLessonSettingsRequest{
		Price30Min: 3000,
		Price60Min: 5500,
		Currency:   "USD",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestSettingsServiceGetMissingSettings(t *testing.T) {
	teachers := &mockTeacherRepo{teachers: map[string]*models.Teacher{"t1": chicagoTeacher("t1")}}
	svc := NewSettingsService(&mockSettingsRepo{}, teachers, nil, nil)

	_, err := svc.Get(context.Background(), teacherClaims("t1"), "t1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestSettingsServiceGetReturnsPricing(t *testing.T) {
	repo := &mockSettingsRepo{settings: map[string]*models.LessonSettings{
		"t1": {TeacherID: "t1", Price30Min: 3000, Price60Min: 5500, Currency: "USD"},
	}}
	svc := NewSettingsService(repo, &mockTeacherRepo{}, nil, nil)

	settings, err := svc.Get(context.Background(), teacherClaims("t1"), "t1")
	require.NoError(t, err)
	assert.Equal(t, int64(5500), settings.Price60Min)
}
