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

const rosterTeacherID = "3f2c1d9e-8b7a-4c6d-9e5f-1a2b3c4d5e6f"

type mockStudentRepo struct {
	students    map[string]*models.Student
	takenEmails map[string]bool
	lastFilter  models.StudentFilter
	created     *models.Student
	updated     *models.Student
	deactivated []string
}

func (m *mockStudentRepo) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	m.lastFilter = filter
	var list []models.Student
	for _, student := range m.students {
		if filter.TeacherID != "" && student.TeacherID != filter.TeacherID {
			continue
		}
		list = append(list, *student)
	}
	return list, len(list), nil
}

func (m *mockStudentRepo) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if student, ok := m.students[id]; ok {
		copied := *student
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentRepo) ExistsByEmail(ctx context.Context, teacherID, email, excludeID string) (bool, error) {
	return m.takenEmails[email], nil
}

func (m *mockStudentRepo) Create(ctx context.Context, student *models.Student) error {
	student.ID = "s-new"
	m.created = student
	return nil
}

func (m *mockStudentRepo) Update(ctx context.Context, student *models.Student) error {
	m.updated = student
	return nil
}

func (m *mockStudentRepo) Deactivate(ctx context.Context, id string) error {
	m.deactivated = append(m.deactivated, id)
	return nil
}

func rosterStudent(id string) *models.Student {
	return &models.Student{
		ID:        id,
		TeacherID: rosterTeacherID,
		Email:     "mia@example.com",
		FullName:  "Mia Torres",
		Active:    true,
	}
}

func rosterTeacherStore() *mockTeacherRepo {
	return &mockTeacherRepo{teachers: map[string]*models.Teacher{rosterTeacherID: chicagoTeacher(rosterTeacherID)}}
}

func TestStudentServiceCreateOnRoster(t *testing.T) {
	repo := &mockStudentRepo{}
	svc := NewStudentService(repo, rosterTeacherStore(), nil, nil)

	student, err := svc.Create(context.Background(), teacherClaims(rosterTeacherID), CreateStudentRequest{
		TeacherID: rosterTeacherID,
		Email:     " Mia@Example.COM ",
		FullName:  "Mia Torres",
	})
	require.NoError(t, err)
	assert.Equal(t, "mia@example.com", student.Email)
	assert.True(t, student.Active)
	assert.Equal(t, rosterTeacherID, student.TeacherID)
	require.NotNil(t, repo.created)
}

func TestStudentServiceCreateDuplicateEmailOnRoster(t *testing.T) {
	repo := &mockStudentRepo{takenEmails: map[string]bool{"mia@example.com": true}}
	svc := NewStudentService(repo, rosterTeacherStore(), nil, nil)

	_, err := svc.Create(context.Background(), teacherClaims(rosterTeacherID), CreateStudentRequest{
		TeacherID: rosterTeacherID,
		Email:     "mia@example.com",
		FullName:  "Mia Torres",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Nil(t, repo.created)
}

func TestStudentServiceCreateForOtherTeacherForbidden(t *testing.T) {
	svc := NewStudentService(&mockStudentRepo{}, rosterTeacherStore(), nil, nil)

	_, err := svc.Create(context.Background(), teacherClaims("t-other"), CreateStudentRequest{
		TeacherID: rosterTeacherID,
		Email:     "mia@example.com",
		FullName:  "Mia Torres",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestStudentServiceListForcesTeacherScope(t *testing.T) {
	repo := &mockStudentRepo{students: map[string]*models.Student{"s1": rosterStudent("s1")}}
	svc := NewStudentService(repo, rosterTeacherStore(), nil, nil)

	students, pagination, err := svc.List(context.Background(), teacherClaims(rosterTeacherID), models.StudentFilter{TeacherID: "someone-else"})
	require.NoError(t, err)
	assert.Equal(t, rosterTeacherID, repo.lastFilter.TeacherID)
	assert.Len(t, students, 1)
	assert.Equal(t, 1, pagination.TotalCount)

	_, _, err = svc.List(context.Background(), studentClaims("s1"), models.StudentFilter{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestStudentServiceGetSelfAccess(t *testing.T) {
	repo := &mockStudentRepo{students: map[string]*models.Student{"s1": rosterStudent("s1")}}
	svc := NewStudentService(repo, rosterTeacherStore(), nil, nil)

	student, err := svc.Get(context.Background(), studentClaims("s1"), "s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", student.ID)

	_, err = svc.Get(context.Background(), studentClaims("s2"), "s1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestStudentServiceUpdateKeepsRosterEmailUnique(t *testing.T) {
	repo := &mockStudentRepo{
		students:    map[string]*models.Student{"s1": rosterStudent("s1")},
		takenEmails: map[string]bool{"taken@example.com": true},
	}
	svc := NewStudentService(repo, rosterTeacherStore(), nil, nil)

	email := "taken@example.com"
	_, err := svc.Update(context.Background(), teacherClaims(rosterTeacherID), "s1", UpdateStudentRequest{Email: &email})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Nil(t, repo.updated)
}

func TestStudentServiceDeactivate(t *testing.T) {
	repo := &mockStudentRepo{students: map[string]*models.Student{"s1": rosterStudent("s1")}}
	svc := NewStudentService(repo, rosterTeacherStore(), nil, nil)

	require.NoError(t, svc.Deactivate(context.Background(), teacherClaims(rosterTeacherID), "s1"))
	assert.Equal(t, []string{"s1"}, repo.deactivated)
}
