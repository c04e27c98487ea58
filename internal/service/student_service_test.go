package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bennet-campus/campus-api/internal/models"
	appErrors "github.com/bennet-campus/campus-api/pkg/errors"
)

type mockStudentRepo struct {
	students map[string]*models.Student
	byEmail  map[string]string
}

func newMockStudentRepo() *mockStudentRepo {
	return &mockStudentRepo{students: make(map[string]*models.Student), byEmail: make(map[string]string)}
}

func (m *mockStudentRepo) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	var out []models.Student
	for _, student := range m.students {
		out = append(out, *student)
	}
	return out, len(out), nil
}

func (m *mockStudentRepo) FindByID(ctx context.Context, id string) (*models.Student, error) {
	student, ok := m.students[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *student
	return &copied, nil
}

func (m *mockStudentRepo) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = fmt.Sprintf("stu-%d", len(m.students)+1)
	}
	copied := *student
	m.students[student.ID] = &copied
	m.byEmail[student.Email] = student.ID
	return nil
}

func (m *mockStudentRepo) Update(ctx context.Context, student *models.Student) error {
	if _, ok := m.students[student.ID]; !ok {
		return sql.ErrNoRows
	}
	copied := *student
	m.students[student.ID] = &copied
	return nil
}

func (m *mockStudentRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.students[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.students, id)
	return nil
}

func (m *mockStudentRepo) BulkInsert(ctx context.Context, students []models.Student) ([]models.StudentImportConflict, error) {
	var conflicts []models.StudentImportConflict
	for i := range students {
		if _, taken := m.byEmail[students[i].Email]; taken {
			conflicts = append(conflicts, models.StudentImportConflict{Email: students[i].Email, Reason: "email already exists"})
			continue
		}
		student := students[i]
		_ = m.Create(ctx, &student)
	}
	return conflicts, nil
}

func validStudentRequest(email string) StudentRequest {
	return StudentRequest{Email: email, FullName: "Student", RollNumber: "R-1", Department: "CSE", Year: 2}
}

func TestStudentServiceCreateRequiresAuthority(t *testing.T) {
	svc := NewStudentService(newMockStudentRepo(), validator.New(), zap.NewNop())

	_, err := svc.Create(context.Background(), validStudentRequest("s@campus.edu"), studentClaims("s1"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestStudentServiceCreateRejectsBadEmail(t *testing.T) {
	svc := NewStudentService(newMockStudentRepo(), validator.New(), zap.NewNop())

	req := validStudentRequest("not-an-email")
	_, err := svc.Create(context.Background(), req, adminClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestStudentServiceCRUD(t *testing.T) {
	repo := newMockStudentRepo()
	svc := NewStudentService(repo, validator.New(), zap.NewNop())

	student, err := svc.Create(context.Background(), validStudentRequest("s@campus.edu"), adminClaims())
	require.NoError(t, err)
	assert.NotEmpty(t, student.ID)

	req := validStudentRequest("s@campus.edu")
	req.Year = 3
	updated, err := svc.Update(context.Background(), student.ID, req, adminClaims())
	require.NoError(t, err)
	assert.Equal(t, 3, updated.Year)

	require.NoError(t, svc.Delete(context.Background(), student.ID, adminClaims()))
	_, err = svc.Get(context.Background(), student.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestStudentServiceImportReportsConflicts(t *testing.T) {
	repo := newMockStudentRepo()
	svc := NewStudentService(repo, validator.New(), zap.NewNop())
	_, err := svc.Create(context.Background(), validStudentRequest("dup@campus.edu"), adminClaims())
	require.NoError(t, err)

	summary, err := svc.Import(context.Background(), ImportRequest{Students: []StudentRequest{
		validStudentRequest("dup@campus.edu"),
		validStudentRequest("new@campus.edu"),
	}}, adminClaims())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Imported)
	require.Len(t, summary.Conflicts, 1)
	assert.Equal(t, "dup@campus.edu", summary.Conflicts[0].Email)
}

func TestStudentServiceImportRejectsEmptyBatch(t *testing.T) {
	svc := NewStudentService(newMockStudentRepo(), validator.New(), zap.NewNop())

	_, err := svc.Import(context.Background(), ImportRequest{}, adminClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
