package users

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const aliceUUID = "8f14e45f-ceea-467a-9575-1b2c5d1f0a11"

type mockUserRepository struct {
	mock.Mock
}

func (m *mockUserRepository) CreateUser(ctx context.Context, name, email, role, profilePicURL string) (User, error) {
	args := m.Called(ctx, name, email, role, profilePicURL)
	user, _ := args.Get(0).(User)
	return user, args.Error(1)
}

func (m *mockUserRepository) UpdateUserByUUID(ctx context.Context, uuid string, u User) (User, error) {
	args := m.Called(ctx, uuid, u)
	user, _ := args.Get(0).(User)
	return user, args.Error(1)
}

func (m *mockUserRepository) GetUserByUUID(ctx context.Context, uuid string) (User, error) {
	args := m.Called(ctx, uuid)
	user, _ := args.Get(0).(User)
	return user, args.Error(1)
}

func (m *mockUserRepository) GetUserByEmail(ctx context.Context, email string) (User, error) {
	args := m.Called(ctx, email)
	user, _ := args.Get(0).(User)
	return user, args.Error(1)
}

func (m *mockUserRepository) ListUsers(ctx context.Context, role string, limit, offset int) ([]User, int64, error) {
	args := m.Called(ctx, role, limit, offset)
	users, _ := args.Get(0).([]User)
	return users, args.Get(1).(int64), args.Error(2)
}

func (m *mockUserRepository) ListEmailsByRole(ctx context.Context, role string) ([]string, error) {
	args := m.Called(ctx, role)
	emails, _ := args.Get(0).([]string)
	return emails, args.Error(1)
}

func TestUserService_CreateUser_InvalidRole(t *testing.T) {
	repo := new(mockUserRepository)
	service := NewUserService(repo)

	_, err := service.CreateUser(context.Background(), "Name", "a@example.com", "founder", "")

	require.ErrorIs(t, err, ErrInvalidRole)
	repo.AssertExpectations(t)
}

func TestUserService_CreateUser_DefaultsToStudent(t *testing.T) {
	repo := new(mockUserRepository)
	service := NewUserService(repo)

	repo.On("CreateUser", mock.Anything, "Alice", "alice@example.com", RoleStudent, "").
		Return(User{ID: 1, Name: "Alice", Role: RoleStudent}, nil)

	u, err := service.CreateUser(context.Background(), " Alice ", "Alice@Example.com", "", "")

	require.NoError(t, err)
	require.Equal(t, RoleStudent, u.Role)
	repo.AssertExpectations(t)
}

func TestUserService_CreateUser_DuplicateEmail(t *testing.T) {
	repo := new(mockUserRepository)
	service := NewUserService(repo)

	repo.On("CreateUser", mock.Anything, "Name", "a@example.com", RoleMentor, "").Return(User{}, &pgconn.PgError{Code: "23505"})

	_, err := service.CreateUser(context.Background(), "Name", "a@example.com", RoleMentor, "")

	require.ErrorIs(t, err, ErrEmailTaken)
	repo.AssertExpectations(t)
}

func TestUserService_CreateUser_RepoError(t *testing.T) {
	repo := new(mockUserRepository)
	service := NewUserService(repo)

	repo.On("CreateUser", mock.Anything, "Name", "a@example.com", RoleStudent, "").Return(User{}, errors.New("db down"))

	_, err := service.CreateUser(context.Background(), "Name", "a@example.com", RoleStudent, "")

	require.EqualError(t, err, "db down")
}

func TestUserService_UpdateUserByUUID_Validation(t *testing.T) {
	repo := new(mockUserRepository)
	service := NewUserService(repo)

	_, err := service.UpdateUserByUUID(context.Background(), "not-a-uuid", User{Name: "Bob"})
	require.ErrorIs(t, err, ErrInvalidUUID)

	_, err = service.UpdateUserByUUID(context.Background(), aliceUUID, User{Name: "Bob", Role: "admin"})
	require.ErrorIs(t, err, ErrInvalidRole)

	repo.AssertNotCalled(t, "UpdateUserByUUID", mock.Anything, mock.Anything, mock.Anything)
}

func TestUserService_UpdateUserByUUID_KeepsRoleWhenEmpty(t *testing.T) {
	repo := new(mockUserRepository)
	service := NewUserService(repo)

	repo.On("UpdateUserByUUID", mock.Anything, aliceUUID, mock.MatchedBy(func(u User) bool {
		return u.Role == "" && u.Name == "Bob"
	})).Return(User{UUID: aliceUUID, Name: "Bob", Role: RoleMentor}, nil)

	u, err := service.UpdateUserByUUID(context.Background(), aliceUUID, User{Name: "Bob"})

	require.NoError(t, err)
	require.Equal(t, RoleMentor, u.Role)
	repo.AssertExpectations(t)
}

func TestUserService_GetUserByUUID_InvalidUUID(t *testing.T) {
	repo := new(mockUserRepository)
	service := NewUserService(repo)

	_, err := service.GetUserByUUID(context.Background(), "42")

	require.ErrorIs(t, err, ErrInvalidUUID)
	repo.AssertNotCalled(t, "GetUserByUUID", mock.Anything, mock.Anything)
}

func TestUserService_ListUsers_Defaults(t *testing.T) {
	repo := new(mockUserRepository)
	service := NewUserService(repo)

	repo.On("ListUsers", mock.Anything, "", 10, 0).Return([]User{}, int64(0), nil)

	_, _, err := service.ListUsers(context.Background(), "", 0, 0)

	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestUserService_ListUsers_ByRole(t *testing.T) {
	repo := new(mockUserRepository)
	service := NewUserService(repo)

	repo.On("ListUsers", mock.Anything, RoleMentor, 5, 10).Return([]User{{Name: "M"}}, int64(11), nil)

	items, total, err := service.ListUsers(context.Background(), RoleMentor, 3, 5)

	require.NoError(t, err)
	require.Len(t, items, 1)
	require.EqualValues(t, 11, total)

	_, _, err = service.ListUsers(context.Background(), "buyer", 1, 5)
	require.ErrorIs(t, err, ErrInvalidRole)
	repo.AssertExpectations(t)
}

func TestUserService_ModeratorEmails(t *testing.T) {
	repo := new(mockUserRepository)
	service := NewUserService(repo)

	repo.On("ListEmailsByRole", mock.Anything, RoleModerator).Return([]string{"mod@example.com"}, nil)

	emails, err := service.ModeratorEmails(context.Background())

	require.NoError(t, err)
	require.Equal(t, []string{"mod@example.com"}, emails)
	repo.AssertExpectations(t)
}
