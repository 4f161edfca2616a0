package repository_test

import (
	"context"
	"testing"

	"github.com/Baaaki/taskvault/internal/models"
	"github.com/Baaaki/taskvault/internal/repository"
	"github.com/Baaaki/taskvault/internal/testutil"
	"github.com/Baaaki/taskvault/pkg/logger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
)

type UserRepositoryTestSuite struct {
	suite.Suite
	testDB *testutil.TestDatabase
	repo   repository.UserRepository
	ctx    context.Context
}

func (s *UserRepositoryTestSuite) SetupSuite() {
	logger.Init(false)

	s.testDB = testutil.SetupTestDatabase(s.T())
	s.repo = repository.NewUserRepository(s.testDB.DB)
	s.ctx = context.Background()
}

func (s *UserRepositoryTestSuite) TearDownSuite() {
	s.testDB.Teardown(s.T())
}

func (s *UserRepositoryTestSuite) SetupTest() {
	testutil.CleanDatabase(s.T(), s.testDB.DB)
}

func newUser(username, email string) *models.User {
	return &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: "$argon2id$v=19$m=1024,t=1,p=1$c2FsdA$aGFzaA",
		IsActive:     true,
	}
}

func (s *UserRepositoryTestSuite) TestCreate_AssignsIDAndFinds() {
	// Arrange
	user := newUser("alice", "alice@example.com")

	// Act
	err := s.repo.Create(s.ctx, user)

	// Assert
	s.Require().NoError(err)
	s.NotEqual(uuid.Nil, user.ID)
	s.Equal(uuid.Version(7), user.ID.Version())

	byID, err := s.repo.FindByID(s.ctx, user.ID)
	s.Require().NoError(err)
	s.Require().NotNil(byID)
	s.Equal("alice", byID.Username)
	s.True(byID.IsActive)

	byEmail, err := s.repo.FindByEmail(s.ctx, "alice@example.com")
	s.Require().NoError(err)
	s.Require().NotNil(byEmail)
	s.Equal(user.ID, byEmail.ID)

	byUsername, err := s.repo.FindByUsername(s.ctx, "alice")
	s.Require().NoError(err)
	s.Require().NotNil(byUsername)
	s.Equal(user.ID, byUsername.ID)
}

func (s *UserRepositoryTestSuite) TestFind_MissingReturnsNil() {
	user, err := s.repo.FindByID(s.ctx, uuid.New())
	s.NoError(err)
	s.Nil(user)

	user, err = s.repo.FindByEmail(s.ctx, "nobody@example.com")
	s.NoError(err)
	s.Nil(user)

	user, err = s.repo.FindByUsername(s.ctx, "nobody")
	s.NoError(err)
	s.Nil(user)
}

func (s *UserRepositoryTestSuite) TestFindByUsername_IsExact() {
	s.Require().NoError(s.repo.Create(s.ctx, newUser("Alice", "alice@example.com")))

	user, err := s.repo.FindByUsername(s.ctx, "alice")
	s.NoError(err)
	s.Nil(user, "username lookup is case-sensitive")
}

func (s *UserRepositoryTestSuite) TestCreate_DuplicateEmail() {
	s.Require().NoError(s.repo.Create(s.ctx, newUser("alice", "alice@example.com")))

	err := s.repo.Create(s.ctx, newUser("alice2", "alice@example.com"))

	s.ErrorIs(err, repository.ErrEmailTaken)
}

func (s *UserRepositoryTestSuite) TestCreate_DuplicateUsername() {
	s.Require().NoError(s.repo.Create(s.ctx, newUser("alice", "alice@example.com")))

	err := s.repo.Create(s.ctx, newUser("alice", "other@example.com"))

	s.ErrorIs(err, repository.ErrUsernameTaken)
}

func (s *UserRepositoryTestSuite) TestCreate_EmailCheckedBeforeUsername() {
	s.Require().NoError(s.repo.Create(s.ctx, newUser("alice", "alice@example.com")))

	err := s.repo.Create(s.ctx, newUser("alice", "alice@example.com"))

	s.ErrorIs(err, repository.ErrEmailTaken)
}

func (s *UserRepositoryTestSuite) TestCreate_FailedInsertLeavesNoRow() {
	s.Require().NoError(s.repo.Create(s.ctx, newUser("alice", "alice@example.com")))
	s.Require().Error(s.repo.Create(s.ctx, newUser("bob", "alice@example.com")))

	user, err := s.repo.FindByUsername(s.ctx, "bob")
	s.NoError(err)
	s.Nil(user)
}

func (s *UserRepositoryTestSuite) TestUpdate_ChangesFields() {
	// Arrange
	user := newUser("alice", "alice@example.com")
	s.Require().NoError(s.repo.Create(s.ctx, user))
	email, username, hash := "new@example.com", "alice_new", "new-hash"

	// Act
	updated, err := s.repo.Update(s.ctx, user.ID, repository.UserChanges{
		Email:        &email,
		Username:     &username,
		PasswordHash: &hash,
	})

	// Assert
	s.Require().NoError(err)
	s.Require().NotNil(updated)
	s.Equal(user.ID, updated.ID)
	s.Equal(email, updated.Email)
	s.Equal(username, updated.Username)
	s.Equal(hash, updated.PasswordHash)
}

func (s *UserRepositoryTestSuite) TestUpdate_KeepsOwnIdentifiers() {
	user := newUser("alice", "alice@example.com")
	s.Require().NoError(s.repo.Create(s.ctx, user))
	email := "alice@example.com"

	updated, err := s.repo.Update(s.ctx, user.ID, repository.UserChanges{Email: &email})

	s.Require().NoError(err)
	s.Equal(email, updated.Email)
}

func (s *UserRepositoryTestSuite) TestUpdate_RejectsOtherUsersIdentifiers() {
	alice := newUser("alice", "alice@example.com")
	bob := newUser("bob", "bob@example.com")
	s.Require().NoError(s.repo.Create(s.ctx, alice))
	s.Require().NoError(s.repo.Create(s.ctx, bob))

	email := "alice@example.com"
	_, err := s.repo.Update(s.ctx, bob.ID, repository.UserChanges{Email: &email})
	s.ErrorIs(err, repository.ErrEmailTaken)

	username := "alice"
	_, err = s.repo.Update(s.ctx, bob.ID, repository.UserChanges{Username: &username})
	s.ErrorIs(err, repository.ErrUsernameTaken)

	unchanged, err := s.repo.FindByID(s.ctx, bob.ID)
	s.Require().NoError(err)
	s.Equal("bob", unchanged.Username)
	s.Equal("bob@example.com", unchanged.Email)
}

func (s *UserRepositoryTestSuite) TestUpdate_MissingUser() {
	username := "ghost"

	updated, err := s.repo.Update(s.ctx, uuid.New(), repository.UserChanges{Username: &username})

	s.NoError(err)
	s.Nil(updated)
}

func (s *UserRepositoryTestSuite) TestDelete_RemovesUserAndTasks() {
	// Arrange
	alice := testutil.CreateUser(s.T(), s.testDB.DB, "alice", "alice@example.com", testutil.DefaultPassword)
	bob := testutil.CreateUser(s.T(), s.testDB.DB, "bob", "bob@example.com", testutil.DefaultPassword)
	testutil.CreateTask(s.T(), s.testDB.DB, alice, "a1")
	testutil.CreateTask(s.T(), s.testDB.DB, alice, "a2")
	testutil.CreateTask(s.T(), s.testDB.DB, bob, "b1")

	// Act
	deleted, err := s.repo.Delete(s.ctx, alice.ID)

	// Assert
	s.Require().NoError(err)
	s.True(deleted)

	user, err := s.repo.FindByID(s.ctx, alice.ID)
	s.NoError(err)
	s.Nil(user)

	var remaining []models.Task
	s.Require().NoError(s.testDB.DB.Find(&remaining).Error)
	s.Require().Len(remaining, 1)
	s.Equal(bob.ID, remaining[0].OwnerID)
}

func (s *UserRepositoryTestSuite) TestDelete_MissingUser() {
	deleted, err := s.repo.Delete(s.ctx, uuid.New())

	s.NoError(err)
	s.False(deleted)
}

func TestUserRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(UserRepositoryTestSuite))
}
