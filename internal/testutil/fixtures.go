package testutil

import (
	"testing"
	"time"

	"github.com/Baaaki/taskvault/internal/models"
	"github.com/Baaaki/taskvault/internal/utils"
	"gorm.io/gorm"
)

// FastArgon2Params keeps hashing cheap in tests. Hashes stay in the
// production format.
var FastArgon2Params = utils.Argon2Params{
	Memory:      1024,
	Iterations:  1,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

const (
	DefaultPassword = "Test123456"
	TestJWTSecret   = "test-secret-key-for-jwt-testing"
)

// NewHasher returns an Argon2Hasher with FastArgon2Params.
func NewHasher() *utils.Argon2Hasher {
	return utils.NewArgon2Hasher(FastArgon2Params)
}

// NewTokenService returns a token service signed with TestJWTSecret.
func NewTokenService() *utils.TokenService {
	return utils.NewTokenService(TestJWTSecret, 30*time.Minute)
}

// CreateUser inserts an active user with a hashed password
func CreateUser(t *testing.T, db *gorm.DB, username, email, password string) *models.User {
	t.Helper()

	hash, err := NewHasher().Hash(password)
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}

	user := &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		IsActive:     true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to create user %s: %v", username, err)
	}
	return user
}

// DefaultUser creates "testuser" / "test@example.com" with DefaultPassword
func DefaultUser(t *testing.T, db *gorm.DB) *models.User {
	return CreateUser(t, db, "testuser", "test@example.com", DefaultPassword)
}

// Deactivate flips is_active to false. The column default is true, so this
// cannot be done at insert time.
func Deactivate(t *testing.T, db *gorm.DB, user *models.User) {
	t.Helper()

	if err := db.Model(user).Update("is_active", false).Error; err != nil {
		t.Fatalf("Failed to deactivate user: %v", err)
	}
	user.IsActive = false
}

// CreateTask inserts a task owned by owner
func CreateTask(t *testing.T, db *gorm.DB, owner *models.User, title string, opts ...func(*models.Task)) *models.Task {
	t.Helper()

	task := &models.Task{
		Title:   title,
		OwnerID: owner.ID,
	}
	for _, opt := range opts {
		opt(task)
	}

	if err := db.Create(task).Error; err != nil {
		t.Fatalf("Failed to create task %q: %v", title, err)
	}
	return task
}

// WithCompleted marks the fixture completed
func WithCompleted() func(*models.Task) {
	return func(task *models.Task) { task.Completed = true }
}

func WithDescription(description string) func(*models.Task) {
	return func(task *models.Task) { task.Description = &description }
}

func WithPriority(priority models.TaskPriority) func(*models.Task) {
	return func(task *models.Task) { task.Priority = priority }
}

// WithCreatedAt pins created_at, which lets tests control ordering.
func WithCreatedAt(at time.Time) func(*models.Task) {
	return func(task *models.Task) { task.CreatedAt = at.UTC() }
}
