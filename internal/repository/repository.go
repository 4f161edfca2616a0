package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Baaaki/taskvault/internal/models"
	"github.com/google/uuid"
)

var (
	// ErrOwnerRequired is returned by task queries built without an owner.
	ErrOwnerRequired = errors.New("owner id is required")
	ErrEmailTaken    = errors.New("email already taken")
	ErrUsernameTaken = errors.New("username already taken")
)

// UserRepository defines the interface for user data access. Single-record
// lookups return (nil, nil) when nothing matches.
type UserRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)

	// Create checks email then username and inserts, all in one transaction.
	// Duplicates surface as ErrEmailTaken or ErrUsernameTaken.
	Create(ctx context.Context, user *models.User) error

	// Update applies changes to the user, rejecting an email or username held
	// by another user. Returns (nil, nil) when the user does not exist.
	Update(ctx context.Context, id uuid.UUID, changes UserChanges) (*models.User, error)

	// Delete removes the user and every task it owns in one transaction.
	// Reports whether the user existed.
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
}

// UserChanges lists the user columns that may change. Nil fields are kept.
type UserChanges struct {
	Email        *string
	Username     *string
	PasswordHash *string
}

// TaskRepository defines the interface for task data access. Every method
// except Count is scoped by owner.
type TaskRepository interface {
	Create(ctx context.Context, task *models.Task) error

	// FindByIDAndOwner returns (nil, nil) when the task is missing or owned by
	// someone else.
	FindByIDAndOwner(ctx context.Context, id, ownerID uuid.UUID) (*models.Task, error)

	// List returns the owner's tasks, newest first.
	List(ctx context.Context, filter TaskFilter) ([]models.Task, error)

	// Update applies changes and reloads the task in one transaction.
	// Returns (nil, nil) when the task is missing or owned by someone else.
	Update(ctx context.Context, id, ownerID uuid.UUID, changes TaskChanges) (*models.Task, error)

	// Delete reports whether a task was removed.
	Delete(ctx context.Context, id, ownerID uuid.UUID) (bool, error)

	// Count returns the number of tasks across all owners.
	Count(ctx context.Context) (int64, error)
}

// TaskFilter holds filtering options for listing tasks
type TaskFilter struct {
	OwnerID       uuid.UUID
	Completed     *bool
	Search        string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	Skip          int
	Limit         int
}

// TaskChanges lists the task columns an update may touch. Owner is not one of
// them.
type TaskChanges struct {
	Title       *string
	Description *string
	Completed   *bool
	Priority    *models.TaskPriority
}
