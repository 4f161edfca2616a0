package repository

import (
	"context"
	"fmt"

	"github.com/Baaaki/taskvault/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormUserRepository is a GORM implementation of UserRepository
type GormUserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &GormUserRepository{db: db}
}

func (r *GormUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return r.findOne(ctx, "id = ?", id)
}

// FindByEmail expects an already normalized email.
func (r *GormUserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, "email = ?", email)
}

func (r *GormUserRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.findOne(ctx, "username = ?", username)
}

func (r *GormUserRepository) findOne(ctx context.Context, query string, args ...interface{}) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where(query, args...).First(&user).Error
	if err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, err
	}

	return &user, nil
}

func (r *GormUserRepository) Create(ctx context.Context, user *models.User) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkIdentifiers(tx, user.Email, user.Username, uuid.Nil); err != nil {
			return err
		}
		return tx.Create(user).Error
	})

	if isUniqueViolation(err) {
		// Lost a race with a concurrent insert; report which identifier won.
		return r.classifyDuplicate(ctx, user.Email, user.Username, uuid.Nil, err)
	}
	return err
}

func (r *GormUserRepository) Update(ctx context.Context, id uuid.UUID, changes UserChanges) (*models.User, error) {
	var user models.User
	email, username := "", ""
	if changes.Email != nil {
		email = *changes.Email
	}
	if changes.Username != nil {
		username = *changes.Username
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&user).Error; err != nil {
			return err
		}

		if err := checkIdentifiers(tx, email, username, id); err != nil {
			return err
		}

		updates := map[string]interface{}{}
		if changes.Email != nil {
			updates["email"] = *changes.Email
		}
		if changes.Username != nil {
			updates["username"] = *changes.Username
		}
		if changes.PasswordHash != nil {
			updates["password_hash"] = *changes.PasswordHash
		}
		if len(updates) == 0 {
			return nil
		}

		if err := tx.Model(&models.User{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).First(&user).Error
	})

	switch {
	case err == nil:
		return &user, nil
	case notFound(err):
		return nil, nil
	case isUniqueViolation(err):
		return nil, r.classifyDuplicate(ctx, email, username, id, err)
	default:
		return nil, err
	}
}

func (r *GormUserRepository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	var deleted bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("owner_id = ?", id).Delete(&models.Task{}).Error; err != nil {
			return err
		}

		result := tx.Where("id = ?", id).Delete(&models.User{})
		if result.Error != nil {
			return result.Error
		}
		deleted = result.RowsAffected > 0
		return nil
	})
	if err != nil {
		return false, err
	}

	return deleted, nil
}

// checkIdentifiers fails with ErrEmailTaken or ErrUsernameTaken when another
// user than exclude holds the identifier. Empty identifiers are skipped.
func checkIdentifiers(tx *gorm.DB, email, username string, exclude uuid.UUID) error {
	if email != "" {
		taken, err := identifierTaken(tx, "email", email, exclude)
		if err != nil {
			return err
		}
		if taken {
			return ErrEmailTaken
		}
	}

	if username != "" {
		taken, err := identifierTaken(tx, "username", username, exclude)
		if err != nil {
			return err
		}
		if taken {
			return ErrUsernameTaken
		}
	}

	return nil
}

func identifierTaken(tx *gorm.DB, column, value string, exclude uuid.UUID) (bool, error) {
	query := tx.Model(&models.User{}).Where(column+" = ?", value)
	if exclude != uuid.Nil {
		query = query.Where("id <> ?", exclude)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *GormUserRepository) classifyDuplicate(ctx context.Context, email, username string, exclude uuid.UUID, cause error) error {
	err := checkIdentifiers(r.db.WithContext(ctx), email, username, exclude)
	if err != nil {
		return err
	}
	return fmt.Errorf("unique constraint violated: %w", cause)
}
