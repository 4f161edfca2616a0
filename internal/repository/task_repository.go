package repository

import (
	"context"
	"strings"
	"time"

	"github.com/Baaaki/taskvault/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	DefaultTaskLimit = 100
	MaxTaskLimit     = 100
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// GormTaskRepository is a GORM implementation of TaskRepository
type GormTaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &GormTaskRepository{db: db}
}

func (r *GormTaskRepository) Create(ctx context.Context, task *models.Task) error {
	if task.OwnerID == uuid.Nil {
		return ErrOwnerRequired
	}
	return r.db.WithContext(ctx).Create(task).Error
}

func (r *GormTaskRepository) FindByIDAndOwner(ctx context.Context, id, ownerID uuid.UUID) (*models.Task, error) {
	if ownerID == uuid.Nil {
		return nil, ErrOwnerRequired
	}

	var task models.Task
	err := r.db.WithContext(ctx).Where("id = ? AND owner_id = ?", id, ownerID).First(&task).Error
	if err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, err
	}

	return &task, nil
}

// List retrieves the owner's tasks with filtering and pagination. Search is
// a case-insensitive substring match on title or description in which % and _
// are literal.
func (r *GormTaskRepository) List(ctx context.Context, filter TaskFilter) ([]models.Task, error) {
	if filter.OwnerID == uuid.Nil {
		return nil, ErrOwnerRequired
	}

	query := r.db.WithContext(ctx).Model(&models.Task{}).Where("owner_id = ?", filter.OwnerID)

	if filter.Completed != nil {
		query = query.Where("completed = ?", *filter.Completed)
	}
	if filter.Search != "" {
		// Both sides fold through the same SQL LOWER
		pattern := "%" + likeEscaper.Replace(filter.Search) + "%"
		query = query.Where(
			`(LOWER(title) LIKE LOWER(?) ESCAPE '\' OR LOWER(description) LIKE LOWER(?) ESCAPE '\')`,
			pattern, pattern,
		)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at >= ?", filter.CreatedAfter.UTC())
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at <= ?", filter.CreatedBefore.UTC())
	}

	limit := filter.Limit
	if limit <= 0 || limit > MaxTaskLimit {
		limit = DefaultTaskLimit
	}
	skip := filter.Skip
	if skip < 0 {
		skip = 0
	}

	tasks := []models.Task{}
	err := query.
		Order("created_at DESC").
		Order("id DESC").
		Offset(skip).
		Limit(limit).
		Find(&tasks).Error
	if err != nil {
		return nil, err
	}

	return tasks, nil
}

func (r *GormTaskRepository) Update(ctx context.Context, id, ownerID uuid.UUID, changes TaskChanges) (*models.Task, error) {
	if ownerID == uuid.Nil {
		return nil, ErrOwnerRequired
	}

	updates := map[string]interface{}{
		"updated_at": time.Now().UTC(),
	}
	if changes.Title != nil {
		updates["title"] = *changes.Title
	}
	if changes.Description != nil {
		updates["description"] = *changes.Description
	}
	if changes.Completed != nil {
		updates["completed"] = *changes.Completed
	}
	if changes.Priority != nil {
		updates["priority"] = *changes.Priority
	}

	var task models.Task
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Task{}).
			Where("id = ? AND owner_id = ?", id, ownerID).
			Updates(updates)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		return tx.Where("id = ? AND owner_id = ?", id, ownerID).First(&task).Error
	})
	if err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, err
	}

	return &task, nil
}

func (r *GormTaskRepository) Delete(ctx context.Context, id, ownerID uuid.UUID) (bool, error) {
	if ownerID == uuid.Nil {
		return false, ErrOwnerRequired
	}

	result := r.db.WithContext(ctx).Where("id = ? AND owner_id = ?", id, ownerID).Delete(&models.Task{})
	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected > 0, nil
}

func (r *GormTaskRepository) Count(ctx context.Context) (int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Task{}).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}
