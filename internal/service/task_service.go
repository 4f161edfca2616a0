package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Baaaki/taskvault/internal/broker"
	"github.com/Baaaki/taskvault/internal/models"
	"github.com/Baaaki/taskvault/internal/repository"
	"github.com/Baaaki/taskvault/internal/utils"
	"github.com/Baaaki/taskvault/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const publishTimeout = 2 * time.Second

var ErrTaskNotFound = errors.New("task not found")

type CreateTaskInput struct {
	Title       string              `json:"title" binding:"required,min=1,max=200"`
	Description *string             `json:"description" binding:"omitempty,max=2000"`
	Completed   bool                `json:"completed"`
	Priority    models.TaskPriority `json:"priority" binding:"min=0,max=2"`
}

// UpdateTaskInput changes only the non-nil fields.
type UpdateTaskInput struct {
	Title       *string              `json:"title" binding:"omitempty,min=1,max=200"`
	Description *string              `json:"description" binding:"omitempty,max=2000"`
	Completed   *bool                `json:"completed"`
	Priority    *models.TaskPriority `json:"priority" binding:"omitempty,min=0,max=2"`
}

// ListTasksInput filters the owner's tasks. A zero Limit means the default
// page size.
type ListTasksInput struct {
	OwnerID       uuid.UUID
	Completed     *bool
	Search        string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	Skip          int `json:"skip" binding:"min=0"`
	Limit         int `json:"limit" binding:"omitempty,min=1,max=100"`
}

type TaskService struct {
	taskRepo repository.TaskRepository
	broker   broker.TaskEventBroker
}

func NewTaskService(taskRepo repository.TaskRepository, eventBroker broker.TaskEventBroker) *TaskService {
	if eventBroker == nil {
		eventBroker = broker.NewNopBroker()
	}
	return &TaskService{
		taskRepo: taskRepo,
		broker:   eventBroker,
	}
}

func (s *TaskService) CreateTask(ctx context.Context, ownerID uuid.UUID, input CreateTaskInput) (*models.Task, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, invalidInput(err)
	}

	task := &models.Task{
		Title:       input.Title,
		Description: input.Description,
		Completed:   input.Completed,
		Priority:    input.Priority,
		OwnerID:     ownerID,
	}

	if err := s.taskRepo.Create(ctx, task); err != nil {
		if errors.Is(err, repository.ErrOwnerRequired) {
			return nil, err
		}
		logger.Log.Error("Failed to create task",
			zap.String("user_id", ownerID.String()),
			zap.Error(err),
		)
		return nil, fmt.Errorf("create task: %w", err)
	}

	logger.Log.Debug("Task created",
		zap.String("task_id", task.ID.String()),
		zap.String("user_id", ownerID.String()),
	)

	s.publish(ctx, broker.EventTaskCreated, task.ID, ownerID, task)
	return task, nil
}

// ListTasks returns the owner's tasks, newest first, filtered and paged in a
// single query.
func (s *TaskService) ListTasks(ctx context.Context, input ListTasksInput) ([]models.Task, error) {
	if input.OwnerID == uuid.Nil {
		return nil, repository.ErrOwnerRequired
	}
	if err := utils.ValidateStruct(input); err != nil {
		return nil, invalidInput(err)
	}

	limit := input.Limit
	if limit == 0 {
		limit = repository.DefaultTaskLimit
	}

	tasks, err := s.taskRepo.List(ctx, repository.TaskFilter{
		OwnerID:       input.OwnerID,
		Completed:     input.Completed,
		Search:        input.Search,
		CreatedAfter:  input.CreatedAfter,
		CreatedBefore: input.CreatedBefore,
		Skip:          input.Skip,
		Limit:         limit,
	})
	if err != nil {
		logger.Log.Error("Failed to list tasks",
			zap.String("user_id", input.OwnerID.String()),
			zap.Error(err),
		)
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	return tasks, nil
}

func (s *TaskService) GetTask(ctx context.Context, id, ownerID uuid.UUID) (*models.Task, error) {
	task, err := s.taskRepo.FindByIDAndOwner(ctx, id, ownerID)
	if err != nil {
		if errors.Is(err, repository.ErrOwnerRequired) {
			return nil, err
		}
		return nil, fmt.Errorf("get task: %w", err)
	}
	if task == nil {
		return nil, ErrTaskNotFound
	}

	return task, nil
}

func (s *TaskService) UpdateTask(ctx context.Context, id, ownerID uuid.UUID, input UpdateTaskInput) (*models.Task, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, invalidInput(err)
	}

	task, err := s.taskRepo.Update(ctx, id, ownerID, repository.TaskChanges{
		Title:       input.Title,
		Description: input.Description,
		Completed:   input.Completed,
		Priority:    input.Priority,
	})
	if err != nil {
		if errors.Is(err, repository.ErrOwnerRequired) {
			return nil, err
		}
		logger.Log.Error("Failed to update task",
			zap.String("task_id", id.String()),
			zap.String("user_id", ownerID.String()),
			zap.Error(err),
		)
		return nil, fmt.Errorf("update task: %w", err)
	}
	if task == nil {
		return nil, ErrTaskNotFound
	}

	s.publish(ctx, broker.EventTaskUpdated, task.ID, ownerID, task)
	return task, nil
}

func (s *TaskService) DeleteTask(ctx context.Context, id, ownerID uuid.UUID) error {
	deleted, err := s.taskRepo.Delete(ctx, id, ownerID)
	if err != nil {
		if errors.Is(err, repository.ErrOwnerRequired) {
			return err
		}
		logger.Log.Error("Failed to delete task",
			zap.String("task_id", id.String()),
			zap.String("user_id", ownerID.String()),
			zap.Error(err),
		)
		return fmt.Errorf("delete task: %w", err)
	}
	if !deleted {
		return ErrTaskNotFound
	}

	s.publish(ctx, broker.EventTaskDeleted, id, ownerID, nil)
	return nil
}

// Stats returns the number of tasks across all users.
func (s *TaskService) Stats(ctx context.Context) (int64, error) {
	total, err := s.taskRepo.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count tasks: %w", err)
	}
	return total, nil
}

// publish runs after the change is committed. A failure is logged and never
// reported to the caller.
func (s *TaskService) publish(ctx context.Context, eventType broker.EventType, taskID, ownerID uuid.UUID, task *models.Task) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	event := broker.TaskEvent{
		Type:       eventType,
		OwnerID:    ownerID,
		TaskID:     taskID,
		Task:       task,
		OccurredAt: time.Now().UTC(),
	}
	if err := s.broker.Publish(ctx, event); err != nil {
		logger.Log.Warn("Failed to publish task event",
			zap.String("event", string(eventType)),
			zap.String("task_id", taskID.String()),
			zap.Error(err),
		)
	}
}
