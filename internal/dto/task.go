package dto

import (
	"time"

	"github.com/Baaaki/taskvault/internal/models"
	"github.com/google/uuid"
)

// ListTasksQuery is the query string of GET /tasks/. Timestamps stay strings
// here because several layouts are accepted.
type ListTasksQuery struct {
	Skip          int    `form:"skip" binding:"min=0"`
	Limit         *int   `form:"limit" binding:"omitempty,min=1,max=100"`
	Completed     *bool  `form:"completed"`
	Search        string `form:"search"`
	CreatedAfter  string `form:"created_after"`
	CreatedBefore string `form:"created_before"`
}

// TaskResponse represents a task in API responses
type TaskResponse struct {
	ID          uuid.UUID           `json:"id"`
	Title       string              `json:"title"`
	Description *string             `json:"description"`
	Completed   bool                `json:"completed"`
	Priority    models.TaskPriority `json:"priority"`
	OwnerID     uuid.UUID           `json:"owner_id"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// TaskStatsResponse is the body of GET /tasks/public/stats
type TaskStatsResponse struct {
	TotalTasks int64 `json:"total_tasks"`
}

func ToTaskResponse(task *models.Task) TaskResponse {
	return TaskResponse{
		ID:          task.ID,
		Title:       task.Title,
		Description: task.Description,
		Completed:   task.Completed,
		Priority:    task.Priority,
		OwnerID:     task.OwnerID,
		CreatedAt:   task.CreatedAt,
		UpdatedAt:   task.UpdatedAt,
	}
}

// ToTaskResponses always returns a non-nil slice so an empty page encodes as [].
func ToTaskResponses(tasks []models.Task) []TaskResponse {
	out := make([]TaskResponse, len(tasks))
	for i := range tasks {
		out[i] = ToTaskResponse(&tasks[i])
	}
	return out
}
