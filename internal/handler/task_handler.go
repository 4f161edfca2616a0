package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/Baaaki/taskvault/internal/dto"
	apierrors "github.com/Baaaki/taskvault/internal/errors"
	"github.com/Baaaki/taskvault/internal/middleware"
	"github.com/Baaaki/taskvault/internal/service"
	"github.com/Baaaki/taskvault/internal/utils"
	"github.com/Baaaki/taskvault/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const taskNotFoundMessage = "Task not found"

type TaskHandler struct {
	taskService *service.TaskService
}

func NewTaskHandler(taskService *service.TaskService) *TaskHandler {
	return &TaskHandler{
		taskService: taskService,
	}
}

func (h *TaskHandler) Create(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		apierrors.NotAuthenticated(c)
		return
	}

	var input service.CreateTaskInput
	if err := c.ShouldBindJSON(&input); err != nil {
		apierrors.ValidationFailed(c, err)
		return
	}

	task, err := h.taskService.CreateTask(c.Request.Context(), user.ID, input)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToTaskResponse(task))
}

func (h *TaskHandler) List(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		apierrors.NotAuthenticated(c)
		return
	}

	// 1. Bind the query string
	var query dto.ListTasksQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			err = &apierrors.FieldError{Field: "query", Rule: "parse"}
		}
		apierrors.ValidationFailed(c, err)
		return
	}

	input := service.ListTasksInput{
		OwnerID:   user.ID,
		Completed: query.Completed,
		Search:    query.Search,
		Skip:      query.Skip,
	}
	if query.Limit != nil {
		input.Limit = *query.Limit
	}

	// 2. Parse the creation bounds
	var err error
	if input.CreatedAfter, err = parseBound("created_after", query.CreatedAfter); err != nil {
		apierrors.ValidationFailed(c, err)
		return
	}
	if input.CreatedBefore, err = parseBound("created_before", query.CreatedBefore); err != nil {
		apierrors.ValidationFailed(c, err)
		return
	}

	// 3. Run the query
	tasks, err := h.taskService.ListTasks(c.Request.Context(), input)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskResponses(tasks))
}

func (h *TaskHandler) Get(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		apierrors.NotAuthenticated(c)
		return
	}
	taskID, ok := parseTaskID(c)
	if !ok {
		return
	}

	task, err := h.taskService.GetTask(c.Request.Context(), taskID, user.ID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskResponse(task))
}

func (h *TaskHandler) Update(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		apierrors.NotAuthenticated(c)
		return
	}
	taskID, ok := parseTaskID(c)
	if !ok {
		return
	}

	var input service.UpdateTaskInput
	if err := c.ShouldBindJSON(&input); err != nil {
		apierrors.ValidationFailed(c, err)
		return
	}

	task, err := h.taskService.UpdateTask(c.Request.Context(), taskID, user.ID, input)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskResponse(task))
}

func (h *TaskHandler) Delete(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		apierrors.NotAuthenticated(c)
		return
	}
	taskID, ok := parseTaskID(c)
	if !ok {
		return
	}

	if err := h.taskService.DeleteTask(c.Request.Context(), taskID, user.ID); err != nil {
		h.respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Stats is public and counts tasks across all users.
func (h *TaskHandler) Stats(c *gin.Context) {
	total, err := h.taskService.Stats(c.Request.Context())
	if err != nil {
		logger.Log.Error("Failed to count tasks", zap.Error(err))
		apierrors.InternalError(c, "")
		return
	}

	c.JSON(http.StatusOK, dto.TaskStatsResponse{TotalTasks: total})
}

func (h *TaskHandler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		apierrors.ValidationFailed(c, err)
	case errors.Is(err, service.ErrTaskNotFound):
		apierrors.NotFound(c, taskNotFoundMessage)
	default:
		apierrors.InternalError(c, "")
	}
}

// parseTaskID answers 404 for ids that are not uuids; such a task cannot exist.
func parseTaskID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		apierrors.NotFound(c, taskNotFoundMessage)
		return uuid.Nil, false
	}
	return id, true
}

func parseBound(field, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := utils.ParseTimestamp(value)
	if err != nil {
		return nil, &apierrors.FieldError{Field: field, Rule: "datetime"}
	}
	return &t, nil
}
