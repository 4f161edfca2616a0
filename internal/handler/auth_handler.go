package handler

import (
	"errors"
	"net/http"

	"github.com/Baaaki/taskvault/internal/dto"
	apierrors "github.com/Baaaki/taskvault/internal/errors"
	"github.com/Baaaki/taskvault/internal/middleware"
	"github.com/Baaaki/taskvault/internal/service"
	"github.com/Baaaki/taskvault/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.uber.org/zap"
)

type AuthHandler struct {
	authService *service.AuthService
}

func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
	}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var input service.RegisterInput

	// 1. Parse and validate JSON request
	if err := c.ShouldBindJSON(&input); err != nil {
		logger.Log.Warn("Registration request rejected",
			zap.String("ip", c.ClientIP()),
			zap.Error(err),
		)
		apierrors.ValidationFailed(c, err)
		return
	}

	// 2. Call service
	user, err := h.authService.Register(c.Request.Context(), input)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidInput):
			apierrors.ValidationFailed(c, err)
		case errors.Is(err, service.ErrEmailAlreadyExists):
			apierrors.AlreadyExists(c, "Email already registered")
		case errors.Is(err, service.ErrUsernameAlreadyExists):
			apierrors.AlreadyExists(c, "Username already taken")
		default:
			apierrors.InternalError(c, "")
		}
		return
	}

	// 3. Return the public view of the user
	c.JSON(http.StatusCreated, dto.ToUserResponse(user))
}

// Login reads a form-encoded username and password. The username field
// accepts an email too.
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindWith(&req, binding.Form); err != nil {
		apierrors.ValidationFailed(c, err)
		return
	}

	h.login(c, req)
}

// LoginJSON is Login with a JSON body.
func (h *AuthHandler) LoginJSON(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.ValidationFailed(c, err)
		return
	}

	h.login(c, req)
}

func (h *AuthHandler) login(c *gin.Context, req dto.LoginRequest) {
	token, _, err := h.authService.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			logger.Log.Warn("Login rejected", zap.String("ip", c.ClientIP()))
			apierrors.InvalidCredentials(c)
			return
		}
		apierrors.InternalError(c, "")
		return
	}

	c.JSON(http.StatusOK, dto.NewTokenResponse(token))
}

func (h *AuthHandler) Me(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		apierrors.NotAuthenticated(c)
		return
	}

	c.JSON(http.StatusOK, dto.ToUserResponse(user))
}

func (h *AuthHandler) UpdateMe(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		apierrors.NotAuthenticated(c)
		return
	}

	var input service.UpdateProfileInput
	if err := c.ShouldBindJSON(&input); err != nil {
		apierrors.ValidationFailed(c, err)
		return
	}

	updated, err := h.authService.UpdateProfile(c.Request.Context(), user.ID, input)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidInput):
			apierrors.ValidationFailed(c, err)
		case errors.Is(err, service.ErrEmailAlreadyExists):
			apierrors.AlreadyExists(c, "Email already registered")
		case errors.Is(err, service.ErrUsernameAlreadyExists):
			apierrors.AlreadyExists(c, "Username already taken")
		case errors.Is(err, service.ErrUserNotFound):
			// Deleted between token resolution and the update
			apierrors.Unauthorized(c, "")
		default:
			apierrors.InternalError(c, "")
		}
		return
	}

	c.JSON(http.StatusOK, dto.ToUserResponse(updated))
}

// DeleteMe removes the caller and every task it owns.
func (h *AuthHandler) DeleteMe(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		apierrors.NotAuthenticated(c)
		return
	}

	if err := h.authService.DeleteAccount(c.Request.Context(), user.ID); err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			apierrors.Unauthorized(c, "")
			return
		}
		apierrors.InternalError(c, "")
		return
	}

	c.Status(http.StatusNoContent)
}
