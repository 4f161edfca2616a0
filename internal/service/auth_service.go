package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Baaaki/taskvault/internal/models"
	"github.com/Baaaki/taskvault/internal/repository"
	"github.com/Baaaki/taskvault/internal/utils"
	"github.com/Baaaki/taskvault/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrEmailAlreadyExists    = errors.New("email already registered")
	ErrUsernameAlreadyExists = errors.New("username already taken")
	ErrInvalidCredentials    = errors.New("incorrect username/email or password")
	ErrNotAuthenticated      = errors.New("not authenticated")
	ErrCouldNotValidate      = errors.New("could not validate credentials")
	ErrUserNotFound          = errors.New("user not found")

	// ErrInvalidInput wraps the validator errors describing what was wrong.
	ErrInvalidInput = errors.New("invalid input")
)

// PasswordHasher hashes and verifies passwords. Verify reports a malformed
// hash as an error.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encodedHash string) (bool, error)
}

// TokenManager issues and verifies bearer tokens for a subject.
type TokenManager interface {
	Issue(subject string) (string, error)
	Verify(token string) (string, error)
}

type RegisterInput struct {
	Email    string `json:"email" binding:"required,email,max=100"`
	Username string `json:"username" binding:"required,min=3,max=50"`
	Password string `json:"password" binding:"required,min=8,max=128"`
}

// UpdateProfileInput changes only the non-nil fields.
type UpdateProfileInput struct {
	Email    *string `json:"email" binding:"omitempty,email,max=100"`
	Username *string `json:"username" binding:"omitempty,min=3,max=50"`
	Password *string `json:"password" binding:"omitempty,min=8,max=128"`
}

type AuthService struct {
	userRepo repository.UserRepository
	hasher   PasswordHasher
	tokens   TokenManager

	dummyOnce sync.Once
	dummyHash string
}

func NewAuthService(userRepo repository.UserRepository, hasher PasswordHasher, tokens TokenManager) *AuthService {
	return &AuthService{
		userRepo: userRepo,
		hasher:   hasher,
		tokens:   tokens,
	}
}

// NormalizeEmail is the form emails are stored and compared in.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func invalidInput(err error) error {
	return fmt.Errorf("%w: %w", ErrInvalidInput, err)
}

func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*models.User, error) {
	start := time.Now()

	input.Email = NormalizeEmail(input.Email)

	logger.Log.Debug("Processing user registration",
		zap.String("username", input.Username),
		zap.String("email", input.Email),
	)

	// 1. Validate input
	if err := utils.ValidateStruct(input); err != nil {
		logger.Log.Warn("Registration validation failed",
			zap.String("username", input.Username),
			zap.Error(err),
		)
		return nil, invalidInput(err)
	}

	// 2. Hash password (Argon2)
	hashStart := time.Now()
	hashedPassword, err := s.hasher.Hash(input.Password)
	if err != nil {
		logger.Log.Error("Failed to hash password", zap.Error(err))
		return nil, err
	}
	hashDuration := time.Since(hashStart)

	// 3. Check email, username and insert in one transaction
	user := &models.User{
		Email:        input.Email,
		Username:     input.Username,
		PasswordHash: hashedPassword,
		IsActive:     true,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if mapped := mapDuplicate(err); mapped != nil {
			logger.Log.Warn("Registration rejected: duplicate identifier",
				zap.String("username", input.Username),
				zap.String("email", input.Email),
				zap.Error(mapped),
			)
			return nil, mapped
		}
		logger.Log.Error("Failed to create user in database",
			zap.String("username", input.Username),
			zap.Error(err),
		)
		return nil, fmt.Errorf("create user: %w", err)
	}

	logger.Log.Info("User registered successfully",
		zap.String("user_id", user.ID.String()),
		zap.String("username", user.Username),
		zap.Duration("hash_duration", hashDuration),
		zap.Duration("total_duration", time.Since(start)),
	)

	return user, nil
}

// Login accepts a username or an email as identifier. Email wins when it
// matches. Every failure is ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, identifier, password string) (string, *models.User, error) {
	start := time.Now()

	user, err := s.userRepo.FindByEmail(ctx, NormalizeEmail(identifier))
	if err != nil {
		logger.Log.Error("Failed to get user by email", zap.Error(err))
		return "", nil, fmt.Errorf("find user: %w", err)
	}
	if user == nil {
		user, err = s.userRepo.FindByUsername(ctx, identifier)
		if err != nil {
			logger.Log.Error("Failed to get user by username", zap.Error(err))
			return "", nil, fmt.Errorf("find user: %w", err)
		}
	}

	if user == nil {
		// Spend one hash evaluation so unknown identifiers cost the same as a
		// wrong password.
		_, _ = s.hasher.Verify(password, s.fallbackHash())
		logger.Log.Warn("Login failed: user not found")
		return "", nil, ErrInvalidCredentials
	}

	verifyStart := time.Now()
	valid, err := s.hasher.Verify(password, user.PasswordHash)
	verifyDuration := time.Since(verifyStart)
	if err != nil {
		logger.Log.Error("Stored password hash is malformed",
			zap.String("user_id", user.ID.String()),
			zap.Error(err),
		)
		return "", nil, ErrInvalidCredentials
	}

	if !valid {
		logger.Log.Warn("Login failed: invalid password",
			zap.String("user_id", user.ID.String()),
		)
		return "", nil, ErrInvalidCredentials
	}

	if !user.IsActive {
		logger.Log.Warn("Login failed: inactive user",
			zap.String("user_id", user.ID.String()),
		)
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user.ID.String())
	if err != nil {
		logger.Log.Error("Failed to generate JWT token",
			zap.String("user_id", user.ID.String()),
			zap.Error(err),
		)
		return "", nil, err
	}

	logger.Log.Info("User logged in successfully",
		zap.String("user_id", user.ID.String()),
		zap.Duration("password_verify_duration", verifyDuration),
		zap.Duration("total_duration", time.Since(start)),
	)

	return token, user, nil
}

// Resolve maps a bearer token to an active user.
func (s *AuthService) Resolve(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, ErrNotAuthenticated
	}

	subject, err := s.tokens.Verify(token)
	if err != nil {
		return nil, ErrCouldNotValidate
	}

	userID, err := uuid.Parse(subject)
	if err != nil {
		logger.Log.Warn("Token subject is not a user id")
		return nil, ErrCouldNotValidate
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		logger.Log.Error("Failed to load token subject",
			zap.String("user_id", userID.String()),
			zap.Error(err),
		)
		return nil, fmt.Errorf("find user: %w", err)
	}
	if user == nil || !user.IsActive {
		return nil, ErrCouldNotValidate
	}

	return user, nil
}

func (s *AuthService) UpdateProfile(ctx context.Context, userID uuid.UUID, input UpdateProfileInput) (*models.User, error) {
	if input.Email != nil {
		email := NormalizeEmail(*input.Email)
		input.Email = &email
	}

	if err := utils.ValidateStruct(input); err != nil {
		return nil, invalidInput(err)
	}

	changes := repository.UserChanges{
		Email:    input.Email,
		Username: input.Username,
	}
	if input.Password != nil {
		hash, err := s.hasher.Hash(*input.Password)
		if err != nil {
			logger.Log.Error("Failed to hash password", zap.Error(err))
			return nil, err
		}
		changes.PasswordHash = &hash
	}

	user, err := s.userRepo.Update(ctx, userID, changes)
	if err != nil {
		if mapped := mapDuplicate(err); mapped != nil {
			return nil, mapped
		}
		logger.Log.Error("Failed to update user",
			zap.String("user_id", userID.String()),
			zap.Error(err),
		)
		return nil, fmt.Errorf("update user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	logger.Log.Info("User profile updated",
		zap.String("user_id", userID.String()),
		zap.Bool("password_changed", input.Password != nil),
	)

	return user, nil
}

// DeleteAccount removes the user and all of its tasks.
func (s *AuthService) DeleteAccount(ctx context.Context, userID uuid.UUID) error {
	deleted, err := s.userRepo.Delete(ctx, userID)
	if err != nil {
		logger.Log.Error("Failed to delete user",
			zap.String("user_id", userID.String()),
			zap.Error(err),
		)
		return fmt.Errorf("delete user: %w", err)
	}
	if !deleted {
		return ErrUserNotFound
	}

	logger.Log.Info("User account deleted", zap.String("user_id", userID.String()))
	return nil
}

// fallbackHash is a valid hash of a random password, computed with the same
// hasher so verifying against it costs a real evaluation.
func (s *AuthService) fallbackHash() string {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash(uuid.NewString())
		if err != nil {
			logger.Log.Error("Failed to build fallback hash", zap.Error(err))
			return
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}

func mapDuplicate(err error) error {
	switch {
	case errors.Is(err, repository.ErrEmailTaken):
		return ErrEmailAlreadyExists
	case errors.Is(err, repository.ErrUsernameTaken):
		return ErrUsernameAlreadyExists
	default:
		return nil
	}
}
