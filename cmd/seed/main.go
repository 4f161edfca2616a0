package main

import (
	"context"
	"errors"
	"log"
	"os"
	"time"

	"github.com/Baaaki/taskvault/internal/config"
	"github.com/Baaaki/taskvault/internal/database"
	"github.com/Baaaki/taskvault/internal/models"
	"github.com/Baaaki/taskvault/internal/repository"
	"github.com/Baaaki/taskvault/internal/service"
	"github.com/Baaaki/taskvault/internal/utils"
)

func strPtr(s string) *string { return &s }

var sampleTasks = []service.CreateTaskInput{
	{Title: "Read the API docs", Description: strPtr("Start at GET / for the base url"), Priority: models.TaskPriorityLow},
	{Title: "Create a task", Priority: models.TaskPriorityMedium, Completed: true},
	{Title: "Open the task stream", Description: strPtr("GET /api/v1/ws/tasks with a bearer token"), Priority: models.TaskPriorityHigh},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	db, err := database.Open(cfg)
	if err != nil {
		log.Fatal("Failed to open database:", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	// Get demo user from env
	username := os.Getenv("SEED_USERNAME")
	email := os.Getenv("SEED_EMAIL")
	password := os.Getenv("SEED_PASSWORD")

	if username == "" || email == "" || password == "" {
		log.Fatal("Missing environment variables: SEED_USERNAME, SEED_EMAIL, SEED_PASSWORD")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	authService := service.NewAuthService(
		repository.NewUserRepository(db),
		utils.NewArgon2Hasher(utils.DefaultArgon2Params),
		utils.NewTokenService(cfg.JWTSecret, cfg.JWTExpiry),
	)
	taskService := service.NewTaskService(repository.NewTaskRepository(db), nil)

	user, err := authService.Register(ctx, service.RegisterInput{
		Email:    email,
		Username: username,
		Password: password,
	})
	switch {
	case errors.Is(err, service.ErrEmailAlreadyExists), errors.Is(err, service.ErrUsernameAlreadyExists):
		log.Println("Seed user already exists:", username)
		return
	case err != nil:
		log.Fatal("Failed to create seed user:", err)
	}

	for _, input := range sampleTasks {
		if _, err := taskService.CreateTask(ctx, user.ID, input); err != nil {
			log.Fatal("Failed to create sample task:", err)
		}
	}

	log.Println("Seed user created successfully!")
	log.Println("   Username:", user.Username)
	log.Println("   Email:", user.Email)
	log.Println("   Tasks:", len(sampleTasks))
}
