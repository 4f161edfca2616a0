package handler_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"

	"github.com/Baaaki/taskvault/internal/broker"
	"github.com/Baaaki/taskvault/internal/config"
	"github.com/Baaaki/taskvault/internal/dto"
	"github.com/Baaaki/taskvault/internal/middleware"
	"github.com/Baaaki/taskvault/internal/repository"
	"github.com/Baaaki/taskvault/internal/server"
	"github.com/Baaaki/taskvault/internal/service"
	"github.com/Baaaki/taskvault/internal/testutil"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/suite"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details []struct {
		Field string `json:"field"`
		Rule  string `json:"rule"`
	} `json:"details"`
}

// apiSuite serves the real router over an in-memory database
type apiSuite struct {
	suite.Suite
	testDB *testutil.TestDatabase
	cfg    *config.Config
	router *gin.Engine
}

func testConfig() *config.Config {
	return &config.Config{
		AppName:              "Task Management API",
		AppVersion:           "test",
		Environment:          config.EnvDevelopment,
		CORSOrigins:          []string{"*"},
		PasswordResetEnabled: true,
	}
}

func (s *apiSuite) setup(eventBroker broker.TaskEventBroker, limiter middleware.Limiter) {
	gin.SetMode(gin.TestMode)

	s.testDB = testutil.SetupTestDatabase(s.T())
	s.cfg = testConfig()

	authService := service.NewAuthService(
		repository.NewUserRepository(s.testDB.DB),
		testutil.NewHasher(),
		testutil.NewTokenService(),
	)
	taskService := service.NewTaskService(repository.NewTaskRepository(s.testDB.DB), eventBroker)

	s.router = server.NewRouter(server.Dependencies{
		Config:      s.cfg,
		DB:          s.testDB.DB,
		AuthService: authService,
		TaskService: taskService,
		Broker:      eventBroker,
		Limiter:     limiter,
	})
}

func (s *apiSuite) TearDownSuite() {
	s.testDB.Teardown(s.T())
}

func (s *apiSuite) SetupTest() {
	testutil.CleanDatabase(s.T(), s.testDB.DB)
}

func (s *apiSuite) do(method, path string, body any, token string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *apiSuite) doForm(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *apiSuite) decode(w *httptest.ResponseRecorder, v any) {
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func (s *apiSuite) register(username, email, password string) dto.UserResponse {
	w := s.do(http.MethodPost, "/api/v1/auth/register", map[string]string{
		"username": username,
		"email":    email,
		"password": password,
	}, "")
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())

	var user dto.UserResponse
	s.decode(w, &user)
	return user
}

func (s *apiSuite) login(identifier, password string) string {
	w := s.doForm("/api/v1/auth/login", url.Values{
		"username": {identifier},
		"password": {password},
	})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	var token dto.TokenResponse
	s.decode(w, &token)
	s.Require().Equal("bearer", token.TokenType)
	return token.AccessToken
}

func (s *apiSuite) createTask(token string, body map[string]any) dto.TaskResponse {
	w := s.do(http.MethodPost, "/api/v1/tasks/", body, token)
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())

	var task dto.TaskResponse
	s.decode(w, &task)
	return task
}
