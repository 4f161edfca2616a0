package handler_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Baaaki/taskvault/internal/handler"
	"github.com/Baaaki/taskvault/internal/middleware"
	"github.com/Baaaki/taskvault/internal/testutil"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type ServiceRoutesTestSuite struct {
	apiSuite
}

func (s *ServiceRoutesTestSuite) SetupSuite() {
	s.setup(nil, nil)
}

func (s *ServiceRoutesTestSuite) TestInfo() {
	w := s.do(http.MethodGet, "/", nil, "")

	s.Equal(http.StatusOK, w.Code)
	var body map[string]any
	s.decode(w, &body)
	s.Equal("Welcome to Task Management API", body["message"])
	s.Equal("/api/v1", body["api_base_url"])
	s.Equal(map[string]any{"password_reset": true, "task_events": false}, body["features"])
}

func (s *ServiceRoutesTestSuite) TestHealth() {
	w := s.do(http.MethodGet, "/health", nil, "")

	s.Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), `"status":"healthy"`)
	s.NotEmpty(w.Header().Get(middleware.RequestIDHeader))
	s.Equal("nosniff", w.Header().Get("X-Content-Type-Options"))
}

func (s *ServiceRoutesTestSuite) TestStreamUnavailableWithoutBroker() {
	s.register("alice", "alice@x.com", "pw12345678")
	token := s.login("alice", "pw12345678")

	w := s.do(http.MethodGet, "/api/v1/ws/tasks", nil, token)

	s.Equal(http.StatusServiceUnavailable, w.Code)
	s.Contains(w.Body.String(), "SERVICE_UNAVAILABLE")
}

func TestServiceRoutesTestSuite(t *testing.T) {
	suite.Run(t, new(ServiceRoutesTestSuite))
}

type RateLimitedRouterTestSuite struct {
	apiSuite
}

func (s *RateLimitedRouterTestSuite) SetupSuite() {
	s.setup(nil, middleware.NewMemoryLimiter(middleware.RateLimiterConfig{
		MaxRequests: 3,
		Window:      time.Minute,
	}))
}

func (s *RateLimitedRouterTestSuite) TestLimitsAPIButNotInfoAndHealth() {
	var last *httptest.ResponseRecorder
	for i := 0; i < 5; i++ {
		last = s.do(http.MethodGet, "/api/v1/tasks/public/stats", nil, "")
	}
	s.Equal(http.StatusTooManyRequests, last.Code)
	s.NotEmpty(last.Header().Get("Retry-After"))
	s.Equal("0", last.Header().Get("X-RateLimit-Remaining"))

	s.Equal(http.StatusOK, s.do(http.MethodGet, "/health", nil, "").Code)
	s.Equal(http.StatusOK, s.do(http.MethodGet, "/", nil, "").Code)
}

func TestRateLimitedRouterTestSuite(t *testing.T) {
	suite.Run(t, new(RateLimitedRouterTestSuite))
}

func TestHealth_DatabaseDown(t *testing.T) {
	gin.SetMode(gin.TestMode)

	testDB := testutil.SetupTestDatabase(t)
	sqlDB, err := testDB.DB.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	h := handler.NewHealthHandler(testDB.DB, testConfig(), false)
	router := gin.New()
	router.GET("/health", h.Health)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "SERVICE_UNAVAILABLE", body["code"])
}
