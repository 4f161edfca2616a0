package server

import (
	"github.com/Baaaki/taskvault/internal/broker"
	"github.com/Baaaki/taskvault/internal/config"
	"github.com/Baaaki/taskvault/internal/handler"
	"github.com/Baaaki/taskvault/internal/middleware"
	"github.com/Baaaki/taskvault/internal/service"
	"github.com/Baaaki/taskvault/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

// Dependencies are the collaborators NewRouter wires into handlers.
type Dependencies struct {
	Config      *config.Config
	DB          *gorm.DB
	AuthService *service.AuthService
	TaskService *service.TaskService
	Broker      broker.TaskEventBroker
	Limiter     middleware.Limiter
}

// NewRouter builds the complete HTTP surface. main and the end-to-end tests
// both use it.
func NewRouter(deps Dependencies) *gin.Engine {
	registerFieldNames()

	eventBroker := deps.Broker
	if eventBroker == nil {
		eventBroker = broker.NewNopBroker()
	}

	authHandler := handler.NewAuthHandler(deps.AuthService)
	taskHandler := handler.NewTaskHandler(deps.TaskService)
	eventsHandler := handler.NewEventsHandler(eventBroker)
	healthHandler := handler.NewHealthHandler(deps.DB, deps.Config, !isNop(eventBroker))

	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.RequestLogger(),
		middleware.SecurityHeadersMiddleware(),
		middleware.HSTSMiddleware(deps.Config.IsProduction()),
		middleware.CORSMiddleware(deps.Config.CORSOrigins),
	)
	if deps.Limiter != nil {
		router.Use(middleware.NewRateLimiter(deps.Limiter, "/", "/health").Middleware())
	}

	router.GET("/", healthHandler.Info)
	router.GET("/health", healthHandler.Health)

	requireAuth := middleware.AuthMiddleware(deps.AuthService)
	api := router.Group(handler.APIBasePath)

	// Public routes
	auth := api.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/login-json", authHandler.LoginJSON)
	}
	api.GET("/tasks/public/stats", taskHandler.Stats)

	// Protected routes (require JWT)
	me := auth.Group("/me", requireAuth)
	{
		me.GET("", authHandler.Me)
		me.PUT("", authHandler.UpdateMe)
		me.DELETE("", authHandler.DeleteMe)
	}

	tasks := api.Group("/tasks", requireAuth)
	{
		tasks.POST("/", taskHandler.Create)
		tasks.GET("/", taskHandler.List)
		tasks.POST("", taskHandler.Create)
		tasks.GET("", taskHandler.List)
		tasks.GET("/:id", taskHandler.Get)
		tasks.PUT("/:id", taskHandler.Update)
		tasks.DELETE("/:id", taskHandler.Delete)
	}

	api.GET("/ws/tasks", requireAuth, eventsHandler.StreamTasks)

	return router
}

// registerFieldNames makes gin's binding errors name fields the way clients
// send them.
func registerFieldNames() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(utils.FieldName)
	}
}

func isNop(b broker.TaskEventBroker) bool {
	switch b.(type) {
	case broker.NopBroker, *broker.NopBroker:
		return true
	default:
		return false
	}
}
