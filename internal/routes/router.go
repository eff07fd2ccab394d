package routes

import (
	"todo-api/internal/cache"
	"todo-api/internal/controller"
	"todo-api/internal/middleware"
	"todo-api/internal/repository"

	"github.com/gin-gonic/gin"
)

// Deps are the long-lived collaborators shared by all requests.
type Deps struct {
	Repo        repository.Repository
	Cache       *cache.Cache
	Events      controller.Publisher
	CORSOrigins []string
}

func Router(d Deps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID(), middleware.AccessLog(), middleware.CORS(d.CORSOrigins))

	// Health for load balancers and K8s liveness checks
	router.GET("/health", controller.Health)
	router.GET("/ready", controller.Ready(d.Repo, d.Cache))

	todos := controller.NewTodos(d.Repo, d.Cache, d.Events)
	api := router.Group("/api")
	{
		api.GET("/todos", todos.List)
		api.POST("/todos", todos.Create)
		api.PUT("/todos/:id", todos.Toggle)
		api.DELETE("/todos/:id", todos.Delete)
	}

	return router
}
