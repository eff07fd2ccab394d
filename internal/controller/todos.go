package controller

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/singleflight"
	"todo-api/internal/cache"
	"todo-api/internal/models"
	"todo-api/internal/repository"
	"todo-api/pkg/logger"
)

// Error messages returned in the {"error": ...} body.
const (
	msgFetchFailed  = "Failed to fetch todos"
	msgCreateFailed = "Failed to create todo"
	msgUpdateFailed = "Failed to update todo"
	msgDeleteFailed = "Failed to delete todo"
	msgNotFound     = "Todo not found"
)

const jsonContentType = "application/json; charset=utf-8"

// Publisher receives committed todo changes.
type Publisher interface {
	Publish(ctx context.Context, action string, todo models.Todo) error
}

// Todos serves the /api/todos routes.
type Todos struct {
	repo   repository.Repository
	cache  *cache.Cache
	events Publisher
	group  singleflight.Group
}

// NewTodos builds the handlers. cache and events may be nil.
func NewTodos(repo repository.Repository, c *cache.Cache, events Publisher) *Todos {
	return &Todos{repo: repo, cache: c, events: events}
}

type createRequest struct {
	Text string `json:"text" binding:"required"`
}

// List returns all todos, cache first. Concurrent misses for the same cache
// version share one store read.
func (h *Todos) List(c *gin.Context) {
	ctx := c.Request.Context()
	b, version, ok := h.cache.GetTodos(ctx)
	if ok {
		c.Data(http.StatusOK, jsonContentType, b)
		return
	}

	var err error
	if version < 0 {
		b, err = h.loadTodos(ctx)
	} else {
		var v interface{}
		v, err, _ = h.group.Do("todos:v"+strconv.FormatInt(version, 10), func() (interface{}, error) {
			return h.loadTodos(context.WithoutCancel(ctx))
		})
		if err == nil {
			b = v.([]byte)
		}
	}
	if err != nil {
		if ctx.Err() != nil || isContextErr(err) {
			return
		}
		logger.Error(ctx, "List todos failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgFetchFailed})
		return
	}
	h.cache.SetTodos(ctx, version, b)
	c.Data(http.StatusOK, jsonContentType, b)
}

func (h *Todos) loadTodos(ctx context.Context) ([]byte, error) {
	todos, err := h.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if todos == nil {
		todos = []models.Todo{}
	}
	return json.Marshal(todos)
}

// Create stores a new todo. Any failure, validation or write, is a 400.
func (h *Todos) Create(c *gin.Context) {
	ctx := c.Request.Context()
	var body createRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		logger.Debug(ctx, "Create todo bad request", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": msgCreateFailed})
		return
	}
	todo := &models.Todo{Text: body.Text}
	if err := h.repo.Create(ctx, todo); err != nil {
		logger.Warn(ctx, "Create todo failed", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": msgCreateFailed})
		return
	}
	h.committed(ctx, models.ActionCreated, *todo)
	c.JSON(http.StatusCreated, todo)
}

// Toggle flips the completed flag of one todo.
func (h *Todos) Toggle(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	todo, err := h.repo.Toggle(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": msgNotFound})
		return
	}
	if err != nil {
		if isContextErr(err) {
			return
		}
		logger.Error(ctx, "Toggle todo failed", "error", err, "id", id)
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgUpdateFailed})
		return
	}
	h.committed(ctx, models.ActionToggled, *todo)
	c.JSON(http.StatusOK, todo)
}

// Delete removes one todo and answers 204 with no body.
func (h *Todos) Delete(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	err := h.repo.Delete(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": msgNotFound})
		return
	}
	if err != nil {
		if isContextErr(err) {
			return
		}
		logger.Error(ctx, "Delete todo failed", "error", err, "id", id)
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgDeleteFailed})
		return
	}
	h.committed(ctx, models.ActionDeleted, models.Todo{ID: id})
	c.Status(http.StatusNoContent)
}

// committed runs after a successful write: the cache is invalidated before the
// response so the caller reads its own write, then the change is published.
func (h *Todos) committed(ctx context.Context, action string, todo models.Todo) {
	h.cache.InvalidateTodos(ctx)
	if h.events == nil {
		return
	}
	if err := h.events.Publish(ctx, action, todo); err != nil {
		logger.Error(ctx, "Publish todo event failed", "error", err, "action", action, "id", todo.ID)
	}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
