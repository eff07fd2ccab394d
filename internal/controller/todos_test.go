package controller

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"todo-api/internal/cache"
	"todo-api/internal/models"
	"todo-api/internal/repository"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type published struct {
	action string
	todo   models.Todo
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, action string, todo models.Todo) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{action, todo})
	return p.err
}

// failingRepo fails every call with err.
type failingRepo struct{ err error }

func (r failingRepo) List(context.Context) ([]models.Todo, error) {
	return nil, r.err
}

func (r failingRepo) Create(context.Context, *models.Todo) error {
	return r.err
}

func (r failingRepo) Toggle(context.Context, string) (*models.Todo, error) {
	return nil, r.err
}

func (r failingRepo) Delete(context.Context, string) error {
	return r.err
}

func (r failingRepo) Ping(context.Context) error {
	return r.err
}

func (r failingRepo) Close(context.Context) error {
	return nil
}

func newRouter(h *Todos) *gin.Engine {
	r := gin.New()
	r.GET("/api/todos", h.List)
	r.POST("/api/todos", h.Create)
	r.PUT("/api/todos/:id", h.Toggle)
	r.DELETE("/api/todos/:id", h.Delete)
	return r
}

func do(t *testing.T, r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeTodo(t *testing.T, w *httptest.ResponseRecorder) models.Todo {
	t.Helper()
	var todo models.Todo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &todo))
	return todo
}

func decodeList(t *testing.T, w *httptest.ResponseRecorder) []models.Todo {
	t.Helper()
	var todos []models.Todo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &todos))
	return todos
}

func assertError(t *testing.T, w *httptest.ResponseRecorder, status int, msg string) {
	t.Helper()
	assert.Equal(t, status, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, msg, body["error"])
}

func newTestCache(t *testing.T) *cache.Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return cache.NewWithClient(client, time.Minute)
}

func TestTodosAPI(t *testing.T) {
	setups := map[string]func(t *testing.T) *cache.Cache{
		"without cache": func(*testing.T) *cache.Cache { return nil },
		"with cache":    newTestCache,
	}
	for name, newCache := range setups {
		t.Run(name, func(t *testing.T) {
			runAPITests(t, func() *Todos {
				return NewTodos(repository.NewMemory(), newCache(t), nil)
			})
		})
	}
}

func runAPITests(t *testing.T, newHandler func() *Todos) {
	t.Run("list empty returns array", func(t *testing.T) {
		r := newRouter(newHandler())
		w := do(t, r, http.MethodGet, "/api/todos", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `[]`, w.Body.String())
		assert.Contains(t, w.Header().Get("Content-Type"), "application/json")
	})

	t.Run("create returns 201 with forced completed false", func(t *testing.T) {
		r := newRouter(newHandler())
		w := do(t, r, http.MethodPost, "/api/todos", `{"text":"buy milk","completed":true,"id":"mine"}`)
		require.Equal(t, http.StatusCreated, w.Code)
		todo := decodeTodo(t, w)
		assert.Equal(t, "buy milk", todo.Text)
		assert.False(t, todo.Completed)
		assert.NotEmpty(t, todo.ID)
		assert.NotEqual(t, "mine", todo.ID)
	})

	t.Run("create without text is 400 and persists nothing", func(t *testing.T) {
		r := newRouter(newHandler())
		for _, body := range []string{`{}`, `{"text":""}`, `not json`, `{"text":42}`} {
			w := do(t, r, http.MethodPost, "/api/todos", body)
			assertError(t, w, http.StatusBadRequest, msgCreateFailed)
		}
		w := do(t, r, http.MethodGet, "/api/todos", "")
		assert.Empty(t, decodeList(t, w))
	})

	t.Run("list after two creates", func(t *testing.T) {
		r := newRouter(newHandler())
		require.Equal(t, http.StatusOK, do(t, r, http.MethodGet, "/api/todos", "").Code)
		a := decodeTodo(t, do(t, r, http.MethodPost, "/api/todos", `{"text":"a"}`))
		b := decodeTodo(t, do(t, r, http.MethodPost, "/api/todos", `{"text":"b"}`))

		todos := decodeList(t, do(t, r, http.MethodGet, "/api/todos", ""))
		assert.Equal(t, []models.Todo{a, b}, todos)
	})

	t.Run("toggle twice round-trips", func(t *testing.T) {
		r := newRouter(newHandler())
		created := decodeTodo(t, do(t, r, http.MethodPost, "/api/todos", `{"text":"walk"}`))

		w := do(t, r, http.MethodPut, "/api/todos/"+created.ID, "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.True(t, decodeTodo(t, w).Completed)

		todos := decodeList(t, do(t, r, http.MethodGet, "/api/todos", ""))
		require.Len(t, todos, 1)
		assert.True(t, todos[0].Completed)

		w = do(t, r, http.MethodPut, "/api/todos/"+created.ID, "")
		require.Equal(t, http.StatusOK, w.Code)
		toggled := decodeTodo(t, w)
		assert.False(t, toggled.Completed)
		assert.Equal(t, created, toggled)
	})

	t.Run("unknown id is 404", func(t *testing.T) {
		r := newRouter(newHandler())
		assertError(t, do(t, r, http.MethodPut, "/api/todos/nope", ""), http.StatusNotFound, msgNotFound)
		assertError(t, do(t, r, http.MethodDelete, "/api/todos/nope", ""), http.StatusNotFound, msgNotFound)
	})

	t.Run("delete returns 204 and removes", func(t *testing.T) {
		r := newRouter(newHandler())
		keep := decodeTodo(t, do(t, r, http.MethodPost, "/api/todos", `{"text":"keep"}`))
		drop := decodeTodo(t, do(t, r, http.MethodPost, "/api/todos", `{"text":"drop"}`))
		require.Len(t, decodeList(t, do(t, r, http.MethodGet, "/api/todos", "")), 2)

		w := do(t, r, http.MethodDelete, "/api/todos/"+drop.ID, "")
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Empty(t, w.Body.Bytes())

		assert.Equal(t, []models.Todo{keep}, decodeList(t, do(t, r, http.MethodGet, "/api/todos", "")))
		assertError(t, do(t, r, http.MethodDelete, "/api/todos/"+drop.ID, ""), http.StatusNotFound, msgNotFound)
	})
}

func TestStoreFailures(t *testing.T) {
	r := newRouter(NewTodos(failingRepo{err: errors.New("connection refused")}, nil, nil))

	assertError(t, do(t, r, http.MethodGet, "/api/todos", ""), http.StatusInternalServerError, msgFetchFailed)
	assertError(t, do(t, r, http.MethodPost, "/api/todos", `{"text":"x"}`), http.StatusBadRequest, msgCreateFailed)
	assertError(t, do(t, r, http.MethodPut, "/api/todos/1", ""), http.StatusInternalServerError, msgUpdateFailed)
	assertError(t, do(t, r, http.MethodDelete, "/api/todos/1", ""), http.StatusInternalServerError, msgDeleteFailed)
}

func TestStoreFailuresWithCache(t *testing.T) {
	r := newRouter(NewTodos(failingRepo{err: errors.New("connection refused")}, newTestCache(t), nil))
	assertError(t, do(t, r, http.MethodGet, "/api/todos", ""), http.StatusInternalServerError, msgFetchFailed)
}

func TestEventsPublishedAfterWrites(t *testing.T) {
	pub := &recordingPublisher{}
	r := newRouter(NewTodos(repository.NewMemory(), nil, pub))

	created := decodeTodo(t, do(t, r, http.MethodPost, "/api/todos", `{"text":"x"}`))
	do(t, r, http.MethodPut, "/api/todos/"+created.ID, "")
	do(t, r, http.MethodDelete, "/api/todos/"+created.ID, "")
	do(t, r, http.MethodDelete, "/api/todos/"+created.ID, "")

	require.Len(t, pub.events, 3)
	assert.Equal(t, models.ActionCreated, pub.events[0].action)
	assert.Equal(t, created, pub.events[0].todo)
	assert.Equal(t, models.ActionToggled, pub.events[1].action)
	assert.True(t, pub.events[1].todo.Completed)
	assert.Equal(t, models.ActionDeleted, pub.events[2].action)
	assert.Equal(t, created.ID, pub.events[2].todo.ID)
}

func TestPublishFailureDoesNotFailWrite(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	r := newRouter(NewTodos(repository.NewMemory(), nil, pub))

	w := do(t, r, http.MethodPost, "/api/todos", `{"text":"x"}`)
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestListServedFromCache(t *testing.T) {
	repo := repository.NewMemory()
	c := newTestCache(t)
	r := newRouter(NewTodos(repo, c, nil))

	do(t, r, http.MethodPost, "/api/todos", `{"text":"cached"}`)
	first := do(t, r, http.MethodGet, "/api/todos", "")
	require.Equal(t, http.StatusOK, first.Code)

	// A write that bypasses the handlers is invisible until the cache is invalidated.
	require.NoError(t, repo.Create(context.Background(), &models.Todo{Text: "direct"}))
	second := do(t, r, http.MethodGet, "/api/todos", "")
	assert.JSONEq(t, first.Body.String(), second.Body.String())

	c.InvalidateTodos(context.Background())
	assert.Len(t, decodeList(t, do(t, r, http.MethodGet, "/api/todos", "")), 2)
}

// countingRepo counts List calls and holds each one until release is closed.
type countingRepo struct {
	repository.Repository
	lists   atomic.Int32
	entered chan struct{}
	release chan struct{}
}

func (r *countingRepo) List(ctx context.Context) ([]models.Todo, error) {
	if r.lists.Add(1) == 1 {
		close(r.entered)
	}
	<-r.release
	return r.Repository.List(ctx)
}

func TestConcurrentColdListsShareOneStoreRead(t *testing.T) {
	repo := &countingRepo{
		Repository: repository.NewMemory(),
		entered:    make(chan struct{}),
		release:    make(chan struct{}),
	}
	require.NoError(t, repo.Repository.Create(context.Background(), &models.Todo{Text: "shared"}))
	r := newRouter(NewTodos(repo, newTestCache(t), nil))

	const n = 20
	codes := make([]int, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			codes[i] = do(t, r, http.MethodGet, "/api/todos", "").Code
		}(i)
	}

	select {
	case <-repo.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("no request reached the store")
	}
	// Let the remaining requests queue behind the in-flight read.
	time.Sleep(100 * time.Millisecond)
	close(repo.release)
	wg.Wait()

	assert.Equal(t, int32(1), repo.lists.Load())
	for i, code := range codes {
		assert.Equal(t, http.StatusOK, code, "request %d", i)
	}
	assert.Len(t, decodeList(t, do(t, r, http.MethodGet, "/api/todos", "")), 1)
	assert.Equal(t, int32(1), repo.lists.Load(), "warm cache must not hit the store")
}
