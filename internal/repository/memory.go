package repository

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"todo-api/internal/models"
)

// Memory is a process-local store. Order is insertion order.
type Memory struct {
	mu    sync.Mutex
	order []string
	todos map[string]models.Todo
}

// NewMemory returns an empty in-memory repository.
func NewMemory() *Memory {
	return &Memory{todos: make(map[string]models.Todo)}
}

func (m *Memory) List(ctx context.Context) ([]models.Todo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Todo, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.todos[id])
	}
	return out, nil
}

func (m *Memory) Create(ctx context.Context, todo *models.Todo) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := prepare(todo); err != nil {
		return err
	}
	todo.ID = uuid.New().String()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.todos[todo.ID] = *todo
	m.order = append(m.order, todo.ID)
	return nil
}

func (m *Memory) Toggle(ctx context.Context, id string) (*models.Todo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.todos[id]
	if !ok {
		return nil, ErrNotFound
	}
	t.Completed = !t.Completed
	m.todos[id] = t
	return &t, nil
}

func (m *Memory) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.todos[id]; !ok {
		return ErrNotFound
	}
	delete(m.todos, id)
	for i, v := range m.order {
		if v == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

func (m *Memory) Ping(ctx context.Context) error { return ctx.Err() }

func (m *Memory) Close(context.Context) error { return nil }
