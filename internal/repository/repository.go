// Package repository is the document store behind the todo API.
//
// Every backend assigns opaque string ids, enforces the required text field
// and toggles completion atomically.
package repository

import (
	"context"
	"errors"
	"fmt"

	"todo-api/internal/models"
)

var (
	// ErrNotFound is returned when no todo has the requested id.
	ErrNotFound = errors.New("todo not found")
	// ErrInvalid is returned when a todo fails the store's field constraints.
	ErrInvalid = errors.New("invalid todo")
)

// Repository is the set of store operations the handlers need.
type Repository interface {
	// List returns all todos in store-native order. Never nil on success.
	List(ctx context.Context) ([]models.Todo, error)
	// Create stores a new todo with completed=false and sets its ID.
	Create(ctx context.Context, todo *models.Todo) error
	// Toggle flips completed and returns the updated todo.
	Toggle(ctx context.Context, id string) (*models.Todo, error)
	// Delete removes the todo with the given id.
	Delete(ctx context.Context, id string) error
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

func prepare(todo *models.Todo) error {
	if err := todo.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	todo.Completed = false
	return nil
}
