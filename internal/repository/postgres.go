package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"todo-api/internal/models"
	"todo-api/pkg/logger"
)

const schema = `CREATE TABLE IF NOT EXISTS todos (
	seq       BIGSERIAL PRIMARY KEY,
	id        TEXT NOT NULL UNIQUE,
	text      TEXT NOT NULL CHECK (text <> ''),
	completed BOOLEAN NOT NULL DEFAULT FALSE
)`

// Postgres stores todos in a single table. IDs are UUID strings.
type Postgres struct {
	db *sql.DB
}

// NewPostgres wraps an open pool.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// EnsureSchema creates the todos table when it does not exist.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, schema)
	return err
}

func (p *Postgres) List(ctx context.Context) ([]models.Todo, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id, text, completed FROM todos ORDER BY seq`)
	if err != nil {
		logger.Error(ctx, "Repository List failed", "error", err)
		return nil, err
	}
	defer rows.Close()
	todos := make([]models.Todo, 0)
	for rows.Next() {
		var t models.Todo
		if err := rows.Scan(&t.ID, &t.Text, &t.Completed); err != nil {
			logger.Error(ctx, "Repository scan todo failed", "error", err)
			return nil, err
		}
		todos = append(todos, t)
	}
	return todos, rows.Err()
}

func (p *Postgres) Create(ctx context.Context, todo *models.Todo) error {
	if err := prepare(todo); err != nil {
		return err
	}
	id := uuid.New().String()
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO todos (id, text, completed) VALUES ($1, $2, FALSE)`, id, todo.Text)
	if err != nil {
		logger.Error(ctx, "Repository Create failed", "error", err)
		return err
	}
	todo.ID = id
	return nil
}

func (p *Postgres) Toggle(ctx context.Context, id string) (*models.Todo, error) {
	var t models.Todo
	err := p.db.QueryRowContext(ctx,
		`UPDATE todos SET completed = NOT completed WHERE id = $1 RETURNING id, text, completed`, id).
		Scan(&t.ID, &t.Text, &t.Completed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		logger.Error(ctx, "Repository Toggle failed", "error", err, "id", id)
		return nil, err
	}
	return &t, nil
}

func (p *Postgres) Delete(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM todos WHERE id = $1`, id)
	if err != nil {
		logger.Error(ctx, "Repository Delete failed", "error", err, "id", id)
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func (p *Postgres) Close(context.Context) error {
	return p.db.Close()
}
