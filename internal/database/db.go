package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"
	"todo-api/internal/config"
	"todo-api/internal/repository"
	"todo-api/pkg/logger"
)

const (
	connectTimeout     = 10 * time.Second
	defaultMongoDBName = "todos"
)

// Open connects the store backend selected in cfg and returns it as a repository.
// The returned repository owns the connection; Close releases it.
func Open(ctx context.Context, cfg *config.Config) (repository.Repository, error) {
	switch cfg.StoreBackend {
	case config.BackendMongo:
		client, dbName, err := OpenMongo(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return repository.NewMongo(client, dbName), nil
	case config.BackendPostgres:
		db, err := OpenPostgres(ctx, cfg)
		if err != nil {
			return nil, err
		}
		repo := repository.NewPostgres(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		return repo, nil
	case config.BackendMemory:
		logger.Warn(ctx, "Using in-memory store; data is lost on restart")
		return repository.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

// OpenPostgres opens and pings the Postgres pool.
func OpenPostgres(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.DBPoolSize)
	db.SetMaxIdleConns(cfg.DBPoolSize / 2)

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	logger.Info(ctx, "Database pool initialized", "max_open", cfg.DBPoolSize)
	return db, nil
}

// OpenMongo connects to MongoDB and returns the client and the database name to use.
// The name comes from MONGO_DATABASE, then the URI path, then "todos".
func OpenMongo(ctx context.Context, cfg *config.Config) (*mongo.Client, string, error) {
	cs, err := connstring.ParseAndValidate(cfg.MongoURI)
	if err != nil {
		return nil, "", fmt.Errorf("parse MONGO_URI: %w", err)
	}
	dbName := cfg.MongoDatabase
	if dbName == "" {
		dbName = cs.Database
	}
	if dbName == "" {
		dbName = defaultMongoDBName
	}

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, "", fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, "", fmt.Errorf("ping mongo: %w", err)
	}
	logger.Info(ctx, "Connected to MongoDB", "database", dbName)
	return client, dbName, nil
}
