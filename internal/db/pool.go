package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bloodbridge/donor-extraction-service/internal/models"
)

// ErrNotConfigured is returned when neither a URL nor DB_* variables are set.
var ErrNotConfigured = errors.New("no database configuration")

// Store is the Postgres extraction attempt log.
type Store struct {
	pool *pgxpool.Pool
}

// ConnString returns cfg.URL, or builds one from DB_HOST, DB_PORT,
// DB_USER, DB_PASSWORD and DB_NAME.
func ConnString(cfg models.DatabaseConfig, getenv func(string) string) (string, error) {
	if cfg.URL != "" {
		return cfg.URL, nil
	}
	host := getenv("DB_HOST")
	port := getenv("DB_PORT")
	user := getenv("DB_USER")
	password := getenv("DB_PASSWORD")
	dbname := getenv("DB_NAME")

	if host == "" || user == "" || dbname == "" {
		return "", ErrNotConfigured
	}
	if port == "" {
		port = "5432"
	}
	return fmt.Sprintf("postgresql://%s:%s@%s:%s/%s?sslmode=disable", user, password, host, port, dbname), nil
}

// Open creates the connection pool and verifies it with a ping.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	// Connection pool settings optimized for PgBouncer
	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 1 * time.Hour
	config.MaxConnIdleTime = 30 * time.Minute
	config.HealthCheckPeriod = 1 * time.Minute

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the database connection pool
func (s *Store) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}
