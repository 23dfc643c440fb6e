package db

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"gatehouse/models"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// PostgresStore talks to the users table directly, e.g. a Supabase project
// reached over its Postgres connection string.
type PostgresStore struct {
	db *sql.DB
}

// OpenPostgres connects to dsn and applies the embedded migrations.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	conn, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := RunMigrations(ctx, conn); err != nil {
		conn.Close()
		return nil, err
	}
	return NewPostgresStore(conn), nil
}

func NewPostgresStore(conn *sql.DB) *PostgresStore {
	return &PostgresStore{db: conn}
}

// RunMigrations applies the embedded goose migrations.
func RunMigrations(ctx context.Context, conn *sql.DB) error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, conn, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func (s *PostgresStore) InsertUser(ctx context.Context, email, passwordHash string) (*models.Account, error) {
	const query = `INSERT INTO users (email, password_hash)
		VALUES ($1, $2)
		RETURNING id::text, email, created_at`

	acc := &models.Account{PasswordHash: passwordHash}
	err := s.db.QueryRowContext(ctx, query, email, passwordHash).
		Scan(&acc.ID, &acc.Email, &acc.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}
	return acc, nil
}

func (s *PostgresStore) FindUserByEmail(ctx context.Context, email string) (*models.Account, error) {
	const query = `SELECT id::text, email, password_hash, created_at FROM users WHERE email = $1`

	acc := &models.Account{}
	err := s.db.QueryRowContext(ctx, query, email).
		Scan(&acc.ID, &acc.Email, &acc.PasswordHash, &acc.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	return acc, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
