// Package db holds the account store: a narrow interface over the users
// table and one adapter per supported backend.
package db

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"gatehouse/config"
	"gatehouse/models"
)

var (
	// ErrDuplicateEmail is returned by InsertUser when the email is taken.
	ErrDuplicateEmail = errors.New("account with this email already exists")
	// ErrNotFound is returned by FindUserByEmail when no row matches.
	ErrNotFound = errors.New("account not found")
	// ErrNotConfigured is returned by Open when the driver lacks settings.
	ErrNotConfigured = errors.New("account store is not configured")
)

// AccountStore is what the handlers need from the users table.
type AccountStore interface {
	InsertUser(ctx context.Context, email, passwordHash string) (*models.Account, error)
	FindUserByEmail(ctx context.Context, email string) (*models.Account, error)
}

// Store is an AccountStore that owns resources.
type Store interface {
	AccountStore
	Close() error
}

// Open builds the store selected by cfg.StoreDriver.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	if !cfg.StoreConfigured() {
		var missing []string
		for k, ok := range cfg.Presence() {
			if !ok {
				missing = append(missing, k)
			}
		}
		return nil, fmt.Errorf("%w: missing %v", ErrNotConfigured, missing)
	}

	var (
		s   Store
		err error
	)
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		s, err = OpenPostgres(ctx, cfg.DatabaseURL)
	case config.DriverSQLite:
		s, err = OpenSQLite(cfg.SQLitePath)
	default:
		s, err = NewSupabaseStore(cfg.SupabaseURL, cfg.SupabaseKey, cfg.SupabaseTable,
			&http.Client{Timeout: 15 * time.Second})
	}
	// Never hand back a typed nil inside the interface.
	if err != nil {
		return nil, err
	}
	return s, nil
}
