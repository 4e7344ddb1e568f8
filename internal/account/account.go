// Package account is the thin, intentionally small boundary between the
// session/chat core and persistent user identity. Everything past
// resolving a login into a user id, username, and privilege level is out
// of scope for this engine — no registration flow, no profile editing, no
// gameplay stats writeback.
package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"golang.org/x/crypto/bcrypt"

	"github.com/bnchfan/bancho-core/internal/account/migrations"
)

// Account is the identity resolved from a successful login.
type Account struct {
	UserID          int32
	Username        string
	UsernameUnicode string
	Privileges      int64
}

// ErrInvalidCredentials is returned by Authenticate on a username/password
// mismatch, deliberately indistinguishable from "account does not exist"
// to avoid leaking which is the case.
var ErrInvalidCredentials = errors.New("account: invalid credentials")

// Store wraps a pgx connection pool scoped to exactly the account lookups
// this core needs.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to PostgreSQL and returns a Store handle.
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to account database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging account database: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

var gooseOnce sync.Once

// RunMigrations applies the account/snapshot_meta migration set.
func RunMigrations(ctx context.Context, dsn string) error {
	sqlDB, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("opening sql connection for migrations: %w", err)
	}
	defer sqlDB.Close()

	var dialectErr error
	gooseOnce.Do(func() {
		goose.SetBaseFS(migrations.FS)
		dialectErr = goose.SetDialect("postgres")
	})
	if dialectErr != nil {
		return fmt.Errorf("setting goose dialect: %w", dialectErr)
	}
	if err := goose.UpContext(ctx, sqlDB, "."); err != nil {
		return fmt.Errorf("running account migrations: %w", err)
	}
	return nil
}

// Authenticate resolves a login attempt into an Account, checking the
// submitted password against the stored bcrypt hash.
func (s *Store) Authenticate(ctx context.Context, username, password string) (*Account, error) {
	var acc Account
	var hash string
	err := s.pool.QueryRow(ctx,
		`SELECT user_id, username, password_hash, privileges FROM accounts WHERE username = $1`,
		username,
	).Scan(&acc.UserID, &acc.Username, &hash, &acc.Privileges)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("querying account %q: %w", username, err)
	}
	acc.UsernameUnicode = acc.Username

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	if _, err := s.pool.Exec(ctx, `UPDATE accounts SET last_login_at = $1 WHERE user_id = $2`, time.Now(), acc.UserID); err != nil {
		return nil, fmt.Errorf("updating last_login_at for %q: %w", username, err)
	}

	return &acc, nil
}

// CreateAccount inserts a new account with a bcrypt-hashed password. Used
// when the process config enables auto-create-on-first-login.
func (s *Store) CreateAccount(ctx context.Context, username, password string) (*Account, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password for %q: %w", username, err)
	}

	var acc Account
	err = s.pool.QueryRow(ctx,
		`INSERT INTO accounts (username, password_hash) VALUES ($1, $2)
		 RETURNING user_id, username, privileges`,
		username, string(hash),
	).Scan(&acc.UserID, &acc.Username, &acc.Privileges)
	if err != nil {
		return nil, fmt.Errorf("creating account %q: %w", username, err)
	}
	acc.UsernameUnicode = acc.Username
	return &acc, nil
}
