package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/MrEthical07/authsession"
)

// ErrDuplicateEmail is returned by CreatePrincipal when the email is taken.
var ErrDuplicateEmail = errors.New("sqlite: email already registered")

// Store is an authsession.PrincipalStore over a SQLite database.
type Store struct {
	db *sql.DB
}

// NewStore opens dsn with the modernc driver. A single connection is kept
// so ":memory:" databases behave as one database.
func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(context.Background(), `PRAGMA foreign_keys = ON;`); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Ping verifies the database connection is still alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreatePrincipal inserts p. The email is stored lowercased.
func (s *Store) CreatePrincipal(ctx context.Context, p authsession.Principal) error {
	role := p.Role
	if role == "" {
		role = authsession.RoleOrdinary
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO principals (id, email, password_hash, active, role, refresh_token_hash)
		VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, strings.ToLower(strings.TrimSpace(p.Email)), p.PasswordHash, p.Active, string(role), p.RefreshTokenHash,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: principals.email") {
			return ErrDuplicateEmail
		}
		return err
	}
	return nil
}

const selectPrincipal = `
	SELECT id, email, password_hash, active, role, refresh_token_hash
	FROM principals`

// GetByID returns the principal with id.
func (s *Store) GetByID(ctx context.Context, id string) (authsession.Principal, error) {
	return s.queryOne(ctx, selectPrincipal+` WHERE id = ?`, id)
}

// GetByEmail looks the principal up by lowercased email.
func (s *Store) GetByEmail(ctx context.Context, email string) (authsession.Principal, error) {
	return s.queryOne(ctx, selectPrincipal+` WHERE email = ?`, strings.ToLower(email))
}

func (s *Store) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	return s.update(ctx, `UPDATE principals SET password_hash = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, hash, id)
}

// UpdateRefreshTokenHash stores hash. An empty hash clears the slot.
func (s *Store) UpdateRefreshTokenHash(ctx context.Context, id, hash string) error {
	return s.update(ctx, `UPDATE principals SET refresh_token_hash = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, hash, id)
}

func (s *Store) UpdateActiveFlag(ctx context.Context, id string, active bool) error {
	return s.update(ctx, `UPDATE principals SET active = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, active, id)
}

func (s *Store) queryOne(ctx context.Context, query string, arg string) (authsession.Principal, error) {
	var (
		p    authsession.Principal
		role string
	)
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&p.ID, &p.Email, &p.PasswordHash, &p.Active, &role, &p.RefreshTokenHash,
	)
	if err != nil {
		return authsession.Principal{}, mapNotFound(err)
	}
	p.Role = authsession.Role(role)
	return p, nil
}

func (s *Store) update(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return authsession.ErrPrincipalNotFound
	}
	return nil
}

func mapNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %v", authsession.ErrPrincipalNotFound, err)
	}
	return err
}
