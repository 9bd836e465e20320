package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const userColumns = "id, username, password_hash, root_path, admin, created_at, updated_at"

func scanUser(row interface{ Scan(...any) error }) (*User, error) {
	var u User
	var rootPath sql.NullString
	var createdAt, updatedAt int64
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &rootPath, &u.Admin, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	u.RootPath = rootPath.String
	u.CreatedAt = time.Unix(createdAt, 0)
	u.UpdatedAt = time.Unix(updatedAt, 0)
	return &u, nil
}

// CreateUser creates a user with a bcrypt hash of password. An empty
// rootPath leaves the user unscannable.
func (d *Database) CreateUser(ctx context.Context, username, password, rootPath string, admin bool) (*User, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("create_user", start, err) }()

	username = strings.TrimSpace(username)
	if username == "" {
		err = fmt.Errorf("username must not be empty")
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	id := uuid.NewString()
	_, err = d.db.ExecContext(ctx,
		"INSERT INTO users (id, username, password_hash, root_path, admin) VALUES (?, ?, ?, ?, ?)",
		id, username, string(hash), nullString(rootPath), admin,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create user %q: %w", username, err)
	}

	var u *User
	u, err = scanUser(d.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id))
	return u, err
}

// FindUserByID returns ErrNotFound when no user has the id.
func (d *Database) FindUserByID(ctx context.Context, id string) (*User, error) {
	return d.findUser(ctx, "find_user_by_id", "id", id)
}

// FindUserByUsername returns ErrNotFound when no user has the name.
func (d *Database) FindUserByUsername(ctx context.Context, username string) (*User, error) {
	return d.findUser(ctx, "find_user_by_username", "username", username)
}

func (d *Database) findUser(ctx context.Context, op, column, value string) (*User, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery(op, start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var u *User
	u, err = scanUser(d.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE "+column+" = ?", value))
	if err != nil {
		err = notFound(err)
		return nil, err
	}
	return u, nil
}

// ListUsers returns every user ordered by username.
func (d *Database) ListUsers(ctx context.Context) ([]User, error) {
	return d.listUsers(ctx, "list_users", "")
}

// ListUsersWithRootPath returns the users a full scan walks.
func (d *Database) ListUsersWithRootPath(ctx context.Context) ([]User, error) {
	return d.listUsers(ctx, "list_users_with_root", "WHERE root_path IS NOT NULL AND root_path != ''")
}

func (d *Database) listUsers(ctx context.Context, op, where string) ([]User, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery(op, start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, "SELECT "+userColumns+" FROM users "+where+" ORDER BY username")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u *User
		if u, err = scanUser(rows); err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	err = rows.Err()
	return users, err
}

// SetUserRootPath changes the library root of a user. An empty path makes
// the user unscannable.
func (d *Database) SetUserRootPath(ctx context.Context, id, rootPath string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("set_user_root", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	err = d.updateUser(ctx, "UPDATE users SET root_path = ?, updated_at = strftime('%s', 'now') WHERE id = ?", nullString(rootPath), id)
	return err
}

// SetUserPassword replaces the password hash of a user.
func (d *Database) SetUserPassword(ctx context.Context, id, password string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("set_user_password", start, err) }()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	err = d.updateUser(ctx, "UPDATE users SET password_hash = ?, updated_at = strftime('%s', 'now') WHERE id = ?", string(hash), id)
	return err
}

func (d *Database) updateUser(ctx context.Context, query string, args ...any) error {
	result, err := d.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}

// CheckPassword reports whether password matches the stored hash.
func (u *User) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
