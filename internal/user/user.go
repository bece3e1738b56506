// internal/user/user.go
//
// Admin-console users: model, query helpers, and credential checks.
//
// Context
// -------
// The console is small: a handful of operator accounts in one `user`
// table, bcrypt password hashes, no roles.  Every account can do
// everything, and the only guarded invariant is that the last account
// cannot delete itself out of the system.
//
// Notes
// -----
// • Oxford commas, two spaces after periods.
package user

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"
)

// ErrNotFound is returned when a username or id matches no row.
var ErrNotFound = errors.New("user not found")

// ErrLastUser is returned by Delete when it would remove the final account.
var ErrLastUser = errors.New("cannot delete the last user")

// Record mirrors one row in the `user` table.  PasswordHash never serialises
// to JSON.
type Record struct {
	ID           int64  `db:"id" json:"id"`
	Username     string `db:"username" json:"username"`
	PasswordHash string `db:"password_hash" json:"-"`
}

// All returns every account for the admin user table.
func All(ctx context.Context, db *sqlx.DB) ([]Record, error) {
	var rows []Record
	const q = `SELECT id, username, password_hash FROM user ORDER BY id`
	if err := db.SelectContext(ctx, &rows, q); err != nil {
		return nil, err
	}
	return rows, nil
}

// ByUsername fetches one account.
func ByUsername(ctx context.Context, db *sqlx.DB, username string) (*Record, error) {
	const q = `SELECT id, username, password_hash FROM user
        WHERE username = ? LIMIT 1`
	var rec Record
	if err := db.GetContext(ctx, &rec, q, username); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

// Create inserts an account with a freshly hashed password.
func Create(ctx context.Context, db *sqlx.DB, username, password string) (int64, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return 0, err
	}
	res, err := db.ExecContext(ctx,
		`INSERT INTO user (username, password_hash) VALUES (?, ?)`,
		username, string(hash))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// SetPassword replaces one account's hash.
func SetPassword(ctx context.Context, db *sqlx.DB, id int64, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	res, err := db.ExecContext(ctx,
		`UPDATE user SET password_hash = ? WHERE id = ?`, string(hash), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes an account, refusing to remove the last one.
func Delete(ctx context.Context, db *sqlx.DB, id int64) error {
	var total int
	if err := db.GetContext(ctx, &total, `SELECT COUNT(*) FROM user`); err != nil {
		return err
	}
	if total <= 1 {
		return ErrLastUser
	}
	res, err := db.ExecContext(ctx, `DELETE FROM user WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// CheckPassword reports whether the cleartext matches the stored hash.
func (r *Record) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(r.PasswordHash), []byte(password)) == nil
}
