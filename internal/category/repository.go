// internal/category/repository.go
//
// Query helpers for the `category` table.  Same thin, free-function shape
// as the site repository; callers own transactions and caching.
package category

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

// ErrNotFound is returned when an id does not match a category row.
var ErrNotFound = errors.New("category not found")

const columns = `id, name, icon, sort_order, visible, created_at, updated_at`

// All returns every category ordered for the admin table.
func All(ctx context.Context, db *sqlx.DB) ([]Record, error) {
	const q = `SELECT ` + columns + ` FROM category ORDER BY sort_order, id`
	var rows []Record
	if err := db.SelectContext(ctx, &rows, q); err != nil {
		return nil, err
	}
	return rows, nil
}

// AllVisible returns the categories the public navigation payload shows.
func AllVisible(ctx context.Context, db *sqlx.DB) ([]Record, error) {
	const q = `SELECT ` + columns + `
        FROM   category
        WHERE  visible = TRUE
        ORDER  BY sort_order, id`
	var rows []Record
	if err := db.SelectContext(ctx, &rows, q); err != nil {
		return nil, err
	}
	return rows, nil
}

// ByID fetches a single category row.
func ByID(ctx context.Context, db *sqlx.DB, id int64) (*Record, error) {
	const q = `SELECT ` + columns + ` FROM category WHERE id = ? LIMIT 1`
	var rec Record
	if err := db.GetContext(ctx, &rec, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

// Insert creates a category row and returns its id.
func Insert(ctx context.Context, db *sqlx.DB, r *Record) (int64, error) {
	const q = `INSERT INTO category (name, icon, sort_order, visible)
        VALUES (?, ?, ?, ?)`
	res, err := db.ExecContext(ctx, q, r.Name, r.Icon, r.SortOrder, r.Visible)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// Update overwrites every editable column of one category row.
func Update(ctx context.Context, db *sqlx.DB, r *Record) error {
	const q = `UPDATE category SET
        name = ?, icon = ?, sort_order = ?, visible = ?
        WHERE id = ?`
	res, err := db.ExecContext(ctx, q, r.Name, r.Icon, r.SortOrder, r.Visible, r.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a category and re-homes nothing: sites under it keep their
// category_id and drop out of the navigation payload until reassigned.
func Delete(ctx context.Context, db *sqlx.DB, id int64) error {
	res, err := db.ExecContext(ctx, `DELETE FROM category WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
