// internal/site/repository.go
//
// Query helpers for the `site` table.
//
// Context
// -------
// Helpers are thin, free functions taking a *sqlx.DB, in the same shape as
// the category and user repositories.  The only write with any subtlety is
// UpdateURLs: the remap engine stages per-column changes as typed
// (field, value) pairs, and the SET clause is assembled from a closed set
// of column constants, never from request strings.
//
// Notes
// -----
// • Oxford commas, two spaces after periods.
package site

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// ErrNotFound is returned when an id does not match a site row.
var ErrNotFound = errors.New("site not found")

const columns = `id, category_id, title, description, url, backup_url,
       internal_url, logo, sort_order, visible, port_update_eligible,
       created_at, updated_at`

// All returns every site ordered for the admin table.
func All(ctx context.Context, db *sqlx.DB) ([]Record, error) {
	const q = `SELECT ` + columns + `
        FROM   site
        ORDER  BY category_id, sort_order, id`
	var rows []Record
	if err := db.SelectContext(ctx, &rows, q); err != nil {
		return nil, err
	}
	return rows, nil
}

// AllVisible returns the records the public navigation payload shows,
// ordered by sort weight within each category.
func AllVisible(ctx context.Context, db *sqlx.DB) ([]Record, error) {
	const q = `SELECT ` + columns + `
        FROM   site
        WHERE  visible = TRUE
        ORDER  BY category_id, sort_order, id`
	var rows []Record
	if err := db.SelectContext(ctx, &rows, q); err != nil {
		return nil, err
	}
	return rows, nil
}

// AllEligible returns the candidates for the port remapping engine: every
// row whose port_update_eligible flag is set, visible or not.
func AllEligible(ctx context.Context, db *sqlx.DB) ([]Record, error) {
	const q = `SELECT ` + columns + `
        FROM   site
        WHERE  port_update_eligible = TRUE
        ORDER  BY id`
	var rows []Record
	if err := db.SelectContext(ctx, &rows, q); err != nil {
		return nil, err
	}
	return rows, nil
}

// ByID fetches a single site row.
func ByID(ctx context.Context, db *sqlx.DB, id int64) (*Record, error) {
	const q = `SELECT ` + columns + `
        FROM   site
        WHERE  id = ?
        LIMIT  1`
	var rec Record
	if err := db.GetContext(ctx, &rec, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

// Insert creates a site row and returns its id.
func Insert(ctx context.Context, db *sqlx.DB, r *Record) (int64, error) {
	const q = `INSERT INTO site
        (category_id, title, description, url, backup_url, internal_url,
         logo, sort_order, visible, port_update_eligible)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := db.ExecContext(ctx, q,
		r.CategoryID, r.Title, r.Description, r.URL, r.BackupURL,
		r.InternalURL, r.Logo, r.SortOrder, r.Visible, r.PortUpdateEligible)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// Update overwrites every editable column of one site row.
func Update(ctx context.Context, db *sqlx.DB, r *Record) error {
	const q = `UPDATE site SET
        category_id = ?, title = ?, description = ?, url = ?,
        backup_url = ?, internal_url = ?, logo = ?, sort_order = ?,
        visible = ?, port_update_eligible = ?
        WHERE id = ?`
	res, err := db.ExecContext(ctx, q,
		r.CategoryID, r.Title, r.Description, r.URL, r.BackupURL,
		r.InternalURL, r.Logo, r.SortOrder, r.Visible,
		r.PortUpdateEligible, r.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a site row.
func Delete(ctx context.Context, db *sqlx.DB, id int64) error {
	res, err := db.ExecContext(ctx, `DELETE FROM site WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// setClause maps each URL column to its fixed assignment fragment.  Keeping
// the fragments here, keyed by the closed URLField set, is what lets
// UpdateURLs build one UPDATE without concatenating request-derived SQL.
var setClause = map[URLField]string{
	FieldURL:         "url = ?",
	FieldBackupURL:   "backup_url = ?",
	FieldInternalURL: "internal_url = ?",
	FieldLogo:        "logo = ?",
}

// UpdateURLs persists the staged URL changes for one record in a single
// UPDATE, all-or-nothing.  Unknown fields and empty change sets are caller
// bugs and return an error rather than silently writing nothing.
func UpdateURLs(ctx context.Context, db *sqlx.DB, id int64, changes []URLChange) error {
	if len(changes) == 0 {
		return errors.New("update urls: empty change set")
	}

	set := make([]byte, 0, 64)
	args := make([]any, 0, len(changes)+1)
	for i, ch := range changes {
		frag, ok := setClause[ch.Field]
		if !ok {
			return fmt.Errorf("update urls: unknown field %q", ch.Field)
		}
		if i > 0 {
			set = append(set, ", "...)
		}
		set = append(set, frag...)
		args = append(args, ch.Value)
	}
	args = append(args, id)

	q := `UPDATE site SET ` + string(set) + ` WHERE id = ?`
	res, err := db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
