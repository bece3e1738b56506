// internal/settings/settings.go
//
// Helpers for the key-value `setting` table (dashboard title, footer text,
// and similar presentation strings).  The map is read on every navigation
// payload rebuild, which the redis cache already de-duplicates, so there is
// no extra caching layer here.
package settings

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// All returns the full settings map.
func All(ctx context.Context, db *sqlx.DB) (map[string]string, error) {
	const q = "SELECT `key`, value FROM setting"
	rows := make([]struct {
		Key   string `db:"key"`
		Value string `db:"value"`
	}, 0, 8) // small default cap

	if err := db.SelectContext(ctx, &rows, q); err != nil {
		return nil, err
	}

	out := make(map[string]string, len(rows))
	for _, r := range rows {
		out[r.Key] = r.Value
	}
	return out, nil
}

// Put upserts one key.
func Put(ctx context.Context, db *sqlx.DB, key, value string) error {
	const q = "INSERT INTO setting (`key`, value) VALUES (?, ?) " +
		"ON DUPLICATE KEY UPDATE value = VALUES(value)"
	_, err := db.ExecContext(ctx, q, key, value)
	return err
}
