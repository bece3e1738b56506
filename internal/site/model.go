package site

import "time"

// Record mirrors one row in the persistent `site` table.  A directory entry
// carries up to four URL-bearing fields:
//
//   - URL         – primary address, always present.
//   - BackupURL   – public fallback endpoint, nullable.
//   - InternalURL – LAN/VPN endpoint, nullable.
//   - Logo        – icon address, nullable.
//
// Only rows with PortUpdateEligible set are candidates for the port
// remapping engine; everything else is never touched by bulk rewrites.
type Record struct {
	ID                 int64     `db:"id" json:"id"`
	CategoryID         int64     `db:"category_id" json:"category_id"`
	Title              string    `db:"title" json:"title"`
	Description        string    `db:"description" json:"description"`
	URL                string    `db:"url" json:"url"`
	BackupURL          *string   `db:"backup_url" json:"backup_url"`
	InternalURL        *string   `db:"internal_url" json:"internal_url"`
	Logo               *string   `db:"logo" json:"logo"`
	SortOrder          int       `db:"sort_order" json:"sort_order"`
	Visible            bool      `db:"visible" json:"visible"`
	PortUpdateEligible bool      `db:"port_update_eligible" json:"port_update_eligible"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}

// URLField names one of the four URL-bearing columns.  The remap engine
// stages changes as (field, value) pairs against this closed set, so no SQL
// is ever assembled from request input.
type URLField string

const (
	FieldURL         URLField = "url"
	FieldBackupURL   URLField = "backup_url"
	FieldInternalURL URLField = "internal_url"
	FieldLogo        URLField = "logo"
)

// URLFields lists the four columns in scan order.  The remap engine walks
// them per record.
var URLFields = [4]URLField{FieldURL, FieldBackupURL, FieldInternalURL, FieldLogo}

// URLChange is one staged rewrite for a single column.
type URLChange struct {
	Field URLField
	Value string
}

// FieldValue returns the current value of the named URL column, with ok
// reporting whether the column is non-NULL.
func (r *Record) FieldValue(f URLField) (string, bool) {
	switch f {
	case FieldURL:
		return r.URL, true
	case FieldBackupURL:
		if r.BackupURL != nil {
			return *r.BackupURL, true
		}
	case FieldInternalURL:
		if r.InternalURL != nil {
			return *r.InternalURL, true
		}
	case FieldLogo:
		if r.Logo != nil {
			return *r.Logo, true
		}
	}
	return "", false
}
