// internal/nav/nav.go
//
// Public navigation payload.
//
// Context
// -------
// The dashboard front end renders one JSON document: visible categories in
// sort order, each holding its visible sites with every network endpoint
// (primary, backup, internal) so the client can pick the reachable one.
// Admin-only columns (eligibility flag, timestamps) stay out of the
// payload.
//
// Build hits three tables; internal/navcache wraps it with redis and
// singleflight so the hot path rarely reaches MySQL.
package nav

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/yanizio/waypost/internal/category"
	"github.com/yanizio/waypost/internal/settings"
	"github.com/yanizio/waypost/internal/site"
)

// Site is one public directory entry.
type Site struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	URL         string  `json:"url"`
	BackupURL   *string `json:"backup_url,omitempty"`
	InternalURL *string `json:"internal_url,omitempty"`
	Logo        *string `json:"logo,omitempty"`
}

// Category is one visible group with its sites.
type Category struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Icon  string `json:"icon,omitempty"`
	Sites []Site `json:"sites"`
}

// Payload is the whole navigation document.
type Payload struct {
	Title      string     `json:"title,omitempty"`
	Footer     string     `json:"footer,omitempty"`
	Categories []Category `json:"categories"`
}

// Build assembles the payload from the category, site, and setting tables.
// Sites whose category is hidden or missing are dropped.
func Build(ctx context.Context, db *sqlx.DB) (*Payload, error) {
	cats, err := category.AllVisible(ctx, db)
	if err != nil {
		return nil, err
	}
	sites, err := site.AllVisible(ctx, db)
	if err != nil {
		return nil, err
	}
	cfg, err := settings.All(ctx, db)
	if err != nil {
		return nil, err
	}

	byCat := make(map[int64][]Site, len(cats))
	for _, s := range sites {
		byCat[s.CategoryID] = append(byCat[s.CategoryID], Site{
			ID:          s.ID,
			Title:       s.Title,
			Description: s.Description,
			URL:         s.URL,
			BackupURL:   s.BackupURL,
			InternalURL: s.InternalURL,
			Logo:        s.Logo,
		})
	}

	p := &Payload{
		Title:      cfg["title"],
		Footer:     cfg["footer"],
		Categories: make([]Category, 0, len(cats)),
	}
	for _, c := range cats {
		p.Categories = append(p.Categories, Category{
			ID:    c.ID,
			Name:  c.Name,
			Icon:  c.Icon,
			Sites: byCat[c.ID],
		})
	}
	return p, nil
}
