// internal/web/admin.go
//
// Admin console API: CRUD for categories, sites, users, and settings, plus
// the webhook-log browser.  Every write invalidates the navigation cache.
//
// Validation of request bodies uses go-playground/validator struct tags;
// the remap engine keeps its own ordered checks because its messages must
// name the offending value.
package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/yanizio/waypost/internal/category"
	"github.com/yanizio/waypost/internal/settings"
	"github.com/yanizio/waypost/internal/site"
	"github.com/yanizio/waypost/internal/user"
)

var validate = validator.New()

// idParam parses the {id} route parameter.
func idParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

func decodeValid(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return err
	}
	return validate.Struct(dst)
}

/*──────────────────────────── categories ──────────────────────────────────*/

type categoryPayload struct {
	Name      string `json:"name" validate:"required,max=100"`
	Icon      string `json:"icon" validate:"max=255"`
	SortOrder int    `json:"sort_order"`
	Visible   bool   `json:"visible"`
}

func handleCategoryList(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := category.All(r.Context(), d.DB)
		if err != nil {
			writeMessage(w, http.StatusInternalServerError, "list categories failed")
			return
		}
		writeJSON(w, http.StatusOK, rows)
	}
}

func handleCategoryCreate(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var p categoryPayload
		if err := decodeValid(r, &p); err != nil {
			writeMessage(w, http.StatusBadRequest, "invalid category: "+err.Error())
			return
		}
		id, err := category.Insert(r.Context(), d.DB, &category.Record{
			Name: p.Name, Icon: p.Icon, SortOrder: p.SortOrder, Visible: p.Visible,
		})
		if err != nil {
			writeMessage(w, http.StatusInternalServerError, "create category failed")
			return
		}
		d.Nav.Invalidate(r.Context())
		writeJSON(w, http.StatusCreated, map[string]any{"message": "category created", "id": id})
	}
}

func handleCategoryUpdate(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(r)
		if !ok {
			writeMessage(w, http.StatusBadRequest, "invalid category id")
			return
		}
		var p categoryPayload
		if err := decodeValid(r, &p); err != nil {
			writeMessage(w, http.StatusBadRequest, "invalid category: "+err.Error())
			return
		}
		err := category.Update(r.Context(), d.DB, &category.Record{
			ID: id, Name: p.Name, Icon: p.Icon, SortOrder: p.SortOrder, Visible: p.Visible,
		})
		switch {
		case errors.Is(err, category.ErrNotFound):
			writeMessage(w, http.StatusNotFound, "category not found")
		case err != nil:
			writeMessage(w, http.StatusInternalServerError, "update category failed")
		default:
			d.Nav.Invalidate(r.Context())
			writeMessage(w, http.StatusOK, "category updated")
		}
	}
}

func handleCategoryDelete(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(r)
		if !ok {
			writeMessage(w, http.StatusBadRequest, "invalid category id")
			return
		}
		err := category.Delete(r.Context(), d.DB, id)
		switch {
		case errors.Is(err, category.ErrNotFound):
			writeMessage(w, http.StatusNotFound, "category not found")
		case err != nil:
			writeMessage(w, http.StatusInternalServerError, "delete category failed")
		default:
			d.Nav.Invalidate(r.Context())
			writeMessage(w, http.StatusOK, "category deleted")
		}
	}
}

/*─────────────────────────────── sites ────────────────────────────────────*/

type sitePayload struct {
	CategoryID         int64   `json:"category_id" validate:"required,gt=0"`
	Title              string  `json:"title" validate:"required,max=100"`
	Description        string  `json:"description" validate:"max=500"`
	URL                string  `json:"url" validate:"required,url"`
	BackupURL          *string `json:"backup_url" validate:"omitempty,url"`
	InternalURL        *string `json:"internal_url" validate:"omitempty,url"`
	Logo               *string `json:"logo" validate:"omitempty,url"`
	SortOrder          int     `json:"sort_order"`
	Visible            bool    `json:"visible"`
	PortUpdateEligible bool    `json:"port_update_eligible"`
}

func (p *sitePayload) record(id int64) *site.Record {
	return &site.Record{
		ID:                 id,
		CategoryID:         p.CategoryID,
		Title:              p.Title,
		Description:        p.Description,
		URL:                p.URL,
		BackupURL:          p.BackupURL,
		InternalURL:        p.InternalURL,
		Logo:               p.Logo,
		SortOrder:          p.SortOrder,
		Visible:            p.Visible,
		PortUpdateEligible: p.PortUpdateEligible,
	}
}

func handleSiteList(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := site.All(r.Context(), d.DB)
		if err != nil {
			writeMessage(w, http.StatusInternalServerError, "list sites failed")
			return
		}
		writeJSON(w, http.StatusOK, rows)
	}
}

func handleSiteCreate(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var p sitePayload
		if err := decodeValid(r, &p); err != nil {
			writeMessage(w, http.StatusBadRequest, "invalid site: "+err.Error())
			return
		}
		id, err := site.Insert(r.Context(), d.DB, p.record(0))
		if err != nil {
			writeMessage(w, http.StatusInternalServerError, "create site failed")
			return
		}
		d.Nav.Invalidate(r.Context())
		writeJSON(w, http.StatusCreated, map[string]any{"message": "site created", "id": id})
	}
}

func handleSiteUpdate(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(r)
		if !ok {
			writeMessage(w, http.StatusBadRequest, "invalid site id")
			return
		}
		var p sitePayload
		if err := decodeValid(r, &p); err != nil {
			writeMessage(w, http.StatusBadRequest, "invalid site: "+err.Error())
			return
		}
		err := site.Update(r.Context(), d.DB, p.record(id))
		switch {
		case errors.Is(err, site.ErrNotFound):
			writeMessage(w, http.StatusNotFound, "site not found")
		case err != nil:
			writeMessage(w, http.StatusInternalServerError, "update site failed")
		default:
			d.Nav.Invalidate(r.Context())
			writeMessage(w, http.StatusOK, "site updated")
		}
	}
}

func handleSiteDelete(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(r)
		if !ok {
			writeMessage(w, http.StatusBadRequest, "invalid site id")
			return
		}
		err := site.Delete(r.Context(), d.DB, id)
		switch {
		case errors.Is(err, site.ErrNotFound):
			writeMessage(w, http.StatusNotFound, "site not found")
		case err != nil:
			writeMessage(w, http.StatusInternalServerError, "delete site failed")
		default:
			d.Nav.Invalidate(r.Context())
			writeMessage(w, http.StatusOK, "site deleted")
		}
	}
}

/*─────────────────────────────── users ────────────────────────────────────*/

type userPayload struct {
	Username string `json:"username" validate:"required,min=2,max=64"`
	Password string `json:"password" validate:"required,min=8"`
}

func handleUserList(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := user.All(r.Context(), d.DB)
		if err != nil {
			writeMessage(w, http.StatusInternalServerError, "list users failed")
			return
		}
		writeJSON(w, http.StatusOK, rows)
	}
}

func handleUserCreate(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var p userPayload
		if err := decodeValid(r, &p); err != nil {
			writeMessage(w, http.StatusBadRequest, "invalid user: "+err.Error())
			return
		}
		id, err := user.Create(r.Context(), d.DB, p.Username, p.Password)
		if err != nil {
			writeMessage(w, http.StatusInternalServerError, "create user failed")
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"message": "user created", "id": id})
	}
}

func handleUserPassword(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(r)
		if !ok {
			writeMessage(w, http.StatusBadRequest, "invalid user id")
			return
		}
		var p struct {
			Password string `json:"password" validate:"required,min=8"`
		}
		if err := decodeValid(r, &p); err != nil {
			writeMessage(w, http.StatusBadRequest, "invalid password: "+err.Error())
			return
		}
		err := user.SetPassword(r.Context(), d.DB, id, p.Password)
		switch {
		case errors.Is(err, user.ErrNotFound):
			writeMessage(w, http.StatusNotFound, "user not found")
		case err != nil:
			writeMessage(w, http.StatusInternalServerError, "set password failed")
		default:
			writeMessage(w, http.StatusOK, "password updated")
		}
	}
}

func handleUserDelete(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(r)
		if !ok {
			writeMessage(w, http.StatusBadRequest, "invalid user id")
			return
		}
		err := user.Delete(r.Context(), d.DB, id)
		switch {
		case errors.Is(err, user.ErrLastUser):
			writeMessage(w, http.StatusConflict, "cannot delete the last user")
		case errors.Is(err, user.ErrNotFound):
			writeMessage(w, http.StatusNotFound, "user not found")
		case err != nil:
			writeMessage(w, http.StatusInternalServerError, "delete user failed")
		default:
			writeMessage(w, http.StatusOK, "user deleted")
		}
	}
}

/*───────────────────────────── settings ───────────────────────────────────*/

func handleSettingsGet(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m, err := settings.All(r.Context(), d.DB)
		if err != nil {
			writeMessage(w, http.StatusInternalServerError, "load settings failed")
			return
		}
		writeJSON(w, http.StatusOK, m)
	}
}

func handleSettingsPut(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var m map[string]string
		if err := json.NewDecoder(r.Body).Decode(&m); err != nil || len(m) == 0 {
			writeMessage(w, http.StatusBadRequest, "expected a non-empty object of settings")
			return
		}
		for k, v := range m {
			if err := settings.Put(r.Context(), d.DB, k, v); err != nil {
				writeMessage(w, http.StatusInternalServerError, "save setting "+k+" failed")
				return
			}
		}
		d.Nav.Invalidate(r.Context())
		writeMessage(w, http.StatusOK, "settings saved")
	}
}

/*─────────────────────────────── logs ─────────────────────────────────────*/

func handleLogList(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		limit, _ := strconv.Atoi(q.Get("limit"))
		offset, _ := strconv.Atoi(q.Get("offset"))
		rows, err := d.Sink.Recent(r.Context(), q.Get("source"), limit, offset)
		if err != nil {
			writeMessage(w, http.StatusInternalServerError, "list logs failed")
			return
		}
		writeJSON(w, http.StatusOK, rows)
	}
}
