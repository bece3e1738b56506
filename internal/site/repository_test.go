// internal/site/repository_test.go
//
// sqlmock coverage for the site repository, focused on the staged-URL
// write path and the eligibility query.
//
// Run: go test ./internal/site -v

package site

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

func TestUpdateURLsSingleStatement(t *testing.T) {
	db, mock := newMockDB(t)

	// Two staged columns must land in one UPDATE, in staging order, with
	// the id as the final argument.
	mock.ExpectExec(`UPDATE site SET url = \?, backup_url = \? WHERE id = \?`).
		WithArgs("https://a.test:9090/", "https://b.test:9090/", int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := UpdateURLs(context.Background(), db, 7, []URLChange{
		{Field: FieldURL, Value: "https://a.test:9090/"},
		{Field: FieldBackupURL, Value: "https://b.test:9090/"},
	})
	if err != nil {
		t.Fatalf("UpdateURLs: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestUpdateURLsEmptyChangeSet(t *testing.T) {
	db, _ := newMockDB(t)

	if err := UpdateURLs(context.Background(), db, 1, nil); err == nil {
		t.Fatal("empty change set must error, not write")
	}
}

func TestUpdateURLsUnknownField(t *testing.T) {
	db, _ := newMockDB(t)

	err := UpdateURLs(context.Background(), db, 1, []URLChange{
		{Field: URLField("title"), Value: "x"},
	})
	if err == nil {
		t.Fatal("unknown field must error")
	}
}

func TestUpdateURLsMissingRow(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectExec(`UPDATE site SET url = \? WHERE id = \?`).
		WithArgs("https://a.test/", int64(99)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := UpdateURLs(context.Background(), db, 99, []URLChange{
		{Field: FieldURL, Value: "https://a.test/"},
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestAllEligibleScansNullableColumns(t *testing.T) {
	db, mock := newMockDB(t)

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "category_id", "title", "description", "url", "backup_url",
		"internal_url", "logo", "sort_order", "visible",
		"port_update_eligible", "created_at", "updated_at",
	}).
		AddRow(int64(1), int64(2), "Grafana", "dashboards",
			"https://grafana.example.com:3000/", "http://10.0.0.5:3000/",
			nil, nil, 1, true, true, now, now).
		AddRow(int64(2), int64(2), "Bare", "",
			"https://bare.example.com/", nil, nil, nil, 2, false, true, now, now)

	mock.ExpectQuery(`port_update_eligible = TRUE`).WillReturnRows(rows)

	recs, err := AllEligible(context.Background(), db)
	if err != nil {
		t.Fatalf("AllEligible: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
	if recs[0].BackupURL == nil || *recs[0].BackupURL != "http://10.0.0.5:3000/" {
		t.Fatalf("backup_url not scanned: %+v", recs[0])
	}
	if recs[1].BackupURL != nil || recs[1].InternalURL != nil {
		t.Fatal("NULL url columns must scan as nil pointers")
	}
	if !recs[1].PortUpdateEligible || recs[1].Visible {
		t.Fatal("eligibility is independent of visibility")
	}
}

func TestFieldValue(t *testing.T) {
	internal := "http://10.0.0.9/"
	r := Record{URL: "https://a.test/", InternalURL: &internal}

	if v, ok := r.FieldValue(FieldURL); !ok || v != "https://a.test/" {
		t.Fatalf("FieldValue(url) = %q, %v", v, ok)
	}
	if v, ok := r.FieldValue(FieldInternalURL); !ok || v != internal {
		t.Fatalf("FieldValue(internal_url) = %q, %v", v, ok)
	}
	if _, ok := r.FieldValue(FieldBackupURL); ok {
		t.Fatal("nil column must report not-present")
	}
	if _, ok := r.FieldValue(FieldLogo); ok {
		t.Fatal("nil logo must report not-present")
	}
}
