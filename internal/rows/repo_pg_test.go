package rows

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"rowshare-backend/internal/spreadsheet"
)

func newMockRepo(t *testing.T) (*PGRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return &PGRepo{DB: db}, mock
}

func TestPGRepoInsertUniqueLocksAndSuffixes(t *testing.T) {
	repo, mock := newMockRepo(t)
	at := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
	since := at.Add(-DefaultRetention)
	u := Upload{
		UploadID:   "upload_1",
		TableName:  "Sales",
		Filename:   "Sales.xlsx",
		Columns:    []string{"Name", "Qty"},
		Rows:       []Row{{"id": "row_1", "Name": "Pen", "Qty": int64(3)}},
		UploadDate: at,
		CreatedAt:  at,
	}

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").
		WithArgs("Sales").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT table_name").
		WithArgs(since, "Sales", 7, "Sales (").
		WillReturnRows(sqlmock.NewRows([]string{"table_name"}).AddRow("Sales").AddRow("Sales (2)"))
	mock.ExpectExec("INSERT INTO uploads").
		WithArgs(
			"upload_1",
			"Sales (3)",
			"Sales.xlsx",
			`["Name","Qty"]`,
			`[{"Name":"Pen","Qty":3,"id":"row_1"}]`,
			1,
			at,
			at,
		).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO row_index").
		WithArgs("upload_1", `["row_1"]`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	stored, err := repo.InsertUnique(context.Background(), u, since)
	if err != nil {
		t.Fatalf("InsertUnique: %v", err)
	}
	if stored.TableName != "Sales (3)" {
		t.Fatalf("table name = %q", stored.TableName)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoInsertUniqueLocksSuffixedNameAndStem(t *testing.T) {
	repo, mock := newMockRepo(t)
	at := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
	since := at.Add(-DefaultRetention)
	u := Upload{
		UploadID:   "upload_2",
		TableName:  "Sales (2)",
		Filename:   "Sales (2).csv",
		Columns:    []string{"Name"},
		Rows:       []Row{{"id": "row_2", "Name": "Ink"}},
		UploadDate: at,
		CreatedAt:  at,
	}

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").
		WithArgs("Sales").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("SELECT pg_advisory_xact_lock").
		WithArgs("Sales (2)").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT table_name").
		WithArgs(since, "Sales (2)", 11, "Sales (2) (").
		WillReturnRows(sqlmock.NewRows([]string{"table_name"}))
	mock.ExpectExec("INSERT INTO uploads").
		WithArgs("upload_2", "Sales (2)", "Sales (2).csv", `["Name"]`, `[{"Name":"Ink","id":"row_2"}]`, 1, at, at).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO row_index").
		WithArgs("upload_2", `["row_2"]`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	stored, err := repo.InsertUnique(context.Background(), u, since)
	if err != nil {
		t.Fatalf("InsertUnique: %v", err)
	}
	if stored.TableName != "Sales (2)" {
		t.Fatalf("table name = %q", stored.TableName)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoInsertUniqueRollsBackOnError(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").WillReturnError(errors.New("conn reset"))
	mock.ExpectRollback()

	_, err := repo.InsertUnique(context.Background(), Upload{UploadID: "u", TableName: "T"}, time.Now())
	if err == nil {
		t.Fatalf("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoDeleteRowRewritesOwner(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT upload_id FROM row_index").
		WithArgs("row_2").
		WillReturnRows(sqlmock.NewRows([]string{"upload_id"}).AddRow("upload_1"))
	mock.ExpectQuery(`SELECT data FROM uploads WHERE upload_id = \$1 FOR UPDATE`).
		WithArgs("upload_1").
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow([]byte(`[{"id":"row_1","Qty":1},{"id":"row_2","Qty":2}]`)))
	mock.ExpectExec("UPDATE uploads SET data").
		WithArgs(`[{"id":"row_1","Qty":1}]`, 1, "upload_1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM row_index").
		WithArgs("row_2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	removed, err := repo.DeleteRow(context.Background(), "row_2")
	if err != nil {
		t.Fatalf("DeleteRow: %v", err)
	}
	if !removed {
		t.Fatalf("expected row to be removed")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoDeleteRowUnknownIsNoop(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT upload_id FROM row_index").
		WithArgs("row_x").
		WillReturnRows(sqlmock.NewRows([]string{"upload_id"}))
	mock.ExpectRollback()

	removed, err := repo.DeleteRow(context.Background(), "row_x")
	if err != nil || removed {
		t.Fatalf("expected no-op, got removed=%v err=%v", removed, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoListDecodesRows(t *testing.T) {
	repo, mock := newMockRepo(t)
	at := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
	since := at.Add(-DefaultRetention)

	mock.ExpectQuery(`FROM uploads\s+WHERE upload_date >= \$1\s+ORDER BY upload_date DESC`).
		WithArgs(since).
		WillReturnRows(sqlmock.NewRows([]string{"upload_id", "table_name", "filename", "columns", "data", "upload_date", "created_at"}).
			AddRow("upload_1", "Sales", "Sales.xlsx", []byte(`["Name","Qty"]`), []byte(`[{"id":"row_1","Name":"Pen","Qty":12345678901}]`), at, at))

	uploads, err := repo.List(context.Background(), &since)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(uploads) != 1 || len(uploads[0].Rows) != 1 {
		t.Fatalf("unexpected uploads: %+v", uploads)
	}
	row := uploads[0].Rows[0]
	if row.ID() != "row_1" || row["Name"] != "Pen" {
		t.Fatalf("unexpected row: %v", row)
	}
	if got := spreadsheet.String(row["Qty"]); got != "12345678901" {
		t.Fatalf("qty lost precision: %s", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoDeleteOlderThanReportsCount(t *testing.T) {
	repo, mock := newMockRepo(t)
	cutoff := time.Date(2026, time.February, 8, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec(`DELETE FROM uploads WHERE upload_date < \$1`).
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := repo.DeleteOlderThan(context.Background(), cutoff)
	if err != nil {
		t.Fatalf("DeleteOlderThan: %v", err)
	}
	if n != 4 {
		t.Fatalf("deleted = %d", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoFindRowMissingIndex(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery("SELECT upload_id FROM row_index").
		WithArgs("row_9").
		WillReturnRows(sqlmock.NewRows([]string{"upload_id"}))

	if _, _, err := repo.FindRow(context.Background(), "row_9"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
