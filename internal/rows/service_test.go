package rows

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"rowshare-backend/internal/shared/storage/object/local"
	"rowshare-backend/internal/spreadsheet"
)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func newTestService(t *testing.T) (*Service, *testClock) {
	t.Helper()
	clock := &testClock{now: time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)}
	return &Service{Repo: NewMemoryRepo(), Now: clock.Now}, clock
}

func workbook(t *testing.T, rows [][]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

func TestUploadNameAndPriceSheet(t *testing.T) {
	svc, _ := newTestService(t)
	data := workbook(t, [][]any{
		{"Name", "Price"},
		{"Pen", 2.5},
		{"Book", 12},
	})

	u, err := svc.Upload(context.Background(), "Stock.xlsx", data)
	require.NoError(t, err)
	assert.Equal(t, "Stock", u.TableName)
	assert.Equal(t, []string{"Name", "Price"}, u.Columns)
	require.Len(t, u.Rows, 2)
	assert.NotEqual(t, u.Rows[0].ID(), u.Rows[1].ID())
	assert.True(t, strings.HasPrefix(u.Rows[0].ID(), "row_"))
	assert.True(t, strings.HasPrefix(u.UploadID, "upload_"))
	assert.Equal(t, "12", spreadsheet.String(u.Rows[1]["Price"]))

	second, err := svc.Upload(context.Background(), "Stock.xlsx", data)
	require.NoError(t, err)
	assert.Equal(t, "Stock (2)", second.TableName)
}

func TestUploadRejectsBadInput(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Upload(ctx, "a.csv", nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.EqualError(t, err, "No file provided")

	_, err = svc.Upload(ctx, "header.csv", []byte("Name,Price\n"))
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.ErrorIs(t, err, spreadsheet.ErrNoData)

	_, err = svc.Upload(ctx, "big.csv", bytes.Repeat([]byte("a"), MaxUploadBytes+1))
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.ErrorIs(t, err, ErrTooLarge)
	assert.Contains(t, err.Error(), "10 MiB")

	_, err = svc.Upload(ctx, "header.csv", []byte("Name,Price\n"))
	assert.NotErrorIs(t, err, ErrTooLarge)

	tables, err := svc.Tables(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, tables, "failed uploads must not leave partial state")
}

func TestUploadRenamesReservedIDColumn(t *testing.T) {
	svc, _ := newTestService(t)
	u, err := svc.Upload(context.Background(), "ids.csv", []byte("id,Name\n7,Pen\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"id (2)", "Name"}, u.Columns)
	assert.Equal(t, "7", spreadsheet.String(u.Rows[0]["id (2)"]))
	assert.True(t, strings.HasPrefix(u.Rows[0].ID(), "row_"))
}

func TestDataRetentionWindow(t *testing.T) {
	svc, clock := newTestService(t)
	ctx := context.Background()
	start := clock.now

	clock.now = start.Add(-31 * 24 * time.Hour)
	old, err := svc.Upload(ctx, "old.csv", []byte("A,B\n1,2\n"))
	require.NoError(t, err)

	clock.now = start.Add(-time.Hour)
	_, err = svc.Upload(ctx, "mid.csv", []byte("B,C\n3,4\n5,6\n"))
	require.NoError(t, err)

	clock.now = start
	ds, err := svc.Data(ctx, "", false)
	require.NoError(t, err)
	assert.Equal(t, MergedTableName, ds.TableName)
	assert.Len(t, ds.Rows, 2)
	assert.Equal(t, []string{"B", "C"}, ds.Columns)

	ds, err = svc.Data(ctx, "all", true)
	require.NoError(t, err)
	assert.Len(t, ds.Rows, 3)
	assert.Equal(t, []string{"B", "C"}, ds.Columns)
	assert.True(t, ds.UploadDate.Equal(start.Add(-time.Hour)))

	ds, err = svc.Data(ctx, old.UploadID, false)
	require.NoError(t, err)
	assert.True(t, ds.Empty())

	ds, err = svc.Data(ctx, old.UploadID, true)
	require.NoError(t, err)
	assert.Equal(t, "old", ds.TableName)
	assert.Equal(t, []string{"A", "B"}, ds.Columns)

	ds, err = svc.Data(ctx, "upload_missing", true)
	require.NoError(t, err)
	assert.True(t, ds.Empty())
}

func TestDeleteRowAndAll(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	a, err := svc.Upload(ctx, "a.csv", []byte("N\n1\n2\n"))
	require.NoError(t, err)
	b, err := svc.Upload(ctx, "b.csv", []byte("N\n3\n"))
	require.NoError(t, err)

	msg, err := svc.Delete(ctx, a.Rows[0].ID())
	require.NoError(t, err)
	assert.Equal(t, "Row deleted", msg)

	got, err := svc.Data(ctx, a.UploadID, false)
	require.NoError(t, err)
	require.Len(t, got.Rows, 1)
	assert.Equal(t, a.Rows[1].ID(), got.Rows[0].ID())
	got, err = svc.Data(ctx, b.UploadID, false)
	require.NoError(t, err)
	assert.Len(t, got.Rows, 1)

	msg, err = svc.Delete(ctx, "row_unknown")
	require.NoError(t, err)
	assert.Equal(t, "Row deleted", msg)

	msg, err = svc.Delete(ctx, "all")
	require.NoError(t, err)
	assert.Equal(t, "All data deleted", msg)
	tables, err := svc.Tables(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, tables)
	ds, err := svc.Data(ctx, "", true)
	require.NoError(t, err)
	assert.Empty(t, ds.Rows)
}

func TestSweepRemovesExpiredOnly(t *testing.T) {
	svc, clock := newTestService(t)
	ctx := context.Background()
	start := clock.now

	clock.now = start.Add(-31 * 24 * time.Hour)
	_, err := svc.Upload(ctx, "old.csv", []byte("A\n1\n"))
	require.NoError(t, err)
	clock.now = start
	_, err = svc.Upload(ctx, "new.csv", []byte("A\n1\n"))
	require.NoError(t, err)

	res, err := svc.Sweep(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.Deleted)
	assert.Equal(t, "Deleted 1 upload(s) older than 30 days", res.Message)

	res, err = svc.Sweep(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 0, res.Deleted)
	assert.Equal(t, "No data older than 30 days found, no deletion needed", res.Message)

	tables, err := svc.Tables(ctx, true)
	require.NoError(t, err)
	require.Len(t, tables, 1)
	assert.Equal(t, "new", tables[0].Name)
}

type tablesStub struct {
	UploadsRepo
	tables []TableInfo
}

func (s tablesStub) Tables(context.Context, *time.Time) ([]TableInfo, error) {
	return s.tables, nil
}

func TestTablesNameFallback(t *testing.T) {
	at := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
	svc := &Service{Repo: tablesStub{tables: []TableInfo{
		{ID: "u3", Name: "Named", UploadDate: at},
		{ID: "u2", Filename: "Budget.XLSX", UploadDate: at.Add(-time.Hour)},
		{ID: "u1", UploadDate: at.Add(-2 * time.Hour)},
	}}}
	tables, err := svc.Tables(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, tables, 3)
	assert.Equal(t, []string{"Named", "Budget", "Table 1"}, []string{tables[0].Name, tables[1].Name, tables[2].Name})
}

func TestShareUsesOwningColumns(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	u, err := svc.Upload(ctx, "shirts.csv", []byte("Title,Size,Color\nTee,M,\n"))
	require.NoError(t, err)

	text, link, err := svc.Share(ctx, u.Rows[0].ID())
	require.NoError(t, err)
	assert.Equal(t, "*Title:* Tee\n*Size:* M\n*Color:* N/A", text)
	assert.True(t, strings.HasPrefix(link, "https://wa.me/?text="))

	_, _, err = svc.Share(ctx, "row_missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestArchiveStoresAndRemovesSource(t *testing.T) {
	svc, _ := newTestService(t)
	dir := t.TempDir()
	svc.Archive = local.New(dir, "http://localhost/files")
	ctx := context.Background()

	u, err := svc.Upload(ctx, "a.csv", []byte("A\n1\n"))
	require.NoError(t, err)
	path := filepath.Join(dir, "archive", u.UploadID, "source.csv")
	_, err = os.Stat(path)
	require.NoError(t, err)

	_, err = svc.Delete(ctx, "")
	require.NoError(t, err)
	_, err = os.Stat(path)
	assert.True(t, errors.Is(err, os.ErrNotExist), "archive should be removed, got %v", err)
}

func TestServiceWithoutRepo(t *testing.T) {
	svc := &Service{}
	ctx := context.Background()
	_, err := svc.Upload(ctx, "a.csv", []byte("A\n1\n"))
	assert.ErrorIs(t, err, ErrNotConfigured)
	ds, err := svc.Data(ctx, "", false)
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.True(t, ds.Empty())
	_, err = svc.Sweep(ctx)
	assert.ErrorIs(t, err, ErrNotConfigured)
}
