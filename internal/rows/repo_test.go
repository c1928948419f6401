package rows

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rowshare-backend/internal/shared/storage/db"
	"rowshare-backend/internal/spreadsheet"
)

type repoFactory func(t *testing.T) UploadsRepo

func repoFactories() map[string]repoFactory {
	return map[string]repoFactory{
		"memory": func(t *testing.T) UploadsRepo { return NewMemoryRepo() },
		"sqlite": func(t *testing.T) UploadsRepo {
			ctx := context.Background()
			conn, err := db.OpenSQLite(ctx, ":memory:")
			require.NoError(t, err)
			t.Cleanup(func() { _ = conn.Close() })
			require.NoError(t, db.RunMigrations(ctx, conn, db.DialectSQLite))
			return &SQLiteRepo{DB: conn}
		},
	}
}

var repoBase = time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

func testUpload(id, name string, at time.Time, rowIDs ...string) Upload {
	rows := make([]Row, 0, len(rowIDs))
	for i, rid := range rowIDs {
		rows = append(rows, Row{"id": rid, "Name": name + "-" + rid, "Qty": int64(i + 1)})
	}
	return Upload{
		UploadID:   id,
		TableName:  name,
		Filename:   name + ".xlsx",
		Columns:    []string{"Name", "Qty"},
		Rows:       rows,
		UploadDate: at,
		CreatedAt:  at,
	}
}

func TestReposInsertUniqueSuffixesWithinWindow(t *testing.T) {
	for name, newRepo := range repoFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			repo := newRepo(t)
			since := repoBase.Add(-DefaultRetention)

			expired := testUpload("u0", "Sales", repoBase.Add(-40*24*time.Hour), "r0")
			stored, err := repo.InsertUnique(ctx, expired, expired.UploadDate.Add(-DefaultRetention))
			require.NoError(t, err)
			assert.Equal(t, "Sales", stored.TableName)

			stored, err = repo.InsertUnique(ctx, testUpload("u1", "Sales", repoBase, "r1"), since)
			require.NoError(t, err)
			assert.Equal(t, "Sales", stored.TableName, "expired upload must not reserve the name")

			stored, err = repo.InsertUnique(ctx, testUpload("u2", "Sales", repoBase.Add(time.Minute), "r2"), since)
			require.NoError(t, err)
			assert.Equal(t, "Sales (2)", stored.TableName)

			stored, err = repo.InsertUnique(ctx, testUpload("u3", "Sales", repoBase.Add(2*time.Minute), "r3"), since)
			require.NoError(t, err)
			assert.Equal(t, "Sales (3)", stored.TableName)

			stored, err = repo.InsertUnique(ctx, testUpload("u4", "Sales (2)", repoBase.Add(3*time.Minute), "r4"), since)
			require.NoError(t, err)
			assert.Equal(t, "Sales (2) (2)", stored.TableName)
		})
	}
}

func TestReposListAndTablesNewestFirst(t *testing.T) {
	for name, newRepo := range repoFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			repo := newRepo(t)
			old := testUpload("old", "Old", repoBase.Add(-31*24*time.Hour), "o1")
			mid := testUpload("mid", "Mid", repoBase.Add(-time.Hour), "m1", "m2")
			cur := testUpload("cur", "Cur", repoBase, "c1")
			for _, u := range []Upload{mid, old, cur} {
				_, err := repo.InsertUnique(ctx, u, u.UploadDate.Add(-DefaultRetention))
				require.NoError(t, err)
			}

			all, err := repo.List(ctx, nil)
			require.NoError(t, err)
			require.Len(t, all, 3)
			assert.Equal(t, []string{"cur", "mid", "old"}, []string{all[0].UploadID, all[1].UploadID, all[2].UploadID})

			since := repoBase.Add(-DefaultRetention)
			recent, err := repo.List(ctx, &since)
			require.NoError(t, err)
			require.Len(t, recent, 2)
			assert.Equal(t, "mid", recent[1].UploadID)
			assert.Equal(t, []string{"Name", "Qty"}, recent[1].Columns)
			require.Len(t, recent[1].Rows, 2)
			assert.Equal(t, "m2", recent[1].Rows[1].ID())
			assert.Equal(t, "2", spreadsheet.String(recent[1].Rows[1]["Qty"]))
			assert.True(t, recent[1].UploadDate.Equal(mid.UploadDate))

			tables, err := repo.Tables(ctx, &since)
			require.NoError(t, err)
			require.Len(t, tables, 2)
			assert.Equal(t, TableInfo{
				ID:          "mid",
				Name:        "Mid",
				Filename:    "Mid.xlsx",
				UploadDate:  mid.UploadDate,
				RowCount:    2,
				ColumnCount: 2,
			}, tables[1])
		})
	}
}

func TestReposDeleteRowTouchesOnlyOwner(t *testing.T) {
	for name, newRepo := range repoFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			repo := newRepo(t)
			since := repoBase.Add(-DefaultRetention)
			_, err := repo.InsertUnique(ctx, testUpload("a", "A", repoBase, "a1", "a2", "a3"), since)
			require.NoError(t, err)
			_, err = repo.InsertUnique(ctx, testUpload("b", "B", repoBase.Add(time.Second), "b1"), since)
			require.NoError(t, err)

			removed, err := repo.DeleteRow(ctx, "a2")
			require.NoError(t, err)
			assert.True(t, removed)

			a, err := repo.Get(ctx, "a")
			require.NoError(t, err)
			assert.Equal(t, []string{"a1", "a3"}, []string{a.Rows[0].ID(), a.Rows[1].ID()})
			b, err := repo.Get(ctx, "b")
			require.NoError(t, err)
			assert.Len(t, b.Rows, 1)

			tables, err := repo.Tables(ctx, nil)
			require.NoError(t, err)
			assert.Equal(t, 2, tables[1].RowCount)

			removed, err = repo.DeleteRow(ctx, "a2")
			require.NoError(t, err)
			assert.False(t, removed)
			removed, err = repo.DeleteRow(ctx, "missing")
			require.NoError(t, err)
			assert.False(t, removed)

			_, _, err = repo.FindRow(ctx, "a2")
			assert.ErrorIs(t, err, ErrNotFound)
			owner, row, err := repo.FindRow(ctx, "a3")
			require.NoError(t, err)
			assert.Equal(t, "a", owner.UploadID)
			assert.Equal(t, "A-a3", row["Name"])
		})
	}
}

func TestReposDeleteOlderThanAndAll(t *testing.T) {
	for name, newRepo := range repoFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			repo := newRepo(t)
			for i, age := range []time.Duration{31 * 24 * time.Hour, 45 * 24 * time.Hour, time.Hour} {
				u := testUpload(string(rune('a'+i)), "T", repoBase.Add(-age), "r"+string(rune('a'+i)))
				_, err := repo.InsertUnique(ctx, u, u.UploadDate.Add(-DefaultRetention))
				require.NoError(t, err)
			}

			cutoff := repoBase.Add(-DefaultRetention)
			n, err := repo.DeleteOlderThan(ctx, cutoff)
			require.NoError(t, err)
			assert.EqualValues(t, 2, n)
			n, err = repo.DeleteOlderThan(ctx, cutoff)
			require.NoError(t, err)
			assert.EqualValues(t, 0, n)

			_, _, err = repo.FindRow(ctx, "ra")
			assert.ErrorIs(t, err, ErrNotFound)

			n, err = repo.DeleteAll(ctx)
			require.NoError(t, err)
			assert.EqualValues(t, 1, n)
			all, err := repo.List(ctx, nil)
			require.NoError(t, err)
			assert.Empty(t, all)

			_, err = repo.Get(ctx, "c")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}
