package repo

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tbourn/go-review-reply-backend/internal/domain"
)

func TestOpenSQLite_MissingDirectory(t *testing.T) {
	bad := filepath.Join(t.TempDir(), "missing", "app.db")
	db, err := OpenSQLite(bad)
	require.Nil(t, db)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestOpenSQLite_PragmasOnEveryConnection(t *testing.T) {
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "app.db"))
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.Equal(t, maxOpenConns, sqlDB.Stats().MaxOpenConnections)

	// Hold several connections at once so the checks do not all land on the
	// first one.
	ctx := context.Background()
	conns := make([]interface{ Close() error }, 0, 3)
	for i := 0; i < 3; i++ {
		conn, err := sqlDB.Conn(ctx)
		require.NoError(t, err)
		conns = append(conns, conn)

		var (
			journal string
			busy    int
			fk      int
			sync    int
		)
		require.NoError(t, conn.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&journal))
		require.NoError(t, conn.QueryRowContext(ctx, "PRAGMA busy_timeout").Scan(&busy))
		require.NoError(t, conn.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&fk))
		require.NoError(t, conn.QueryRowContext(ctx, "PRAGMA synchronous").Scan(&sync))
		require.Equal(t, "wal", strings.ToLower(journal))
		require.Equal(t, 5000, busy)
		require.Equal(t, 1, fk)
		require.Equal(t, 1, sync) // NORMAL
	}
	for _, c := range conns {
		require.NoError(t, c.Close())
	}
}

func TestAutoMigrate_SchemaSupportsConcurrentQuotaWrites(t *testing.T) {
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "app.db"))
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(db))

	m := db.Migrator()
	for _, tbl := range []any{&domain.QuotaRecord{}, &domain.Profile{}, &domain.HistoryItem{}, &domain.Idempotency{}} {
		require.True(t, m.HasTable(tbl), "%T", tbl)
	}

	store := SQLQuotaStore{DB: db}
	ctx := context.Background()
	now := time.Now().UTC()
	_, err = store.ResetIfNewDay(ctx, "u1", now, time.UTC)
	require.NoError(t, err)

	// busy_timeout lets writers queue on the lock instead of failing.
	const writers = 8
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := store.Increment(ctx, "u1", now, 100)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	var rec domain.QuotaRecord
	require.NoError(t, db.First(&rec, "identity = ?", "u1").Error)
	require.Equal(t, writers, rec.DailyCount)
}

func TestWithPragmas(t *testing.T) {
	got := withPragmas("app.db")
	require.True(t, strings.HasPrefix(got, "app.db?_pragma=busy_timeout(5000)&"), got)
	require.Equal(t, len(connPragmas), strings.Count(got, "_pragma="))

	got = withPragmas("file:x.db?mode=rwc")
	require.True(t, strings.HasPrefix(got, "file:x.db?mode=rwc&_pragma="), got)
	require.Equal(t, 1, strings.Count(got, "?"))
}
