package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Integration tests run only when TEST_DATABASE_URL points at a scratch Postgres.
func openTestRepo(t *testing.T) *AuditRepo {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	db, err := Open(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo := NewAuditRepo(db)
	require.NoError(t, repo.EnsureSchema(ctx))
	_, err = db.ExecContext(ctx, `truncate analysis_requests`)
	require.NoError(t, err)
	return repo
}

func TestAuditRecordAndRecent(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Record(ctx, AuditEntry{
		RequestID: "r-1",
		Source:    SourceHTTP,
		Filename:  "rx.jpg",
		MIMEType:  "image/jpeg",
		SizeBytes: 2048,
		Engine:    "gemini",
		Model:     "gemini-1.5-flash",
		Outcome:   OutcomeOK,
		Duration:  1500 * time.Millisecond,
	}))
	require.NoError(t, repo.Record(ctx, AuditEntry{
		Source:  SourceHTTP,
		Outcome: OutcomeClientError,
		Error:   "No image provided",
	}))

	got, err := repo.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)

	var ok AuditEntry
	for _, e := range got {
		if e.Outcome == OutcomeOK {
			ok = e
		}
	}
	assert.Equal(t, "rx.jpg", ok.Filename)
	assert.Equal(t, int64(2048), ok.SizeBytes)
	assert.Equal(t, 1500*time.Millisecond, ok.Duration)
	assert.NotEmpty(t, ok.ID)
}

func TestAuditPurgeOlderThan(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Record(ctx, AuditEntry{Source: SourceTelegram, Outcome: OutcomeOK, CreatedAt: time.Now().Add(-48 * time.Hour)}))
	require.NoError(t, repo.Record(ctx, AuditEntry{Source: SourceTelegram, Outcome: OutcomeOK}))

	n, err := repo.PurgeOlderThan(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestPurgeOlderThanRejectsNonPositive(t *testing.T) {
	_, err := NewAuditRepo(nil).PurgeOlderThan(context.Background(), 0)
	assert.EqualError(t, err, "olderThan must be > 0")
}
