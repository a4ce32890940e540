package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/urfave/cli/v2"

	"healthtech/api/internal/store"
)

func TestPrintEntries(t *testing.T) {
	var buf bytes.Buffer
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	printEntries(&buf, []store.AuditEntry{
		{CreatedAt: at, Source: store.SourceHTTP, Outcome: store.OutcomeOK, Filename: "rx.jpg", SizeBytes: 2048, Duration: 1500 * time.Millisecond},
		{CreatedAt: at, Source: store.SourceTelegram, Outcome: store.OutcomeError, Filename: "file_7.jpg", Error: "quota exceeded"},
	})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if assert.Len(t, lines, 2) {
		assert.True(t, strings.HasPrefix(lines[0], "2024-05-01T10:00:00Z  http"))
		assert.Contains(t, lines[0], "2048 B")
		assert.Contains(t, lines[0], "1500ms")
		assert.True(t, strings.HasSuffix(lines[1], "quota exceeded"))
	}
}

func TestAuditNeedsDatabase(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("PGHOST", "")

	app := &cli.App{Name: "healthtech", Commands: []*cli.Command{auditCommand}}
	err := app.Run([]string{"healthtech", "audit", "recent"})
	assert.ErrorContains(t, err, "database DSN is empty")
}
