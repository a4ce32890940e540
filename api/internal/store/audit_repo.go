package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Outcomes recorded for one relay call.
const (
	OutcomeOK          = "ok"
	OutcomeClientError = "client_error"
	OutcomeError       = "error"
)

// Sources of an uploaded image.
const (
	SourceHTTP     = "http"
	SourceTelegram = "telegram"
)

// AuditEntry is request metadata only. Image bytes and model output are never stored.
type AuditEntry struct {
	ID        string
	CreatedAt time.Time
	RequestID string
	Source    string
	Filename  string
	MIMEType  string
	SizeBytes int64
	Engine    string
	Model     string
	Outcome   string
	Error     string
	Duration  time.Duration
}

type AuditRepo struct{ DB *sql.DB }

func NewAuditRepo(db *sql.DB) *AuditRepo { return &AuditRepo{DB: db} }

const schema = `
create table if not exists analysis_requests (
  id          uuid primary key,
  created_at  timestamptz not null default now(),
  request_id  text not null default '',
  source      text not null,
  filename    text not null default '',
  mime_type   text not null default '',
  size_bytes  bigint not null default 0,
  engine      text not null default '',
  model       text not null default '',
  outcome     text not null,
  error       text not null default '',
  duration_ms bigint not null default 0
);
create index if not exists analysis_requests_created_at_idx on analysis_requests (created_at);`

// EnsureSchema creates the audit table if it does not exist yet.
func (r *AuditRepo) EnsureSchema(ctx context.Context) error {
	_, err := r.DB.ExecContext(ctx, schema)
	return err
}

// Record inserts one entry. Missing ID and CreatedAt are filled in.
func (r *AuditRepo) Record(ctx context.Context, e AuditEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	const q = `
insert into analysis_requests (
  id, created_at, request_id, source, filename, mime_type, size_bytes,
  engine, model, outcome, error, duration_ms
) values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`
	_, err := r.DB.ExecContext(ctx, q,
		e.ID, e.CreatedAt, e.RequestID, e.Source, e.Filename, e.MIMEType, e.SizeBytes,
		e.Engine, e.Model, e.Outcome, e.Error, e.Duration.Milliseconds(),
	)
	return err
}

// Recent returns the newest entries, at most limit of them.
func (r *AuditRepo) Recent(ctx context.Context, limit int) ([]AuditEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `
select id, created_at, request_id, source, filename, mime_type, size_bytes,
       engine, model, outcome, error, duration_ms
from analysis_requests
order by created_at desc
limit $1`
	rows, err := r.DB.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AuditEntry
	for rows.Next() {
		var (
			e  AuditEntry
			ms int64
		)
		if err := rows.Scan(&e.ID, &e.CreatedAt, &e.RequestID, &e.Source, &e.Filename, &e.MIMEType,
			&e.SizeBytes, &e.Engine, &e.Model, &e.Outcome, &e.Error, &ms); err != nil {
			return nil, err
		}
		e.Duration = time.Duration(ms) * time.Millisecond
		out = append(out, e)
	}
	return out, rows.Err()
}

// PurgeOlderThan deletes entries older than the given age.
func (r *AuditRepo) PurgeOlderThan(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, errors.New("olderThan must be > 0")
	}
	cutoff := time.Now().Add(-olderThan)
	const q = `delete from analysis_requests where created_at < $1`
	res, err := r.DB.ExecContext(ctx, q, cutoff)
	if err != nil {
		return 0, err
	}
	aff, _ := res.RowsAffected()
	return aff, nil
}
