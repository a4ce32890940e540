package relay

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"healthtech/api/internal/analysis"
	"healthtech/api/internal/metrics"
	"healthtech/api/internal/store"
)

// FailurePrefix starts every processing-error message shown to users.
const FailurePrefix = "Failed to analyze prescription"

type Auditor interface {
	Record(ctx context.Context, e store.AuditEntry) error
}

// Relay forwards one image to the analyzer and accounts for the outcome.
// It holds no per-request state.
type Relay struct {
	analyzer analysis.Analyzer
	audit    Auditor
	metrics  *metrics.Registry
}

// New builds a Relay. audit and reg may be nil.
func New(a analysis.Analyzer, audit Auditor, reg *metrics.Registry) *Relay {
	return &Relay{analyzer: a, audit: audit, metrics: reg}
}

// Request describes where an image came from.
type Request struct {
	Source    string
	RequestID string
	Image     analysis.Image
}

// Analyze makes exactly one call to the analyzer. No retries, no timeout
// beyond ctx.
func (r *Relay) Analyze(ctx context.Context, req Request) (string, error) {
	start := time.Now()
	logger := log.Ctx(ctx)
	img := req.Image

	logger.Info().
		Str("filename", img.Name).
		Str("mime_type", img.MIMEType).
		Int("bytes", img.Size()).
		Msg("image received")

	if r.analyzer == nil {
		err := errors.New("analyzer is not configured")
		r.finish(ctx, req, "", "", store.OutcomeError, err, start)
		return "", err
	}

	engine, model := r.analyzer.Name(), r.analyzer.GetModel()
	logger.Info().Str("engine", engine).Str("model", model).Msg("sending image for analysis")

	text, err := r.analyzer.Analyze(ctx, img)
	if err == nil && strings.TrimSpace(text) == "" {
		err = analysis.ErrEmptyResponse
	}
	if err != nil {
		logger.Error().Err(err).Str("engine", engine).Msg("error analyzing prescription")
		r.finish(ctx, req, engine, model, store.OutcomeError, err, start)
		return "", err
	}

	logger.Info().Int("chars", len(text)).Dur("duration", time.Since(start)).Msg("analysis completed successfully")
	r.metrics.Inc(ctx, "analysis_bytes_total", map[string]string{"source": req.Source}, int64(img.Size()))
	r.finish(ctx, req, engine, model, store.OutcomeOK, nil, start)
	return text, nil
}

// Reject accounts for a submission that carried no image. The analyzer is not called.
func (r *Relay) Reject(ctx context.Context, req Request, reason error) {
	log.Ctx(ctx).Warn().Err(reason).Msg("no image provided in the request")
	r.finish(ctx, req, "", "", store.OutcomeClientError, reason, time.Now())
}

// Fail accounts for an upload that broke before reaching the analyzer.
func (r *Relay) Fail(ctx context.Context, req Request, err error) {
	log.Ctx(ctx).Error().Err(err).Msg("error reading uploaded image")
	r.finish(ctx, req, "", "", store.OutcomeError, err, time.Now())
}

func (r *Relay) finish(ctx context.Context, req Request, engine, model, outcome string, err error, start time.Time) {
	r.metrics.Inc(ctx, "analyses_total", map[string]string{"source": req.Source, "outcome": outcome}, 1)
	if r.audit == nil {
		return
	}
	entry := store.AuditEntry{
		RequestID: req.RequestID,
		Source:    req.Source,
		Filename:  req.Image.Name,
		MIMEType:  req.Image.MIMEType,
		SizeBytes: int64(req.Image.Size()),
		Engine:    engine,
		Model:     model,
		Outcome:   outcome,
		Duration:  time.Since(start),
	}
	if err != nil {
		entry.Error = err.Error()
	}
	// the row outlives a client that hung up mid-request
	if aerr := r.audit.Record(context.WithoutCancel(ctx), entry); aerr != nil {
		log.Ctx(ctx).Warn().Err(aerr).Msg("audit record failed")
	}
}

// Message renders a processing error the way callers see it.
func Message(err error) string {
	return FailurePrefix + ": " + err.Error()
}
