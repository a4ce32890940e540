package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"healthtech/api/internal/analysis"
	"healthtech/api/internal/analysis/gemini"
	"healthtech/api/internal/config"
	"healthtech/api/internal/handle"
	"healthtech/api/internal/httpserver"
	"healthtech/api/internal/logging"
	"healthtech/api/internal/metrics"
	"healthtech/api/internal/relay"
	"healthtech/api/internal/site"
	"healthtech/api/internal/store"
	"healthtech/api/internal/telegram"
)

var serveCommand = &cli.Command{
	Name:   "serve",
	Usage:  "Run the landing site, the analysis endpoint and the optional Telegram bot",
	Action: func(c *cli.Context) error { return serve(c.Context) },
}

var auditCommand = &cli.Command{
	Name:  "audit",
	Usage: "Inspect or prune the analysis audit log",
	Subcommands: []*cli.Command{
		{
			Name:  "recent",
			Usage: "Print the most recent analysis requests",
			Flags: []cli.Flag{
				&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Value: 20},
			},
			Action: func(c *cli.Context) error {
				return withAudit(c.Context, func(repo *store.AuditRepo) error {
					entries, err := repo.Recent(c.Context, c.Int("limit"))
					if err != nil {
						return err
					}
					printEntries(c.App.Writer, entries)
					return nil
				})
			},
		},
		{
			Name:  "purge",
			Usage: "Delete audit rows older than the given age",
			Flags: []cli.Flag{
				&cli.DurationFlag{Name: "older-than", Value: 30 * 24 * time.Hour},
			},
			Action: func(c *cli.Context) error {
				return withAudit(c.Context, func(repo *store.AuditRepo) error {
					n, err := repo.PurgeOlderThan(c.Context, c.Duration("older-than"))
					if err != nil {
						return err
					}
					fmt.Fprintf(c.App.Writer, "deleted %d rows\n", n)
					return nil
				})
			},
		},
	},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &cli.App{
		Name:     "healthtech",
		Usage:    "HealthTech site and prescription analysis service",
		Commands: []*cli.Command{serveCommand, auditCommand},
		Action:   func(c *cli.Context) error { return serve(c.Context) },
	}
	if err := app.RunContext(ctx, os.Args); err != nil {
		log.Fatal().Err(err).Msg("healthtech failed")
	}
}

func serve(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logging.Setup(cfg.LogLevel, cfg.LogFormat)

	reg := metrics.NewRegistry()

	engines := &analysis.Engines{
		SDK:  gemini.New(cfg.GeminiAPIKey, cfg.GeminiModel),
		REST: gemini.NewREST(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiBaseURL, nil),
	}
	analyzer, err := engines.Get(cfg.GeminiTransport)
	if err != nil {
		return err
	}
	if cfg.GeminiAPIKey == "" {
		log.Warn().Msg("GEMINI_API_KEY is not set; every analysis will fail")
	}
	log.Info().
		Str("engine", analyzer.Name()).
		Str("model", analyzer.GetModel()).
		Int64("max_upload_bytes", cfg.MaxUploadBytes).
		Msg("analyzer ready")

	// The auditor stays a nil interface when no database is configured.
	var auditor relay.Auditor
	var pinger httpserver.Pinger
	if dsn := cfg.DSN(); dsn != "" {
		db, err := store.Open(ctx, dsn)
		if err != nil {
			return err
		}
		defer db.Close()
		repo := store.NewAuditRepo(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			return err
		}
		auditor, pinger = repo, db
		log.Info().Str("db", config.SafeDSNSummary(dsn)).Msg("audit log enabled")
	}

	rl := relay.New(analyzer, auditor, reg)

	s, err := site.New()
	if err != nil {
		return err
	}

	if cfg.TelegramBotToken != "" {
		bot, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
		if err != nil {
			return fmt.Errorf("telegram: %w", err)
		}
		router := telegram.NewRouter(bot, rl)
		log.Info().Str("bot", bot.Self.UserName).Msg("telegram polling started")
		go telegram.Run(ctx, bot, router.HandleUpdate)
		defer router.Wait()
	}

	h := httpserver.NewRouter(httpserver.Deps{
		Handle:  handle.New(rl, cfg.MaxUploadBytes),
		Site:    s,
		Metrics: reg,
		DB:      pinger,
	})
	err = httpserver.Serve(ctx, httpserver.New(cfg.Addr(), h))
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func withAudit(ctx context.Context, fn func(*store.AuditRepo) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logging.Setup(cfg.LogLevel, cfg.LogFormat)
	dsn := cfg.DSN()
	if dsn == "" {
		return errors.New("database DSN is empty: set DATABASE_URL or POSTGRES_* env vars")
	}
	db, err := store.Open(ctx, dsn)
	if err != nil {
		return err
	}
	defer func(db *sql.DB) { _ = db.Close() }(db)
	return fn(store.NewAuditRepo(db))
}

func printEntries(w io.Writer, entries []store.AuditEntry) {
	for _, e := range entries {
		line := fmt.Sprintf("%s  %-8s  %-12s  %-24s  %8d B  %6dms",
			e.CreatedAt.Format(time.RFC3339), e.Source, e.Outcome, e.Filename, e.SizeBytes, e.Duration.Milliseconds())
		if e.Error != "" {
			line += "  " + e.Error
		}
		fmt.Fprintln(w, line)
	}
}
