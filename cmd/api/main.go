package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/mail"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	api "github.com/projectmaat/projectmaat/internal/api/http"
	"github.com/projectmaat/projectmaat/internal/assessment"
	"github.com/projectmaat/projectmaat/internal/audit"
	"github.com/projectmaat/projectmaat/internal/auth"
	"github.com/projectmaat/projectmaat/internal/config"
	"github.com/projectmaat/projectmaat/internal/db"
	"github.com/projectmaat/projectmaat/internal/email"
	"github.com/projectmaat/projectmaat/internal/gradesync"
	"github.com/projectmaat/projectmaat/internal/invite"
	"github.com/projectmaat/projectmaat/internal/lib/slogcolor"
	"github.com/projectmaat/projectmaat/internal/notes"
	"github.com/projectmaat/projectmaat/internal/overview"
	"github.com/projectmaat/projectmaat/internal/reflection"
	"github.com/projectmaat/projectmaat/internal/roster"
	"github.com/projectmaat/projectmaat/internal/storage"
)

func main() {
	flagAddr := pflag.String("addr", "", "listen address (overrides HTTP_ADDR)")
	pflag.Parse()

	cfg := config.FromEnv()
	if *flagAddr != "" {
		cfg.HTTPAddr = *flagAddr
	}

	log := setupLogger(cfg)
	slog.SetDefault(log)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	cancel()
	if err != nil {
		log.Error("db open failed", "driver", cfg.DBDriver, "err", err)
		os.Exit(1)
	}
	defer dbh.Close()

	blobs, err := storage.NewFSStore(cfg.BlobBasePath)
	if err != nil {
		log.Error("blob store failed", "path", cfg.BlobBasePath, "err", err)
		os.Exit(1)
	}

	from := mail.Address{Name: cfg.MailFromName, Address: cfg.MailFrom}
	var mailer email.Mailer
	switch cfg.MailDriver {
	case "sendgrid":
		mailer = email.NewSendgridMailer(cfg.SendgridAPIKey, from)
	default:
		mailer = email.NewConsoleMailer(log, from)
	}

	assessStore := assessment.NewSQLStore(dbh)
	rosterStore := roster.NewSQLStore(dbh)

	deps := api.Deps{
		DB:          dbh,
		Auth:        auth.NewService(cfg.AuthSecret, time.Duration(cfg.JWTTTLHours)*time.Hour),
		Roster:      rosterStore,
		Assessments: assessStore,
		Notes:       notes.NewSQLStore(dbh),
		Reflections: reflection.NewSQLStore(dbh),
		Invites: invite.NewService(invite.NewSQLStore(dbh), mailer,
			cfg.PublicURL, time.Duration(cfg.InviteTTLHours)*time.Hour),
		Overview:    overview.NewService(assessStore, rosterStore),
		Blobs:       blobs,
		Events:      audit.NewEventRepo(dbh),
		Log:         log,
		CORSOrigins: cfg.CORSOrigins,
	}

	if cfg.SISBaseURL != "" {
		gsStore := gradesync.NewSQLStore(dbh)
		deps.Grades = gradesync.New(gsStore, gradesync.NewClient(gradesync.ClientConfig{
			BaseURL:      cfg.SISBaseURL,
			TokenURL:     cfg.SISTokenURL,
			ClientID:     cfg.SISClientID,
			ClientSecret: cfg.SISClientSecret,
			StaticToken:  cfg.SISToken,
		}), nil)
		deps.GradeStatus = gsStore
	} else {
		log.Warn("SIS_BASE_URL not set, grade sync disabled")
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewRouter(deps),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("listening", "addr", cfg.HTTPAddr, "env", cfg.Env, "db", cfg.DBDriver, "mail", cfg.MailDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", "err", err)
			os.Exit(1)
		}
	}()

	stop, cancelStop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancelStop()
	<-stop.Done()

	log.Info("shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown failed", "err", err)
	}
}

func setupLogger(cfg config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if cfg.LogPretty {
		return slog.New(slogcolor.New(os.Stderr, level))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
