package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/atharvakonge/papertrade/internal/auth"
	"github.com/atharvakonge/papertrade/internal/config"
	"github.com/atharvakonge/papertrade/internal/db"
	"github.com/atharvakonge/papertrade/internal/handlers"
	"github.com/atharvakonge/papertrade/internal/logging"
	"github.com/atharvakonge/papertrade/internal/session"
	"github.com/atharvakonge/papertrade/internal/store"
	"github.com/atharvakonge/papertrade/internal/trading"
	"github.com/atharvakonge/papertrade/internal/web"
	"github.com/gin-gonic/gin"
	"github.com/google/subcommands"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const shutdownTimeout = 10 * time.Second

type serveCmd struct {
	envFlag
}

func (*serveCmd) Name() string     { return "serve" }
func (*serveCmd) Synopsis() string { return "migrate the database and run the web server" }
func (*serveCmd) Usage() string {
	return `serve [-env <file>]

  Applies pending migrations, then serves the trading site until SIGINT or
  SIGTERM. Requires QUOTE_API_KEY (or API_KEY).
`
}

func (s *serveCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&s.envFile, "env", ".env", "Optional .env file to load before reading the environment.")
}

func (s *serveCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := s.load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error configuring logger: %v\n", err)
		return subcommands.ExitFailure
	}

	if err := s.run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Error("server stopped")
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func (s *serveCmd) run(ctx context.Context, cfg *config.Config, logger *logrus.Logger) error {
	l := logging.Component(logger, "serve")

	database, err := db.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := db.Migrate(database); err != nil {
		return err
	}
	l.Info("database ready")

	rdb, err := connectRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
		l.WithField("addr", cfg.Redis.Addr).Info("using redis for sessions and quotes")
	}

	quoter, err := newQuoter(cfg.Quote, rdb, logger)
	if err != nil {
		return err
	}
	sessionStore, err := newSessionStore(cfg.Session, rdb)
	if err != nil {
		return err
	}

	startingCash, err := decimal.NewFromString(cfg.Trading.StartingCash)
	if err != nil {
		return fmt.Errorf("trading.starting_cash: %w", err)
	}

	st := store.New(database)
	tradingSvc := trading.NewService(st, quoter, logging.Component(logger, "trading"))
	authSvc, err := auth.NewService(st, cfg.Auth.BcryptCost, startingCash, logging.Component(logger, "auth"))
	if err != nil {
		return err
	}
	sessions := session.NewManager(sessionStore, cfg.Session, logging.Component(logger, "session"))

	h := handlers.New(tradingSvc, authSvc, sessions, st, cfg.Quote.StreamInterval, logging.Component(logger, "handlers"))

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), logging.RequestLogger(logger))

	tmpl, err := web.Templates()
	if err != nil {
		return fmt.Errorf("templates: %w", err)
	}
	router.SetHTMLTemplate(tmpl)
	h.Routes(router)

	srv := &http.Server{
		Addr:              cfg.App.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		l.WithField("addr", cfg.App.Port).Info("server starting")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	l.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
