package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/plabarre/agenda/internal/access"
	"github.com/plabarre/agenda/internal/api"
	"github.com/plabarre/agenda/internal/auth"
	"github.com/plabarre/agenda/internal/config"
	httpserver "github.com/plabarre/agenda/internal/http"
	"github.com/plabarre/agenda/internal/notify"
	"github.com/plabarre/agenda/internal/store"
	"github.com/plabarre/agenda/internal/translate"
)

func main() {
	// .env is for local development; absence is not an error.
	_ = godotenv.Load()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(os.Stderr)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DB.DSN)
	if err != nil {
		log.Fatal().Err(err).Msg("create db pool")
	}
	defer pool.Close()

	if err := store.ApplyMigrations(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("apply migrations")
	}

	st := store.New(pool)
	resolver := access.NewResolver(st.Calendars, st.Access, st.Groups)
	issuer := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL, cfg.Auth.RefreshTokenTTL)
	authSvc := auth.NewService(cfg, st, issuer)
	authMW := auth.NewMiddleware(issuer, st.Users, cfg.Auth.AdminEmail)
	cookies := auth.NewCookieManager(cfg.Secure(), cfg.Auth.AccessTokenTTL, cfg.Auth.RefreshTokenTTL)
	translator := translate.NewClient(cfg.Translate.URL, cfg.Translate.APIKey)

	oidc, err := auth.NewOIDCFlow(ctx, cfg, st.Users, issuer, cookies)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize oidc")
	}

	handler := api.NewHandler(cfg, st, resolver, authSvc, authMW, cookies, translator, notify.Nop{})
	r := httpserver.NewRouter(cfg, st, handler, authMW, oidc)

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
