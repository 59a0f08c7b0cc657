package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/notesync/core/internal/authgw"
	"github.com/notesync/core/internal/httpapi"
	"github.com/notesync/core/internal/mysqlstore"
	"github.com/notesync/core/internal/sqlkit"
	"github.com/notesync/core/internal/synchistory"
	"github.com/notesync/core/internal/synclock"
	"github.com/notesync/core/internal/synctx"
)

// loadConfig mirrors the teacher's env()-helper config style, ported onto
// viper so defaults, env binding, and an optional config file share one
// source of truth instead of a hand-rolled os.Getenv wrapper per key.
func loadConfig() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("NOTESYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("env", "")
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("jwt_hs256_secret", "dev-secret-change-in-production")
	v.SetDefault("jwt_issuer", "")
	v.SetDefault("jwt_jwks_url", "")
	v.SetDefault("jwt_audience", "")

	v.SetConfigName("notesync")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			log.Warn().Err(err).Msg("failed to read notesync.yaml config file")
		}
	}

	return v
}

func main() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	log.Logger = log.With().Str("service", "notesync-core").Logger()

	cfg := loadConfig()
	isDevMode := cfg.GetString("env") == "dev"
	if isDevMode {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	}

	ctx := context.Background()

	dsn := cfg.GetString("database_dsn")
	if dsn == "" {
		log.Fatal().Msg("NOTESYNC_DATABASE_DSN is required")
	}

	db, err := mysqlstore.Open(ctx, dsn, mysqlstore.DefaultConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to mysql")
	}
	defer db.Close()

	if err := mysqlstore.Migrate(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("failed to apply schema")
	}

	jwtSecret := cfg.GetString("jwt_hs256_secret")
	jwtIssuer := cfg.GetString("jwt_issuer")
	jwksURL := cfg.GetString("jwt_jwks_url")
	jwtAudience := cfg.GetString("jwt_audience")

	// Security validation: JWKS URL and issuer must be set together, same
	// defense-in-depth reasoning as the teacher's upstream OIDC wiring.
	if (jwksURL != "" && jwtIssuer == "") || (jwksURL == "" && jwtIssuer != "") {
		log.Fatal().
			Str("issuer", jwtIssuer).
			Str("jwks_url", jwksURL).
			Msg("NOTESYNC_JWT_ISSUER and NOTESYNC_JWT_JWKS_URL must both be set or both be empty")
	}

	if !isDevMode && (jwtSecret == "" || jwtSecret == "dev-secret-change-in-production") {
		log.Fatal().Msg("cannot start in production mode with default or missing NOTESYNC_JWT_HS256_SECRET")
	}

	authCfg := authgw.Config{
		HS256Secret: jwtSecret,
		DevMode:     isDevMode,
		Issuer:      jwtIssuer,
		JWKSURL:     jwksURL,
		Audience:    jwtAudience,
	}

	dbAdapter := sqlkit.DBAdapter{DB: db}
	transactor := synctx.New(dbAdapter, synclock.New(dbAdapter)).WithHistory(synchistory.New(dbAdapter))

	srv := &httpapi.Server{
		Transactor: transactor,
		Auth:       authCfg,
	}

	httpAddr := cfg.GetString("http_addr")
	httpServer := &http.Server{
		Addr:         httpAddr,
		Handler:      srv.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("addr", httpAddr).Msg("starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	log.Info().Msg("server stopped")
}
