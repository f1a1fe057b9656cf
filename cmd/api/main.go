package main

import (
	"context"
	"os"
	"time"

	"github.com/technicaldee/locallift/internal/app"
	"github.com/technicaldee/locallift/internal/config"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(os.Stderr)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	fiberApp, db, rdb, err := app.CreateApp(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("app create failed")
	}

	if db != nil {
		sqlDB, err := db.DB()
		if err != nil {
			log.Fatal().Err(err).Msg("database handle unavailable")
		}
		if err := sqlDB.Ping(); err != nil {
			log.Fatal().Err(err).Msg("database connection failed")
		}
		log.Info().Msg("database connected")
	}
	if rdb != nil {
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			log.Fatal().Err(err).Msg("redis connection failed")
		}
		log.Info().Msg("redis connected")
	}

	log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("ledger service listening")
	if err := fiberApp.Listen(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
