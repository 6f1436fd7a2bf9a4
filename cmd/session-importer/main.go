package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"rate-radar/internal/adapters/repo"
	"rate-radar/internal/infra/config"
	"rate-radar/internal/infra/db"
	"rate-radar/internal/usecase/session"
)

func main() {
	var (
		filePath string
		ownerID  int64
	)
	flag.StringVar(&filePath, "file", "", "Path to portal session JSON file")
	flag.Int64Var(&ownerID, "owner", 0, "Owner ID the session belongs to")
	flag.Parse()

	if filePath == "" {
		log.Fatal().Msg("session-importer: path to session file is required (-file)")
	}
	if ownerID <= 0 {
		log.Fatal().Msg("session-importer: positive owner id is required (-owner)")
	}

	payload, err := os.ReadFile(filePath)
	if err != nil {
		log.Fatal().Err(err).Msg("session-importer: failed to read session file")
	}

	cfg := config.Load()
	if cfg.PGDSN == "" {
		log.Fatal().Msg("session-importer: PG_DSN environment variable is required")
	}

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("session-importer: failed to connect to database")
	}
	defer pool.Close()

	store := session.NewStore(repo.NewPostgres(pool), cfg.Portal.SessionTTLDays, log.With().Str("component", "session").Logger())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if !store.ImportFromPayload(ctx, ownerID, payload) {
		log.Fatal().Msg("session-importer: session payload was rejected")
	}

	fmt.Printf("Stored portal session for owner %d (%d bytes) in database\n", ownerID, len(payload))
}
