package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/school-system/reportgen/internal/config"
	"github.com/school-system/reportgen/internal/database"
	"github.com/school-system/reportgen/internal/logging"
	"github.com/school-system/reportgen/internal/models"
	"github.com/school-system/reportgen/internal/store"
	"go.uber.org/zap"
)

// cleanup prunes generation history older than HISTORY_RETENTION and
// expired refresh tokens.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load config:", err)
		os.Exit(1)
	}

	log, err := logging.New(cfg.Server.Env)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to build logger:", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	db, err := database.Connect(cfg, log)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}

	st, err := store.Open(ctx, cfg.Store, db, log)
	if err != nil {
		log.Fatal("Failed to open store", zap.Error(err))
	}
	defer st.Close(context.Background())

	cutoff := time.Now().Add(-cfg.History.Retention)
	n, err := st.PruneHistory(ctx, cutoff)
	if err != nil {
		log.Fatal("Failed to prune history", zap.Error(err))
	}
	log.Info("Pruned history", zap.Int64("deleted", n), zap.Time("cutoff", cutoff))

	res := db.WithContext(ctx).
		Where("expires_at < ? OR revoked = ?", time.Now(), true).
		Delete(&models.RefreshToken{})
	if res.Error != nil {
		log.Error("Failed to delete refresh tokens", zap.Error(res.Error))
		return
	}
	log.Info("Deleted stale refresh tokens", zap.Int64("deleted", res.RowsAffected))
}
