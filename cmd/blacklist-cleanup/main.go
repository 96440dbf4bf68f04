// blacklist-cleanup — одноразовая команда очистки blacklist'а refresh-токенов.
// Удаляет только записи с истёкшим сроком: такие токены в любом случае
// не пройдут проверку exp, поэтому команду безопасно запускать в любое
// время, в том числе параллельно с работающим сервисом.
//
// Запуск:
//
//	blacklist-cleanup --config ./local.yaml
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"auth-core/internal/config"
	"auth-core/internal/storage/postgres"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.Parse()

	cfg := config.MustLoad(configPath)

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	str, err := postgres.New(ctx, cfg.DB.DatabaseURL)
	if err != nil {
		log.Error("postgres_connect_failed", slog.String("err", err.Error()))
		os.Exit(1)
	}
	defer str.Close()

	log.Info("blacklist_cleanup_started")

	deleted, err := str.DeleteExpiredEntries(ctx, time.Now().UTC())
	if err != nil {
		log.Error("blacklist_cleanup_failed", slog.String("err", err.Error()))
		os.Exit(1)
	}

	log.Info("blacklist_cleanup_completed", slog.Int64("deleted_count", deleted))
}
