package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/oscarmarin21/Admin/internal/config"
	"github.com/oscarmarin21/Admin/internal/migrate"
	"github.com/oscarmarin21/Admin/internal/obs"
	"github.com/oscarmarin21/Admin/internal/store/pg"
	"github.com/oscarmarin21/Admin/ops/migrations"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	var (
		dsn = flag.String("dsn", cfg.Store.DatabaseURL, "PostgreSQL DSN (defaults to DATABASE_URL)")
		dir = flag.String("dir", cfg.MigrationsDir, "Directory of SQL migrations; the embedded set is used when empty")
	)
	flag.Parse()

	log, err := obs.NewLogger(cfg.Log.Level, "console")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if *dsn == "" {
		log.Fatal("missing DSN: provide via -dsn or DATABASE_URL")
	}
	if flag.NArg() == 0 {
		log.Fatal("usage: migrate [up|down|status]")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := pg.Open(*dsn)
	if err != nil {
		log.Fatal("open db", zap.Error(err))
	}
	defer store.Close()

	mgr := migrate.NewManager(store.DB(), migrations.Open(*dir), migrate.WithLogger(log))

	cmd := flag.Arg(0)
	switch cmd {
	case "up":
		var applied []string
		applied, err = mgr.Up(ctx)
		if err == nil && len(applied) == 0 {
			log.Info("schema is up to date")
		}
	case "down":
		_, err = mgr.Down(ctx)
	case "status":
		var history []string
		history, err = mgr.Status(ctx)
		for _, item := range history {
			fmt.Println(item)
		}
	default:
		log.Fatal("unknown command", zap.String("command", cmd))
	}
	if err != nil {
		log.Fatal("migrate failed", zap.String("command", cmd), zap.Error(err))
	}
}
