// cmd/tools/schema-migrate/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"internship-portal/internal/common/config"
	"internship-portal/internal/common/database"
	"internship-portal/internal/common/logger"

	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "Config file (empty searches configs/)")
	printOnly := flag.Bool("print", false, "Print the schema instead of applying it")
	timeout := flag.Duration("timeout", 30*time.Second, "Migration timeout")
	flag.Parse()

	if *printOnly {
		fmt.Print(database.Schema())
		return
	}

	var (
		cfg *config.Config
		err error
	)
	if *configPath != "" {
		cfg, err = config.LoadFromFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer log.Sync()

	pg, err := database.NewPostgres(cfg.Database.Postgres)
	if err != nil {
		log.Fatal("Failed to open postgres", zap.Error(err))
	}
	defer pg.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := pg.Ping(ctx); err != nil {
		log.Fatal("Postgres unreachable", zap.Error(err), zap.String("host", cfg.Database.Postgres.Host))
	}
	if err := database.Migrate(ctx, pg.DB); err != nil {
		log.Fatal("Migration failed", zap.Error(err))
	}
	log.Info("Schema applied", zap.String("database", cfg.Database.Postgres.Database))
}
