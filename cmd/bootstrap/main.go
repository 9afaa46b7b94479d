// Package main 数据库初始化入口：按实体定义迁移表结构与约束
package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"

	"z-novel-plan-api/internal/config"
	"z-novel-plan-api/internal/wire"
	"z-novel-plan-api/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	fmt.Println("Starting schema bootstrap...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger.Init(cfg.Observability.Logging.Level, cfg.Observability.Logging.Format)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	client, cleanup, err := wire.InitializePostgresOnly(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to initialize postgres: %v", err)
	}
	defer cleanup()

	if err := client.HealthCheck(ctx); err != nil {
		log.Fatalf("postgres not reachable: %v", err)
	}
	if err := client.AutoMigrate(ctx); err != nil {
		log.Fatalf("failed to migrate schema: %v", err)
	}

	fmt.Printf("Schema ready on %s:%d/%s\n",
		cfg.Database.Postgres.Host, cfg.Database.Postgres.Port, cfg.Database.Postgres.Database)
	fmt.Println("Bootstrap completed successfully.")
}
