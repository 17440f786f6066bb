// Package main API Server 入口
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"users-admin/internal/apiserver/server"
	"users-admin/internal/apiserver/users"
	"users-admin/internal/config"
	"users-admin/internal/shared/storage/dbutil"
	pgdriver "users-admin/internal/shared/storage/driver/postgres"
	sqlitedriver "users-admin/internal/shared/storage/driver/sqlite"
	"users-admin/internal/shared/storage/repository"
)

func main() {
	// 加载配置（自动加载 .env，根据 APP_ENV 切换数据库）
	cfg := config.Load()

	log.Printf("Starting API Server... [env=%s]", cfg.Env)
	log.Printf("Config: %s", cfg.String())

	// 初始化数据库
	db, dialect, err := openDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	store := repository.NewStore(db, dialect)
	defer store.Close()
	log.Printf("Connected to %s", cfg.DatabaseDriver)

	// 初始化用户服务
	userSvc := users.NewService(store, cfg.Auth)

	// 确保管理员账户存在（可选，由 ADMIN_EMAIL/ADMIN_PASSWORD 控制）
	if err := users.EnsureAdminUser(userSvc, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		log.Fatalf("Failed to ensure admin user: %v", err)
	}

	h := server.NewHandler(userSvc, cfg.Auth)

	srv := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      h.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// 优雅关闭
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	log.Printf("API Server listening on :%s", cfg.APIPort)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}

	fmt.Println("Server stopped")
}

// openDatabase 根据配置打开数据库连接并返回对应方言
func openDatabase(cfg *config.Config) (*sql.DB, dbutil.Dialect, error) {
	switch cfg.DatabaseDriver {
	case "sqlite":
		db, err := sqlitedriver.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		dialect := sqlitedriver.NewDialect()
		if err := dialect.AutoMigrate(db); err != nil {
			return nil, nil, fmt.Errorf("sqlite migrate: %w", err)
		}
		return db, dialect, nil
	default:
		db, err := pgdriver.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return db, pgdriver.NewDialect(), nil
	}
}
