package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jengzang/locator-backend-go/internal/api"
	"github.com/jengzang/locator-backend-go/internal/config"
	"github.com/jengzang/locator-backend-go/internal/database"
	"github.com/jengzang/locator-backend-go/internal/handler"
	"github.com/jengzang/locator-backend-go/internal/observability"
	"github.com/jengzang/locator-backend-go/internal/repository"
	"github.com/jengzang/locator-backend-go/internal/service"
	"github.com/jengzang/locator-backend-go/pkg/response"
)

func main() {
	gin.SetMode(gin.ReleaseMode)

	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		// Keep serving so clients get the configuration error envelope
		logger := observability.NewLogger(os.Getenv("LOG_LEVEL"))
		logger.Error("configuration failed to load", "error", err)
		port := os.Getenv("PORT")
		if port == "" {
			port = ":8080"
		}
		run(api.SetupRouter(handler.NewUnavailableHandler(err), response.ErrorPageName, logger), port)
		return
	}

	logger := observability.NewLogger(cfg.LogLevel)

	// 初始化数据库
	db, dialect, err := database.Open(database.Config{
		Driver: cfg.DB.Driver,
		Host:   cfg.DB.Host,
		Port:   cfg.DB.Port,
		User:   cfg.DB.User,
		Pass:   cfg.DB.Pass,
		Name:   cfg.DB.Name,
	})
	if err != nil {
		log.Fatal("Failed to initialize database:", err)
	}
	defer db.Close()

	if cfg.DB.Migrate {
		if cfg.DB.Driver != "sqlite" {
			logger.Warn("DB_MIGRATE only applies to sqlite stores, skipping", "driver", cfg.DB.Driver)
		} else if err := database.NewMigrationManager(db).RunMigrations(database.UnitMigrations(cfg.Units)); err != nil {
			log.Fatal("Failed to run migrations:", err)
		}
	}

	repo := repository.NewLocationRepository(db, dialect)
	svc := service.NewLocationService(repo, cfg.Units, logger)
	h := handler.NewLocationHandler(svc, repo, cfg.PageName, logger)

	// 初始化路由
	router := api.SetupRouter(h, cfg.PageName, logger)

	logger.Info("Server starting", "port", cfg.Port, "driver", cfg.DB.Driver, "units", len(cfg.Units))
	run(router, cfg.Port)
}

// run serves until SIGINT/SIGTERM, then drains in-flight requests
func run(router http.Handler, addr string) {
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server:", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
}
