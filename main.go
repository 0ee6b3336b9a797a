package main

import (
	"log"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"building_chat/internal/api"
	"building_chat/internal/logger"
	"building_chat/internal/models"
	"building_chat/internal/repository"
	"building_chat/internal/service"
	"building_chat/internal/storage"
	"building_chat/internal/utils"
	"building_chat/pkg/config"
)

func main() {
	// 載入應用程式配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zlog, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	// 初始化資料庫連接
	db, err := storage.Open(cfg.DB)
	if err != nil {
		zlog.Fatal("failed to initialize database", zap.String("driver", cfg.DB.Driver), zap.Error(err))
	}
	defer db.Close()

	// 自動遷移資料庫結構
	if err := db.AutoMigrate(models.All()...); err != nil {
		zlog.Fatal("failed to auto migrate database", zap.Error(err))
	}

	repos := repository.NewRepositories(db)
	tokens := utils.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	services := service.NewServices(repos, tokens, zlog, service.NewHubMetrics(prometheus.DefaultRegisterer))

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := api.NewRouter(services, tokens, zlog)

	// 啟動伺服器
	zlog.Info("gateway listening", zap.String("address", cfg.Server.Address))
	if err := r.Run(cfg.Server.Address); err != nil {
		zlog.Fatal("failed to run server", zap.Error(err))
	}
}
