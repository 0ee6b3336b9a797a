package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"building_chat/internal/middleware"
	"building_chat/internal/service"
	"building_chat/internal/utils"
)

// NewRouter 建立帶有 recovery 與請求日誌的 gin 路由器
func NewRouter(services *service.Services, tokens *utils.TokenManager, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.Logger(log.Named("http")))
	SetupRoutes(r, services, tokens, log)
	return r
}
