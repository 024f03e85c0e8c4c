package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/jengzang/locator-backend-go/internal/handler"
	"github.com/jengzang/locator-backend-go/internal/middleware"
	"github.com/jengzang/locator-backend-go/internal/observability"
	"github.com/jengzang/locator-backend-go/pkg/response"
)

// Routes is served by the location handler, or by the unavailable handler when
// the configuration failed to load
type Routes interface {
	Latest(c *gin.Context)
	Range(c *gin.Context)
	Radius(c *gin.Context)
	Health(c *gin.Context)
}

// SetupRouter 设置路由
func SetupRouter(h Routes, pageName string, logger *slog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(
		middleware.RequestID(),
		middleware.Logger(logger),
		middleware.Recovery(logger, pageName),
		middleware.CORS(),
	)

	// 各页面的 pageName,配置错误时统一为 "Error"
	historico, localizador := pageName+handler.HistoricoSuffix, pageName+handler.LocalizadorSuffix
	if pageName == response.ErrorPageName {
		historico, localizador = pageName, pageName
	}
	rangePage := middleware.PageName(historico)
	radiusPage := middleware.PageName(localizador)

	// 健康检查
	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(observability.Handler()))

	// API 路由组
	v1 := r.Group("/api/v1")
	{
		locations := v1.Group("/locations")
		{
			locations.GET("/latest", h.Latest)
			locations.GET("/range", rangePage, h.Range)
			locations.GET("/radius", radiusPage, h.Radius)
		}
	}

	// 旧版 PHP 入口
	r.GET("/data.php", h.Latest)
	r.GET("/historico.php", rangePage, h.Range)
	r.GET("/localizador.php", radiusPage, h.Radius)

	return r
}
