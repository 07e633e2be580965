package app

import (
	"net/http"
	"os"
	"osian_backend/docs"
	"osian_backend/internal/config"
	"osian_backend/internal/middleware"
	"osian_backend/internal/model"
	"osian_backend/internal/util"
	"osian_backend/pkg/monitoring"
	"osian_backend/pkg/security"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	api := router.Group("/api")
	api.Use(security.RateLimiter(cfg.RateLimit.API.MaxRequests, cfg.RateLimit.API.Window()))

	// 1. 公共路由(无需登录)
	a.registerPublicRoutes(api, c, cfg)

	// 2. 需要授权的路由
	authGroup := api.Group("")
	authGroup.Use(middleware.AuthMiddleware(cfg.JWT.Secret))
	{
		a.registerQuizRoutes(authGroup, c)
		a.registerAdminRoutes(authGroup, c)
	}

	// 3. 前端静态文件
	router.NoRoute(a.staticHandler(cfg.Server.StaticDir))
}

func (a *App) registerPublicRoutes(api *gin.RouterGroup, c *controllers, cfg *config.Config) {
	api.GET("/health", c.health.HealthCheck)

	auth := api.Group("/auth")
	auth.Use(security.RateLimiter(cfg.RateLimit.Auth.MaxRequests, cfg.RateLimit.Auth.Window()))
	{
		auth.POST("/register", c.auth.Register)
		auth.POST("/login", c.auth.Login)
	}
}

func (a *App) registerQuizRoutes(group *gin.RouterGroup, c *controllers) {
	group.GET("/auth/me", c.auth.Profile)

	quizzes := group.Group("/quizzes")
	{
		quizzes.GET("", c.quiz.ListQuizzes)
		quizzes.GET("/:id", c.quiz.GetQuiz)
		quizzes.POST("", middleware.RoleMiddleware(model.Admin), c.quiz.CreateQuiz)
	}

	results := group.Group("/results")
	{
		results.POST("/submit", c.result.SubmitResult)
		results.GET("/me", c.result.MyResults)
	}
}

func (a *App) registerAdminRoutes(group *gin.RouterGroup, c *controllers) {
	admin := group.Group("/admin")
	admin.Use(middleware.RoleMiddleware(model.Admin))
	{
		admin.GET("/users", c.user.GetUsers)
		admin.GET("/users/:id", c.user.GetUser)
		admin.POST("/users/:id/disable", c.user.DisableUser)
	}
}

// staticHandler 提供前端静态文件，未知的非 API 路径回退到 index.html
func (a *App) staticHandler(staticDir string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		path := ctx.Request.URL.Path
		if staticDir == "" || strings.HasPrefix(path, "/api/") || path == "/api" ||
			(ctx.Request.Method != http.MethodGet && ctx.Request.Method != http.MethodHead) {
			util.NotFound(ctx, "Route not found")
			return
		}

		file := filepath.Join(staticDir, filepath.Clean("/"+path))
		if info, err := os.Stat(file); err == nil && !info.IsDir() {
			ctx.File(file)
			return
		}

		index := filepath.Join(staticDir, "index.html")
		if _, err := os.Stat(index); err != nil {
			util.NotFound(ctx, "Route not found")
			return
		}
		ctx.File(index)
	}
}
