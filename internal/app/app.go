package app

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"osian_backend/internal/config"
	"osian_backend/internal/controller"
	"osian_backend/internal/middleware"
	"osian_backend/internal/repository"
	"osian_backend/internal/service"
	"osian_backend/pkg/configwatcher"
	"osian_backend/pkg/database"
	"osian_backend/pkg/logger"
	"osian_backend/pkg/monitoring"
	"osian_backend/pkg/security"
	"osian_backend/pkg/tracing"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config          *config.Config
	Router          *gin.Engine
	DB              *gorm.DB
	Redis           *redis.Client
	cors            *security.CORSPolicy
	tracer          *sdktrace.TracerProvider
	configCallbacks []func(*config.Config)
}

type stores struct {
	user   service.UserStore
	admin  service.UserAdminStore
	quiz   service.QuizStore
	result service.ResultStore
}

type services struct {
	auth   *service.AuthService
	user   *service.UserService
	quiz   *service.QuizService
	result *service.ResultService
}

type controllers struct {
	auth   *controller.AuthController
	user   *controller.UserController
	quiz   *controller.QuizController
	result *controller.ResultController
	health *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

func newStores(db *gorm.DB) *stores {
	users := repository.NewUserRepository(db)
	return &stores{
		user:   users,
		admin:  users,
		quiz:   repository.NewQuizRepository(db),
		result: repository.NewResultRepository(db),
	}
}

func (a *App) initServices(st *stores, cfg *config.Config, rdb *redis.Client) *services {
	s := &services{}
	s.auth = service.NewAuthService(st.user, cfg)
	s.user = service.NewUserService(st.admin)
	s.quiz = service.NewQuizService(st.quiz, rdb, cfg)
	s.result = service.NewResultService(st.result, s.quiz)
	return s
}

func (a *App) initControllers(s *services, pinger controller.Pinger) *controllers {
	return &controllers{
		auth:   controller.NewAuthController(s.auth),
		user:   controller.NewUserController(s.user),
		quiz:   controller.NewQuizController(s.quiz),
		result: controller.NewResultController(s.result),
		health: controller.NewHealthController(pinger),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(security.CORS(a.cors))
	router.Use(security.Secure(a.cors))
	router.Use(security.BodyLimit(cfg.Server.BodyLimitMB))

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

// newApp 组装路由；数据层由调用方传入，测试时可以换成内存实现
func newApp(cfg *config.Config, st *stores, rdb *redis.Client, pinger controller.Pinger) *App {
	app := &App{
		Config: cfg,
		Redis:  rdb,
		cors:   security.NewCORSPolicy(cfg.CORS.AllowedOrigins),
	}
	app.RegisterConfigCallback(func(newCfg *config.Config) {
		app.cors.Update(newCfg.CORS.AllowedOrigins)
		logger.Log.Info("CORS origins updated", zap.Strings("origins", newCfg.CORS.AllowedOrigins))
	})

	services := app.initServices(st, cfg, rdb)
	controllers := app.initControllers(services, pinger)

	// 监控初始化
	monitoring.Init()

	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	router := gin.New()
	app.Router = router

	app.setupMiddlewares(router, cfg)
	app.registerRoutes(router, controllers, cfg)

	return app
}

func NewApp(cfg *config.Config) (*App, error) {
	logger.InitLogger(cfg)
	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(&cfg.Database, cfg.Server.Mode)
	if err != nil {
		logger.Log.Error("Failed to initialize database", zap.Error(err))
		return nil, err
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Error("Failed to initialize redis", zap.Error(err))
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	var tp *sdktrace.TracerProvider
	if cfg.Tracing.Enabled {
		tp, err = tracing.InitTracer("osian-backend", cfg.Tracing)
		if err != nil {
			logger.Log.Error("Failed to initialize tracing", zap.Error(err))
			return nil, err
		}
	}

	app := newApp(cfg, newStores(db), rdb, sqlDB)
	app.DB = db
	app.tracer = tp
	return app, nil
}

func (a *App) Run() error {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if a.Config.ConfigFile != "" {
		go func() {
			err := configwatcher.WatchConfig(ctx, a.Config.ConfigFile, func(newCfg *config.Config) {
				for _, cb := range a.configCallbacks {
					cb(newCfg)
				}
			})
			if err != nil {
				logger.Log.Error("Config watcher stopped", zap.Error(err))
			}
		}()
	}

	// 启动服务器
	serveErr := make(chan error, 1)
	go func() {
		logger.Log.Info("Server running", zap.String("port", a.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	select {
	case err := <-serveErr:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}
	logger.Log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	if a.tracer != nil {
		if err := a.tracer.Shutdown(shutdownCtx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}
	if a.Redis != nil {
		a.Redis.Close()
	}

	logger.Log.Info("Server exiting")
	return nil
}
