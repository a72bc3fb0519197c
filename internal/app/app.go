package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"questionnaire_backend/internal/config"
	"questionnaire_backend/internal/controller"
	"questionnaire_backend/internal/middleware"
	"questionnaire_backend/internal/repository"
	"questionnaire_backend/internal/service"
	"questionnaire_backend/internal/util"
	"questionnaire_backend/pkg/configwatcher"
	"questionnaire_backend/pkg/database"
	"questionnaire_backend/pkg/logger"
	"questionnaire_backend/pkg/monitoring"
	"questionnaire_backend/pkg/security"
	"questionnaire_backend/pkg/tracing"

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
	cors            *security.OriginAllowList
	tracerProvider  *sdktrace.TracerProvider
	configCallbacks []func(*config.Config)
	// 后台协程（限流清理等）的生命周期
	ctx    context.Context
	cancel context.CancelFunc
}

type repositories struct {
	questionnaire *repository.QuestionnaireRepository
}

type services struct {
	questionnaire *service.QuestionnaireService
	storage       *service.StorageService
	backup        *service.BackupService
}

type controllers struct {
	questionnaire *controller.QuestionnaireController
	admin         *controller.AdminController
	health        *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		questionnaire: repository.NewQuestionnaireRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, rdb *redis.Client, clock util.Clock) *services {
	s := &services{}

	var cache service.Cache = service.NoopCache{}
	if rdb != nil {
		cache = service.NewRedisCache(rdb)
	}
	ttl := time.Duration(cfg.Redis.CacheTTLSeconds) * time.Second

	s.questionnaire = service.NewQuestionnaireService(repos.questionnaire, service.DefaultSchemaRegistry(), cache, ttl, clock)

	storage, err := service.NewStorageService(&cfg.Storage)
	if err != nil {
		// 备份接口返回 BUSINESS_ERROR，其余功能不受影响
		logger.Log.Warn("Backup storage unavailable", zap.Error(err))
	} else {
		s.storage = storage
		s.backup = service.NewBackupService(repos.questionnaire, storage, clock)
	}

	return s
}

func (a *App) initControllers(s *services, rdb *redis.Client) *controllers {
	return &controllers{
		questionnaire: controller.NewQuestionnaireController(s.questionnaire),
		admin:         controller.NewAdminController(s.questionnaire, s.backup),
		health:        controller.NewHealthController(s.questionnaire, rdb),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config, clock util.Clock) {
	router.Use(middleware.Clock(clock))
	router.Use(middleware.RequestID())
	router.Use(middleware.AccessLog())
	router.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		util.InternalServerError(c, fmt.Errorf("panic: %v", recovered))
		c.Abort()
	}))
	router.Use(security.CORS(a.cors))
	router.Use(security.Secure())

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

// New 用已建立的连接组装应用，rdb 为 nil 时不使用缓存
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client, clock util.Clock) *App {
	if clock == nil {
		clock = util.SystemClock
	}
	ctx, cancel := context.WithCancel(context.Background())
	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
		cors:   security.NewOriginAllowList(cfg.CORS.AllowedOrigins),
		ctx:    ctx,
		cancel: cancel,
	}

	repos := app.initRepositories(db)
	services := app.initServices(repos, cfg, rdb, clock)
	controllers := app.initControllers(services, rdb)

	// 监控初始化
	monitoring.Init()

	router := gin.New()
	app.Router = router

	app.setupMiddlewares(router, cfg, clock)
	app.registerRoutes(router, controllers, cfg)

	app.RegisterConfigCallback(func(newCfg *config.Config) {
		logger.SetMode(newCfg.Server.Mode)
	})
	app.RegisterConfigCallback(func(newCfg *config.Config) {
		app.cors.Set(newCfg.CORS.AllowedOrigins)
	})

	return app
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)

	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(&cfg.Database, cfg.Server.Mode == "debug")
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
		log.Fatalf("Failed to initialize database: %v", err)
	}

	var rdb *redis.Client
	if cfg.Redis.Enabled && !cfg.MigrateOnly {
		rdb, err = database.InitRedis(&cfg.Redis)
		if err != nil {
			// redis 只做缓存，连不上时降级运行
			logger.Log.Warn("Failed to initialize redis, caching disabled", zap.Error(err))
			rdb = nil
		}
	}

	app := New(cfg, db, rdb, util.SystemClock)

	if cfg.Tracing.Enabled && !cfg.MigrateOnly {
		tp, err := tracing.InitTracer(tracing.ServiceName, cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		app.tracerProvider = tp
	}

	return app
}

// Close 停止后台协程，不关闭数据库连接
func (a *App) Close() {
	a.cancel()
}

func (a *App) watchConfig(ctx context.Context) {
	if a.Config.ConfigFile == "" {
		return
	}
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

func (a *App) Run() {
	srv := &http.Server{
		Addr:              ":" + a.Config.Server.Port,
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	a.watchConfig(ctx)

	// 启动服务器
	go func() {
		logger.Log.Info("Server running", zap.String("port", a.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatal("listen", zap.Error(err))
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")
	stop()
	a.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}

	if a.tracerProvider != nil {
		if err := a.tracerProvider.Shutdown(shutdownCtx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}
	if a.Redis != nil {
		a.Redis.Close()
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		sqlDB.Close()
	}

	logger.Log.Info("Server exiting")
}
