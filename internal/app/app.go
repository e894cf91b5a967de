package app

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"oral_eval_backend/internal/config"
	"oral_eval_backend/internal/controller"
	"oral_eval_backend/internal/repository"
	"oral_eval_backend/internal/service"
	"oral_eval_backend/pkg/database"
	"oral_eval_backend/pkg/logger"
	"oral_eval_backend/pkg/monitoring"
	"oral_eval_backend/pkg/queue"
	"oral_eval_backend/pkg/ratelimit"
	"oral_eval_backend/pkg/security"
	"oral_eval_backend/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config          *config.Config
	Router          *gin.Engine
	DB              *gorm.DB
	Redis           *redis.Client
	services        *services
	configCallbacks []func(*config.Config)

	bgCancel context.CancelFunc
}

type repositories struct {
	user       *repository.UserRepository
	assignment *repository.AssignmentRepository
	token      *repository.TokenRepository
	quota      *repository.QuotaRepository
	attempt    *repository.AttemptRepository
}

type services struct {
	storage    *service.StorageService
	audit      *service.AuditService
	auth       *service.AuthService
	assignment *service.AssignmentService
	quota      *service.QuotaService
	token      *service.TokenService
	attempt    *service.AttemptService
	room       *service.WaitingRoom
	phonetic   *service.PhoneticService
	semantic   *service.SemanticService
	report     *service.ReportService
	jobQueue   *queue.Queue
}

type controllers struct {
	auth       *controller.AuthController
	token      *controller.TokenController
	attempt    *controller.AttemptController
	quota      *controller.QuotaController
	report     *controller.ReportController
	assignment *controller.AssignmentController
	health     *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

// ApplyConfig 配置热更新回调入口,仅采纳可安全热切换的字段
func (a *App) ApplyConfig(newCfg *config.Config) {
	a.Config.Assess.RatingTiers = newCfg.Assess.RatingTiers
	a.Config.Assess.ReportURLTTLMinutes = newCfg.Assess.ReportURLTTLMinutes
	a.Config.Assess.EntryTokenTTLMinutes = newCfg.Assess.EntryTokenTTLMinutes
	a.Config.Semantic.MaxRetries = newCfg.Semantic.MaxRetries
	logger.Log.Info("配置已热更新")

	for _, cb := range a.configCallbacks {
		cb(newCfg)
	}
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		user:       repository.NewUserRepository(db),
		assignment: repository.NewAssignmentRepository(db),
		token:      repository.NewTokenRepository(db),
		quota:      repository.NewQuotaRepository(db),
		attempt:    repository.NewAttemptRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, rdb *redis.Client) *services {
	s := &services{}

	s.storage = service.NewStorageService(cfg)
	s.audit = service.NewAuditService(cfg)
	s.auth = service.NewAuthService(repos.user, cfg)
	s.assignment = service.NewAssignmentService(repos.assignment)

	// 失败归因:落库的归因优先,缺失时拉音频做探针
	classifier := service.ChainClassifier{
		Probe: &service.ProbeClassifier{Storage: s.storage, MinDuration: 1.0},
	}
	s.quota = service.NewQuotaService(repos.quota, repos.attempt, classifier, s.audit, cfg)

	s.token = service.NewTokenService(
		repos.token, repos.user, repos.assignment, repos.attempt,
		s.quota, s.audit, rdb, cfg,
	)

	s.attempt = service.NewAttemptService(repos.attempt, s.quota)

	s.room = service.NewWaitingRoom(
		cfg.Phonetic.MaxSessions,
		time.Duration(cfg.Phonetic.PositionPushSecs)*time.Second,
		rdb,
	)
	s.phonetic = service.NewPhoneticService(
		service.NewPhoneticClient(&cfg.Phonetic),
		s.room, s.storage, s.attempt, repos.attempt, repos.assignment, cfg,
	)

	s.jobQueue = queue.New(rdb, queue.Options{
		Stream:           cfg.Semantic.Stream,
		Group:            cfg.Semantic.Group,
		DeadLetterStream: cfg.Semantic.DeadLetterStream,
		Visibility:       time.Duration(cfg.Semantic.VisibilitySeconds) * time.Second,
	})
	bucket := ratelimit.New(rdb, "semantic_budget", cfg.Semantic.RatePerMinute)
	s.semantic = service.NewSemanticService(
		service.NewSemanticClient(&cfg.Semantic),
		s.jobQueue, bucket, s.storage, s.attempt, repos.attempt, repos.assignment, cfg,
	)

	report, err := service.NewReportService(repos.attempt, repos.assignment, repos.user, s.storage, cfg)
	if err != nil {
		logger.Log.Fatal("Failed to initialize report service", zap.Error(err))
	}
	s.report = report

	return s
}

func (a *App) initControllers(s *services, db *gorm.DB, rdb *redis.Client) *controllers {
	return &controllers{
		auth:       controller.NewAuthController(s.auth),
		token:      controller.NewTokenController(s.token),
		attempt:    controller.NewAttemptController(s.attempt, s.phonetic, s.semantic),
		quota:      controller.NewQuotaController(s.quota, s.auth),
		report:     controller.NewReportController(s.report, s.token),
		assignment: controller.NewAssignmentController(s.assignment),
		health:     controller.NewHealthController(db, rdb),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())
	router.Use(security.RateLimiter(cfg.RateLimit.MaxRequests,
		time.Duration(cfg.RateLimit.WindowMinutes)*time.Minute))

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

func (a *App) startBackgroundTasks(ctx context.Context, s *services) {
	if err := s.jobQueue.EnsureGroup(ctx); err != nil {
		logger.Log.Fatal("Failed to initialize semantic job queue", zap.Error(err))
	}

	s.semantic.StartWorkers(ctx)
	s.phonetic.StartRetrySweep(ctx)

	// 队列深度指标
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				depth, err := s.jobQueue.Depth(context.Background())
				if err != nil {
					continue
				}
				monitoring.SemanticQueueDepth.Set(float64(depth))
			}
		}
	}()
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)

	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
		log.Fatalf("Failed to initialize database: %v", err)
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Fatal("Failed to initialize redis", zap.Error(err))
		log.Fatalf("Failed to initialize redis: %v", err)
	}

	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
	}

	repos := app.initRepositories(db)
	services := app.initServices(repos, cfg, rdb)
	app.services = services
	controllers := app.initControllers(services, db, rdb)

	// 监控初始化
	monitoring.Init()

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	app.Router = router

	app.setupMiddlewares(router, cfg)

	if cfg.Tracing.Enabled {
		if _, err := tracing.InitTracer("oral-eval-backend", cfg.Tracing.CollectorEndpoint); err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
	}

	app.registerRoutes(router, controllers, cfg)

	if cfg.Storage.Type == "local" {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}

	bgCtx, cancel := context.WithCancel(context.Background())
	app.bgCancel = cancel
	app.startBackgroundTasks(bgCtx, services)

	return app
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	// 启动服务器
	go func() {
		log.Printf("Server running on port %s", a.Config.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// 等待中断信号优雅地关闭服务器
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	// 后台任务按依赖顺序收尾:停止接收新会话,断开在途流,排干审计缓冲
	if a.bgCancel != nil {
		a.bgCancel()
	}
	if a.services != nil {
		a.services.phonetic.Stop()
		a.services.semantic.Stop()
		a.services.room.Stop()
		a.services.audit.Stop()
	}

	logger.Log.Sync()
	log.Println("Server exiting")
}
