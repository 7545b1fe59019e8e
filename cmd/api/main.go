package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/pronote-app/messagerie-backend/internal/config"
	"github.com/pronote-app/messagerie-backend/internal/domain"
	"github.com/pronote-app/messagerie-backend/internal/handler"
	"github.com/pronote-app/messagerie-backend/internal/middleware"
	"github.com/pronote-app/messagerie-backend/internal/repository"
	"github.com/pronote-app/messagerie-backend/internal/routes"
	"github.com/pronote-app/messagerie-backend/internal/service"
	pkgjwt "github.com/pronote-app/messagerie-backend/pkg/jwt"
	pkglogger "github.com/pronote-app/messagerie-backend/pkg/logger"
	pkgredis "github.com/pronote-app/messagerie-backend/pkg/redis"
)

// @title           Pronote Messagerie API
// @version         1.0
// @description     Internal messaging backend of the Pronote school portal
//
// @host            localhost:8085
// @BasePath        /api/v1/messagerie
//
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func getConfigPath() string {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf("configs/config.%s.yaml", env)
}

func main() {
	config.LoadDotEnv()

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration: %v\n", err)
		os.Exit(1)
	}

	pkglogger.Init(cfg.App.Env)
	log := pkglogger.GetLogger()

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := initDB(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("connexion MySQL impossible")
	}
	log.Info().Msg("connected to MySQL")

	if err := db.AutoMigrate(
		&domain.Conversation{},
		&domain.Participant{},
		&domain.Message{},
		&domain.Attachment{},
		&domain.Notification{},
	); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}

	var redisClient *redis.Client
	redisClient, err = pkgredis.NewClient(
		cfg.Redis.Host,
		cfg.Redis.Port,
		cfg.Redis.Password,
		cfg.Redis.DB,
		cfg.Redis.PoolSize,
	)
	if err != nil {
		if !cfg.IsDevelopment() {
			log.Fatal().Err(err).Msg("Redis unavailable, refusing to start without CSRF protection")
		}
		log.Warn().Err(err).Msg("Redis unavailable, falling back to in-memory rate limiting, CSRF disabled")
		redisClient = nil
	} else {
		log.Info().Msg("connected to Redis")
	}

	var limiterStore service.RateLimitStore
	if redisClient != nil {
		limiterStore = service.NewRedisRateLimitStore(redisClient)
	} else {
		limiterStore = service.NewMemoryRateLimitStore()
	}
	limiter := service.NewRateLimiter(limiterStore)

	jwtManager := pkgjwt.NewManager(cfg.JWT.Secret, cfg.JWT.ExpiresIn)

	// Repositories
	convRepo := repository.NewConversationRepository(db)
	msgRepo := repository.NewMessageRepository(db)
	notifRepo := repository.NewNotificationRepository(db)
	attRepo := repository.NewAttachmentRepository(db)

	// Services
	perms := service.NewPermissionService(convRepo)
	attachments := service.NewAttachmentService(attRepo, cfg.Upload.Dir)
	conversations := service.NewConversationService(convRepo, perms)
	messages := service.NewMessageService(msgRepo, convRepo, attachments, perms)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Split(cfg.CORS.AllowOrigins, ","),
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-CSRF-Token", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	router.Use(middleware.RequestLogger())
	router.Use(middleware.Metrics())
	router.Use(middleware.EnforceRateLimit(limiter, "global", 120, time.Minute))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"success": true, "status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	routes.Setup(router, &routes.Handlers{
		Conversations: handler.NewConversationHandler(conversations),
		Messages:      handler.NewMessageHandler(messages, attachments),
		Notifications: handler.NewNotificationHandler(notifRepo),
		Security:      handler.NewSecurityHandler(redisClient),
	}, jwtManager, limiter, redisClient)

	addr := fmt.Sprintf(":%d", cfg.App.Port)
	log.Info().Str("addr", addr).Msg("messagerie backend listening")
	if err := router.Run(addr); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func initDB(cfg *config.Config) (*gorm.DB, error) {
	mysqlCfg, err := mysqldriver.ParseDSN(cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("DSN invalide: %w", err)
	}
	if mysqlCfg.Params == nil {
		mysqlCfg.Params = map[string]string{}
	}
	mysqlCfg.Params["time_zone"] = "'+01:00'"

	gormMode := gormlogger.Warn
	if cfg.IsDevelopment() {
		gormMode = gormlogger.Info
	}

	db, err := gorm.Open(mysql.Open(mysqlCfg.FormatDSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormMode),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.Database.ConnMaxLifetime) * time.Second)

	return db, nil
}
