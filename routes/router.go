package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cppla/perkclaims/config"
	"github.com/cppla/perkclaims/controllers"
	"github.com/cppla/perkclaims/middleware"
	"github.com/cppla/perkclaims/repository"
	"github.com/cppla/perkclaims/services"
	"github.com/cppla/perkclaims/utils"
)

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(db *gorm.DB) *gin.Engine {
	cfg := config.Get()
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(middleware.RequestID())
	// Access log goes to its own rolling file when GinPath is set
	accessLog := utils.Logger
	if cfg.GinPath != "" {
		gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
		if err != nil {
			utils.Sugar.Warnf("gin access log disabled, falling back to app logger: %v", err)
		} else {
			accessLog = gl
		}
	}
	r.Use(utils.Ginzap(accessLog, time.RFC3339, true))
	r.Use(utils.RecoveryWithZap(accessLog, true))

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", middleware.HeaderRequestID},
		ExposeHeaders:    []string{"Content-Length", middleware.HeaderRequestID},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 0 || (len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*") {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})

	claimRepo := repository.NewClaimRepository(db)
	userRepo := repository.NewUserRepository(db)
	authz := services.NewRoleAuthorizer(cfg.ReviewerRoles, cfg.ReviewerUserIDs, cfg.AdminUsernames)
	claimService := services.NewClaimService(claimRepo, newNotifier(cfg, userRepo))

	authController := controllers.NewAuthController(authz)
	claimController := controllers.NewClaimController(claimService)

	api := r.Group("/api/v1")
	api.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})

	protected := api.Group("")
	protected.Use(
		middleware.AuthRequired(),
		middleware.SyncUser(userRepo),
		middleware.RateLimitMiddleware("api", cfg.RateLimitPerMinute),
	)

	authGroup := protected.Group("/auth")
	authGroup.GET("/me", authController.Me)
	authGroup.POST("/logout", authController.Logout)

	claims := protected.Group("/claims")
	claims.POST("", middleware.RateLimitMiddleware("submit", cfg.SubmitRateLimitPerMinute), claimController.Submit)
	claims.GET("/my-claims", claimController.MyClaims)
	claims.GET("/:claimId", claimController.GetClaim)

	admin := claims.Group("/admin", middleware.ReviewerRequired(authz))
	admin.GET("/all", claimController.ListAll)
	admin.GET("/stats", claimController.Stats)
	admin.PATCH("/:claimId/status", claimController.UpdateStatus)

	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, 40400, "api route not found")
	})

	return r
}

func newNotifier(cfg config.AppConfig, users repository.UserRepository) services.ReviewNotifier {
	mailer, err := utils.NewMailer(cfg)
	if err != nil {
		utils.Sugar.Warnf("review notifications disabled: %v", err)
		return services.NoopNotifier{}
	}
	if mailer == nil {
		return services.NoopNotifier{}
	}
	utils.Sugar.Infof("review notifications enabled via %s", strings.ToLower(cfg.MailProvider))
	return services.NewMailNotifier(users, mailer)
}
