package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/buconnects/server/config"
	"github.com/buconnects/server/controllers"
	"github.com/buconnects/server/middleware"
	"github.com/buconnects/server/realtime"
	"github.com/buconnects/server/utils"
)

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(db *gorm.DB, hub *realtime.Hub) *gin.Engine {
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
	// Access log goes to its own rolling file; empty GinPath means stdout.
	gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
	if err == nil {
		r.Use(utils.Ginzap(gl, time.RFC3339, true))
		r.Use(utils.RecoveryWithZap(gl, false))
	} else {
		r.Use(gin.Recovery())
	}

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	r.Static(utils.UploadURLPrefix, cfg.UploadDir)

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})
	r.GET("/ws", realtime.Handler(hub, db, cfg.AllowedOrigins))

	authController := controllers.NewAuthController(db)
	postController := controllers.NewPostController(db)
	notificationController := controllers.NewNotificationController(db)
	marketController := controllers.NewMarketController(db)
	eventController := controllers.NewEventController(db)
	messageController := controllers.NewMessageController(db)

	limiter := middleware.NewIPRateLimiter(cfg.RateLimitPerMinute)

	api := r.Group("/api")

	api.POST("/register", middleware.RateLimit(limiter), authController.Register)
	api.POST("/login", middleware.RateLimit(limiter), authController.Login)
	api.GET("/user/:id", authController.GetUser)
	api.PUT("/settings", authController.UpdateSettings)
	api.POST("/user/profile-pic", authController.UpdateProfilePic)

	api.GET("/posts", postController.ListPosts)
	api.POST("/posts", postController.CreatePost)
	api.DELETE("/posts/:id", postController.DeletePost)
	api.POST("/posts/like", postController.ToggleLike)
	api.GET("/posts/:id/comments", postController.ListComments)
	api.POST("/posts/comment", postController.CreateComment)

	api.GET("/notifications/:userId", notificationController.ListNotifications)
	api.PUT("/notifications/read/:userId", notificationController.MarkAllRead)

	api.GET("/market", marketController.ListItems)
	api.POST("/market", marketController.CreateItem)

	api.GET("/events", eventController.ListEvents)
	api.POST("/events", eventController.CreateEvent)

	api.GET("/messages/:user1/:user2", messageController.History)

	r.NoRoute(func(ctx *gin.Context) {
		if strings.HasPrefix(ctx.Request.URL.Path, utils.UploadURLPrefix+"/") {
			ctx.JSON(http.StatusNotFound, gin.H{"message": "file not found"})
			return
		}
		utils.Error(ctx, http.StatusNotFound, 40400, "route not found")
	})

	return r
}
