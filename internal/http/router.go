package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"nutrichat/internal/service"
)

// NewRouter wires middlewares and routes.
func NewRouter(
	logger *zap.Logger,
	jwtSvc *service.JWTService,
	userH *UserHandler,
	chatH *ChatHandler,
	analysisH *AnalysisHandler,
) *gin.Engine {
	r := gin.New()
	r.Use(zapLoggerMiddleware(logger), gin.Recovery(), jsonContentTypeMiddleware())

	auth := r.Group("/auth")
	auth.POST("/signup", userH.Signup)
	auth.POST("/login", userH.Login)

	api := r.Group("/", JWTAuthMiddleware(jwtSvc))

	api.GET("/me", userH.Me)
	api.POST("/me/tier", userH.ChangeTier)

	conversations := api.Group("/conversations")
	conversations.POST("", chatH.StartConversation)
	conversations.GET("", chatH.ListConversations)
	conversations.GET("/:id", chatH.GetConversation)
	conversations.POST("/:id/messages", chatH.ContinueConversation)

	analyses := api.Group("/analyses")
	analyses.POST("", analysisH.AnalyzeImage)
	analyses.POST("/:id/corrections", analysisH.SaveCorrection)
	analyses.GET("/:id/summary", analysisH.Summary)

	return r
}

// zapLoggerMiddleware logs one line per request.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// jsonContentTypeMiddleware forces Content-Type: application/json on responses.
func jsonContentTypeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "application/json")
		c.Next()
	}
}
