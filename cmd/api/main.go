package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"nutrichat/internal/config"
	"nutrichat/internal/db"
	apihttp "nutrichat/internal/http"
	"nutrichat/internal/llm"
	"nutrichat/internal/repository"
	"nutrichat/internal/service"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer pool.Close()
	if err := db.Ping(ctx, pool); err != nil {
		logger.Fatal("db ping", zap.Error(err))
	}

	userRepo := repository.NewPgUserRepository(pool)
	chatUserRepo := repository.NewPgChatUserRepository(pool)
	convRepo := repository.NewPgConversationRepository(pool)
	docRepo := repository.NewPgDocumentRepository(pool, cfg.EmbeddingDim)
	analysisRepo := repository.NewPgAnalysisRepository(pool)

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed, embedding cache disabled", zap.Error(err))
			redisClient = nil
		}
		cancel()
	}

	llmClient := llm.NewHTTPClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel, cfg.LLMVisionModel, cfg.LLMEmbedModel, logger)

	embedder, err := service.NewEmbeddingService(llmClient, redisClient, cfg.EmbeddingDim, logger)
	if err != nil {
		logger.Fatal("embedding service init", zap.Error(err))
	}
	chunker := service.NewChunker(cfg.ChunkMaxTokens, cfg.ChunkOverlapTokens)
	knowledgeSvc, err := service.NewKnowledgeService(chunker, embedder, docRepo, logger)
	if err != nil {
		logger.Fatal("knowledge service init", zap.Error(err))
	}
	answerSvc := service.NewAnswerService(llmClient, logger)
	chatSvc := service.NewChatService(chatUserRepo, convRepo, embedder, knowledgeSvc, answerSvc, cfg.RetrievalK, logger)
	visionSvc := service.NewVisionService(llmClient, analysisRepo, logger)
	userSvc := service.NewUserService(logger, userRepo, chatUserRepo)

	jwtSvc := service.NewJWTService(cfg.JWTSecret, time.Duration(cfg.JWTAccessTTLMinutes)*time.Minute)
	if cfg.JWTSecret == "" {
		logger.Warn("jwt secret not configured")
	}

	userHandler := apihttp.NewUserHandler(logger, userSvc, jwtSvc)
	chatHandler := apihttp.NewChatHandler(logger, chatSvc)
	analysisHandler := apihttp.NewAnalysisHandler(logger, visionSvc)
	router := apihttp.NewRouter(logger, jwtSvc, userHandler, chatHandler, analysisHandler)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("starting server", zap.String("port", cfg.HTTPPort))

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server error", zap.Error(err))
	}
}
