package main

import (
	"context"
	"flag"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"nutrichat/internal/config"
	"nutrichat/internal/db"
	"nutrichat/internal/llm"
	"nutrichat/internal/repository"
	"nutrichat/internal/service"
)

// Loads one or more text files into the knowledge base. Each file becomes one
// chunk group; re-running on the same group id replaces the previous chunks.
func main() {
	groupFlag := flag.String("group", "", "chunk group id (defaults to a new id per file)")
	titleFlag := flag.String("title", "", "document title (defaults to the file name)")
	flag.Parse()

	if flag.NArg() == 0 {
		log.Fatal("usage: ingest [-group id] [-title t] file.txt [file2.txt ...]")
	}

	ctx := context.Background()
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := zap.NewExample()
	defer logger.Sync()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()

	docRepo := repository.NewPgDocumentRepository(pool, cfg.EmbeddingDim)
	llmClient := llm.NewHTTPClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel, cfg.LLMVisionModel, cfg.LLMEmbedModel, logger)

	embedder, err := service.NewEmbeddingService(llmClient, nil, cfg.EmbeddingDim, logger)
	if err != nil {
		log.Fatal(err)
	}
	chunker := service.NewChunker(cfg.ChunkMaxTokens, cfg.ChunkOverlapTokens)
	knowledgeSvc, err := service.NewKnowledgeService(chunker, embedder, docRepo, logger)
	if err != nil {
		log.Fatal(err)
	}

	for _, path := range flag.Args() {
		content, err := os.ReadFile(path)
		if err != nil {
			log.Fatalf("read %s: %v", path, err)
		}

		groupID := uuid.New()
		if *groupFlag != "" {
			groupID, err = uuid.Parse(*groupFlag)
			if err != nil {
				log.Fatalf("invalid group id %q: %v", *groupFlag, err)
			}
		}

		title := *titleFlag
		if title == "" {
			title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		}

		n, err := knowledgeSvc.Ingest(ctx, groupID, title, string(content))
		if err != nil {
			log.Fatalf("ingest %s: %v", path, err)
		}
		logger.Info("ingested file",
			zap.String("path", path),
			zap.String("group_id", groupID.String()),
			zap.Int("chunks", n),
		)
	}
}
