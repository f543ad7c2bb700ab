package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"gwi.com/botstudio/internal/api"
	"gwi.com/botstudio/internal/auth"
	"gwi.com/botstudio/internal/config"
	"gwi.com/botstudio/internal/core"
	"gwi.com/botstudio/internal/logging"
	"gwi.com/botstudio/internal/store"
	"gwi.com/botstudio/internal/utils"
)

func main() {
	// Command line flags for offline ingestion
	ingestFile := flag.String("ingest", "", "Add this file to the knowledge base of -user and exit")
	ingestUser := flag.String("user", "", "Email of the account -ingest writes to")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.ValidateServer(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer logger.Sync()

	// Initialize database store
	dbStore, err := store.NewSQLiteStore(cfg.DatabaseURL, logger)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	defer dbStore.Close()

	// The LLM is optional: without it retrieval is lexical and answers are extractive.
	var (
		embedder  core.Embedder
		completer core.Completer
	)
	if cfg.GeminiAPIKey != "" {
		llmService, err := core.NewLLMService(context.Background(), cfg.GeminiAPIKey, logger)
		if err != nil {
			logger.Fatal("failed to initialize LLM service", zap.Error(err))
		}
		defer llmService.Close()
		embedder, completer = llmService, llmService
	} else {
		logger.Info("GEMINI_API_KEY not set, using lexical retrieval and extractive answers")
	}

	if *ingestFile != "" {
		ingestor := core.NewIngestor(dbStore, embedder, 0, logger)
		if err := ingestLocalFile(dbStore, ingestor, *ingestUser, *ingestFile); err != nil {
			logger.Fatal("data ingestion failed", zap.Error(err))
		}
		logger.Info("data ingestion complete", zap.String("file", *ingestFile))
		return
	}

	ingestor := core.NewIngestor(dbStore, embedder, cfg.ProcessingDelay, logger)
	ragService := core.NewRAGService(dbStore, embedder, completer, logger)
	chatService := core.NewChatService(dbStore, ragService, logger)
	analyticsService := core.NewAnalyticsService(dbStore)

	// Initialize API Handler and Router
	apiHandler := api.NewAPIHandler(dbStore, auth.NewIssuer(cfg.JWTSecret), chatService, analyticsService, ingestor, logger)
	router := api.NewRouter(apiHandler, logger)

	serverAddr := fmt.Sprintf(":%s", cfg.HTTPPort)
	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // LLM calls can take time
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("starting server", zap.String("addr", serverAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("could not listen", zap.String("addr", serverAddr), zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	// Documents still processing stay "processing" and can be uploaded again.
	ingestor.Close()
	logger.Info("server exiting gracefully")
}

func ingestLocalFile(st *store.SQLiteStore, ingestor *core.Ingestor, email, path string) error {
	if email == "" {
		return errors.New("-user is required with -ingest")
	}
	ctx := context.Background()
	user, err := st.GetUserByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to find user %s: %w", email, err)
	}
	format, ok := utils.DocumentFormat(path)
	if !ok {
		return fmt.Errorf("unsupported file type: %s", filepath.Base(path))
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	doc := &store.DataSource{
		UserID: user.ID,
		Name:   filepath.Base(path),
		Format: format,
		Size:   int64(len(content)),
	}
	if err := st.CreateDataSource(ctx, doc); err != nil {
		return err
	}
	ingestor.Submit(*doc, content)
	ingestor.Wait()

	processed, err := st.GetDataSource(ctx, user.ID, doc.ID)
	if err != nil {
		return err
	}
	if processed.Status != store.DocumentReady {
		return fmt.Errorf("document ended in %s: %s", processed.Status, processed.Error)
	}
	return nil
}
