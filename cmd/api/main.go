package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/majianyu/gemini-chat/backend/internal/config"
	"github.com/majianyu/gemini-chat/backend/internal/handler"
	"github.com/majianyu/gemini-chat/backend/internal/model/catalog"
	"github.com/majianyu/gemini-chat/backend/internal/service/ai"
	archiveservice "github.com/majianyu/gemini-chat/backend/internal/service/archive"
	chatservice "github.com/majianyu/gemini-chat/backend/internal/service/chat"
	mediaservice "github.com/majianyu/gemini-chat/backend/internal/service/media"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	// Initialize model catalog and the vendor binding
	modelStore := catalog.NewMemoryStore(catalog.Seed())
	aiService := ai.NewService()

	if cfg.AI.Enabled() {
		log.Println("AI service initialized with server credential")
	} else {
		log.Println("Gemini 凭证未配置，客户端需在请求中携带自己的 API key")
	}

	// Initialize core services
	chatService := chatservice.NewService(chatservice.NewVendorClient(aiService), modelStore, cfg.AI)
	mediaService := mediaservice.NewService(aiService, cfg.Media, cfg.AI.APIKey)

	archiveService, err := archiveservice.NewService(cfg.Archive.Dir)
	if err != nil {
		log.Fatalf("failed to initialize archive service: %v", err)
	}
	log.Printf("archive service initialized dir=%s", cfg.Archive.Dir)

	router := handler.NewRouter(modelStore, chatService, mediaService, archiveService)

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("Gemini chat backend listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
