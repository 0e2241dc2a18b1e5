package handler

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/majianyu/gemini-chat/backend/internal/handler/archive"
	"github.com/majianyu/gemini-chat/backend/internal/handler/catalog"
	"github.com/majianyu/gemini-chat/backend/internal/handler/chat"
	"github.com/majianyu/gemini-chat/backend/internal/handler/media"
	"github.com/majianyu/gemini-chat/backend/internal/handler/stream"
	middlewarePkg "github.com/majianyu/gemini-chat/backend/internal/middleware"
	catalogModel "github.com/majianyu/gemini-chat/backend/internal/model/catalog"
	archiveService "github.com/majianyu/gemini-chat/backend/internal/service/archive"
	chatService "github.com/majianyu/gemini-chat/backend/internal/service/chat"
	mediaService "github.com/majianyu/gemini-chat/backend/internal/service/media"
	"github.com/majianyu/gemini-chat/backend/pkg/utils"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(models catalogModel.Store, chatSvc *chatService.Service, mediaSvc *mediaService.Service, archiveSvc *archiveService.Service) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	// Create handlers
	catalogHandler := catalog.New(models)
	archiveHandler := archive.New(archiveSvc, chatSvc)
	chatHandler := chat.New(chatSvc)
	mediaHandler := media.New(mediaSvc)
	streamHandler := stream.New(chatSvc, mediaSvc)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(api chi.Router) {
		// Register model catalog routes
		catalogHandler.RegisterRoutes(api)

		// Register conversation routes, including per-conversation save/restore
		chatHandler.RegisterRoutes(api, archiveHandler)

		// Register archive listing
		archiveHandler.RegisterRoutes(api)

		// Register media upload and progress routes
		mediaHandler.RegisterRoutes(api)

		// Turn execution endpoint streaming the exchange as SSE
		api.Post("/stream/{conversationID}", func(w http.ResponseWriter, r *http.Request) {
			conversationID := chi.URLParam(r, "conversationID")

			var req stream.TurnRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				utils.RespondError(w, http.StatusBadRequest, "invalid request body")
				return
			}

			if err := streamHandler.HandleTurnRequest(r.Context(), w, conversationID, req); err != nil {
				log.Printf("[stream] error handling request: %v", err)
			}
		})
	})

	return r
}
