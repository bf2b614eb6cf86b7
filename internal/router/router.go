package router

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"quillpost/internal/handlers"
	"quillpost/internal/middleware"
)

type Options struct {
	FrontendURL         string
	FrontendDir         string
	LoginPath           string
	ChatRateLimitPerMin int
}

// New wires the API and pages. The returned func stops the router's
// background work and is safe to call more than once.
func New(
	jwtAuth *middleware.JWTAuth,
	historyHandler *handlers.ChatHistoryHandler,
	modelsHandler *handlers.ChatModelsHandler,
	chatHandler *handlers.ChatHandler,
	articleHandler *handlers.ArticleHandler,
	logger *zap.Logger,
	opts Options,
) (http.Handler, func()) {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(opts.FrontendURL))

	chatLimit := opts.ChatRateLimitPerMin
	if chatLimit <= 0 {
		chatLimit = 20
	}
	chatLimiter := middleware.NewRateLimiter(chatLimit, time.Minute)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(jwtAuth.Middleware)

		// ──── Chat History ────
		r.Route("/chat/history", func(r chi.Router) {
			r.Get("/", historyHandler.Get)
			r.Post("/", historyHandler.Create)
			r.Put("/", historyHandler.Update)
			r.Delete("/", historyHandler.Delete)
		})

		// ──── Models ────
		r.Get("/chat-models", modelsHandler.List)
		r.Post("/chat-models", modelsHandler.Create)

		// ──── Completion ────
		r.With(chatLimiter.Middleware).Post("/chat", chatHandler.Complete)

		// ──── Publishing ────
		r.Get("/articles", articleHandler.List)
		r.Post("/articles", articleHandler.Create)
		r.Post("/publish", articleHandler.Publish)
	})

	// ──── Pages ────
	guard := middleware.NewRouteGuard(opts.LoginPath, logger)
	r.Group(func(r chi.Router) {
		r.Use(guard.Middleware)
		r.Handle("/*", pageServer(opts.FrontendDir))
	})

	return r, chatLimiter.Stop
}

// pageServer serves the built frontend. Client-side routes without a file of
// their own fall back to index.html.
func pageServer(dir string) http.Handler {
	fs := http.FileServer(http.Dir(dir))
	index := filepath.Join(dir, "index.html")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clean := filepath.Clean("/" + strings.TrimPrefix(r.URL.Path, "/"))
		if info, err := os.Stat(filepath.Join(dir, clean)); err == nil && !info.IsDir() {
			fs.ServeHTTP(w, r)
			return
		}
		if _, err := os.Stat(index); err != nil {
			http.NotFound(w, r)
			return
		}
		http.ServeFile(w, r, index)
	})
}
