package api

import (
	"log"
	"net/http"
	"time"

	_ "github.com/walletvault/server/docs"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/walletvault/server/internal/api/handlers"
	"github.com/walletvault/server/internal/api/middleware"
	"github.com/walletvault/server/internal/config"
	"github.com/rs/cors"
)

// SetupRouter wires every route to its handler behind the signature gate for
// its scope. The signed message for a route is the scope name itself.
func SetupRouter(h *handlers.Handlers) http.Handler {
	mux := http.NewServeMux()
	c := cors.New(config.Envs.CorsConfig)

	// ---------- PUBLIC ROUTES ----------
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("/docs/", httpSwagger.WrapHandler)
	mux.HandleFunc("GET /stream-file-simple/{accessToken}", h.StreamFileSimple)

	// ---------- SIGNED ROUTES ----------
	signed := func(scope string, fn http.HandlerFunc) http.Handler {
		return middleware.RequireSignature(scope)(fn)
	}

	mux.Handle("POST /Upload", signed("upload", h.Upload))
	mux.Handle("POST /StreamUpload", signed("upload", h.Upload))
	mux.Handle("POST /List", signed("list", h.List))
	mux.Handle("POST /ListDeleted", signed("list_deleted", h.ListDeleted))
	mux.Handle("POST /Delete", signed("delete", h.Delete))
	mux.Handle("POST /Restore", signed("restore", h.Restore))
	mux.Handle("POST /empty_recycle_bin", signed("empty_recycle_bin", h.EmptyRecycleBin))
	mux.Handle("POST /Analyze", signed("analyze", h.Analyze))
	mux.Handle("POST /ExportSummary", signed("export_summary", h.ExportSummary))
	mux.Handle("POST /Download", signed("download", h.Download))
	mux.Handle("POST /Debug", signed("debug", h.Debug))
	mux.Handle("GET /secure-file/{fileId}", signed("access", h.SecureFile))
	mux.Handle("GET /stream-file/{accessToken}", signed("download", h.StreamFile))

	// ---------- AUDIO ROUTES ----------
	audioLimiter := middleware.NewRateLimiter(15*time.Minute, 10)
	mux.Handle("POST /audio/GenerateAudio",
		audioLimiter.Middleware(signed("tts_audio", h.GenerateAudio)))
	mux.Handle("GET /audio/serve/{filename}", signed("serve_audio", h.ServeAudio))
	mux.Handle("GET /audio/download/{filename}", signed("download_audio", h.DownloadAudio))
	mux.Handle("GET /audio/my-files", signed("list_audio", h.MyAudioFiles))
	mux.Handle("GET /audio/debug/info", signed("debug", h.AudioDebugInfo))

	log.Println("Router initialized")
	handler := c.Handler(mux)
	handler = middleware.Logger(handler)
	handler = middleware.RequestID(handler)
	return handler
}
