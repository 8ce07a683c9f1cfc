package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"genaid/internal/manager"
	"genaid/internal/runtime"
	"genaid/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	ListModels() []types.Model
	Status() types.StatusResponse
	Generate(ctx context.Context, req types.GenerateRequest, w io.Writer, flush func()) error
	Unload(modelID string) error
	Ready() bool
}

// NewMux builds the HTTP router over the given service.
//
//	GET    /models       list discovered models
//	GET    /status       manager and instance status
//	POST   /generate     run generation, streaming NDJSON
//	DELETE /models/{id}  drain and unload an instance
//	GET    /healthz      liveness
//	GET    /readyz       readiness
//	GET    /metrics      Prometheus metrics
func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	// Compression for JSON endpoints
	r.Use(middleware.Compress(5))
	r.Use(MetricsMiddleware)
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
		}))
	}
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/models", handleModels(svc))
	r.Get("/status", handleStatus(svc))
	r.Post("/generate", handleGenerate(svc))
	r.Delete("/models/{id}", handleUnload(svc))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("loading"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)

	return r
}

// handleModels godoc
// @Summary List models
// @Description Lists every model discovered under the models directory.
// @Produce json
// @Success 200 {object} types.ModelsResponse
// @Router /models [get]
func handleModels(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(types.ModelsResponse{Models: svc.ListModels()}); err != nil {
			writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
		}
	}
}

// handleStatus godoc
// @Summary Manager status
// @Produce json
// @Success 200 {object} types.StatusResponse
// @Router /status [get]
func handleStatus(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(svc.Status()); err != nil {
			writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
		}
	}
}

// handleUnload godoc
// @Summary Unload a model instance
// @Param id path string true "model id"
// @Produce json
// @Success 204
// @Failure 404 {object} types.ErrorResponse
// @Router /models/{id} [delete]
func handleUnload(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := svc.Unload(id); err != nil {
			if manager.IsModelNotFound(err) {
				writeJSONError(w, http.StatusNotFound, err.Error())
				return
			}
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// handleGenerate godoc
// @Summary Generate a completion
// @Description Streams NDJSON token lines followed by a final summary line.
// @Accept json
// @Produce json
// @Param request body types.GenerateRequest true "generation request"
// @Success 200 {string} string "NDJSON stream"
// @Failure 400 {object} types.ErrorResponse
// @Failure 404 {object} types.ErrorResponse
// @Failure 429 {object} types.ErrorResponse
// @Failure 503 {object} types.ErrorResponse
// @Router /generate [post]
func handleGenerate(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ct := r.Header.Get("Content-Type")
		if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
			writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		var req types.GenerateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if strings.TrimSpace(req.Prompt) == "" {
			writeJSONError(w, http.StatusBadRequest, "prompt is required")
			return
		}

		w.Header().Set("Content-Type", "application/x-ndjson")
		var flush func()
		if f, ok := w.(http.Flusher); ok {
			flush = f.Flush
		}
		start := time.Now()
		writer := io.Writer(w)
		lvl := requestLogLevel(r)
		if lvl >= LevelDebug {
			writer = io.MultiWriter(w, &loggingLineWriter{})
		}
		logGenerate(lvl, r, 0, 0, req.Model, nil)

		// Join server base context with request context so shutdown cancels
		// in-flight work too.
		joinedCtx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		if sec := generateTimeout; sec > 0 {
			var tcancel context.CancelFunc
			joinedCtx, tcancel = context.WithTimeout(joinedCtx, time.Duration(sec)*time.Second)
			defer tcancel()
		}

		err := svc.Generate(joinedCtx, req, writer, flush)
		if err != nil {
			// Client disconnect or shutdown: nothing sensible to write.
			if r.Context().Err() != nil || serverBaseCtx.Err() != nil {
				return
			}
			status := statusForError(err)
			if status == http.StatusTooManyRequests {
				IncrementBackpressure("queue_full")
			}
			writeJSONError(w, status, err.Error())
			logGenerate(lvl, r, status, time.Since(start), req.Model, err)
			return
		}
		logGenerate(lvl, r, http.StatusOK, time.Since(start), req.Model, nil)
	}
}

// statusForError maps manager and runtime errors to HTTP status codes.
func statusForError(err error) int {
	switch {
	case manager.IsModelNotFound(err):
		return http.StatusNotFound
	case manager.IsTooBusy(err):
		return http.StatusTooManyRequests
	case manager.IsDependencyUnavailable(err):
		return http.StatusServiceUnavailable
	case runtime.IsConfigError(err):
		return http.StatusBadRequest
	case runtime.IsCompileError(err), runtime.IsLoadError(err):
		return http.StatusInternalServerError
	default:
		if he, ok := err.(HTTPError); ok {
			return he.StatusCode()
		}
		return http.StatusInternalServerError
	}
}

// logGenerate emits request start (status 0) and end lines at info level.
func logGenerate(lvl LogLevel, r *http.Request, status int, dur time.Duration, model string, err error) {
	if lvl < LevelInfo {
		return
	}
	rid := middleware.GetReqID(r.Context())
	if status == 0 {
		if zlog != nil {
			z := zlog.Info().Str("path", r.URL.Path).Str("model", model)
			if rid != "" {
				z = z.Str("request_id", rid)
			}
			z.Msg("generate start")
		} else {
			log.Printf("generate start path=%s model=%s", r.URL.Path, model)
		}
		return
	}
	if zlog != nil {
		z := zlog.Info().Int("status", status).Dur("dur", dur)
		if rid != "" {
			z = z.Str("request_id", rid)
		}
		if err != nil {
			z = z.Err(err)
		}
		z.Msg("generate end")
	} else {
		log.Printf("generate end status=%d dur=%s err=%v", status, dur, err)
	}
}
