package httpapi

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ankittk/missionctl/internal/store"
	"github.com/ankittk/missionctl/internal/workflow"
	"github.com/ankittk/missionctl/pkg/models"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// limitBody wraps r.Body with http.MaxBytesReader so handlers cannot read more than maxBytes.
func limitBody(w http.ResponseWriter, r *http.Request, maxBytes int64) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
}

// bodyLimitMiddleware limits request body size for POST, PUT, PATCH to prevent OOM.
func bodyLimitMiddleware(maxBytes int64, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			limitBody(w, r, maxBytes)
		}
		next.ServeHTTP(w, r)
	})
}

// corsMiddleware answers preflight requests and sets CORS headers for the
// configured origins. "*" allows any origin.
func corsMiddleware(origins []string, next http.Handler) http.Handler {
	allowAll := models.Contains(origins, "*")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && (allowAll || models.Contains(origins, origin)) {
			if allowAll {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			} else {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-API-Key, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ServerOptions configures the HTTP server.
type ServerOptions struct {
	Home string
	Addr string
	// Engine serves every route. When nil, NewApp opens the SQLite store in Home
	// and builds an engine with workflow.DefaultOptions.
	Engine *workflow.Engine
	// Hub receives committed events for /stream. Created when nil.
	Hub *SSEHub
	// Password enables the login gate; empty leaves the API open.
	Password       string
	CORSOrigins    []string
	MaxBodyBytes   int64
	MetricsHandler http.Handler // if set, used for /metrics (e.g. OTel Prometheus handler)
	UseOtelHTTP    bool         // if true, wrap handler with otelhttp for request metrics
	Logger         *slog.Logger
}

// App holds the HTTP server, SSE hub, engine and home path.
type App struct {
	Server *http.Server
	Hub    *SSEHub
	Engine *workflow.Engine
	Home   string
}

// NewApp creates the HTTP app and registers all routes. If the engine has no
// publisher yet, the hub becomes its publisher.
func NewApp(opts ServerOptions) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	hub := opts.Hub
	if hub == nil {
		hub = NewSSEHub()
	}
	eng := opts.Engine
	var owned store.Store
	if eng == nil {
		st, err := store.Open(opts.Home)
		if err != nil {
			return nil, err
		}
		eng, err = workflow.New(st, workflow.DefaultOptions())
		if err != nil {
			_ = st.Close()
			return nil, err
		}
		eng.Logger = logger
		owned = st
	}
	if eng.Publisher == nil {
		eng.Publisher = hub
	}

	api := &handlers{eng: eng, log: logger}
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"ok": true})
	})
	if opts.MetricsHandler != nil {
		mux.Handle("/metrics", opts.MetricsHandler)
	} else {
		mux.HandleFunc("/metrics", api.plainMetrics)
	}
	mux.HandleFunc("/config", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, models.Config{
			Home:        opts.Home,
			Profile:     eng.Profile.Name,
			BootstrapID: getBootstrapID(opts.Home),
		})
	})
	mux.HandleFunc("/bootstrap", func(w http.ResponseWriter, r *http.Request) {
		api.bootstrap(w, r, opts.Home)
	})
	mux.HandleFunc("/login", loginHandler(opts.Password))
	mux.HandleFunc("/stream", hub.Handler())

	mux.HandleFunc("/workspaces", api.workspaces)
	mux.HandleFunc("/workspaces/", api.workspaceRoutes)
	mux.HandleFunc("/tasks/", api.taskRoutes)
	mux.HandleFunc("/conversations/", api.conversationRoutes)
	mux.HandleFunc("/agents/", api.agentRoutes)
	mux.HandleFunc("/notifications/", api.notificationRoutes)
	mux.HandleFunc("/activities", api.activities)

	maxBody := opts.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = models.DefaultMaxRequestBodyBytes
	}
	var handler http.Handler = mux
	handler = bodyLimitMiddleware(maxBody, handler)
	if opts.Password != "" {
		handler = passwordMiddleware(opts.Password, handler)
	}
	if len(opts.CORSOrigins) > 0 {
		handler = corsMiddleware(opts.CORSOrigins, handler)
	}
	handler = requestLogMiddleware(logger, handler)
	if opts.UseOtelHTTP {
		handler = otelhttp.NewHandler(handler, "missionctl")
	}
	srv := &http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// /stream holds the connection open; keepalives keep it under the idle limit.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}
	if owned != nil {
		srv.RegisterOnShutdown(func() {
			_ = owned.Close()
		})
	}
	return &App{Server: srv, Hub: hub, Engine: eng, Home: opts.Home}, nil
}

// responseRecorder captures status code for logging and forwards Flusher if supported.
type responseRecorder struct {
	http.ResponseWriter
	status int
}

func (r *responseRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func requestLogMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, req)
		logger.Info("request",
			"method", req.Method,
			"path", req.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds())
	})
}

// getBootstrapID returns the install's stable id from home/bootstrap_id, creating it once.
func getBootstrapID(home string) string {
	if home == "" {
		return ""
	}
	path := filepath.Join(home, "bootstrap_id")
	if b, err := os.ReadFile(path); err == nil {
		if s := strings.TrimSpace(string(b)); s != "" {
			return s
		}
	}
	id := randomHex(16)
	_ = os.MkdirAll(home, 0o755)
	_ = os.WriteFile(path, []byte(id+"\n"), 0o644)
	return id
}

func randomHex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		// fallback: time-based
		return hex.EncodeToString([]byte(time.Now().Format(time.RFC3339Nano)))
	}
	return hex.EncodeToString(b)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

// writeJSONError sends a JSON body {"error": "message"} with the given status code.
func writeJSONError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": message})
}

// writeEngineError maps engine errors onto status codes: ErrInvalid is 400,
// ErrNotFound is 404 and anything else is a 500.
func writeEngineError(w http.ResponseWriter, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, workflow.ErrInvalid):
		writeJSONError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, workflow.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, err.Error())
	default:
		logger.Error("request failed", "err", err)
		writeJSONError(w, http.StatusInternalServerError, err.Error())
	}
}

// decodeJSON reads the request body into v. It answers 413 or 400 itself and
// reports false when the handler should stop.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeJSONError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeJSONError(w, http.StatusBadRequest, "invalid json")
		return false
	}
	return true
}

// Shutdown stops the server and closes the hub's streams.
func (a *App) Shutdown(ctx context.Context) error {
	a.Hub.Close()
	return a.Server.Shutdown(ctx)
}
