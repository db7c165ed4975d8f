package server

import (
	"log/slog"
	"net/http"
	"time"
)

func New(addr string, handlers *Handlers, limiter *RateLimiter) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           Routes(handlers, limiter),
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("server configured", "addr", addr, "rate_limited", limiter != nil && limiter.Enabled())
	return srv
}

// Routes builds the full handler chain. limiter may be nil.
func Routes(handlers *Handlers, limiter *RateLimiter) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", handlers.HandleRoot)
	mux.HandleFunc("GET /status", handlers.HandleStatus)
	mux.HandleFunc("POST /search", handlers.HandleSearch)
	mux.HandleFunc("GET /recent", handlers.HandleRecent)
	mux.HandleFunc("GET /bookmarks", handlers.HandleBookmarks)
	mux.HandleFunc("GET /unread", handlers.HandleUnread)
	mux.HandleFunc("POST /read", handlers.HandleRead)
	mux.HandleFunc("POST /remember", handlers.HandleRemember)
	mux.HandleFunc("DELETE /memories/{id}", handlers.HandleForget)

	var h http.Handler = mux
	if limiter != nil {
		h = limiter.Middleware(h)
	}
	return accessLog(cors(h))
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	wrote  bool
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.wrote = true
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	s.wrote = true
	return s.ResponseWriter.Write(b)
}

func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		if !rec.wrote && r.Context().Err() != nil {
			rec.status = statusClientClosedRequest
		}
		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
			"remote", clientIP(r),
			"canceled", r.Context().Err() != nil,
		)
	})
}
