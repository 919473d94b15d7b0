package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"iconvault/internal/config"
	"iconvault/internal/iconcache"
)

type Handlers struct {
	config      *config.Config
	logger      *zap.Logger
	coordinator *iconcache.Coordinator
}

func New(config *config.Config, logger *zap.Logger, coordinator *iconcache.Coordinator) *Handlers {
	return &Handlers{
		config:      config,
		logger:      logger,
		coordinator: coordinator,
	}
}

func (h *Handlers) RequestLoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.New().String()
		start := time.Now()

		ip := h.extractIP(r)

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start)

		h.logger.Info("request",
			zap.String("request_id", requestID),
			zap.String("ip", ip),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", wrapped.statusCode),
			zap.Int64("bytes", wrapped.bytesWritten),
			zap.Int64("duration_ms", duration.Milliseconds()),
			zap.String("user_agent", r.UserAgent()),
		)
	})
}

func (h *Handlers) CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		allowedOrigin := ""

		if h.config.AllowedOrigin != "" {
			allowedOrigin = h.config.AllowedOrigin
		} else {
			host := r.Host
			if origin != "" && strings.HasPrefix(origin, "http://"+host) || strings.HasPrefix(origin, "https://"+host) {
				allowedOrigin = origin
			} else if origin == "" {
				allowedOrigin = "*"
			}
		}

		if allowedOrigin != "" {
			w.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// HandleIconRoutes dispatches /api/icons/{platform}/{id} and
// /api/icons/{platform}/{id}/download.
func (h *Handlers) HandleIconRoutes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/icons/")
	parts := strings.Split(strings.Trim(path, "/"), "/")

	switch {
	case len(parts) == 2:
		h.handleCachedIcon(w, r, parts[0], parts[1])
	case len(parts) == 3 && parts[2] == "download":
		h.handleIconDownload(w, r, parts[0], parts[1])
	default:
		http.NotFound(w, r)
	}
}

func (h *Handlers) handleCachedIcon(w http.ResponseWriter, r *http.Request, platform, identifier string) {
	currentURL := r.URL.Query().Get("url")

	entry, err := h.coordinator.GetCached(platform, identifier, currentURL)
	if err != nil {
		h.writeIconError(w, err)
		return
	}

	h.writeIcon(w, r, entry)
}

func (h *Handlers) handleIconDownload(w http.ResponseWriter, r *http.Request, platform, identifier string) {
	url := r.URL.Query().Get("url")
	if url == "" {
		http.Error(w, "Missing url parameter", http.StatusBadRequest)
		return
	}

	entry, err := h.coordinator.GetOrDownload(r.Context(), platform, identifier, url)
	if err != nil {
		h.writeIconError(w, err)
		return
	}

	h.writeIcon(w, r, entry)
}

func (h *Handlers) writeIcon(w http.ResponseWriter, r *http.Request, entry *iconcache.Entry) {
	w.Header().Set("Content-Type", entry.ContentType)
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(entry.Bytes)))
	w.Header().Set("Cache-Control", "public, max-age=86400")

	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return
	}

	w.Write(entry.Bytes)
}

func (h *Handlers) writeIconError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, iconcache.ErrInvalidPlatform), errors.Is(err, iconcache.ErrInvalidIdentifier):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, iconcache.ErrNotFound):
		http.Error(w, "Icon not cached", http.StatusNotFound)
	case errors.Is(err, iconcache.ErrFetchFailed):
		http.Error(w, err.Error(), http.StatusBadGateway)
	default:
		h.logger.Error("icon request failed", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// HandleCache serves DELETE /api/cache.
func (h *Handlers) HandleCache(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := h.coordinator.ClearCache(); err != nil {
		h.logger.Error("cache clear failed", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"cleared": true})
}

// HandleCacheSize serves GET /api/cache/size.
func (h *Handlers) HandleCacheSize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	total, err := h.coordinator.GetCacheSize()
	if err != nil {
		h.logger.Error("cache size failed", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"totalBytes":    total,
		"formattedSize": formatBytes(total),
	})
}

func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// formatBytes renders a byte count for the dashboard (1536 -> "1.5 KB").
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}

// Not for real production use due to potential spoofing
// but it's fine for a demo
func (h *Handlers) extractIP(r *http.Request) string {
	ip := r.Header.Get("X-Real-Ip")
	if ip != "" {
		return strings.Split(ip, ":")[0]
	}

	addr := r.RemoteAddr
	if addr != "" {
		return strings.Split(addr, ":")[0]
	}

	return "unknown"
}

type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += int64(n)
	return n, err
}
