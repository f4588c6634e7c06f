package server

import (
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/a-h/templ"
	"github.com/conneroisu/tagdoc/internal/cache"
	"github.com/conneroisu/tagdoc/internal/engine"
	docerrors "github.com/conneroisu/tagdoc/internal/errors"
	"github.com/conneroisu/tagdoc/internal/version"
)

// placeholderParam prefixes query parameters that set placeholders.
const placeholderParam = "ph."

// handleRender renders /render/VENDOR/site/main as namespace VENDOR\site,
// template main.
func (s *PreviewServer) handleRender(w http.ResponseWriter, r *http.Request) {
	req, err := renderRequest(r.PathValue("path"), r.URL.Query())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	templ.Handler(s.engine.Component(req),
		templ.WithErrorHandler(func(r *http.Request, err error) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				s.writeError(w, r, err)
			})
		}),
	).ServeHTTP(w, r)
}

func renderRequest(path string, query url.Values) (engine.RenderRequest, error) {
	segments := strings.FieldsFunc(path, func(r rune) bool { return r == '/' })
	if len(segments) < 2 {
		return engine.RenderRequest{}, docerrors.NewInvalidArgumentError("INVALID_RENDER_PATH",
			"expected /render/<vendor>[/<path>...]/<template>").WithContext("path", path)
	}

	req := engine.RenderRequest{
		Namespace: strings.Join(segments[:len(segments)-1], `\`),
		Name:      segments[len(segments)-1],
	}

	placeholders := url.Values{}
	for key, values := range query {
		name, ok := strings.CutPrefix(key, placeholderParam)
		if !ok || name == "" || len(values) == 0 {
			continue
		}
		placeholders[name] = values
	}
	if len(placeholders) > 0 {
		req.PlaceHolders = make(map[string]string, len(placeholders))
		for name, values := range placeholders {
			req.PlaceHolders[name] = strings.Join(values, "")
		}
		// Encode sorts by name, so equal placeholder sets share a variant.
		req.CacheSubKey = placeholders.Encode()
	}
	if v := query.Get("append"); v == "1" || v == "true" {
		req.Append = true
		if req.CacheSubKey != "" {
			req.CacheSubKey = "append&" + req.CacheSubKey
		}
	}
	return req, nil
}

// statusFor maps an error to the HTTP status of its failure class.
func statusFor(err error) int {
	var de *docerrors.DocError
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return http.StatusNotFound
	case errors.As(err, &de) && de.Code == "UNKNOWN_VENDOR":
		return http.StatusNotFound
	case docerrors.IsInvalidArgument(err):
		return http.StatusBadRequest
	case docerrors.IsParseError(err):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *PreviewServer) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(r.Context(), err, "Render failed", "path", r.URL.Path)
	} else {
		s.logger.Warn(r.Context(), err, "Render rejected", "path", r.URL.Path, "status", status)
	}
	if strings.Contains(r.Header.Get("Accept"), "text/html") {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(docerrors.Overlay(err)))
		return
	}
	http.Error(w, err.Error(), status)
}

// handleHealth returns the server health status for health checks
func (s *PreviewServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.serverMutex.RLock()
	watching := s.watcher != nil
	started := s.started
	s.serverMutex.RUnlock()

	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"version":   version.GetShortVersion(),
		"clients":   s.hub.Count(),
		"watching":  watching,
	}
	if !started.IsZero() {
		health["uptime"] = time.Since(started).Round(time.Second).String()
	}
	if mp, ok := s.engine.Cache().(*cache.MemoryProvider); ok {
		stats := mp.Stats()
		health["cache"] = map[string]interface{}{
			"entries":  stats.Entries,
			"size":     stats.Size,
			"hit_rate": stats.HitRate(),
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(health); err != nil {
		s.logger.Warn(r.Context(), err, "Failed to encode health response")
	}
}

func (s *PreviewServer) addMiddleware(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if s.isAllowedOrigin(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		}
		w.Header().Set("X-Content-Type-Options", "nosniff")

		// Handle preflight requests
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		start := time.Now()
		handler.ServeHTTP(w, r)
		s.logger.Debug(r.Context(), "Request served",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start).String(),
		)
	})
}

// isAllowedOrigin checks if the origin is in the allowed origins list
func (s *PreviewServer) isAllowedOrigin(origin string) bool {
	if origin == "" {
		return false
	}
	for _, allowed := range s.config.Server.AllowedOrigins {
		if origin == allowed {
			return true
		}
	}
	return false
}
