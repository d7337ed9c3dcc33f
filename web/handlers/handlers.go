// Package handlers provides the HTTP API for debate sessions.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/arturoyo/Quoorum-sub007/internal/core"
	"github.com/arturoyo/Quoorum-sub007/internal/export"
	"github.com/arturoyo/Quoorum-sub007/internal/provider"
	"github.com/arturoyo/Quoorum-sub007/internal/session"
	"github.com/arturoyo/Quoorum-sub007/internal/storage"
)

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	manager  *session.Manager
	registry *provider.Registry
	storage  storage.Storage // optional
	gatherer prometheus.Gatherer
}

// New creates a new Handler. store and gatherer may be nil.
func New(manager *session.Manager, registry *provider.Registry, store storage.Storage, gatherer prometheus.Gatherer) *Handler {
	return &Handler{
		manager:  manager,
		registry: registry,
		storage:  store,
		gatherer: gatherer,
	}
}

// Routes builds the router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/providers", h.handleListProviders)
		r.Post("/debates", h.handleCreateDebate)
		r.Get("/debates", h.handleListDebates)
		r.Get("/debates/{id}", h.handleGetDebate)
		r.Get("/debates/{id}/stream", h.handleDebateStream)
		r.Get("/debates/{id}/export", h.handleExportDebate)
		r.Post("/debates/{id}/pause", h.handlePauseDebate)
		r.Post("/debates/{id}/resume", h.handleResumeDebate)
		r.Post("/debates/{id}/context", h.handleAddContext)
		r.Post("/debates/{id}/force-consensus", h.handleForceConsensus)
	})

	if h.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	}

	return r
}

func (h *Handler) handleCreateDebate(w http.ResponseWriter, r *http.Request) {
	var cfg core.NewSessionConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if cfg.UserID == "" {
		h.writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	sess, cached, err := h.manager.CreateDebate(r.Context(), cfg)
	if err != nil {
		var rle *session.RateLimitedError
		if errors.As(err, &rle) {
			if rle.Decision.RetryAfter > 0 {
				w.Header().Set("Retry-After", strconv.Itoa(int(rle.Decision.RetryAfter.Seconds())))
			}
			h.writeError(w, http.StatusTooManyRequests, rle.Decision.Reason)
			return
		}
		slog.Error("Failed to create debate", "error", err)
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if cached != nil {
		h.writeJSON(w, http.StatusOK, map[string]any{
			"cached": true,
			"result": cached,
		})
		return
	}

	h.writeJSON(w, http.StatusAccepted, map[string]any{
		"session_id": sess.ID,
		"state":      sess.State(),
	})
}

func (h *Handler) handleGetDebate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	sess, err := h.manager.Get(id)
	if err == nil {
		if sess.State().IsTerminal() {
			if result, rerr := sess.Result(); rerr == nil {
				h.writeJSON(w, http.StatusOK, result)
				return
			}
			h.writeJSON(w, http.StatusOK, sess.LiveMetadata())
			return
		}
		h.writeJSON(w, http.StatusOK, sess.LiveMetadata())
		return
	}

	if h.storage != nil {
		result, serr := h.storage.GetResult(r.Context(), id)
		if serr == nil {
			h.writeJSON(w, http.StatusOK, result)
			return
		}
		if !errors.Is(serr, storage.ErrNotFound) {
			slog.Error("Failed to load debate", "id", id, "error", serr)
			h.writeError(w, http.StatusInternalServerError, "failed to load debate")
			return
		}
	}

	h.writeError(w, http.StatusNotFound, "debate not found")
}

func (h *Handler) handleListDebates(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	if h.storage == nil {
		h.writeJSON(w, http.StatusOK, []any{})
		return
	}

	results, err := h.storage.ListResults(r.Context(), limit)
	if err != nil {
		slog.Error("Failed to list debates", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to list debates")
		return
	}
	if results == nil {
		results = []*core.DebateResult{}
	}
	h.writeJSON(w, http.StatusOK, results)
}

func (h *Handler) handleExportDebate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	format := export.Format(r.URL.Query().Get("format"))
	if format == "" {
		format = export.FormatJSON
	}
	exporter, err := export.GetExporter(format)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result := h.lookupResult(r, id)
	if result == nil {
		h.writeError(w, http.StatusNotFound, "debate not found or not finished")
		return
	}

	filename := export.GenerateFilename(result, exporter.FileExtension())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	switch format {
	case export.FormatPDF:
		w.Header().Set("Content-Type", "application/pdf")
	case export.FormatMarkdown:
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	default:
		w.Header().Set("Content-Type", "application/json")
	}

	if err := exporter.Export(result, w); err != nil {
		slog.Error("Export failed", "id", id, "format", format, "error", err)
	}
}

func (h *Handler) lookupResult(r *http.Request, id string) *core.DebateResult {
	if sess, err := h.manager.Get(id); err == nil {
		if result, rerr := sess.Result(); rerr == nil {
			return result
		}
		return nil
	}
	if h.storage != nil {
		if result, err := h.storage.GetResult(r.Context(), id); err == nil {
			return result
		}
	}
	return nil
}

func (h *Handler) handlePauseDebate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Reason string `json:"reason"`
	}
	json.NewDecoder(r.Body).Decode(&body)

	h.control(w, r, func(sess *session.Session) error {
		return sess.Pause(body.Reason)
	})
}

func (h *Handler) handleResumeDebate(w http.ResponseWriter, r *http.Request) {
	h.control(w, r, func(sess *session.Session) error {
		return sess.Resume()
	})
}

func (h *Handler) handleAddContext(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Text == "" {
		h.writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	h.control(w, r, func(sess *session.Session) error {
		return sess.AddContext(body.Text)
	})
}

func (h *Handler) handleForceConsensus(w http.ResponseWriter, r *http.Request) {
	h.control(w, r, func(sess *session.Session) error {
		return sess.ForceConsensus()
	})
}

func (h *Handler) control(w http.ResponseWriter, r *http.Request, action func(*session.Session) error) {
	id := chi.URLParam(r, "id")

	sess, err := h.manager.Get(id)
	if err != nil {
		h.writeError(w, http.StatusNotFound, "debate not found")
		return
	}

	if err := action(sess); err != nil {
		if errors.Is(err, session.ErrNotControllable) {
			h.writeError(w, http.StatusConflict, err.Error())
			return
		}
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, sess.LiveMetadata())
}

func (h *Handler) handleListProviders(w http.ResponseWriter, _ *http.Request) {
	type providerInfo struct {
		Name      string `json:"name"`
		Available bool   `json:"available"`
	}

	providers := h.registry.List()
	out := make([]providerInfo, 0, len(providers))
	for _, p := range providers {
		out = append(out, providerInfo{Name: p.Name(), Available: p.Available()})
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
