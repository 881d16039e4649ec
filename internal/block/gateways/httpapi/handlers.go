package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/haukened/rr-block/internal/block/common/log"
	"github.com/haukened/rr-block/internal/block/domain"
	"github.com/haukened/rr-block/internal/block/repos/listfile"
	"github.com/haukened/rr-block/internal/block/repos/ruleset"
	"github.com/haukened/rr-block/internal/block/services/blocklist"
)

// Controller is the block-list service as seen by the API.
type Controller interface {
	Status() blocklist.Status
	AddEntry(ctx context.Context, site string) (blocklist.Status, error)
	RemoveEntry(ctx context.Context, site string) (blocklist.Status, error)
	SetEntryEnabled(ctx context.Context, site string, enabled bool) (blocklist.Status, error)
	SetGlobalEnabled(ctx context.Context, enabled bool) (blocklist.Status, error)
	Resync(ctx context.Context) (blocklist.Status, error)
	ImportEntries(ctx context.Context, sites []string) (int, blocklist.Status, error)
}

// maxImportBytes bounds an uploaded list file.
const maxImportBytes = 4 << 20

// RuleEngine evaluates requests against the installed rules.
type RuleEngine interface {
	Match(rawURL string, rt domain.ResourceType) domain.BlockDecision
	Stats() ruleset.Stats
}

type siteRequest struct {
	Site string `json:"site"`
}

type enabledRequest struct {
	Enabled *bool `json:"enabled"`
}

type importResponse struct {
	Added  int              `json:"added"`
	Status blocklist.Status `json:"status"`
}

type errorResponse struct {
	Error string `json:"error"`
	// Applied is set when the change took effect in the block list even
	// though persisting it or installing its rules failed.
	Applied bool              `json:"applied,omitempty"`
	Status  *blocklist.Status `json:"status,omitempty"`
}

type handlers struct {
	ctl    Controller
	engine RuleEngine
	logger log.Logger
}

// NewRouter builds the control API.
func NewRouter(ctl Controller, engine RuleEngine, logger log.Logger) http.Handler {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	h := &handlers{ctl: ctl, engine: engine, logger: logger}

	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/state", h.handleState)
		r.Put("/enabled", h.handleSetEnabled)
		r.Post("/sync", h.handleSync)
		r.Get("/check", h.handleCheck)
		r.Get("/stats", h.handleStats)
		r.Post("/entries", h.handleAddEntry)
		r.Post("/entries/import", h.handleImport)
		r.Put("/entries/{site}", h.handleSetEntry)
		r.Delete("/entries/{site}", h.handleRemoveEntry)
	})
	return r
}

// GET /api/v1/state
func (h *handlers) handleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.ctl.Status())
}

// POST /api/v1/entries
func (h *handlers) handleAddEntry(w http.ResponseWriter, r *http.Request) {
	var req siteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	st, err := h.ctl.AddEntry(r.Context(), req.Site)
	h.respond(w, http.StatusCreated, st, err)
}

// POST /api/v1/entries/import?format=plain|hosts
func (h *handlers) handleImport(w http.ResponseWriter, r *http.Request) {
	format, err := listfile.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	sites, err := listfile.Parse(format, http.MaxBytesReader(w, r.Body, maxImportBytes), h.logger)
	if err != nil {
		code := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			code = http.StatusRequestEntityTooLarge
		}
		writeJSON(w, code, errorResponse{Error: err.Error()})
		return
	}
	added, st, err := h.ctl.ImportEntries(r.Context(), sites)
	if err != nil {
		h.respond(w, http.StatusOK, st, err)
		return
	}
	h.logger.Info(map[string]any{"format": format, "parsed": len(sites), "added": added}, "Block list imported")
	writeJSON(w, http.StatusOK, importResponse{Added: added, Status: st})
}

// PUT /api/v1/entries/{site}
func (h *handlers) handleSetEntry(w http.ResponseWriter, r *http.Request) {
	site, ok := siteParam(w, r)
	if !ok {
		return
	}
	enabled, ok := decodeEnabled(w, r)
	if !ok {
		return
	}
	st, err := h.ctl.SetEntryEnabled(r.Context(), site, enabled)
	h.respond(w, http.StatusOK, st, err)
}

// DELETE /api/v1/entries/{site}
func (h *handlers) handleRemoveEntry(w http.ResponseWriter, r *http.Request) {
	site, ok := siteParam(w, r)
	if !ok {
		return
	}
	st, err := h.ctl.RemoveEntry(r.Context(), site)
	h.respond(w, http.StatusOK, st, err)
}

// PUT /api/v1/enabled
func (h *handlers) handleSetEnabled(w http.ResponseWriter, r *http.Request) {
	enabled, ok := decodeEnabled(w, r)
	if !ok {
		return
	}
	st, err := h.ctl.SetGlobalEnabled(r.Context(), enabled)
	h.respond(w, http.StatusOK, st, err)
}

// POST /api/v1/sync
func (h *handlers) handleSync(w http.ResponseWriter, r *http.Request) {
	st, err := h.ctl.Resync(r.Context())
	h.respond(w, http.StatusOK, st, err)
}

// GET /api/v1/stats
func (h *handlers) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Stats())
}

// GET /api/v1/check?url=...&type=...
func (h *handlers) handleCheck(w http.ResponseWriter, r *http.Request) {
	rawURL := r.URL.Query().Get("url")
	if rawURL == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "url is required"})
		return
	}
	rt := domain.ResourceMainFrame
	if t := r.URL.Query().Get("type"); t != "" {
		parsed, err := domain.ParseResourceType(t)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		rt = parsed
	}
	writeJSON(w, http.StatusOK, h.engine.Match(rawURL, rt))
}

// respond writes st on success. A 422 or 503 can follow an accepted change:
// the entry is in the list but its rules are not installed (or it is not
// saved yet). Such responses carry "applied": true, and the retry path is
// POST /api/v1/sync rather than repeating the change.
func (h *handlers) respond(w http.ResponseWriter, okStatus int, st blocklist.Status, err error) {
	if err == nil {
		writeJSON(w, okStatus, st)
		return
	}
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		h.logger.Error(map[string]any{"error": err, "code": code}, "Block list update failed")
	}
	writeJSON(w, code, errorResponse{Error: err.Error(), Applied: applied(err), Status: &st})
}

// applied reports whether a failed call still changed the in-memory list.
func applied(err error) bool {
	if errors.Is(err, domain.ErrNotLoaded) {
		return false
	}
	return errors.Is(err, domain.ErrRuleInstall) || errors.Is(err, domain.ErrStorage)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidEntry):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrEntryNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrEntryExists):
		return http.StatusConflict
	case errors.Is(err, domain.ErrCapacityExceeded):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrStorage), errors.Is(err, domain.ErrRuleInstall):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func siteParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	site, err := url.PathUnescape(chi.URLParam(r, "site"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid site"})
		return "", false
	}
	return site, true
}

func decodeEnabled(w http.ResponseWriter, r *http.Request) (bool, bool) {
	var req enabledRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Enabled == nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: `body must be {"enabled": true|false}`})
		return false, false
	}
	return *req.Enabled, true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
