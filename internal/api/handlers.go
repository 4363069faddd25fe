package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"intel.gg/discord-intel/internal/auth"
	"intel.gg/discord-intel/internal/index"
	"intel.gg/discord-intel/internal/store"
)

// Searcher is the slice of the index publisher the API needs.
type Searcher interface {
	Search(ctx context.Context, query string, limit int, filters index.Filters) ([]index.Result, error)
}

// APIHandler serves the agent collaborator's read-only view: safe records
// and semantic search. There are no write routes; the handler holds no way
// to mutate safety statuses or trigger re-evaluation.
type APIHandler struct {
	store     *store.SQLiteStore
	searcher  Searcher
	jwtSecret string
	logger    *zap.Logger
}

func NewAPIHandler(st *store.SQLiteStore, searcher Searcher, jwtSecret string, logger *zap.Logger) *APIHandler {
	return &APIHandler{store: st, searcher: searcher, jwtSecret: jwtSecret, logger: logger}
}

func (h *APIHandler) AgentAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Authorization header is required", http.StatusUnauthorized)
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		agent, err := auth.ValidateAgentToken(h.jwtSecret, tokenString)
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), agentNameKey, agent)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type contextKey string

const agentNameKey contextKey = "agentName"

func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.store.PingContext(r.Context()); err != nil {
		http.Error(w, `{"status":"degraded"}`, http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// ListMessagesHandler returns safe records only. Asking for any other
// status is rejected; the agent has no path to pending or flagged content.
func (h *APIHandler) ListMessagesHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if status := q.Get("status"); status != "" && status != string(store.StatusSafe) {
		http.Error(w, "only safe records are readable through this API", http.StatusForbidden)
		return
	}

	limit, _ := strconv.Atoi(q.Get("limit"))
	msgs, err := h.store.SafeMessagesFiltered(q.Get("channel"), q.Get("author"), limit)
	if err != nil {
		h.logger.Error("failed to list safe messages", zap.Error(err))
		http.Error(w, "failed to list messages", http.StatusInternalServerError)
		return
	}
	if msgs == nil {
		msgs = []store.Message{}
	}

	writeJSON(w, map[string]any{"messages": msgs, "count": len(msgs)})
}

func (h *APIHandler) SearchHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := q.Get("q")
	if query == "" {
		http.Error(w, "q parameter is required", http.StatusBadRequest)
		return
	}
	limit, _ := strconv.Atoi(q.Get("limit"))

	results, err := h.searcher.Search(r.Context(), query, limit, index.Filters{
		Channel: q.Get("channel"),
		Author:  q.Get("author"),
	})
	if err != nil {
		h.logger.Error("search failed", zap.String("query", query), zap.Error(err))
		http.Error(w, "search failed", http.StatusInternalServerError)
		return
	}
	if results == nil {
		results = []index.Result{}
	}

	writeJSON(w, map[string]any{"results": results, "count": len(results)})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
