package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/pingline/omnisearch/internal/config"
	"github.com/pingline/omnisearch/internal/models"
	"github.com/pingline/omnisearch/internal/storage"
)

// handleSearch serves search requests. An empty query is the suggestion
// state: it routes to the default suggestion provider instead of the
// scoring pipeline.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req models.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Debug("search request",
		zap.String("requester", req.RequesterID),
		zap.String("query", req.Query),
		zap.Strings("filters", req.Filters),
		zap.Int("limit", req.Limit))

	if strings.TrimSpace(req.Query) == "" {
		response, err := s.suggester.Suggest(r.Context(), req.RequesterID, req.Limit)
		if err != nil {
			s.logger.Error("suggestions failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.respondJSON(w, http.StatusOK, response)
		return
	}

	response, err := s.engine.Search(r.Context(), &req)
	if err != nil {
		s.logger.Error("search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

// handleSuggestions serves the empty-query state directly.
func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	requesterID := r.URL.Query().Get("requester_id")
	if requesterID == "" {
		s.respondError(w, http.StatusBadRequest, "requester_id is required")
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	response, err := s.suggester.Suggest(r.Context(), requesterID, limit)
	if err != nil {
		s.logger.Error("suggestions failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userCount, err := s.stats.CountUsers(ctx)
	if err != nil {
		s.logger.Error("status: count users failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	messageCount, err := s.stats.CountMessages(ctx)
	if err != nil {
		s.logger.Error("status: count messages failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := map[string]interface{}{
		"users":    userCount,
		"messages": messageCount,
	}
	configInfo := map[string]interface{}{
		"message_index":        s.config.Storage.MessageIndex,
		"database_path":        s.config.Storage.DatabasePath,
		"default_limit":        s.config.Search.DefaultLimit,
		"per_source_limit":     s.config.Search.PerSourceLimit,
		"source_timeout_ms":    s.config.Search.SourceTimeoutMs,
		"frequent_window_days": s.config.Search.FrequentWindowDays,
	}
	if s.config.Storage.MessageIndex == config.MessageIndexBleve {
		configInfo["bleve_index_path"] = s.config.Storage.BleveIndexPath
	}
	resp["config"] = configInfo

	diskBytes, err := storage.DiskUsageBytes(
		s.config.Storage.DatabasePath,
		s.config.Storage.BleveIndexPath,
	)
	if err == nil {
		resp["disk_usage_bytes"] = diskBytes
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
