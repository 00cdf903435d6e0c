package server

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"quizbuzzer/internal/analytics"

	"go.uber.org/zap"
)

const (
	defaultLeaderboardLimit = 10
	maxLeaderboardLimit     = 100
)

func (s *Server) handleRoomRecap(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "Analytics requires a database connection", http.StatusServiceUnavailable)
		return
	}

	roomID := r.PathValue("id")
	recap, err := analytics.NewQueries(s.DB).GetRoomRecap(r.Context(), roomID)
	if errors.Is(err, sql.ErrNoRows) {
		http.Error(w, "Room not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.log.Error("room recap failed", zap.String("room", roomID), zap.Error(err))
		http.Error(w, "Error loading room recap", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, recap)
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "Analytics requires a database connection", http.StatusServiceUnavailable)
		return
	}

	category := r.URL.Query().Get("cat")
	if category == "" {
		category = analytics.CategoryPoints
	}
	if !analytics.ValidCategory(category) {
		http.Error(w, "Unknown leaderboard category", http.StatusBadRequest)
		return
	}

	limit := defaultLeaderboardLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(n, maxLeaderboardLimit)
	}

	entries, err := analytics.NewQueries(s.DB).GetLeaderboard(r.Context(), category, limit)
	if err != nil {
		s.log.Error("leaderboard failed", zap.String("category", category), zap.Error(err))
		http.Error(w, "Error loading leaderboard", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []analytics.LeaderboardEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}
