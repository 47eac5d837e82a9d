package main

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
)

const (
	defaultLeaderboardSize = 10
	maxLeaderboardSize     = 100
)

func leaderboardHandler(store UserStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		limit := defaultLeaderboardSize
		if raw := r.URL.Query().Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 1 {
				w.WriteHeader(http.StatusBadRequest)
				json.NewEncoder(w).Encode(LeaderboardResponse{OK: false, Error: "INVALID_LIMIT"})
				return
			}
			limit = parsed
		}
		if limit > maxLeaderboardSize {
			limit = maxLeaderboardSize
		}

		entries, err := store.TopScores(r.Context(), limit)
		if err != nil {
			log.Println("Failed to load leaderboard:", err)
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(LeaderboardResponse{OK: false, Error: "INTERNAL_ERROR"})
			return
		}

		for i := range entries {
			entries[i].Rank = i + 1
		}
		if entries == nil {
			entries = []ScoreEntry{}
		}

		json.NewEncoder(w).Encode(LeaderboardResponse{
			OK:      true,
			Results: entries,
		})
	}
}
