package main

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

func serveIndex(webRoot string, devMode bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.ServeFile(w, r, filepath.Join(webRoot, r.URL.Path))
			return
		}

		data, err := os.ReadFile(filepath.Join(webRoot, "index.html"))
		if err != nil {
			http.Error(w, "Failed to load index.html", 500)
			return
		}

		injection := `<script>window.__DEV_MODE__ = ` +
			func() string {
				if devMode {
					return "true"
				}
				return "false"
			}() +
			`;</script>`

		html := strings.Replace(
			string(data),
			"<head>",
			"<head>\n"+injection,
			1,
		)

		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(html))
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "online",
		"service": "SpaceRTS Backend",
	})
}

func profileHandler(ledger *Ledger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		userID := strings.TrimPrefix(r.URL.Path, "/api/profile/")
		if !isValidUserID(userID) {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(ProfileResponse{OK: false, Error: "INVALID_USER_ID"})
			return
		}

		rec, err := ledger.GetOrCreate(r.Context(), userID)
		if err != nil {
			log.Println("Failed to load/create profile:", err)
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(ProfileResponse{OK: false, Error: "INTERNAL_ERROR"})
			return
		}

		json.NewEncoder(w).Encode(ProfileResponse{
			OK:        true,
			UserID:    rec.UserID,
			Scrap:     rec.Scrap,
			HighScore: rec.HighScore,
			BestWave:  rec.BestWave,
			Upgrades:  rec.Upgrades,
		})
	}
}

func saveRunHandler(
	ledger *Ledger,
	verifier InitDataVerifier,
	limiter *rateLimiter,
	telemetry TelemetryRecorder,
	cfg Config,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		var req SaveRunRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			json.NewEncoder(w).Encode(SaveRunResponse{OK: false, Error: "INVALID_REQUEST"})
			return
		}

		if !isValidUserID(req.UserID) {
			json.NewEncoder(w).Encode(SaveRunResponse{OK: false, Error: "INVALID_USER_ID"})
			return
		}
		if req.Score < 0 || req.Scrap < 0 || req.Waves < 0 {
			json.NewEncoder(w).Encode(SaveRunResponse{OK: false, Error: "INVALID_REQUEST"})
			return
		}
		if cfg.MaxScrapPerRun > 0 && req.Scrap > cfg.MaxScrapPerRun {
			json.NewEncoder(w).Encode(SaveRunResponse{OK: false, Error: "INVALID_REQUEST"})
			return
		}
		if cfg.MaxScorePerRun > 0 && req.Score > cfg.MaxScorePerRun {
			json.NewEncoder(w).Encode(SaveRunResponse{OK: false, Error: "INVALID_REQUEST"})
			return
		}

		if !verifier.Verify(req.InitData) {
			telemetry.Record(r.Context(), req.UserID, "auth_rejected", map[string]interface{}{
				"endpoint": "save-run",
			})
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(SaveRunResponse{OK: false, Error: "AUTH_FAILED"})
			return
		}

		allowed, retryAfter := limiter.allow(req.UserID)
		if !allowed {
			json.NewEncoder(w).Encode(SaveRunResponse{
				OK:                false,
				Error:             "RATE_LIMITED",
				RetryAfterSeconds: retryAfter,
			})
			return
		}

		rec, err := ledger.ApplyRunResult(r.Context(), req.UserID, req.Scrap, req.Score, req.Waves)
		if err != nil {
			log.Println("Failed to apply run result:", err)
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(SaveRunResponse{OK: false, Error: "INTERNAL_ERROR"})
			return
		}

		telemetry.Record(r.Context(), req.UserID, "run_saved", map[string]interface{}{
			"score":    req.Score,
			"scrap":    req.Scrap,
			"waves":    req.Waves,
			"newScrap": rec.Scrap,
		})

		json.NewEncoder(w).Encode(SaveRunResponse{
			OK:        true,
			NewScrap:  rec.Scrap,
			HighScore: rec.HighScore,
			BestWave:  rec.BestWave,
		})
	}
}

func upgradeHandler(
	ledger *Ledger,
	verifier InitDataVerifier,
	telemetry TelemetryRecorder,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		var req UpgradeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			json.NewEncoder(w).Encode(UpgradeResponse{OK: false, Error: "INVALID_REQUEST"})
			return
		}

		if !isValidUserID(req.UserID) {
			json.NewEncoder(w).Encode(UpgradeResponse{OK: false, Error: "INVALID_USER_ID"})
			return
		}

		if !verifier.Verify(req.InitData) {
			telemetry.Record(r.Context(), req.UserID, "auth_rejected", map[string]interface{}{
				"endpoint":  "upgrade",
				"upgradeId": req.UpgradeID,
			})
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(UpgradeResponse{OK: false, Error: "AUTH_FAILED"})
			return
		}

		rec, err := ledger.PurchaseUpgrade(r.Context(), req.UserID, req.UpgradeID)
		if err != nil {
			switch {
			case errors.Is(err, ErrUnknownUpgrade):
				json.NewEncoder(w).Encode(UpgradeResponse{OK: false, Error: "UNKNOWN_UPGRADE"})
			case errors.Is(err, ErrUserNotFound):
				w.WriteHeader(http.StatusNotFound)
				json.NewEncoder(w).Encode(UpgradeResponse{OK: false, Error: "USER_NOT_FOUND"})
			case errors.Is(err, ErrNotEnoughScrap):
				json.NewEncoder(w).Encode(UpgradeResponse{OK: false, Error: "NOT_ENOUGH_SCRAP"})
			default:
				log.Println("Failed to purchase upgrade:", err)
				w.WriteHeader(http.StatusInternalServerError)
				json.NewEncoder(w).Encode(UpgradeResponse{OK: false, Error: "INTERNAL_ERROR"})
			}
			return
		}

		telemetry.Record(r.Context(), req.UserID, "upgrade_purchased", map[string]interface{}{
			"upgradeId":      req.UpgradeID,
			"level":          rec.Upgrades[req.UpgradeID],
			"remainingScrap": rec.Scrap,
		})

		json.NewEncoder(w).Encode(UpgradeResponse{
			OK:             true,
			UpgradeID:      req.UpgradeID,
			Level:          rec.Upgrades[req.UpgradeID],
			RemainingScrap: rec.Scrap,
		})
	}
}
