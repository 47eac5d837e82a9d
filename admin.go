package main

import (
	"crypto/subtle"
	"encoding/json"
	"log"
	"net/http"
)

// adminAuthorized gates the operator endpoints. With no ADMIN_TOKEN
// configured the admin surface does not exist; requests 404 so the routes are
// indistinguishable from unregistered ones.
func adminAuthorized(w http.ResponseWriter, r *http.Request, adminToken string) bool {
	if adminToken == "" {
		w.WriteHeader(http.StatusNotFound)
		return false
	}

	supplied := r.Header.Get("X-Admin-Token")
	if subtle.ConstantTimeCompare([]byte(supplied), []byte(adminToken)) != 1 {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(ProfileResponse{OK: false, Error: "ADMIN_AUTH_FAILED"})
		return false
	}
	return true
}

func adminPlayerHandler(ledger *Ledger, adminToken string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !adminAuthorized(w, r, adminToken) {
			return
		}
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		userID := r.URL.Query().Get("userId")
		if !isValidUserID(userID) {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(ProfileResponse{OK: false, Error: "INVALID_USER_ID"})
			return
		}

		rec, err := ledger.GetOrCreate(r.Context(), userID)
		if err != nil {
			log.Println("Admin player lookup failed:", err)
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

func adminGrantHandler(ledger *Ledger, adminToken string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !adminAuthorized(w, r, adminToken) {
			return
		}
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		var req AdminGrantRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			json.NewEncoder(w).Encode(ProfileResponse{OK: false, Error: "INVALID_REQUEST"})
			return
		}
		if !isValidUserID(req.UserID) {
			json.NewEncoder(w).Encode(ProfileResponse{OK: false, Error: "INVALID_USER_ID"})
			return
		}
		if req.Scrap <= 0 {
			json.NewEncoder(w).Encode(ProfileResponse{OK: false, Error: "INVALID_REQUEST"})
			return
		}

		rec, err := ledger.ApplyRunResult(r.Context(), req.UserID, req.Scrap, 0, 0)
		if err != nil {
			log.Println("Admin grant failed:", err)
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(ProfileResponse{OK: false, Error: "INTERNAL_ERROR"})
			return
		}

		log.Printf("Admin grant: userId=%s scrap=%d newBalance=%d", req.UserID, req.Scrap, rec.Scrap)

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
