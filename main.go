package main

import (
	"log"
	"net/http"
	"time"

	"github.com/caarlos0/env/v11"
)

/* ======================
   Request / Response Types
   ====================== */

type SaveRunRequest struct {
	UserID   string `json:"userId"`
	Score    int64  `json:"score"`
	Scrap    int64  `json:"scrap"`
	Waves    int64  `json:"waves"`
	InitData string `json:"initData,omitempty"`
}

type SaveRunResponse struct {
	OK                bool   `json:"ok"`
	Error             string `json:"error,omitempty"`
	NewScrap          int64  `json:"newScrap"`
	HighScore         int64  `json:"highScore"`
	BestWave          int64  `json:"bestWave"`
	RetryAfterSeconds int    `json:"retryAfterSeconds,omitempty"`
}

type UpgradeRequest struct {
	UserID    string `json:"userId"`
	UpgradeID string `json:"upgradeId"`
	InitData  string `json:"initData,omitempty"`
}

type UpgradeResponse struct {
	OK             bool   `json:"ok"`
	Error          string `json:"error,omitempty"`
	UpgradeID      string `json:"upgradeId,omitempty"`
	Level          int64  `json:"level,omitempty"`
	RemainingScrap int64  `json:"remainingScrap"`
}

type ProfileResponse struct {
	OK        bool             `json:"ok"`
	Error     string           `json:"error,omitempty"`
	UserID    string           `json:"userId,omitempty"`
	Scrap     int64            `json:"scrap"`
	HighScore int64            `json:"highScore"`
	BestWave  int64            `json:"bestWave"`
	Upgrades  map[string]int64 `json:"upgrades,omitempty"`
}

type LeaderboardResponse struct {
	OK      bool         `json:"ok"`
	Error   string       `json:"error,omitempty"`
	Results []ScoreEntry `json:"results"`
}

type AdminGrantRequest struct {
	UserID string `json:"userId"`
	Scrap  int64  `json:"scrap"`
}

/* ======================
   Configuration
   ====================== */

type Config struct {
	Port        string `env:"PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL"`
	SQLitePath  string `env:"SQLITE_PATH" envDefault:"spacerts.db"`

	// BotToken is the shared secret issued by the platform for this bot.
	// Empty means verification is DISABLED; every signed payload is accepted.
	BotToken       string        `env:"BOT_TOKEN"`
	InitDataMaxAge time.Duration `env:"INITDATA_MAX_AGE" envDefault:"0"`

	AdminToken string `env:"ADMIN_TOKEN"`
	WebRoot    string `env:"WEB_ROOT" envDefault:"./public"`
	DevMode    bool   `env:"DEV_MODE" envDefault:"false"`

	SaveRunRateLimit         int `env:"SAVE_RUN_RATE_LIMIT" envDefault:"30"`
	SaveRunRateWindowSeconds int `env:"SAVE_RUN_RATE_WINDOW_SECONDS" envDefault:"60"`

	MaxScrapPerRun int64 `env:"MAX_SCRAP_PER_RUN" envDefault:"5000"`
	MaxScorePerRun int64 `env:"MAX_SCORE_PER_RUN" envDefault:"1000000"`
}

/* ======================
   main()
   ====================== */

func main() {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		log.Fatal("failed to parse environment:", err)
	}

	if cfg.DevMode {
		log.Println("⚠️  DEV MODE ENABLED")
	}
	if cfg.BotToken == "" {
		log.Println("⚠️  BOT_TOKEN not set; init data verification is DISABLED, all gameplay submissions will be trusted")
	}

	db, dialect, err := openDatabase(cfg)
	if err != nil {
		log.Fatal("failed to open database:", err)
	}
	log.Println("Connected to", dialect, "database")

	if err := ensureSchema(db, dialect); err != nil {
		log.Fatal("Failed to ensure schema:", err)
	}

	store := newSQLStore(db, dialect)
	ledger := NewLedger(store)
	verifier := InitDataVerifier{
		BotToken: cfg.BotToken,
		MaxAge:   cfg.InitDataMaxAge,
	}
	limiter := newRateLimiter(
		cfg.SaveRunRateLimit,
		time.Duration(cfg.SaveRunRateWindowSeconds)*time.Second,
	)
	telemetry := newSQLTelemetry(db, dialect)

	mux := http.NewServeMux()
	registerRoutes(mux, cfg, ledger, store, verifier, limiter, telemetry)

	addr := "0.0.0.0:" + cfg.Port
	log.Println("Listening on", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatal("server failed:", err)
	}
}

/* ======================
   Routes
   ====================== */

func registerRoutes(
	mux *http.ServeMux,
	cfg Config,
	ledger *Ledger,
	store UserStore,
	verifier InitDataVerifier,
	limiter *rateLimiter,
	telemetry TelemetryRecorder,
) {
	mux.HandleFunc("/", serveIndex(cfg.WebRoot, cfg.DevMode))
	mux.HandleFunc("/api/health", healthHandler)
	mux.HandleFunc("/api/profile/", profileHandler(ledger))
	mux.HandleFunc("/api/save-run", saveRunHandler(ledger, verifier, limiter, telemetry, cfg))
	mux.HandleFunc("/api/upgrade", upgradeHandler(ledger, verifier, telemetry))
	mux.HandleFunc("/api/leaderboard", leaderboardHandler(store))

	mux.HandleFunc("/admin/player", adminPlayerHandler(ledger, cfg.AdminToken))
	mux.HandleFunc("/admin/grant", adminGrantHandler(ledger, cfg.AdminToken))
}
