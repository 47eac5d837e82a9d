package main

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	dialectPostgres = "postgres"
	dialectSQLite   = "sqlite"
)

// openDatabase connects to Postgres when DATABASE_URL is set, and otherwise
// falls back to an embedded SQLite file. A missing SQLite file starts a fresh
// store; a file that exists but cannot be read surfaces as an error from the
// driver rather than being silently replaced.
func openDatabase(cfg Config) (*sql.DB, string, error) {
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, "", err
		}
		db.SetMaxOpenConns(5)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(30 * time.Minute)
		if err := db.Ping(); err != nil {
			return nil, "", err
		}
		return db, dialectPostgres, nil
	}

	db, err := sql.Open("sqlite", cfg.SQLitePath)
	if err != nil {
		return nil, "", err
	}
	// modernc's driver is happiest with a single writer connection.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		return nil, "", err
	}
	return db, dialectSQLite, nil
}

// rebind rewrites $N placeholders to SQLite's ?N form. Queries are written in
// Postgres style and contain no other dollar signs.
func rebind(dialect string, query string) string {
	if dialect == dialectSQLite {
		return strings.ReplaceAll(query, "$", "?")
	}
	return query
}

func ensureSchema(db *sql.DB, dialect string) error {
	statements := []string{
		`
		CREATE TABLE IF NOT EXISTS players (
			user_id TEXT PRIMARY KEY,
			scrap BIGINT NOT NULL,
			high_score BIGINT NOT NULL,
			best_wave BIGINT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);
		`,
		`
		CREATE TABLE IF NOT EXISTS player_upgrades (
			user_id TEXT NOT NULL,
			upgrade_id TEXT NOT NULL,
			level BIGINT NOT NULL,
			PRIMARY KEY (user_id, upgrade_id)
		);
		`,
		`
		CREATE INDEX IF NOT EXISTS idx_players_high_score
			ON players (high_score DESC);
		`,
		`
		CREATE TABLE IF NOT EXISTS run_telemetry (
			user_id TEXT NOT NULL,
			event_type TEXT NOT NULL,
			payload TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		);
		`,
	}

	for _, stmt := range statements {
		if _, err := db.Exec(rebind(dialect, stmt)); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

type sqlStore struct {
	db      *sql.DB
	dialect string
}

func newSQLStore(db *sql.DB, dialect string) *sqlStore {
	return &sqlStore{db: db, dialect: dialect}
}

func (s *sqlStore) GetUser(ctx context.Context, userID string) (*UserRecord, error) {
	rec := newUserRecord(userID)

	err := s.db.QueryRowContext(ctx, rebind(s.dialect, `
		SELECT scrap, high_score, best_wave
		FROM players
		WHERE user_id = $1
	`), userID).Scan(&rec.Scrap, &rec.HighScore, &rec.BestWave)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select player: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, rebind(s.dialect, `
		SELECT upgrade_id, level
		FROM player_upgrades
		WHERE user_id = $1
	`), userID)
	if err != nil {
		return nil, fmt.Errorf("select upgrades: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var upgradeID string
		var level int64
		if err := rows.Scan(&upgradeID, &level); err != nil {
			return nil, fmt.Errorf("scan upgrade: %w", err)
		}
		rec.Upgrades[upgradeID] = level
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate upgrades: %w", err)
	}

	return rec, nil
}

func (s *sqlStore) PutUser(ctx context.Context, rec *UserRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin put user: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()

	_, err = tx.ExecContext(ctx, rebind(s.dialect, `
		INSERT INTO players (
			user_id,
			scrap,
			high_score,
			best_wave,
			created_at,
			updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (user_id)
		DO UPDATE SET
			scrap = EXCLUDED.scrap,
			high_score = EXCLUDED.high_score,
			best_wave = EXCLUDED.best_wave,
			updated_at = EXCLUDED.updated_at
	`), rec.UserID, rec.Scrap, rec.HighScore, rec.BestWave, now)
	if err != nil {
		return fmt.Errorf("upsert player: %w", err)
	}

	for _, upgradeID := range upgradeIDs {
		_, err = tx.ExecContext(ctx, rebind(s.dialect, `
			INSERT INTO player_upgrades (user_id, upgrade_id, level)
			VALUES ($1, $2, $3)
			ON CONFLICT (user_id, upgrade_id)
			DO UPDATE SET level = EXCLUDED.level
		`), rec.UserID, upgradeID, rec.Upgrades[upgradeID])
		if err != nil {
			return fmt.Errorf("upsert upgrade %s: %w", upgradeID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit put user: %w", err)
	}
	return nil
}

func (s *sqlStore) TopScores(ctx context.Context, limit int) ([]ScoreEntry, error) {
	rows, err := s.db.QueryContext(ctx, rebind(s.dialect, `
		SELECT user_id, high_score
		FROM players
		ORDER BY high_score DESC, user_id ASC
		LIMIT $1
	`), limit)
	if err != nil {
		return nil, fmt.Errorf("select top scores: %w", err)
	}
	defer rows.Close()

	var entries []ScoreEntry
	for rows.Next() {
		var entry ScoreEntry
		if err := rows.Scan(&entry.UserID, &entry.HighScore); err != nil {
			return nil, fmt.Errorf("scan score: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scores: %w", err)
	}
	return entries, nil
}
