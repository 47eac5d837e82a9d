package main

import (
	"context"
	"errors"
)

// ErrUserNotFound is returned by UserStore.GetUser when no record exists for
// the id. Store implementations must distinguish this from a store that
// cannot be read at all; read failures surface as ordinary errors.
var ErrUserNotFound = errors.New("USER_NOT_FOUND")

type ScoreEntry struct {
	Rank      int    `json:"rank"`
	UserID    string `json:"userId"`
	HighScore int64  `json:"highScore"`
}

// UserStore is the persistence collaborator for the economy ledger. Records
// returned by GetUser and TopScores are owned by the caller; implementations
// never hand out shared state.
type UserStore interface {
	GetUser(ctx context.Context, userID string) (*UserRecord, error)
	PutUser(ctx context.Context, rec *UserRecord) error
	TopScores(ctx context.Context, limit int) ([]ScoreEntry, error)
}
