package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	ErrUnknownUpgrade = errors.New("UNKNOWN_UPGRADE")
	ErrNotEnoughScrap = errors.New("NOT_ENOUGH_SCRAP")
)

// UserRecord is the full persisted state for one player. Scrap never goes
// negative; HighScore, BestWave and upgrade levels only ever increase.
type UserRecord struct {
	UserID    string
	Scrap     int64
	HighScore int64
	BestWave  int64
	Upgrades  map[string]int64
}

func newUserRecord(userID string) *UserRecord {
	upgrades := make(map[string]int64, len(upgradeIDs))
	for _, id := range upgradeIDs {
		upgrades[id] = 0
	}
	return &UserRecord{
		UserID:   userID,
		Upgrades: upgrades,
	}
}

func (r *UserRecord) clone() *UserRecord {
	out := *r
	out.Upgrades = make(map[string]int64, len(r.Upgrades))
	for k, v := range r.Upgrades {
		out.Upgrades[k] = v
	}
	return &out
}

// Ledger serializes all read-modify-write cycles per user id so two
// concurrent purchases can never both observe the same pre-purchase balance.
// The store underneath only needs plain get/put semantics.
type Ledger struct {
	store UserStore

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewLedger(store UserStore) *Ledger {
	return &Ledger{
		store: store,
		locks: make(map[string]*sync.Mutex),
	}
}

func (l *Ledger) userLock(userID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	lock, ok := l.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[userID] = lock
	}
	return lock
}

// GetOrCreate returns the record for userID, materializing and persisting a
// zero-valued default if none exists yet. Calling it twice for an unseen id
// performs exactly one write.
func (l *Ledger) GetOrCreate(ctx context.Context, userID string) (*UserRecord, error) {
	lock := l.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	rec, err := l.store.GetUser(ctx, userID)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("load user %s: %w", userID, err)
	}

	rec = newUserRecord(userID)
	if err := l.store.PutUser(ctx, rec); err != nil {
		return nil, fmt.Errorf("create user %s: %w", userID, err)
	}
	return rec, nil
}

// ApplyRunResult credits scrap earned during a run and raises the high score
// and best wave where the run beat them. The record is created if absent and
// always persisted, even when nothing visible changed.
func (l *Ledger) ApplyRunResult(ctx context.Context, userID string, scrapDelta, score, waves int64) (*UserRecord, error) {
	if scrapDelta < 0 || score < 0 || waves < 0 {
		return nil, fmt.Errorf("negative run result for user %s", userID)
	}

	lock := l.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	rec, err := l.store.GetUser(ctx, userID)
	if errors.Is(err, ErrUserNotFound) {
		rec = newUserRecord(userID)
	} else if err != nil {
		return nil, fmt.Errorf("load user %s: %w", userID, err)
	}

	rec.Scrap += scrapDelta
	if score > rec.HighScore {
		rec.HighScore = score
	}
	if waves > rec.BestWave {
		rec.BestWave = waves
	}

	if err := l.store.PutUser(ctx, rec); err != nil {
		return nil, fmt.Errorf("save run for user %s: %w", userID, err)
	}
	return rec, nil
}

// PurchaseUpgrade debits the cost of the next level of the named upgrade and
// increments its level by one. Unlike ApplyRunResult it never creates a
// record; purchases for unseen users fail with ErrUserNotFound. On any
// failure no mutation is persisted.
func (l *Ledger) PurchaseUpgrade(ctx context.Context, userID string, upgradeID string) (*UserRecord, error) {
	if !isValidUpgrade(upgradeID) {
		return nil, ErrUnknownUpgrade
	}

	lock := l.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	rec, err := l.store.GetUser(ctx, userID)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load user %s: %w", userID, err)
	}

	cost := upgradeCost(upgradeID, rec.Upgrades[upgradeID])
	if rec.Scrap < cost {
		return nil, ErrNotEnoughScrap
	}

	rec.Scrap -= cost
	rec.Upgrades[upgradeID]++

	if err := l.store.PutUser(ctx, rec); err != nil {
		return nil, fmt.Errorf("save purchase for user %s: %w", userID, err)
	}
	return rec, nil
}
