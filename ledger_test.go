package main

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
)

// memStore is an in-memory UserStore for exercising the ledger without a
// database.
type memStore struct {
	mu      sync.Mutex
	users   map[string]*UserRecord
	puts    int
	getErr  error
	putErr  error
}

func newMemStore() *memStore {
	return &memStore{users: make(map[string]*UserRecord)}
}

func (s *memStore) GetUser(ctx context.Context, userID string) (*UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	rec, ok := s.users[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	return rec.clone(), nil
}

func (s *memStore) PutUser(ctx context.Context, rec *UserRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return s.putErr
	}
	s.users[rec.UserID] = rec.clone()
	s.puts++
	return nil
}

func (s *memStore) TopScores(ctx context.Context, limit int) ([]ScoreEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var entries []ScoreEntry
	for _, rec := range s.users {
		entries = append(entries, ScoreEntry{UserID: rec.UserID, HighScore: rec.HighScore})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].HighScore != entries[j].HighScore {
			return entries[i].HighScore > entries[j].HighScore
		}
		return entries[i].UserID < entries[j].UserID
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (s *memStore) seed(rec *UserRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[rec.UserID] = rec.clone()
}

func TestGetOrCreateIsIdempotent(t *testing.T) {
	store := newMemStore()
	ledger := NewLedger(store)
	ctx := context.Background()

	first, err := ledger.GetOrCreate(ctx, "u1")
	if err != nil {
		t.Fatalf("first GetOrCreate: %v", err)
	}
	second, err := ledger.GetOrCreate(ctx, "u1")
	if err != nil {
		t.Fatalf("second GetOrCreate: %v", err)
	}

	if first.Scrap != 0 || first.HighScore != 0 || first.BestWave != 0 {
		t.Fatalf("default record not zero-valued: %+v", first)
	}
	for _, id := range upgradeIDs {
		if first.Upgrades[id] != 0 {
			t.Fatalf("default upgrade %s not zero: %d", id, first.Upgrades[id])
		}
	}
	if second.Scrap != first.Scrap || second.HighScore != first.HighScore {
		t.Fatalf("second call returned different record: %+v vs %+v", second, first)
	}
	if store.puts != 1 {
		t.Fatalf("expected exactly one persisted write, got %d", store.puts)
	}
}

func TestGetOrCreateSurfacesStoreErrors(t *testing.T) {
	store := newMemStore()
	store.getErr = errors.New("disk on fire")
	ledger := NewLedger(store)

	if _, err := ledger.GetOrCreate(context.Background(), "u1"); err == nil {
		t.Fatal("expected store read failure to surface, got default record")
	}
}

func TestApplyRunResultAccumulates(t *testing.T) {
	store := newMemStore()
	ledger := NewLedger(store)
	ctx := context.Background()

	if _, err := ledger.ApplyRunResult(ctx, "u1", 50, 10, 3); err != nil {
		t.Fatalf("first run: %v", err)
	}
	rec, err := ledger.ApplyRunResult(ctx, "u1", 30, 5, 2)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	if rec.Scrap != 80 {
		t.Errorf("scrap = %d, want 80", rec.Scrap)
	}
	if rec.HighScore != 10 {
		t.Errorf("highScore = %d, want 10 (lower second score must be ignored)", rec.HighScore)
	}
	if rec.BestWave != 3 {
		t.Errorf("bestWave = %d, want 3", rec.BestWave)
	}
}

func TestApplyRunResultAlwaysPersists(t *testing.T) {
	store := newMemStore()
	ledger := NewLedger(store)
	ctx := context.Background()

	if _, err := ledger.ApplyRunResult(ctx, "u1", 0, 0, 0); err != nil {
		t.Fatalf("zero run: %v", err)
	}
	if store.puts != 1 {
		t.Fatalf("expected a persisted write even with no visible change, got %d", store.puts)
	}
}

func TestApplyRunResultRejectsNegative(t *testing.T) {
	ledger := NewLedger(newMemStore())
	if _, err := ledger.ApplyRunResult(context.Background(), "u1", -1, 0, 0); err == nil {
		t.Fatal("expected negative scrap delta to be rejected")
	}
}

func TestPurchaseUpgrade(t *testing.T) {
	store := newMemStore()
	seed := newUserRecord("u1")
	seed.Scrap = 250
	store.seed(seed)

	ledger := NewLedger(store)
	ctx := context.Background()

	rec, err := ledger.PurchaseUpgrade(ctx, "u1", "drill")
	if err != nil {
		t.Fatalf("first purchase: %v", err)
	}
	if rec.Upgrades["drill"] != 1 {
		t.Errorf("drill level = %d, want 1", rec.Upgrades["drill"])
	}
	if rec.Scrap != 150 {
		t.Errorf("scrap = %d, want 150", rec.Scrap)
	}

	// Level 1 -> 2 costs 200; only 150 remains.
	if _, err := ledger.PurchaseUpgrade(ctx, "u1", "drill"); !errors.Is(err, ErrNotEnoughScrap) {
		t.Fatalf("second purchase err = %v, want ErrNotEnoughScrap", err)
	}

	after, err := store.GetUser(ctx, "u1")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if after.Scrap != 150 || after.Upgrades["drill"] != 1 {
		t.Fatalf("failed purchase mutated state: %+v", after)
	}
}

func TestPurchaseUpgradeUnknownUpgrade(t *testing.T) {
	store := newMemStore()
	seed := newUserRecord("u1")
	seed.Scrap = 1000000
	store.seed(seed)

	ledger := NewLedger(store)

	if _, err := ledger.PurchaseUpgrade(context.Background(), "u1", "laser"); !errors.Is(err, ErrUnknownUpgrade) {
		t.Fatalf("err = %v, want ErrUnknownUpgrade", err)
	}
	if store.puts != 0 {
		t.Fatalf("unknown upgrade must not mutate, got %d writes", store.puts)
	}
}

func TestPurchaseUpgradeUnknownUser(t *testing.T) {
	ledger := NewLedger(newMemStore())
	if _, err := ledger.PurchaseUpgrade(context.Background(), "ghost", "drill"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("err = %v, want ErrUserNotFound", err)
	}
}

func TestConcurrentPurchasesSerialize(t *testing.T) {
	store := newMemStore()
	seed := newUserRecord("u1")
	seed.Scrap = 100 // enough for exactly one level of drill
	store.seed(seed)

	ledger := NewLedger(store)
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ledger.PurchaseUpgrade(ctx, "u1", "drill")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	successes, insufficient := 0, 0
	for err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, ErrNotEnoughScrap):
			insufficient++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if successes != 1 || insufficient != 1 {
		t.Fatalf("got %d successes and %d insufficient, want exactly 1 and 1", successes, insufficient)
	}

	rec, err := store.GetUser(ctx, "u1")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if rec.Scrap != 0 {
		t.Errorf("scrap = %d, want 0 (never negative)", rec.Scrap)
	}
	if rec.Upgrades["drill"] != 1 {
		t.Errorf("drill level = %d, want 1", rec.Upgrades["drill"])
	}
}
