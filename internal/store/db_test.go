package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("OpenDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestDBUpsertSession_ReplacesOnConflictKey(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	start := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	rec := &SessionRecord{
		UserID: "u1", Type: "arena", StartTime: start,
		TimeSpentSeconds: 30, Status: "active",
		Metadata: Metadata{"subject": "algorithms"},
	}
	if err := db.UpsertSession(ctx, rec); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	rec.TimeSpentSeconds = 95
	rec.Status = "completed"
	if err := db.UpsertSession(ctx, rec); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	var count int64
	if err := db.db.Model(&SessionRecord{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("rows = %d, want 1", count)
	}

	var got SessionRecord
	if err := db.db.First(&got).Error; err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if got.Status != "completed" || got.TimeSpentSeconds != 95 {
		t.Errorf("row = (%s, %ds), want (completed, 95s)", got.Status, got.TimeSpentSeconds)
	}
	if got.Metadata["subject"] != "algorithms" {
		t.Errorf("metadata = %v, want subject preserved", got.Metadata)
	}
}

func TestDBAddUserXP_ConcurrentAwardsSum(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	const workers = 8
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := db.AddUserXP(ctx, "u1", 50); err != nil {
				t.Errorf("AddUserXP: %v", err)
			}
		}()
	}
	wg.Wait()

	p, err := db.GetProfile(ctx, "u1")
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if p.TotalXP != workers*50 {
		t.Errorf("TotalXP = %d, want %d", p.TotalXP, workers*50)
	}
}

func TestDBAddUserXP_DerivesLevel(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.AddUserXP(ctx, "u1", 2600); err != nil {
		t.Fatalf("AddUserXP: %v", err)
	}
	p, err := db.GetProfile(ctx, "u1")
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if p.Level != 3 {
		t.Errorf("Level = %d, want 3 at 2600 XP", p.Level)
	}
}

func TestDBGetProfile_MissingUserDefaults(t *testing.T) {
	db := openTestDB(t)
	p, err := db.GetProfile(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if p.TotalXP != 0 || p.Level != 1 {
		t.Errorf("profile = %+v, want zero profile at level 1", p)
	}
}

func TestDBAppendCompletion_RowsAccumulate(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	for i, id := range []string{"c1", "c2"} {
		rec := &CompletionRecord{
			ID: id, UserID: "u1", Kind: "match",
			XPEarned: 75, Score: 100 * (i + 1), Accuracy: 0.8,
		}
		if err := db.AppendCompletion(ctx, rec); err != nil {
			t.Fatalf("AppendCompletion(%s): %v", id, err)
		}
	}

	var count int64
	if err := db.db.Model(&CompletionRecord{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Errorf("rows = %d, want 2", count)
	}
}

func TestDBStats_RoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if got, err := db.LoadStats(ctx, "u1"); err != nil || got != nil {
		t.Fatalf("LoadStats on empty = (%s, %v), want (nil, nil)", got, err)
	}

	blob := []byte(`{"totalMatches":5}`)
	if err := db.SaveStats(ctx, "u1", blob); err != nil {
		t.Fatalf("SaveStats: %v", err)
	}
	if err := db.SaveStats(ctx, "u1", blob); err != nil {
		t.Fatalf("SaveStats (overwrite): %v", err)
	}

	got, err := db.LoadStats(ctx, "u1")
	if err != nil {
		t.Fatalf("LoadStats: %v", err)
	}
	if string(got) != string(blob) {
		t.Errorf("stats = %s, want %s", got, blob)
	}
}
