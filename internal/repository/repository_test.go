package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/iliyamo/sourcetrak/internal/database"
	"github.com/iliyamo/sourcetrak/internal/model"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open("sqlite", "file:"+filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := EnsureSchema(context.Background(), db, "sqlite"); err != nil {
		t.Fatalf("schema: %v", err)
	}
	return db
}

func TestUserRepo_CreateAndAuthenticate(t *testing.T) {
	ctx := context.Background()
	users := NewUserRepo(openTestDB(t))

	u, err := users.Create(ctx, " Ann ", "Ann@Example.com", "secret1", "Farmer", 4)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if u.Email != "ann@example.com" || u.Name != "Ann" || u.ID == "" {
		t.Fatalf("unexpected user %+v", u)
	}
	if _, err := users.Create(ctx, "Other", "ANN@example.com ", "secret2", "Retailer", 4); !errors.Is(err, ErrEmailExists) {
		t.Fatalf("expected ErrEmailExists, got %v", err)
	}
	got, err := users.Authenticate(ctx, "ann@example.com", "secret1")
	if err != nil || got.ID != u.ID {
		t.Fatalf("authenticate: %+v %v", got, err)
	}
	if _, err := users.Authenticate(ctx, "ann@example.com", "wrong!"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for bad password, got %v", err)
	}
	if _, err := users.GetByID(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestBatchRepo_RecordsKeepOrder(t *testing.T) {
	ctx := context.Background()
	batches := NewBatchRepo(openTestDB(t))

	b, err := batches.Create(ctx, "farmer-1")
	if err != nil {
		t.Fatalf("create batch: %v", err)
	}
	for i, user := range []string{"farmer-1", "producer-1", "retailer-1"} {
		_, err := batches.AddRecord(ctx, NewRecord{
			EventID: string(rune('a' + i)),
			BatchID: b.BatchID.String(),
			UserID:  user,
			Data:    []byte(`{"farm_name":"Green"}`),
			TxHash:  "0x" + user,
		})
		if err != nil {
			t.Fatalf("add record %d: %v", i, err)
		}
	}
	recs, err := batches.Records(ctx, b.BatchID.String())
	if err != nil {
		t.Fatalf("records: %v", err)
	}
	if len(recs) != 3 || recs[0].UserID != "farmer-1" || recs[2].UserID != "retailer-1" {
		t.Fatalf("unexpected order %+v", recs)
	}
	if !recs[0].Verified() {
		t.Fatalf("demo records are verified")
	}
	var s string
	if err := json.Unmarshal(recs[0].Data, &s); err != nil || s != `{"farm_name":"Green"}` {
		t.Fatalf("data should be an encoded string, got %s", recs[0].Data)
	}

	hist, err := batches.History(ctx, "producer-1", 10, 0)
	if err != nil || len(hist) != 1 || hist[0].EventID != "b" {
		t.Fatalf("history: %+v %v", hist, err)
	}
	if _, err := batches.AddRecord(ctx, NewRecord{EventID: "a", BatchID: b.BatchID.String(), UserID: "x", Data: []byte(`{}`)}); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for reused event id, got %v", err)
	}
	if _, err := batches.AddRecord(ctx, NewRecord{BatchID: "nope", UserID: "x", Data: []byte(`{}`)}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown batch, got %v", err)
	}
	if _, err := batches.RecordByEvent(ctx, "zzz"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestEntryCache(t *testing.T) {
	ctx := context.Background()
	cache := NewEntryCache(openTestDB(t))

	vm := model.ViewModel{ID: "e1", BatchID: "B1", FarmName: "Green", Status: model.StatusVerified}
	if err := cache.Save(ctx, "u1", vm); err != nil {
		t.Fatalf("save: %v", err)
	}
	vm.FarmName = "Green Valley"
	if err := cache.Save(ctx, "u1", vm); err != nil {
		t.Fatalf("resave: %v", err)
	}
	if err := cache.Save(ctx, "u2", model.ViewModel{ID: "e2", BatchID: "B2"}); err != nil {
		t.Fatalf("save other: %v", err)
	}
	got, err := cache.List(ctx, "u1")
	if err != nil || len(got) != 1 || got[0].FarmName != "Green Valley" {
		t.Fatalf("list: %+v %v", got, err)
	}
	if err := cache.Clear(ctx, "u1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if got, _ := cache.List(ctx, "u1"); len(got) != 0 {
		t.Fatalf("expected empty cache, got %+v", got)
	}
	if got, _ := cache.List(ctx, "u2"); len(got) != 1 {
		t.Fatalf("other user's entries must survive, got %+v", got)
	}
}
