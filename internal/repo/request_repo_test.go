package repo

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-anonchat-backend/internal/domain"
)

func newRepoDB(t *testing.T, migrate ...any) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("repo_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	// Ensure the file handle is released before TempDir cleanup (Windows needs this).
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	if len(migrate) > 0 {
		if err := db.AutoMigrate(migrate...); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

func TestCreateRequest_Error_NoTable(t *testing.T) {
	db := newRepoDB(t /* no migrations */)
	r, err := CreateRequest(context.Background(), db, "u1", "u2")
	if err == nil || r != nil {
		t.Fatalf("expected error creating without table, got req=%v err=%v", r, err)
	}
}

func TestCreateRequest_Success_PendingWithTimestamps(t *testing.T) {
	db := newRepoDB(t, &domain.ChatRequest{})

	start := time.Now().UTC().Add(-time.Minute)
	r, err := CreateRequest(context.Background(), db, "u1", "u2")
	if err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}
	if r.ID == 0 || r.SenderID != "u1" || r.ReceiverID != "u2" {
		t.Fatalf("unexpected ChatRequest fields: %+v", r)
	}
	if r.Status != domain.StatusPending {
		t.Fatalf("expected pending, got %s", r.Status)
	}
	if r.CreatedAt.Before(start) {
		t.Fatalf("CreatedAt seems unset/really old: %v", r.CreatedAt)
	}
	// round-trip
	var got domain.ChatRequest
	if err := db.First(&got, "id = ?", r.ID).Error; err != nil {
		t.Fatalf("load created request: %v", err)
	}
	if got.Status != domain.StatusPending || got.Connected {
		t.Fatalf("round-trip mismatch: %+v", got)
	}
}

func TestGetRequest_NotFound(t *testing.T) {
	db := newRepoDB(t, &domain.ChatRequest{})
	if _, err := GetRequest(context.Background(), db, 999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLastRequestBetween_PicksNewestAndIsDirectional(t *testing.T) {
	db := newRepoDB(t, &domain.ChatRequest{})

	t1 := time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)
	seed := []domain.ChatRequest{
		{SenderID: "u1", ReceiverID: "u2", Status: domain.StatusRejected, CreatedAt: t1},
		{SenderID: "u1", ReceiverID: "u2", Status: domain.StatusPending, CreatedAt: t2},
		{SenderID: "u2", ReceiverID: "u1", Status: domain.StatusPending, CreatedAt: t2.Add(time.Hour)},
	}
	for i := range seed {
		if err := db.Create(&seed[i]).Error; err != nil {
			t.Fatalf("seed %d: %v", i, err)
		}
	}

	got, err := LastRequestBetween(context.Background(), db, "u1", "u2")
	if err != nil {
		t.Fatalf("LastRequestBetween: %v", err)
	}
	// Newest u1→u2 row wins; the newer u2→u1 row is a different ordered pair.
	if !got.CreatedAt.Equal(t2) || got.Status != domain.StatusPending {
		t.Fatalf("unexpected row: %+v", got)
	}

	if _, err := LastRequestBetween(context.Background(), db, "u1", "u3"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for empty history, got %v", err)
	}
}

func TestMarkRequestViewed_FlipsOnceOnly(t *testing.T) {
	db := newRepoDB(t, &domain.ChatRequest{})

	r, err := CreateRequest(context.Background(), db, "u1", "u2")
	if err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}

	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	ok, err := MarkRequestViewed(context.Background(), db, r.ID, at)
	if err != nil || !ok {
		t.Fatalf("first MarkRequestViewed: ok=%v err=%v", ok, err)
	}

	var got domain.ChatRequest
	if err := db.First(&got, "id = ?", r.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.Status != domain.StatusViewed || got.ViewedAt == nil {
		t.Fatalf("expected viewed with ViewedAt, got %+v", got)
	}

	// Second flip finds no pending row.
	ok, err = MarkRequestViewed(context.Background(), db, r.ID, at.Add(time.Minute))
	if err != nil || ok {
		t.Fatalf("second MarkRequestViewed should be no-op: ok=%v err=%v", ok, err)
	}
}

func TestResolveRequest_GuardedToNonTerminal(t *testing.T) {
	db := newRepoDB(t, &domain.ChatRequest{})

	r, err := CreateRequest(context.Background(), db, "u1", "u2")
	if err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}
	now := time.Now().UTC()

	ok, err := ResolveRequest(context.Background(), db, r.ID, domain.StatusAccepted, true, now)
	if err != nil || !ok {
		t.Fatalf("resolve accepted: ok=%v err=%v", ok, err)
	}

	var got domain.ChatRequest
	if err := db.First(&got, "id = ?", r.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.Status != domain.StatusAccepted || !got.Connected || got.RespondedAt == nil {
		t.Fatalf("unexpected resolved row: %+v", got)
	}

	// A terminal row cannot be resolved again, whatever the target.
	ok, err = ResolveRequest(context.Background(), db, r.ID, domain.StatusRejected, false, now)
	if err != nil || ok {
		t.Fatalf("re-resolve should not touch a terminal row: ok=%v err=%v", ok, err)
	}
	if err := db.First(&got, "id = ?", r.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.Status != domain.StatusAccepted {
		t.Fatalf("terminal status changed: %+v", got)
	}
}

func TestResolveRequest_FromViewed(t *testing.T) {
	db := newRepoDB(t, &domain.ChatRequest{})

	r, err := CreateRequest(context.Background(), db, "u1", "u2")
	if err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}
	if ok, err := MarkRequestViewed(context.Background(), db, r.ID, time.Now().UTC()); err != nil || !ok {
		t.Fatalf("MarkRequestViewed: ok=%v err=%v", ok, err)
	}
	ok, err := ResolveRequest(context.Background(), db, r.ID, domain.StatusRejected, false, time.Now().UTC())
	if err != nil || !ok {
		t.Fatalf("resolve from viewed: ok=%v err=%v", ok, err)
	}
}

func TestSetNotificationRef(t *testing.T) {
	db := newRepoDB(t, &domain.ChatRequest{})

	r, err := CreateRequest(context.Background(), db, "u1", "u2")
	if err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}
	if err := SetNotificationRef(context.Background(), db, r.ID, "msg-42"); err != nil {
		t.Fatalf("SetNotificationRef: %v", err)
	}
	var got domain.ChatRequest
	if err := db.First(&got, "id = ?", r.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.NotificationRef != "msg-42" {
		t.Fatalf("expected ref msg-42, got %q", got.NotificationRef)
	}

	if err := SetNotificationRef(context.Background(), db, 999, "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing row, got %v", err)
	}
}

func TestCountAndListPending(t *testing.T) {
	db := newRepoDB(t, &domain.ChatRequest{})

	t0 := time.Date(2025, 4, 1, 8, 0, 0, 0, time.UTC)
	seed := []domain.ChatRequest{
		{SenderID: "a", ReceiverID: "r", Status: domain.StatusPending, CreatedAt: t0},
		{SenderID: "b", ReceiverID: "r", Status: domain.StatusViewed, CreatedAt: t0.Add(time.Hour)},
		{SenderID: "c", ReceiverID: "r", Status: domain.StatusPending, CreatedAt: t0.Add(2 * time.Hour)},
		{SenderID: "d", ReceiverID: "r", Status: domain.StatusRejected, CreatedAt: t0.Add(3 * time.Hour)},
		{SenderID: "a", ReceiverID: "other", Status: domain.StatusPending, CreatedAt: t0},
	}
	for i := range seed {
		if err := db.Create(&seed[i]).Error; err != nil {
			t.Fatalf("seed %d: %v", i, err)
		}
	}

	total, err := CountPending(context.Background(), db, "r")
	if err != nil {
		t.Fatalf("CountPending: %v", err)
	}
	if total != 3 {
		t.Fatalf("expected 3 open requests, got %d", total)
	}

	page, err := ListPendingPage(context.Background(), db, "r", 0, 2)
	if err != nil {
		t.Fatalf("ListPendingPage: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("expected page of 2, got %d", len(page))
	}
	// Newest first: c, then b.
	if page[0].SenderID != "c" || page[1].SenderID != "b" {
		t.Fatalf("unexpected page order: %+v", page)
	}

	page2, err := ListPendingPage(context.Background(), db, "r", 2, 2)
	if err != nil {
		t.Fatalf("ListPendingPage offset 2: %v", err)
	}
	if len(page2) != 1 || page2[0].SenderID != "a" {
		t.Fatalf("unexpected second page: %+v", page2)
	}
}
