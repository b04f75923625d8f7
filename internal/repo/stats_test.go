package repo

import (
	"context"
	"testing"
	"time"

	"github.com/tbourn/go-anonchat-backend/internal/domain"
)

func TestPendingStats_EmptyInbox(t *testing.T) {
	db := newRepoDB(t, &domain.ChatRequest{})

	count, newest, err := PendingStats(context.Background(), db, "r")
	if err != nil {
		t.Fatalf("PendingStats: %v", err)
	}
	if count != 0 || newest != nil {
		t.Fatalf("expected empty stats, got count=%d newest=%v", count, newest)
	}
}

func TestPendingStats_CountsOpenAndPicksNewest(t *testing.T) {
	db := newRepoDB(t, &domain.ChatRequest{})

	t0 := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	tNewest := t0.Add(2 * time.Hour)
	seed := []domain.ChatRequest{
		{SenderID: "a", ReceiverID: "r", Status: domain.StatusPending, CreatedAt: t0},
		{SenderID: "b", ReceiverID: "r", Status: domain.StatusViewed, CreatedAt: tNewest},
		{SenderID: "c", ReceiverID: "r", Status: domain.StatusAccepted, CreatedAt: t0.Add(3 * time.Hour)},
	}
	for i := range seed {
		if err := db.Create(&seed[i]).Error; err != nil {
			t.Fatalf("seed %d: %v", i, err)
		}
	}

	count, newest, err := PendingStats(context.Background(), db, "r")
	if err != nil {
		t.Fatalf("PendingStats: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 open requests, got %d", count)
	}
	// The accepted row is newer but resolved; it must not drive the badge.
	if newest == nil || !newest.Equal(tNewest) {
		t.Fatalf("expected newest %v, got %v", tNewest, newest)
	}
}

func TestPendingStats_Error_NoTable(t *testing.T) {
	db := newRepoDB(t /* no migrations */)
	if _, _, err := PendingStats(context.Background(), db, "r"); err == nil {
		t.Fatalf("expected error when table missing")
	}
}
