package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/tbourn/go-anonchat-backend/internal/domain"
)

func intp(v int) *int { return &v }

func TestUpsertFilter_InsertThenOverwrite(t *testing.T) {
	db := newRepoDB(t, &domain.ChatFilter{})

	f := &domain.ChatFilter{
		UserID:        "u1",
		Gender:        domain.GenderFemale,
		DistanceClass: domain.DistanceSameRegion,
		MinAge:        intp(20),
		MaxAge:        intp(30),
		Visible:       true,
	}
	if err := UpsertFilter(context.Background(), db, f); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := GetFilter(context.Background(), db, "u1")
	if err != nil {
		t.Fatalf("GetFilter: %v", err)
	}
	if got.Gender != domain.GenderFemale || got.DistanceClass != domain.DistanceSameRegion {
		t.Fatalf("unexpected filter: %+v", got)
	}
	if got.MinAge == nil || *got.MinAge != 20 || got.MaxAge == nil || *got.MaxAge != 30 {
		t.Fatalf("age band not persisted: %+v", got)
	}

	// Second write for the same user overwrites in place, no duplicate row.
	f2 := &domain.ChatFilter{
		UserID:        "u1",
		Gender:        domain.GenderAll,
		DistanceClass: domain.DistanceWithin10Km,
		Visible:       false,
	}
	if err := UpsertFilter(context.Background(), db, f2); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	var n int64
	if err := db.Model(&domain.ChatFilter{}).Where("user_id = ?", "u1").Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 row after upsert, got %d", n)
	}

	got, err = GetFilter(context.Background(), db, "u1")
	if err != nil {
		t.Fatalf("GetFilter after overwrite: %v", err)
	}
	if got.Gender != domain.GenderAll || got.DistanceClass != domain.DistanceWithin10Km || got.Visible {
		t.Fatalf("overwrite not applied: %+v", got)
	}
	if got.MinAge != nil || got.MaxAge != nil {
		t.Fatalf("age band should have been cleared by overwrite: %+v", got)
	}
}

func TestGetFilter_NotFound(t *testing.T) {
	db := newRepoDB(t, &domain.ChatFilter{})
	if _, err := GetFilter(context.Background(), db, "nobody"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestClearFilter_ZeroesFieldsKeepsRow(t *testing.T) {
	db := newRepoDB(t, &domain.ChatFilter{})

	f := &domain.ChatFilter{
		UserID:        "u1",
		Gender:        domain.GenderMale,
		DistanceClass: domain.DistanceWithin100Km,
		MinAge:        intp(25),
		MaxAge:        intp(40),
		Visible:       true,
	}
	if err := UpsertFilter(context.Background(), db, f); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if err := ClearFilter(context.Background(), db, "u1"); err != nil {
		t.Fatalf("ClearFilter: %v", err)
	}

	got, err := GetFilter(context.Background(), db, "u1")
	if err != nil {
		t.Fatalf("row should survive a clear: %v", err)
	}
	if !got.Unset() {
		t.Fatalf("expected an unset filter after clear, got %+v", got)
	}
	if got.Visible {
		t.Fatalf("visible should be false after clear")
	}
}

func TestClearFilter_NotFound(t *testing.T) {
	db := newRepoDB(t, &domain.ChatFilter{})
	if err := ClearFilter(context.Background(), db, "nobody"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
