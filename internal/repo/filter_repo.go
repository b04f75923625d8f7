// Package repo implements the data persistence layer for the matchmaking
// domain, backed by GORM. This file provides repository functions for the
// ChatFilter model.
//
// Filters are keyed by their owning user and written idempotently: the
// wizard's confirmation step upserts the whole row, and "deleting" a filter
// zeroes its fields while keeping the row (it is logically owned by the
// user record and retained for audit).
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-anonchat-backend/internal/domain"
)

// UpsertFilter inserts or fully overwrites the filter row for f.UserID.
// The write is a single statement so a half-applied filter can never be
// observed by the eligibility evaluator.
func UpsertFilter(ctx context.Context, db *gorm.DB, f *domain.ChatFilter) error {
	f.UpdatedAt = time.Now().UTC()
	if f.CreatedAt.IsZero() {
		f.CreatedAt = f.UpdatedAt
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"gender", "distance_class", "min_age", "max_age", "visible", "updated_at",
			}),
		}).
		Create(f).Error
}

// GetFilter fetches the filter owned by userID, or ErrNotFound if the user
// never configured one. Callers treat "not found" as an entirely unset
// filter (allow everyone).
func GetFilter(ctx context.Context, db *gorm.DB, userID string) (*domain.ChatFilter, error) {
	var f domain.ChatFilter
	if err := db.WithContext(ctx).First(&f, "user_id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &f, nil
}

// ClearFilter zeroes every filter field for userID while keeping the row.
// Returns ErrNotFound if the user has no filter row to clear.
func ClearFilter(ctx context.Context, db *gorm.DB, userID string) error {
	res := db.WithContext(ctx).
		Model(&domain.ChatFilter{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{
			"gender":         domain.GenderUnset,
			"distance_class": domain.DistanceUnset,
			"min_age":        nil,
			"max_age":        nil,
			"visible":        false,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
