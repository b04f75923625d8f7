// Package repo implements the data persistence layer for the matchmaking
// domain, backed by GORM. This file provides small aggregate queries used
// for inbox badges and freshness checks by the command layer above.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-anonchat-backend/internal/domain"
)

// PendingStats returns aggregate metadata for a receiver's open inbox:
// the number of requests still awaiting a response and the CreatedAt of the
// newest one. When the inbox is empty, count is 0 and newest is nil.
func PendingStats(ctx context.Context, db *gorm.DB, receiverID string) (count int64, newest *time.Time, err error) {
	q := db.WithContext(ctx).
		Model(&domain.ChatRequest{}).
		Where("receiver_id = ? AND status IN ?", receiverID, domain.NonTerminalStatuses)

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest created_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		CreatedAt time.Time
	}
	if err = q.Select("created_at").Order("created_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.CreatedAt, nil
}
