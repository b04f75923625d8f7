// Package repo implements the data persistence layer for the matchmaking
// domain, backed by GORM. This file provides repository functions for the
// ChatRequest model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a request is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - Status transitions are guarded UPDATEs: the WHERE clause restricts the
//     rows they may touch, and callers learn from the returned bool whether
//     the transition actually happened. A false result under a loaded row
//     means a concurrent writer got there first.
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-anonchat-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateRequest inserts a new pending ChatRequest for the ordered pair
// (senderID, receiverID). CreatedAt is set to UTC.
func CreateRequest(ctx context.Context, db *gorm.DB, senderID, receiverID string) (*domain.ChatRequest, error) {
	r := &domain.ChatRequest{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Status:     domain.StatusPending,
		CreatedAt:  time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(r).Error; err != nil {
		return nil, err
	}
	return r, nil
}

// GetRequest fetches a single request by ID, or ErrNotFound if missing.
func GetRequest(ctx context.Context, db *gorm.DB, id uint) (*domain.ChatRequest, error) {
	var r domain.ChatRequest
	if err := db.WithContext(ctx).First(&r, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &r, nil
}

// LastRequestBetween returns the most recent request from senderID to
// receiverID regardless of its outcome, or ErrNotFound if the pair has no
// history. Cooldown enforcement only ever looks at this row; older requests
// never extend the window further.
func LastRequestBetween(ctx context.Context, db *gorm.DB, senderID, receiverID string) (*domain.ChatRequest, error) {
	var r domain.ChatRequest
	err := db.WithContext(ctx).
		Where("sender_id = ? AND receiver_id = ?", senderID, receiverID).
		Order("created_at desc").
		First(&r).Error
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// MarkRequestViewed flips a request from pending to viewed and stamps
// ViewedAt. It reports whether a row changed; false means the request was
// already past pending (or absent), which callers treat as an idempotent
// no-op after confirming existence.
func MarkRequestViewed(ctx context.Context, db *gorm.DB, id uint, at time.Time) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.ChatRequest{}).
		Where("id = ? AND status = ?", id, domain.StatusPending).
		Updates(map[string]any{
			"status":    domain.StatusViewed,
			"viewed_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ResolveRequest writes a terminal status onto a request, guarded so that
// only non-terminal rows can be resolved. It reports whether the transition
// happened; false means the row was already terminal (terminal statuses are
// written exactly once) or missing.
//
// connected should be true only when to == StatusAccepted.
func ResolveRequest(ctx context.Context, db *gorm.DB, id uint, to domain.RequestStatus, connected bool, at time.Time) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.ChatRequest{}).
		Where("id = ? AND status IN ?", id, domain.NonTerminalStatuses).
		Updates(map[string]any{
			"status":       to,
			"connected":    connected,
			"responded_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// SetNotificationRef records the opaque delivery handle of the "request
// received" notification on the request row. Best-effort: a missing row is
// reported via ErrNotFound.
func SetNotificationRef(ctx context.Context, db *gorm.DB, id uint, ref string) error {
	res := db.WithContext(ctx).
		Model(&domain.ChatRequest{}).
		Where("id = ?", id).
		Update("notification_ref", ref)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CountPending returns how many requests are awaiting a response from
// receiverID (status pending or viewed).
func CountPending(ctx context.Context, db *gorm.DB, receiverID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.ChatRequest{}).
		Where("receiver_id = ? AND status IN ?", receiverID, domain.NonTerminalStatuses).
		Count(&total).Error
	return total, err
}

// ListPendingPage returns a page of requests awaiting a response from
// receiverID, newest first. Use CountPending for pagination metadata.
//
// The caller is responsible for computing offset and limit (e.g., (page-1)*pageSize).
func ListPendingPage(ctx context.Context, db *gorm.DB, receiverID string, offset, limit int) ([]domain.ChatRequest, error) {
	var out []domain.ChatRequest
	err := db.WithContext(ctx).
		Where("receiver_id = ? AND status IN ?", receiverID, domain.NonTerminalStatuses).
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}
