// Package repo implements the data persistence layer for the matchmaking
// domain, backed by GORM. This file provides repository functions for the
// ChatSession model, the rows behind the "is this user busy" predicate.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-anonchat-backend/internal/domain"
)

// OpenSession inserts a new active chat session between userA and userB.
// The session ID is a randomly generated UUID (string).
func OpenSession(ctx context.Context, db *gorm.DB, userA, userB string) (*domain.ChatSession, error) {
	s := &domain.ChatSession{
		ID:        uuid.NewString(),
		UserAID:   userA,
		UserBID:   userB,
		Status:    domain.SessionActive,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(s).Error; err != nil {
		return nil, err
	}
	return s, nil
}

// UserInActiveSession reports whether userID appears on either side of a
// session in state active. This is the busy predicate the accept path must
// evaluate inside its transaction; reading it outside one and acting on the
// stale value is how two chats per user happen.
func UserInActiveSession(ctx context.Context, db *gorm.DB, userID string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.ChatSession{}).
		Where("status = ? AND (user_a_id = ? OR user_b_id = ?)", domain.SessionActive, userID, userID).
		Count(&n).Error
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// CloseSession flips a session from active to closed and stamps ClosedAt.
// Returns ErrNotFound if the session is missing or already closed.
func CloseSession(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).
		Model(&domain.ChatSession{}).
		Where("id = ? AND status = ?", id, domain.SessionActive).
		Updates(map[string]any{
			"status":    domain.SessionClosed,
			"closed_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ActiveSessionFor returns the active session userID is part of, or
// ErrNotFound when the user is free.
func ActiveSessionFor(ctx context.Context, db *gorm.DB, userID string) (*domain.ChatSession, error) {
	var s domain.ChatSession
	err := db.WithContext(ctx).
		Where("status = ? AND (user_a_id = ? OR user_b_id = ?)", domain.SessionActive, userID, userID).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}
