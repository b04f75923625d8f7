// Package services – GORM-backed store adapters
//
// The lifecycle and evaluator depend on narrow contracts (RequestStore,
// ActiveChatStore, FilterStore, ChatOpener) so tests can substitute fakes.
// This file binds those contracts to the repo package for production use.
package services

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-anonchat-backend/internal/domain"
	"github.com/tbourn/go-anonchat-backend/internal/repo"
)

// GormRequestStore implements RequestStore on the repo package.
type GormRequestStore struct{}

func (GormRequestStore) Create(ctx context.Context, db *gorm.DB, senderID, receiverID string) (*domain.ChatRequest, error) {
	return repo.CreateRequest(ctx, db, senderID, receiverID)
}

func (GormRequestStore) Get(ctx context.Context, db *gorm.DB, id uint) (*domain.ChatRequest, error) {
	return repo.GetRequest(ctx, db, id)
}

func (GormRequestStore) LastBetween(ctx context.Context, db *gorm.DB, senderID, receiverID string) (*domain.ChatRequest, error) {
	return repo.LastRequestBetween(ctx, db, senderID, receiverID)
}

func (GormRequestStore) MarkViewed(ctx context.Context, db *gorm.DB, id uint, at time.Time) (bool, error) {
	return repo.MarkRequestViewed(ctx, db, id, at)
}

func (GormRequestStore) Resolve(ctx context.Context, db *gorm.DB, id uint, to domain.RequestStatus, connected bool, at time.Time) (bool, error) {
	return repo.ResolveRequest(ctx, db, id, to, connected, at)
}

func (GormRequestStore) SetNotificationRef(ctx context.Context, db *gorm.DB, id uint, ref string) error {
	return repo.SetNotificationRef(ctx, db, id, ref)
}

func (GormRequestStore) CountPending(ctx context.Context, db *gorm.DB, receiverID string) (int64, error) {
	return repo.CountPending(ctx, db, receiverID)
}

func (GormRequestStore) ListPendingPage(ctx context.Context, db *gorm.DB, receiverID string, offset, limit int) ([]domain.ChatRequest, error) {
	return repo.ListPendingPage(ctx, db, receiverID, offset, limit)
}

func (GormRequestStore) PendingStats(ctx context.Context, db *gorm.DB, receiverID string) (int64, *time.Time, error) {
	return repo.PendingStats(ctx, db, receiverID)
}

// GormActiveChatStore implements ActiveChatStore on the chat_sessions table.
type GormActiveChatStore struct{}

func (GormActiveChatStore) UserInActiveChat(ctx context.Context, db *gorm.DB, userID string) (bool, error) {
	return repo.UserInActiveSession(ctx, db, userID)
}

// GormFilterStore implements FilterStore plus the wizard's write side,
// bound to a fixed handle: filter reads and writes never run inside the
// lifecycle transactions.
type GormFilterStore struct {
	DB *gorm.DB
}

func (s GormFilterStore) GetFilter(ctx context.Context, userID string) (*domain.ChatFilter, error) {
	return repo.GetFilter(ctx, s.DB, userID)
}

func (s GormFilterStore) UpsertFilter(ctx context.Context, f *domain.ChatFilter) error {
	return repo.UpsertFilter(ctx, s.DB, f)
}

func (s GormFilterStore) ClearFilter(ctx context.Context, userID string) error {
	return repo.ClearFilter(ctx, s.DB, userID)
}

// GormChatOpener implements ChatOpener on the chat_sessions table. Deployed
// instances may replace it with a client of the real chat platform.
type GormChatOpener struct {
	DB *gorm.DB
}

func (o GormChatOpener) OpenChat(ctx context.Context, userAID, userBID string) (string, error) {
	s, err := repo.OpenSession(ctx, o.DB, userAID, userBID)
	if err != nil {
		return "", err
	}
	return s.ID, nil
}

// CloseChat ends an open session; exposed for the command layer's
// "leave chat" path.
func (o GormChatOpener) CloseChat(ctx context.Context, chatID string) error {
	return repo.CloseSession(ctx, o.DB, chatID)
}
